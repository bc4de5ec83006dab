package storage

// Package storage defines where failure diagnostics are uploaded and how a
// backend is picked by name.

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// None is the storage name disabling diagnostics uploads
const None = "none"

// FileStorage uploads a file and returns its public URL.
type FileStorage interface {
	SaveFile(ctx context.Context, content []byte, filename string) (string, error)
}

// Resolve returns the storage registered under name. It returns nil when
// name is None or unknown; an unknown name is logged with every available
// name.
func Resolve(logger zerolog.Logger, name string, available map[string]FileStorage) FileStorage {
	if strings.EqualFold(name, None) {
		logger.Debug().Msg("File storage disabled")
		return nil
	}

	if fs, ok := available[name]; ok && fs != nil {
		logger.Debug().Str("storage", name).Msg("Using file storage")
		return fs
	}

	names := make([]string, 0, len(available))
	for n := range available {
		names = append(names, n)
	}
	sort.Strings(names)

	logger.Error().
		Str("storage", name).
		Strs("available", names).
		Msgf("Unable to find %s file storage. Available storages: %s", name, strings.Join(names, ", "))
	return nil
}
