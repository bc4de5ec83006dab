package storage

// This file contains the local filesystem backend, used when diagnostics
// should stay on the machine running the tests.

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// LocalName is the registry name of the local backend
const LocalName = "local"

// Local stores files below a root directory.
type Local struct {
	fs   afero.Fs
	root string
	// Prefix of returned URLs; file:// URLs when empty
	baseURL string
}

// LocalOption configures a Local storage.
type LocalOption func(*Local)

// WithFs replaces the filesystem, mainly for tests.
func WithFs(fsys afero.Fs) LocalOption {
	return func(l *Local) {
		l.fs = fsys
	}
}

// WithBaseURL makes returned URLs point at a server exposing root.
func WithBaseURL(base string) LocalOption {
	return func(l *Local) {
		l.baseURL = strings.TrimSuffix(base, "/")
	}
}

// NewLocal creates a local storage writing below root.
func NewLocal(root string, opts ...LocalOption) *Local {
	l := &Local{
		fs:   afero.NewOsFs(),
		root: root,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SaveFile writes content to root/filename and returns its URL.
func (l *Local) SaveFile(ctx context.Context, content []byte, filename string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	clean := path.Clean("/" + filepath.ToSlash(filename))[1:]
	if clean == "" {
		return "", fmt.Errorf("invalid file name %q", filename)
	}

	dst := filepath.Join(l.root, filepath.FromSlash(clean))
	if err := l.fs.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory for %s: %w", dst, err)
	}
	if err := afero.WriteFile(l.fs, dst, content, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", dst, err)
	}

	if l.baseURL != "" {
		return l.baseURL + "/" + escapePath(clean), nil
	}

	abs, err := filepath.Abs(dst)
	if err != nil {
		abs = dst
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
