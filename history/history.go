package history

// This file contains shared history utilities for recording, loading and
// parsing session history.

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/qasego/qasego/model"
	"github.com/rs/zerolog"
)

const (
	// DirName is the directory below the repository root holding qasego state
	DirName = ".qasego"
	// FileName is the metadata file of a recorded session
	FileName = "history.json"
)

type Entry struct {
	History  model.History
	FullPath string
}

// Root returns the qasego directory of the repository at repoRoot.
func Root(repoRoot string) string {
	return filepath.Join(repoRoot, DirName)
}

// ExistingRoot returns Root(repoRoot) and fails when nothing was recorded yet.
func ExistingRoot(repoRoot string) (string, error) {
	root := Root(repoRoot)
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return "", fmt.Errorf("no sessions found in %s", root)
	}
	return root, nil
}

// RunDirName returns the directory name of a session:
// <timestamp>-<short commit>-<short id>.
func RunDirName(h *model.History) string {
	commit := "nocommit"
	if h.Git != nil && h.Git.Commit != "" {
		commit = short(h.Git.Commit)
	}
	name := fmt.Sprintf("%s-%s-%s", h.Timestamp.Format("20060102-150405"), commit, short(h.ID))
	if h.WorkerID != "" {
		name += "-w" + h.WorkerID
	}
	return name
}

// Record writes h into root/history/<RunDirName>/history.json and returns the
// session directory.
func Record(root string, h *model.History) (string, error) {
	runDir := filepath.Join(root, "history", RunDirName(h))
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create history directory: %w", err)
	}

	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal history: %w", err)
	}
	if err := os.WriteFile(filepath.Join(runDir, FileName), data, 0644); err != nil {
		return "", fmt.Errorf("failed to write history: %w", err)
	}
	return runDir, nil
}

// LoadEntries loads all history entries below root, newest first.
func LoadEntries(logger zerolog.Logger, root string) ([]Entry, error) {
	var entries []Entry

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			historyPath := filepath.Join(path, FileName)
			if _, err := os.Stat(historyPath); err == nil {
				history, err := parseHistoryJSON(historyPath)
				if err != nil {
					logger.Warn().Err(err).Str("path", historyPath).Msg("Failed to parse history.json")
					return nil
				}

				entries = append(entries, Entry{
					History:  history,
					FullPath: path,
				})
			}
		}

		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to walk %s directory: %w", DirName, err)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].History.Timestamp.After(entries[j].History.Timestamp)
	})
	return entries, nil
}

// Find returns the entry selected by arg: "0" is the newest entry, "-1" the
// one before, anything else is an ID prefix.
func Find(entries []Entry, arg string) (*Entry, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("no history entries found")
	}

	if index, ok := parseIndex(arg); ok {
		if index < 0 {
			return nil, fmt.Errorf("invalid index: %s (use 0 for last, -1 for second-to-last, -2 for third-to-last, etc.)", arg)
		}
		if index >= len(entries) {
			return nil, fmt.Errorf("index %s out of range (only %d history entries)", arg, len(entries))
		}
		return &entries[index], nil
	}

	prefix := strings.ToLower(arg)
	for i := range entries {
		if strings.HasPrefix(strings.ToLower(entries[i].History.ID), prefix) {
			return &entries[i], nil
		}
	}
	return nil, fmt.Errorf("no history entry found matching ID: %s", arg)
}

// parseIndex turns "0", "-1", "-2" into 0, 1, 2. Positive numbers give -1.
func parseIndex(arg string) (int, bool) {
	parsed, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, false
	}
	if parsed > 0 {
		return -1, true
	}
	return int(-parsed), true
}

// parseHistoryJSON parses a history.json file.
func parseHistoryJSON(historyPath string) (model.History, error) {
	data, err := os.ReadFile(historyPath)
	if err != nil {
		return model.History{}, err
	}

	var history model.History
	if err := json.Unmarshal(data, &history); err != nil {
		return model.History{}, err
	}

	return history, nil
}

func short(s string) string {
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
