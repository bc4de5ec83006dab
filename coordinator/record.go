package coordinator

// This file contains the run record: a tiny file holding the decimal id of
// the run shared by every worker of a session.

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// RecordFile stores the active run id.
type RecordFile struct {
	fs   afero.Fs
	path string
}

// NewRecordFile creates a RecordFile at path on the given filesystem.
func NewRecordFile(fsys afero.Fs, path string) *RecordFile {
	return &RecordFile{fs: fsys, path: path}
}

// Path returns the location of the record file.
func (r *RecordFile) Path() string {
	return r.path
}

// Read returns the stored run id. ok is false when no record exists.
func (r *RecordFile) Read() (id int64, ok bool, err error) {
	data, err := afero.ReadFile(r.fs, r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read run record %s: %w", r.path, err)
	}

	id, err = strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("invalid run record %s: %w", r.path, err)
	}
	return id, true, nil
}

// Write replaces the record with id.
func (r *RecordFile) Write(id int64) error {
	if err := afero.WriteFile(r.fs, r.path, []byte(strconv.FormatInt(id, 10)), 0644); err != nil {
		return fmt.Errorf("failed to write run record %s: %w", r.path, err)
	}
	return nil
}

// Remove deletes the record. A missing record is not an error.
func (r *RecordFile) Remove() error {
	err := r.fs.Remove(r.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove run record %s: %w", r.path, err)
	}
	return nil
}
