package debuginfo

// This file contains the directory backed Source. Tests write their browser
// state with Save (qasetest.SaveDebug) and the reporter reads it back after
// the test process finished.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// DirEnv names the environment variable holding the artifact root of a
// go test process
const DirEnv = "QASE_DEBUG_DIR"

const (
	dirScreenshot = "screenshot.png"
	dirPage       = "page.html"
	dirBrowserLog = "browser_log.json"
	dirURL        = "url.txt"
)

// ArtifactDir returns the directory holding the artifacts of a top level
// test. Packages get a name based UUID so equal test names never collide.
func ArtifactDir(root, pkgDir, testName string) string {
	pkg := uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+filepath.ToSlash(pkgDir)))
	return filepath.Join(root, pkg.String(), topLevel(testName))
}

func topLevel(testName string) string {
	name, _, _ := strings.Cut(testName, "/")
	return name
}

// Snapshot is the browser state a test saves for the reporter.
type Snapshot struct {
	Screenshot []byte
	HTML       string
	BrowserLog []LogEntry
	URL        string
}

// Save writes snap into dir. Empty fields are not written.
func Save(fsys afero.Fs, dir string, snap Snapshot) error {
	if err := fsys.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create debug directory %s: %w", dir, err)
	}

	files := map[string][]byte{}
	if snap.Screenshot != nil {
		files[dirScreenshot] = snap.Screenshot
	}
	if snap.HTML != "" {
		files[dirPage] = []byte(snap.HTML)
	}
	if snap.BrowserLog != nil {
		data, err := json.Marshal(snap.BrowserLog)
		if err != nil {
			return fmt.Errorf("failed to encode browser log: %w", err)
		}
		files[dirBrowserLog] = data
	}
	if snap.URL != "" {
		files[dirURL] = []byte(snap.URL)
	}

	for name, data := range files {
		if err := afero.WriteFile(fsys, filepath.Join(dir, name), data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}
	return nil
}

// DirSource reads artifacts saved with Save.
type DirSource struct {
	fs  afero.Fs
	dir string
}

// NewDirSource returns a Source for dir, or nil when nothing was saved there.
func NewDirSource(fsys afero.Fs, dir string) *DirSource {
	if ok, err := afero.DirExists(fsys, dir); err != nil || !ok {
		return nil
	}
	return &DirSource{fs: fsys, dir: dir}
}

func (d *DirSource) read(name string) ([]byte, error) {
	data, err := afero.ReadFile(d.fs, filepath.Join(d.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s was not saved by the test", name)
	}
	return data, err
}

func (d *DirSource) Screenshot() ([]byte, error) {
	return d.read(dirScreenshot)
}

func (d *DirSource) PageSource() (string, error) {
	data, err := d.read(dirPage)
	return string(data), err
}

func (d *DirSource) BrowserLog() ([]LogEntry, error) {
	data, err := d.read(dirBrowserLog)
	if err != nil {
		return nil, err
	}
	var entries []LogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", dirBrowserLog, err)
	}
	return entries, nil
}

func (d *DirSource) CurrentURL() (string, error) {
	data, err := d.read(dirURL)
	return strings.TrimSpace(string(data)), err
}
