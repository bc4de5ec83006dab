package gotest

// This file contains the case manifest, a YAML file binding tests to cases
// without touching their source.
//
//	cases:
//	  - test: TestCheckout*
//	    package: example.com/shop/e2e
//	    case: PRJ-42

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/qasego/qasego/model"
	"gopkg.in/yaml.v3"
)

// DefaultManifest is looked up at the module root
const DefaultManifest = "qase.yaml"

// Manifest binds tests to cases by name.
type Manifest struct {
	// Path of the manifest relative to the module root, used in marker sources
	Name  string          `yaml:"-"`
	Cases []ManifestEntry `yaml:"cases"`
}

// ManifestEntry binds every test matching Test (and Package, when set) to Case.
type ManifestEntry struct {
	// Glob on the test function name
	Test string `yaml:"test"`
	// Glob on the import path, any package when empty
	Package string `yaml:"package"`
	Case    string `yaml:"case"`
	// Line of the entry in the manifest
	Line int `yaml:"-"`
}

func (e *ManifestEntry) UnmarshalYAML(value *yaml.Node) error {
	type plain ManifestEntry
	if err := value.Decode((*plain)(e)); err != nil {
		return err
	}
	e.Line = value.Line
	return nil
}

// LoadManifest reads the manifest at file. name is used in marker sources.
// A missing file yields a nil manifest when optional is set.
func LoadManifest(file, name string, optional bool) (*Manifest, error) {
	data, err := os.ReadFile(file)
	if optional && errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	m := &Manifest{Name: filepath.ToSlash(name)}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", file, err)
	}

	for _, e := range m.Cases {
		if e.Test == "" || e.Case == "" {
			return nil, fmt.Errorf("%s:%d: test and case are required", m.Name, e.Line)
		}
		if _, err := path.Match(e.Test, ""); err != nil {
			return nil, fmt.Errorf("%s:%d: invalid test pattern %q: %w", m.Name, e.Line, e.Test, err)
		}
		if _, err := path.Match(e.Package, ""); err != nil {
			return nil, fmt.Errorf("%s:%d: invalid package pattern %q: %w", m.Name, e.Line, e.Package, err)
		}
	}
	return m, nil
}

// Markers returns a marker for every entry matching the test.
func (m *Manifest) Markers(importPath, testName string) []model.Marker {
	if m == nil {
		return nil
	}

	var markers []model.Marker
	for _, e := range m.Cases {
		if ok, _ := path.Match(e.Test, testName); !ok {
			continue
		}
		if e.Package != "" {
			if ok, _ := path.Match(e.Package, importPath); !ok {
				continue
			}
		}
		markers = append(markers, model.Marker{
			Ref:    e.Case,
			Source: fmt.Sprintf("%s:%d", m.Name, e.Line),
		})
	}
	return markers
}
