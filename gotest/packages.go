package gotest

// This file contains package resolution: turning the package patterns given
// on the command line into import paths and directories, based on go.mod.

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/mod/modfile"
)

// Package is a Go package of the main module.
type Package struct {
	ImportPath string
	// Absolute directory
	Dir string
}

// Module describes the main module.
type Module struct {
	Path string
	// Absolute directory holding go.mod
	Root string
}

// FindModule looks for go.mod in dir and its parents.
func FindModule(dir string) (Module, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return Module{}, err
	}

	for {
		gomod := filepath.Join(dir, "go.mod")
		data, err := os.ReadFile(gomod)
		if err == nil {
			modPath := modfile.ModulePath(data)
			if modPath == "" {
				return Module{}, fmt.Errorf("no module directive in %s", gomod)
			}
			return Module{Path: modPath, Root: dir}, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return Module{}, fmt.Errorf("failed to read %s: %w", gomod, err)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return Module{}, fmt.Errorf("go.mod not found: run qasego inside a Go module")
		}
		dir = parent
	}
}

// ImportPath returns the import path of the package in dir.
func (m Module) ImportPath(dir string) (string, error) {
	rel, err := filepath.Rel(m.Root, dir)
	if err != nil {
		return "", err
	}
	if rel == "." {
		return m.Path, nil
	}
	if strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%s is outside of module %s", dir, m.Path)
	}
	return path.Join(m.Path, filepath.ToSlash(rel)), nil
}

// ResolvePackages expands patterns relative to workDir. Supported are
// directories ("." "./pkg"), recursive patterns ("./..." "./pkg/...") and
// import paths of the main module. Only directories holding Go files count.
func ResolvePackages(m Module, workDir string, patterns []string) ([]Package, error) {
	if len(patterns) == 0 {
		patterns = []string{"."}
	}

	seen := make(map[string]bool)
	var pkgs []Package
	add := func(dir string) error {
		if seen[dir] {
			return nil
		}
		seen[dir] = true
		ok, err := hasGoFiles(dir)
		if err != nil || !ok {
			return err
		}
		importPath, err := m.ImportPath(dir)
		if err != nil {
			return err
		}
		pkgs = append(pkgs, Package{ImportPath: importPath, Dir: dir})
		return nil
	}

	for _, pattern := range patterns {
		dir, recursive, err := patternDir(m, workDir, pattern)
		if err != nil {
			return nil, err
		}

		if !recursive {
			if _, err := os.Stat(dir); err != nil {
				return nil, fmt.Errorf("invalid package path %q: %w", pattern, err)
			}
			if err := add(dir); err != nil {
				return nil, err
			}
			continue
		}

		err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				return nil
			}
			if p != dir && skipDir(m, p, d.Name()) {
				return filepath.SkipDir
			}
			return add(p)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", dir, err)
		}
	}

	sort.Slice(pkgs, func(i, j int) bool {
		return pkgs[i].ImportPath < pkgs[j].ImportPath
	})
	return pkgs, nil
}

func patternDir(m Module, workDir, pattern string) (dir string, recursive bool, err error) {
	if pattern == "..." {
		return m.Root, true, nil
	}
	if rest, ok := strings.CutSuffix(pattern, "/..."); ok {
		pattern, recursive = rest, true
	}

	switch {
	case pattern == "." || pattern == ".." || strings.HasPrefix(pattern, "./") || strings.HasPrefix(pattern, "../"):
		dir = filepath.Join(workDir, filepath.FromSlash(pattern))
	case filepath.IsAbs(pattern):
		dir = pattern
	case pattern == m.Path:
		dir = m.Root
	case strings.HasPrefix(pattern, m.Path+"/"):
		dir = filepath.Join(m.Root, filepath.FromSlash(strings.TrimPrefix(pattern, m.Path+"/")))
	default:
		return "", false, fmt.Errorf("invalid package path %q: package not in main module %s", pattern, m.Path)
	}

	abs, err := filepath.Abs(dir)
	return abs, recursive, err
}

// skipDir reports whether the go tool ignores a directory for "..." patterns.
func skipDir(m Module, dir, name string) bool {
	if name == "testdata" || name == "vendor" || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
		return true
	}
	// Nested modules are not part of the main module
	_, err := os.Stat(filepath.Join(dir, "go.mod"))
	return err == nil && dir != m.Root
}

func hasGoFiles(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".go") {
			return true, nil
		}
	}
	return false, nil
}

// Shard splits pkgs round-robin into n groups and returns group index.
func Shard(pkgs []Package, index, n int) []Package {
	if n <= 1 {
		return pkgs
	}
	var out []Package
	for i, p := range pkgs {
		if i%n == index {
			out = append(out, p)
		}
	}
	return out
}
