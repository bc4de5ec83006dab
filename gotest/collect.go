package gotest

// This file contains test collection: every top level TestXxx function of
// the packages becomes a test item carrying its case markers.

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/qasego/qasego/model"
	"github.com/rs/zerolog"
)

// caseDirective marks a test function, e.g. "//qase:case PRJ-42"
const caseDirective = "//qase:case"

// Collector turns Go packages into test items.
type Collector struct {
	logger   zerolog.Logger
	module   Module
	manifest *Manifest
}

// NewCollector creates a Collector. manifest may be nil.
func NewCollector(logger zerolog.Logger, module Module, manifest *Manifest) *Collector {
	return &Collector{logger: logger, module: module, manifest: manifest}
}

// Collect parses the test files of pkgs. Items are ordered by package,
// file and line.
func (c *Collector) Collect(pkgs []Package) ([]model.TestItem, error) {
	var items []model.TestItem
	for _, pkg := range pkgs {
		pkgItems, err := c.collectPackage(pkg)
		if err != nil {
			return nil, err
		}
		items = append(items, pkgItems...)
	}

	c.logger.Debug().Int("packages", len(pkgs)).Int("tests", len(items)).Msg("Collected tests")
	return items, nil
}

func (c *Collector) collectPackage(pkg Package) ([]model.TestItem, error) {
	files, err := filepath.Glob(filepath.Join(pkg.Dir, "*_test.go"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	fset := token.NewFileSet()
	var items []model.TestItem
	for _, file := range files {
		f, err := parser.ParseFile(fset, file, nil, parser.ParseComments|parser.SkipObjectResolution)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", file, err)
		}

		rel, err := filepath.Rel(c.module.Root, file)
		if err != nil {
			rel = file
		}
		rel = filepath.ToSlash(rel)

		for _, decl := range f.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || !isTestFunc(fn, testingImportName(f)) {
				continue
			}

			name := fn.Name.Name
			item := model.TestItem{
				NodeID:  pkg.ImportPath + "." + name,
				Name:    name,
				Package: pkg.ImportPath,
				Dir:     pkg.Dir,
				File:    rel,
				Line:    fset.Position(fn.Pos()).Line,
			}
			item.Markers = append(directiveMarkers(fset, rel, fn.Doc), c.manifest.Markers(pkg.ImportPath, name)...)
			items = append(items, item)
		}
	}
	return items, nil
}

// directiveMarkers returns the case directives of a doc comment.
func directiveMarkers(fset *token.FileSet, file string, doc *ast.CommentGroup) []model.Marker {
	if doc == nil {
		return nil
	}

	var markers []model.Marker
	for _, comment := range doc.List {
		rest, ok := strings.CutPrefix(comment.Text, caseDirective)
		if !ok || (rest != "" && rest[0] != ' ' && rest[0] != '\t') {
			continue
		}
		markers = append(markers, model.Marker{
			Ref:    strings.TrimSpace(rest),
			Source: fmt.Sprintf("%s:%d", file, fset.Position(comment.Pos()).Line),
		})
	}
	return markers
}

// testingImportName returns the name the file imports "testing" under.
func testingImportName(f *ast.File) string {
	for _, imp := range f.Imports {
		if imp.Path.Value != `"testing"` {
			continue
		}
		if imp.Name != nil {
			return imp.Name.Name
		}
		return "testing"
	}
	return ""
}

// isTestFunc matches func TestXxx(t *testing.T) the way go test does.
func isTestFunc(fn *ast.FuncDecl, testingPkg string) bool {
	if fn.Recv != nil || fn.Type.TypeParams != nil || testingPkg == "" {
		return false
	}

	name := fn.Name.Name
	if name == "TestMain" || !isTestName(name) {
		return false
	}

	params := fn.Type.Params.List
	if len(params) != 1 || len(params[0].Names) > 1 || fn.Type.Results != nil {
		return false
	}

	star, ok := params[0].Type.(*ast.StarExpr)
	if !ok {
		return false
	}
	sel, ok := star.X.(*ast.SelectorExpr)
	if !ok || sel.Sel.Name != "T" {
		return false
	}
	x, ok := sel.X.(*ast.Ident)
	return ok && x.Name == testingPkg
}

// isTestName reports whether name is Test followed by nothing or a
// non-lowercase rune.
func isTestName(name string) bool {
	rest, ok := strings.CutPrefix(name, "Test")
	if !ok {
		return false
	}
	if rest == "" {
		return true
	}
	r, _ := utf8.DecodeRuneInString(rest)
	return !unicode.IsLower(r)
}

// ManifestFor loads the manifest given by flag, or the default one at the
// module root when flag is empty.
func ManifestFor(module Module, flag string) (*Manifest, error) {
	if flag == "" {
		return LoadManifest(filepath.Join(module.Root, DefaultManifest), DefaultManifest, true)
	}

	abs, err := filepath.Abs(flag)
	if err != nil {
		return nil, err
	}
	name, err := filepath.Rel(module.Root, abs)
	if err != nil || strings.HasPrefix(name, "..") {
		name = abs
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", flag, err)
	}
	return LoadManifest(abs, name, false)
}
