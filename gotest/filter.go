package gotest

// This file contains test selection: the -run and -skip flags of go test
// applied to collected items, so a run only holds the tests that execute.

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/qasego/qasego/model"
)

// pattern is a -run or -skip value: alternatives of slash separated
// elements, one element per subtest level.
type pattern [][]*regexp.Regexp

// Selector keeps the items a test binary would run.
type Selector struct {
	run  pattern
	skip pattern
}

// NewSelector reads -run and -skip from the runtime flags of go test.
// Later flags win, arguments after -args are left to the binaries.
func NewSelector(runtimeArgs []string) (*Selector, error) {
	var runExpr, skipExpr string
	for i := 0; i < len(runtimeArgs); i++ {
		arg := runtimeArgs[i]
		if arg == "-args" || arg == "--args" {
			break
		}
		if !strings.HasPrefix(arg, "-") {
			continue
		}
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		name = strings.TrimPrefix(name, "test.")
		if name != "run" && name != "skip" {
			continue
		}
		if !hasValue {
			if i+1 >= len(runtimeArgs) {
				break
			}
			i++
			value = runtimeArgs[i]
		}
		if name == "run" {
			runExpr = value
		} else {
			skipExpr = value
		}
	}

	s := &Selector{}
	var err error
	if s.run, err = compilePattern(runExpr); err != nil {
		return nil, fmt.Errorf("invalid -run %q: %w", runExpr, err)
	}
	if s.skip, err = compilePattern(skipExpr); err != nil {
		return nil, fmt.Errorf("invalid -skip %q: %w", skipExpr, err)
	}
	return s, nil
}

// Selects reports whether the top level test name runs. A -run pattern
// naming subtests still runs the parent; a -skip pattern only skips the
// parent when it has no subtest element.
func (s *Selector) Selects(name string) bool {
	if s.run != nil && !s.run.matchesTop(name, true) {
		return false
	}
	return s.skip == nil || !s.skip.matchesTop(name, false)
}

// Filter returns the selected items in their original order.
func (s *Selector) Filter(items []model.TestItem) []model.TestItem {
	if s.run == nil && s.skip == nil {
		return items
	}
	selected := make([]model.TestItem, 0, len(items))
	for _, item := range items {
		if s.Selects(item.Name) {
			selected = append(selected, item)
		}
	}
	return selected
}

func (p pattern) matchesTop(name string, partial bool) bool {
	for _, alt := range p {
		if !partial && len(alt) > 1 {
			continue
		}
		if alt[0].MatchString(name) {
			return true
		}
	}
	return false
}

func compilePattern(expr string) (pattern, error) {
	if expr == "" {
		return nil, nil
	}
	var p pattern
	for _, alt := range splitPattern(expr) {
		elems := make([]*regexp.Regexp, 0, len(alt))
		for _, e := range alt {
			re, err := regexp.Compile(e)
			if err != nil {
				return nil, err
			}
			elems = append(elems, re)
		}
		p = append(p, elems)
	}
	return p, nil
}

// splitPattern splits expr like the testing package does: '|' separates
// alternatives and '/' separates levels, both only outside brackets and
// parentheses.
func splitPattern(expr string) [][]string {
	var alts [][]string
	var elems []string
	brackets, parens := 0, 0
	for i := 0; i < len(expr); {
		switch expr[i] {
		case '[':
			brackets++
		case ']':
			if brackets--; brackets < 0 {
				brackets = 0
			}
		case '(':
			if brackets == 0 {
				parens++
			}
		case ')':
			if brackets == 0 {
				parens--
			}
		case '\\':
			i++
		case '/', '|':
			if brackets == 0 && parens == 0 {
				elems = append(elems, expr[:i])
				if expr[i] == '|' {
					alts = append(alts, elems)
					elems = nil
				}
				expr = expr[i+1:]
				i = 0
				continue
			}
		}
		i++
	}
	elems = append(elems, expr)
	return append(alts, elems)
}
