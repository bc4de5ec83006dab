package gotest

// This file contains the translation of `go test -json` events into test
// lifecycle events. Only top level tests are reported; subtest output is
// folded into its parent.

import (
	"sort"
	"strings"
	"time"

	"github.com/qasego/qasego/model"
	"github.com/rs/zerolog"
)

// TestEvent is one line of `go test -json` output (see cmd/test2json).
type TestEvent struct {
	Time    time.Time `json:"Time"`
	Action  string    `json:"Action"`
	Package string    `json:"Package"`
	Test    string    `json:"Test"`
	Elapsed float64   `json:"Elapsed"`
	Output  string    `json:"Output"`
	// Set on build-output and build-fail events
	ImportPath  string `json:"ImportPath"`
	FailedBuild string `json:"FailedBuild"`
}

// EmitFunc receives every translated event. A returned error stops the run.
type EmitFunc func(item model.TestItem, ev model.Event) error

// Translator keeps the per test state needed to turn test2json actions into
// lifecycle events.
type Translator struct {
	logger zerolog.Logger
	emit   EmitFunc

	items    map[string]model.TestItem
	started  map[string]bool
	finished map[string]bool
	output   map[string]*strings.Builder
	// Output not attributed to a test, per package
	pkgOutput map[string]*strings.Builder
}

// NewTranslator creates a Translator for the collected items.
func NewTranslator(logger zerolog.Logger, items []model.TestItem, emit EmitFunc) *Translator {
	t := &Translator{
		logger:    logger,
		emit:      emit,
		items:     make(map[string]model.TestItem, len(items)),
		started:   make(map[string]bool),
		finished:  make(map[string]bool),
		output:    make(map[string]*strings.Builder),
		pkgOutput: make(map[string]*strings.Builder),
	}
	for _, item := range items {
		t.items[item.NodeID] = item
	}
	return t
}

// Handle processes one event.
func (t *Translator) Handle(e TestEvent) error {
	switch e.Action {
	case "build-output":
		// ImportPath looks like "pkg [pkg.test]"
		pkg, _, _ := strings.Cut(e.ImportPath, " ")
		buffer(t.pkgOutput, pkg).WriteString(e.Output)
		return nil
	case "build-fail", "start", "pause", "cont", "bench":
		return nil
	}

	if e.Test == "" {
		return t.handlePackage(e)
	}

	name, _, sub := strings.Cut(e.Test, "/")
	nodeID := e.Package + "." + name

	switch e.Action {
	case "run":
		if !sub {
			t.started[nodeID] = true
		}
	case "output":
		buffer(t.output, nodeID).WriteString(e.Output)
	case "pass", "fail", "skip":
		if sub {
			return nil
		}
		t.finished[nodeID] = true
		return t.finish(nodeID, e)
	}
	return nil
}

func (t *Translator) finish(nodeID string, e TestEvent) error {
	item, ok := t.items[nodeID]
	if !ok {
		t.logger.Debug().Str("nodeid", nodeID).Msg("Ignoring test that was not collected")
		return nil
	}

	out := ""
	if b := t.output[nodeID]; b != nil {
		out = b.String()
	}

	ev := model.Event{
		Phase:    model.PhaseCall,
		Duration: time.Duration(e.Elapsed * float64(time.Second)),
	}
	switch e.Action {
	case "pass":
		ev.Outcome = model.OutcomePassed
	case "skip":
		ev.Outcome = model.OutcomeSkipped
		ev.SkipReason = skipReason(out)
	default:
		ev.Outcome = model.OutcomeFailed
		ev.LongRepr = out
	}
	if reason, ok := xfailReason(out); ok {
		ev.Xfailed = true
		ev.XfailReason = reason
	}

	return t.emit(item, ev)
}

// handlePackage reports the tests a failing package never finished: tests
// that never started fail in setup (build failure, TestMain), tests that
// started fail in call (panic, timeout).
func (t *Translator) handlePackage(e TestEvent) error {
	switch e.Action {
	case "output":
		buffer(t.pkgOutput, e.Package).WriteString(e.Output)
		return nil
	case "fail":
	default:
		return nil
	}

	pkgOut := ""
	if b := t.pkgOutput[e.Package]; b != nil {
		pkgOut = b.String()
	}
	if e.FailedBuild != "" {
		if b := t.pkgOutput[e.FailedBuild]; b != nil && e.FailedBuild != e.Package {
			pkgOut = b.String() + pkgOut
		}
	}

	for _, item := range t.itemsOf(e.Package) {
		if t.finished[item.NodeID] {
			continue
		}
		t.finished[item.NodeID] = true

		ev := model.Event{Phase: model.PhaseSetup, Outcome: model.OutcomeFailed, LongRepr: pkgOut}
		if t.started[item.NodeID] {
			ev.Phase = model.PhaseCall
			if b := t.output[item.NodeID]; b != nil {
				ev.LongRepr = b.String() + pkgOut
			}
		}
		if err := t.emit(item, ev); err != nil {
			return err
		}
	}
	return nil
}

// itemsOf returns the collected items of pkg in a stable order.
func (t *Translator) itemsOf(pkg string) []model.TestItem {
	var items []model.TestItem
	for _, item := range t.items {
		if item.Package == pkg {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].File != items[j].File {
			return items[i].File < items[j].File
		}
		return items[i].Line < items[j].Line
	})
	return items
}

func buffer(m map[string]*strings.Builder, key string) *strings.Builder {
	b, ok := m[key]
	if !ok {
		b = &strings.Builder{}
		m[key] = b
	}
	return b
}

// skipReason is the last line logged before the skip, without the
// "file:line: " prefix added by the testing package.
func skipReason(out string) string {
	lines := strings.Split(out, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" || strings.HasPrefix(line, "=== ") || strings.HasPrefix(line, "--- ") {
			continue
		}
		return stripLocation(line)
	}
	return ""
}

func xfailReason(out string) (string, bool) {
	for _, line := range strings.Split(out, "\n") {
		if _, reason, ok := strings.Cut(line, model.XfailPrefix); ok {
			return strings.TrimSpace(reason), true
		}
	}
	return "", false
}

// stripLocation drops a leading "file.go:12: ".
func stripLocation(line string) string {
	file, rest, ok := strings.Cut(line, ": ")
	if !ok || !strings.Contains(file, ".go:") || strings.ContainsAny(file, " \t") {
		return line
	}
	return rest
}
