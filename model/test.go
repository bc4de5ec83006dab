package model

import (
	"fmt"
	"time"
)

// Phase is the lifecycle stage a test event was reported from
type Phase string

const (
	PhaseSetup    Phase = "setup"
	PhaseCall     Phase = "call"
	PhaseTeardown Phase = "teardown"
)

// Outcome is the declared outcome of a single lifecycle phase
type Outcome string

const (
	OutcomePassed  Outcome = "passed"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// XfailPrefix starts the output line a test writes when it is expected to fail
const XfailPrefix = "qase:xfail: "

// Marker is a single case reference declared for a test.
type Marker struct {
	// Case reference, e.g. "PRJ-42" or a case URL ending in "PRJ-42"
	Ref string `json:"ref"`
	// Stable identity of the declaration (file:line of the directive or
	// manifest entry). Tests sharing a Source share one case claim.
	Source string `json:"source"`
}

// TestItem is one collected test.
type TestItem struct {
	// Stable identifier, <import path>.<TestName>
	NodeID string `json:"nodeid"`
	// Test function name
	Name string `json:"name"`
	// Import path of the package declaring the test
	Package string `json:"package"`
	// Absolute directory of the package
	Dir string `json:"dir"`
	// Source file, relative to the module root
	File string `json:"file"`
	// Line of the test function declaration
	Line int `json:"line"`
	// Case markers declared for this test
	Markers []Marker `json:"markers,omitempty"`
}

// Location returns file:line of the test declaration.
func (t TestItem) Location() string {
	return fmt.Sprintf("%s:%d", t.File, t.Line)
}

// Event is one lifecycle report for a test.
type Event struct {
	Phase   Phase
	Outcome Outcome
	// Set when the test was expected to fail, regardless of Outcome
	Xfailed     bool
	XfailReason string
	// Skip reason extracted from the long representation
	SkipReason string
	// Full textual representation of the failure
	LongRepr string
	Duration time.Duration
}

// Passed reports whether the event outcome is passed.
func (e Event) Passed() bool {
	return e.Outcome == OutcomePassed
}
