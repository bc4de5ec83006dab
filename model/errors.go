package model

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"
)

// PluginError is implemented by errors that abort the whole session.
type PluginError interface {
	error
	// PluginMessage is the human readable message printed on exit
	PluginMessage() string
}

// AsPluginError reports whether err carries a PluginError.
func AsPluginError(err error) (PluginError, bool) {
	var pe PluginError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// InvalidCaseIDError is returned when tests have missing or unknown case ids.
type InvalidCaseIDError struct {
	// Every problem found, combined with multierr
	Problems error
}

func (e *InvalidCaseIDError) Error() string {
	if e.Problems == nil {
		return e.PluginMessage()
	}
	return fmt.Sprintf("%s: %v", e.PluginMessage(), e.Problems)
}

func (e *InvalidCaseIDError) PluginMessage() string {
	return "Tests have incorrect cases ids. Please check logs"
}

// Unwrap returns every accumulated problem.
func (e *InvalidCaseIDError) Unwrap() []error {
	return multierr.Errors(e.Problems)
}

// DuplicatingCaseIDError is returned when one case id is bound to several tests.
type DuplicatingCaseIDError struct {
	IDs []CaseID
}

func (e *DuplicatingCaseIDError) Error() string {
	return e.PluginMessage()
}

func (e *DuplicatingCaseIDError) PluginMessage() string {
	ids := make([]string, 0, len(e.IDs))
	for _, id := range e.IDs {
		ids = append(ids, fmt.Sprintf("%d", id))
	}
	return "Duplicating qase IDs found: " + strings.Join(ids, ", ")
}

// MultipleIDsForTestError is returned when a single test carries several markers.
//
// Each test is associated with exactly one case: checks stay atomic and the
// mapping stays a function.
type MultipleIDsForTestError struct {
	NodeID string
}

func (e *MultipleIDsForTestError) Error() string {
	return fmt.Sprintf("%s: %s", e.PluginMessage(), e.NodeID)
}

func (e *MultipleIDsForTestError) PluginMessage() string {
	return "Multiple qase IDs associated with single test"
}

// RunNotConfiguredError is returned when a result is ready before a run exists.
type RunNotConfiguredError struct{}

func (e *RunNotConfiguredError) Error() string {
	return e.PluginMessage()
}

func (e *RunNotConfiguredError) PluginMessage() string {
	return "Test run not configured"
}

// ErrRunNotConfigured is the shared RunNotConfiguredError value
var ErrRunNotConfigured = &RunNotConfiguredError{}
