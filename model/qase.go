package model

// CaseID identifies a case within a Qase project
type CaseID int64

// Status is the result status accepted by Qase
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
	StatusBlocked Status = "blocked"
)

// TestCaseMapping maps test node ids to case ids. A nil entry marks a test
// that is intentionally not reported.
type TestCaseMapping map[string]*CaseID

// Lookup returns the case id mapped to nodeID, if any.
func (m TestCaseMapping) Lookup(nodeID string) (CaseID, bool) {
	id, ok := m[nodeID]
	if !ok || id == nil {
		return 0, false
	}
	return *id, true
}

// Run is a remote Qase run.
type Run struct {
	ID         int64    `json:"id"`
	Title      string   `json:"title"`
	StatusText string   `json:"status_text,omitempty"`
	Cases      []CaseID `json:"cases,omitempty"`
}

// RunCreate is the payload used to create a run.
type RunCreate struct {
	Title string   `json:"title"`
	Cases []CaseID `json:"cases"`
	// Creates the run from a plan; the run then holds the plan cases as well
	PlanID        int64 `json:"plan_id,omitempty"`
	EnvironmentID int64 `json:"environment_id,omitempty"`
	// Custom field id -> value
	CustomField map[string]string `json:"custom_field,omitempty"`
}

// ResultReport is one outcome sent to Qase.
type ResultReport struct {
	CaseID     CaseID `json:"case_id"`
	Status     Status `json:"status"`
	Comment    string `json:"comment"`
	TimeMs     int64  `json:"time_ms"`
	Stacktrace string `json:"stacktrace,omitempty"`
}
