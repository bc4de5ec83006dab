package model

import "time"

// RunOutcome records how a process obtained the shared run
type RunOutcome string

const (
	RunOutcomeCreated RunOutcome = "created"
	RunOutcomeLoaded  RunOutcome = "loaded"
)

// History represents a single qasego session as seen by one process.
type History struct {
	// Unique ID for this execution, a UUID without dashes
	ID string `json:"id"`
	// Timestamp when the execution started
	Timestamp time.Time `json:"timestamp"`
	// Command-line arguments (including command name)
	Args []string `json:"args"`
	// Working directory where command was run (relative to repo root)
	WorkDir string `json:"workdir"`
	// Worker index, empty for the primary process
	WorkerID string `json:"worker_id,omitempty"`
	// Exit code of the execution
	ExitCode int `json:"exit_code"`
	// Duration of execution
	Duration time.Duration `json:"duration"`
	// Git information
	Git *Git `json:"git,omitempty"`
	// Qase run used by this process
	Run *HistoryRun `json:"run,omitempty"`
	// Results decided for each test
	Results []HistoryResult `json:"results,omitempty"`
}

// Git contains git repository information
type Git struct {
	// Git commit hash at time of execution
	Commit string `json:"commit,omitempty"`
	// Git branch at time of execution
	Branch string `json:"branch,omitempty"`
	// Repository name
	Repo string `json:"repo,omitempty"`
}

// HistoryRun describes the Qase run a session reported into
type HistoryRun struct {
	ID      int64      `json:"id"`
	Title   string     `json:"title"`
	Outcome RunOutcome `json:"outcome"`
}

// HistoryResult is one reported (or dropped) result
type HistoryResult struct {
	NodeID string `json:"nodeid"`
	CaseID CaseID `json:"case_id"`
	Status Status `json:"status"`
	Phase  Phase  `json:"phase"`
	// Hash returned by Qase, empty when the submission failed
	Hash string `json:"hash,omitempty"`
	// Submission error, if any
	Error string `json:"error,omitempty"`
}
