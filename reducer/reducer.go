package reducer

// Package reducer turns the lifecycle events of a test into at most one
// meaningful Qase result and submits it.

import (
	"context"
	"fmt"
	"io"
	"strings"

	"al.essio.dev/pkg/shellescape"
	"github.com/acarl005/stripansi"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/qasego/qasego/debuginfo"
	"github.com/qasego/qasego/model"
	"github.com/qasego/qasego/storage"
	"github.com/rs/zerolog"
)

const (
	CommentPassed = "Test Passed"
	// Formatted with the failing phase
	CommentFailed = "Test Failed, on `%s`"

	sectionWidth = 80
)

// Submitter sends a result to a run and returns the result hash.
type Submitter interface {
	CreateResult(ctx context.Context, runID int64, report model.ResultReport) (string, error)
}

// Metrics counts decisions.
type Metrics interface {
	RecordResult(decision, status string)
}

// Action is what happened to an event
type Action string

const (
	ActionSuppressed Action = "suppressed"
	ActionReported   Action = "reported"
	// Submission failed and was tolerated
	ActionDropped Action = "dropped"
)

// Decision describes how an event was handled.
type Decision struct {
	Action Action
	// Why the event was suppressed
	Reason string
	Report *model.ResultReport
	Hash   string
	// Submission error of a dropped report
	Err error
}

// Reported is the last result sent for a test.
type Reported struct {
	Hash   string
	Status model.Status
}

// Config holds the collaborators of a Reducer. Every field is optional.
type Config struct {
	// Labels used in the diagnostics folder
	Env     string
	Browser string
	// Where diagnostics are uploaded, nil disables diagnostics
	Storage storage.FileStorage
	// Returns the debug source of a test, or nil
	Debug func(item model.TestItem) debuginfo.Source
	// Receives the warning printed when a failure cannot be reported
	Terminal io.Writer
	Metrics  Metrics
}

// Reducer decides, per event, whether and what to report.
type Reducer struct {
	logger    zerolog.Logger
	submitter Submitter
	cfg       Config

	run      *model.Run
	mapping  model.TestCaseMapping
	reported map[string]Reported
}

// New creates a Reducer. Configure must be called before events carrying a
// mapped test are handled.
func New(logger zerolog.Logger, submitter Submitter, cfg Config) *Reducer {
	if cfg.Terminal == nil {
		cfg.Terminal = io.Discard
	}
	return &Reducer{
		logger:    logger,
		submitter: submitter,
		cfg:       cfg,
		reported:  make(map[string]Reported),
	}
}

// Configure sets the run results go to and the test to case mapping.
func (r *Reducer) Configure(run model.Run, mapping model.TestCaseMapping) {
	r.run = &run
	r.mapping = mapping
}

// Run returns the configured run, if any.
func (r *Reducer) Run() (model.Run, bool) {
	if r.run == nil {
		return model.Run{}, false
	}
	return *r.run, true
}

// Reported returns the last result sent for nodeID.
func (r *Reducer) Reported(nodeID string) (Reported, bool) {
	rep, ok := r.reported[nodeID]
	return rep, ok
}

// Handle processes one lifecycle event of item.
func (r *Reducer) Handle(ctx context.Context, item model.TestItem, ev model.Event) (Decision, error) {
	logger := r.logger.With().Str("nodeid", item.NodeID).Str("phase", string(ev.Phase)).Logger()

	// Passed tests are reported on call only
	if ev.Passed() && ev.Phase != model.PhaseCall {
		return r.suppress(logger, ev, "passed outside call phase"), nil
	}

	if r.run == nil {
		return Decision{}, model.ErrRunNotConfigured
	}

	caseID, ok := r.mapping.Lookup(item.NodeID)
	if !ok {
		return r.suppress(logger, ev, "test not mapped to a case"), nil
	}

	// Skipped and failed results are always sent
	if _, sent := r.reported[item.NodeID]; sent && ev.Passed() {
		return r.suppress(logger, ev, "result already reported"), nil
	}

	report := r.buildReport(ctx, logger, item, caseID, ev)
	logger = logger.With().Int64("case_id", int64(caseID)).Str("status", string(report.Status)).Logger()

	hash, err := r.submitter.CreateResult(ctx, r.run.ID, report)
	if err != nil {
		r.record(ActionDropped, string(report.Status))
		if report.Status == model.StatusPassed {
			logger.Debug().Err(err).Msg("Ignoring failed submission of passed result")
			return Decision{Action: ActionDropped, Report: &report, Err: err}, nil
		}

		logger.Warn().Err(err).Msg("Failed to report result")
		r.warnUnreported(item, err)
		return Decision{Action: ActionDropped, Report: &report, Err: err}, nil
	}

	r.reported[item.NodeID] = Reported{Hash: hash, Status: report.Status}
	r.record(ActionReported, string(report.Status))
	logger.Info().Str("hash", hash).Int64("time_ms", report.TimeMs).Msg("Reported result")

	return Decision{Action: ActionReported, Report: &report, Hash: hash}, nil
}

func (r *Reducer) suppress(logger zerolog.Logger, ev model.Event, reason string) Decision {
	logger.Debug().Str("outcome", string(ev.Outcome)).Str("reason", reason).Msg("Result suppressed")
	r.record(ActionSuppressed, string(ev.Outcome))
	return Decision{Action: ActionSuppressed, Reason: reason}
}

func (r *Reducer) record(action Action, status string) {
	if r.cfg.Metrics != nil {
		r.cfg.Metrics.RecordResult(string(action), status)
	}
}

// buildReport derives the result: xfail (blocked) first, then passed,
// skipped and failed.
func (r *Reducer) buildReport(ctx context.Context, logger zerolog.Logger, item model.TestItem, caseID model.CaseID, ev model.Event) model.ResultReport {
	report := model.ResultReport{
		CaseID: caseID,
		TimeMs: ev.Duration.Milliseconds(),
	}

	switch {
	case ev.Xfailed:
		// Known failure; blocked keeps it from looking like a regression
		report.Status = model.StatusBlocked
		report.Comment = ev.XfailReason
	case ev.Outcome == model.OutcomePassed:
		report.Status = model.StatusPassed
		report.Comment = CommentPassed
	case ev.Outcome == model.OutcomeSkipped:
		report.Status = model.StatusSkipped
		report.Comment = ev.SkipReason
	default:
		report.Status = model.StatusFailed
		report.Comment = fmt.Sprintf(CommentFailed, ev.Phase)
		report.Stacktrace = stripansi.Strip(ev.LongRepr)
		if block := r.diagnostics(ctx, logger, item); block != "" {
			report.Comment += "\n" + block
		}
		logger.Debug().Str("rerun", RerunCommand(item)).Msg("Test failed")
	}
	return report
}

// diagnostics returns the diagnostics block of a failed test, empty when no
// debug source or no storage is available.
func (r *Reducer) diagnostics(ctx context.Context, logger zerolog.Logger, item model.TestItem) string {
	if r.cfg.Storage == nil || r.cfg.Debug == nil {
		return ""
	}
	src := r.cfg.Debug(item)
	if src == nil {
		return ""
	}

	info := debuginfo.Collect(logger, item.Name, src)
	folder := debuginfo.Folder(r.cfg.Env, r.cfg.Browser, r.run.ID, item.Name)
	return info.Comment(ctx, r.cfg.Storage, folder)
}

// warnUnreported prints a visible section for a result Qase refused. Qase
// closes a run once every case has a result, later submissions fail.
func (r *Reducer) warnUnreported(item model.TestItem, err error) {
	title := fmt.Sprintf("%s. Seems that Qase closed run, and we are unable to report failed %s", err, item.Name)
	fmt.Fprintln(r.cfg.Terminal)
	fmt.Fprintln(r.cfg.Terminal, text.Colors{text.FgYellow, text.Bold}.Sprint(section(title, sectionWidth)))
	fmt.Fprintf(r.cfg.Terminal, "rerun: %s\n", RerunCommand(item))
}

// section centers title in a line of '=' like pytest's terminal sections.
func section(title string, width int) string {
	title = " " + title + " "
	fill := width - text.RuneWidthWithoutEscSequences(title)
	if fill < 2 {
		return "=" + title + "="
	}
	left := fill / 2
	return strings.Repeat("=", left) + title + strings.Repeat("=", fill-left)
}

// RerunCommand is the shell command running only item.
func RerunCommand(item model.TestItem) string {
	args := []string{"go", "test", "-run", "^" + item.Name + "$"}
	if item.Package != "" {
		args = append(args, item.Package)
	}
	return shellescape.QuoteCommand(args)
}
