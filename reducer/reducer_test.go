package reducer

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/qasego/qasego/debuginfo"
	"github.com/qasego/qasego/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type submission struct {
	runID  int64
	report model.ResultReport
}

type fakeSubmitter struct {
	calls []submission
	err   error
}

func (f *fakeSubmitter) CreateResult(_ context.Context, runID int64, report model.ResultReport) (string, error) {
	f.calls = append(f.calls, submission{runID, report})
	if f.err != nil {
		return "", f.err
	}
	return "hash-" + string(report.Status), nil
}

func caseID(id model.CaseID) *model.CaseID {
	return &id
}

var (
	login = model.TestItem{NodeID: "example.com/e2e.TestLogin", Name: "TestLogin", Package: "example.com/e2e"}
	other = model.TestItem{NodeID: "example.com/e2e.TestOther", Name: "TestOther", Package: "example.com/e2e"}
)

func newConfigured(sub Submitter, cfg Config) *Reducer {
	r := New(zerolog.Nop(), sub, cfg)
	r.Configure(model.Run{ID: 7, Title: "run"}, model.TestCaseMapping{
		login.NodeID: caseID(42),
		other.NodeID: nil,
	})
	return r
}

func event(phase model.Phase, outcome model.Outcome) model.Event {
	return model.Event{Phase: phase, Outcome: outcome, Duration: 120 * time.Millisecond}
}

func TestHandle_PassedAtEveryPhaseReportsOnce(t *testing.T) {
	sub := &fakeSubmitter{}
	r := newConfigured(sub, Config{})
	ctx := context.Background()

	var actions []Action
	for _, phase := range []model.Phase{model.PhaseSetup, model.PhaseCall, model.PhaseTeardown} {
		d, err := r.Handle(ctx, login, event(phase, model.OutcomePassed))
		require.NoError(t, err)
		actions = append(actions, d.Action)
	}

	require.Equal(t, []Action{ActionSuppressed, ActionReported, ActionSuppressed}, actions)
	require.Equal(t, []submission{{7, model.ResultReport{
		CaseID:  42,
		Status:  model.StatusPassed,
		Comment: CommentPassed,
		TimeMs:  120,
	}}}, sub.calls)

	rep, ok := r.Reported(login.NodeID)
	require.True(t, ok)
	require.Equal(t, Reported{Hash: "hash-passed", Status: model.StatusPassed}, rep)
}

func TestHandle_RepeatPassedSuppressed(t *testing.T) {
	sub := &fakeSubmitter{}
	r := newConfigured(sub, Config{})
	ctx := context.Background()

	_, err := r.Handle(ctx, login, event(model.PhaseCall, model.OutcomePassed))
	require.NoError(t, err)

	d, err := r.Handle(ctx, login, event(model.PhaseCall, model.OutcomePassed))
	require.NoError(t, err)
	require.Equal(t, ActionSuppressed, d.Action)
	require.Equal(t, "result already reported", d.Reason)
	require.Len(t, sub.calls, 1)
}

func TestHandle_FailureAfterPassIsReported(t *testing.T) {
	sub := &fakeSubmitter{}
	r := newConfigured(sub, Config{})
	ctx := context.Background()

	_, err := r.Handle(ctx, login, event(model.PhaseCall, model.OutcomePassed))
	require.NoError(t, err)

	ev := event(model.PhaseTeardown, model.OutcomeFailed)
	ev.LongRepr = "\x1b[31mlogin_test.go:12: cleanup failed\x1b[0m"
	d, err := r.Handle(ctx, login, ev)
	require.NoError(t, err)
	require.Equal(t, ActionReported, d.Action)
	require.Equal(t, model.StatusFailed, d.Report.Status)
	require.Equal(t, "Test Failed, on `teardown`", d.Report.Comment)
	require.Equal(t, "login_test.go:12: cleanup failed", d.Report.Stacktrace)

	rep, _ := r.Reported(login.NodeID)
	require.Equal(t, model.StatusFailed, rep.Status)
}

func TestHandle_Status(t *testing.T) {
	tests := []struct {
		name        string
		ev          model.Event
		wantStatus  model.Status
		wantComment string
	}{
		{
			name:        "xfail wins over failed",
			ev:          model.Event{Phase: model.PhaseCall, Outcome: model.OutcomeFailed, Xfailed: true, XfailReason: "JIRA-1 broken login"},
			wantStatus:  model.StatusBlocked,
			wantComment: "JIRA-1 broken login",
		},
		{
			name:        "xfail wins over skipped",
			ev:          model.Event{Phase: model.PhaseCall, Outcome: model.OutcomeSkipped, Xfailed: true, XfailReason: "known"},
			wantStatus:  model.StatusBlocked,
			wantComment: "known",
		},
		{
			name:        "skipped carries reason",
			ev:          model.Event{Phase: model.PhaseSetup, Outcome: model.OutcomeSkipped, SkipReason: "needs staging"},
			wantStatus:  model.StatusSkipped,
			wantComment: "needs staging",
		},
		{
			name:        "failed at setup",
			ev:          model.Event{Phase: model.PhaseSetup, Outcome: model.OutcomeFailed, LongRepr: "build failed"},
			wantStatus:  model.StatusFailed,
			wantComment: "Test Failed, on `setup`",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := &fakeSubmitter{}
			d, err := newConfigured(sub, Config{}).Handle(context.Background(), login, tt.ev)
			require.NoError(t, err)
			require.Equal(t, ActionReported, d.Action)
			require.Equal(t, tt.wantStatus, d.Report.Status)
			require.Equal(t, tt.wantComment, d.Report.Comment)
			require.Len(t, sub.calls, 1)
		})
	}
}

func TestHandle_UnmappedSuppressed(t *testing.T) {
	sub := &fakeSubmitter{}
	r := newConfigured(sub, Config{})

	for _, item := range []model.TestItem{other, {NodeID: "example.com/e2e.TestUnknown"}} {
		d, err := r.Handle(context.Background(), item, event(model.PhaseCall, model.OutcomeFailed))
		require.NoError(t, err)
		require.Equal(t, ActionSuppressed, d.Action)
	}
	require.Empty(t, sub.calls)
}

func TestHandle_RunNotConfigured(t *testing.T) {
	r := New(zerolog.Nop(), &fakeSubmitter{}, Config{})

	// Suppressed events do not need a run
	d, err := r.Handle(context.Background(), login, event(model.PhaseSetup, model.OutcomePassed))
	require.NoError(t, err)
	require.Equal(t, ActionSuppressed, d.Action)

	// A failure of an unmapped test is not dropped silently
	_, err = r.Handle(context.Background(), login, event(model.PhaseCall, model.OutcomeFailed))
	require.ErrorIs(t, err, model.ErrRunNotConfigured)

	_, err = r.Handle(context.Background(), login, event(model.PhaseCall, model.OutcomePassed))
	require.ErrorIs(t, err, model.ErrRunNotConfigured)

	pe, ok := model.AsPluginError(err)
	require.True(t, ok)
	require.Equal(t, "Test run not configured", pe.PluginMessage())
}

func TestHandle_SubmitFailure(t *testing.T) {
	submitErr := errors.New("Test run is not active")

	t.Run("passed is dropped silently", func(t *testing.T) {
		var term bytes.Buffer
		r := newConfigured(&fakeSubmitter{err: submitErr}, Config{Terminal: &term})

		d, err := r.Handle(context.Background(), login, event(model.PhaseCall, model.OutcomePassed))
		require.NoError(t, err)
		require.Equal(t, ActionDropped, d.Action)
		require.Empty(t, term.String())

		_, ok := r.Reported(login.NodeID)
		require.False(t, ok)
	})

	t.Run("failed prints a warning section", func(t *testing.T) {
		var term bytes.Buffer
		r := newConfigured(&fakeSubmitter{err: submitErr}, Config{Terminal: &term})

		d, err := r.Handle(context.Background(), login, event(model.PhaseCall, model.OutcomeFailed))
		require.NoError(t, err)
		require.Equal(t, ActionDropped, d.Action)
		require.ErrorIs(t, d.Err, submitErr)

		out := term.String()
		assert.Contains(t, out, "Test run is not active. Seems that Qase closed run, and we are unable to report failed TestLogin")
		assert.Contains(t, out, "rerun: go test -run '^TestLogin$' example.com/e2e")
	})
}

type failingScreenshot struct{}

func (failingScreenshot) Screenshot() ([]byte, error) { return nil, errors.New("session deleted") }
func (failingScreenshot) PageSource() (string, error) { return "<html/>", nil }
func (failingScreenshot) CurrentURL() (string, error) { return "https://shop.example.com", nil }
func (failingScreenshot) BrowserLog() ([]debuginfo.LogEntry, error) {
	return []debuginfo.LogEntry{{Timestamp: 0, Level: "INFO", Message: "loaded"}}, nil
}

type urlStorage struct{}

func (urlStorage) SaveFile(_ context.Context, _ []byte, filename string) (string, error) {
	return "https://files.example.com/" + filename, nil
}

func TestHandle_FailureDiagnostics(t *testing.T) {
	sub := &fakeSubmitter{}
	r := newConfigured(sub, Config{
		Env:     "staging",
		Browser: "chrome",
		Storage: urlStorage{},
		Debug: func(item model.TestItem) debuginfo.Source {
			return failingScreenshot{}
		},
	})

	ev := event(model.PhaseCall, model.OutcomeFailed)
	ev.LongRepr = "login_test.go:30: expected dashboard"
	d, err := r.Handle(context.Background(), login, ev)
	require.NoError(t, err)

	report := d.Report
	require.Equal(t, model.StatusFailed, report.Status)
	require.Equal(t, "login_test.go:30: expected dashboard", report.Stacktrace)
	require.True(t, strings.HasPrefix(report.Comment, "Test Failed, on `call`\n\n---\n"))
	assert.Contains(t, report.Comment, "![driver screenshot]()")
	assert.Contains(t, report.Comment, "[HTML file](https://files.example.com/staging/chrome/run-7/TestLogin/html.html)")
	assert.Contains(t, report.Comment, "[Browser log](https://files.example.com/staging/chrome/run-7/TestLogin/browser_log.txt)")
	assert.Contains(t, report.Comment, "[URL](https://shop.example.com)")
}

func TestHandle_NoStorageNoDiagnostics(t *testing.T) {
	r := newConfigured(&fakeSubmitter{}, Config{
		Debug: func(model.TestItem) debuginfo.Source { return failingScreenshot{} },
	})

	d, err := r.Handle(context.Background(), login, event(model.PhaseCall, model.OutcomeFailed))
	require.NoError(t, err)
	require.Equal(t, "Test Failed, on `call`", d.Report.Comment)
}

type countingMetrics map[string]int

func (m countingMetrics) RecordResult(decision, status string) {
	m[decision+"/"+status]++
}

func TestHandle_RecordsMetrics(t *testing.T) {
	m := countingMetrics{}
	r := newConfigured(&fakeSubmitter{}, Config{Metrics: m})
	ctx := context.Background()

	_, _ = r.Handle(ctx, login, event(model.PhaseSetup, model.OutcomePassed))
	_, _ = r.Handle(ctx, login, event(model.PhaseCall, model.OutcomePassed))

	require.Equal(t, countingMetrics{"suppressed/passed": 1, "reported/passed": 1}, m)
}

func TestSection(t *testing.T) {
	got := section("boom", 20)
	require.Equal(t, "======= boom =======", got)
	require.Len(t, got, 20)

	require.Equal(t, "= "+strings.Repeat("x", 30)+" =", section(strings.Repeat("x", 30), 20))
}

func TestRerunCommand(t *testing.T) {
	require.Equal(t, "go test -run '^TestLogin$' example.com/e2e", RerunCommand(login))
}
