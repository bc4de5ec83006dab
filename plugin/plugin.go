package plugin

// Package plugin wires the mapper, the coordinator and the reducer behind the
// hooks a test runner host calls during a session.

import (
	"context"
	"fmt"
	"io"

	"github.com/qasego/qasego/coordinator"
	"github.com/qasego/qasego/mapper"
	"github.com/qasego/qasego/model"
	"github.com/qasego/qasego/reducer"
	"github.com/qasego/qasego/storage"
	"github.com/rs/zerolog"
)

// API is the part of Qase the plugin talks to.
type API interface {
	ListCaseIDs(ctx context.Context) ([]model.CaseID, error)
	coordinator.RunService
	reducer.Submitter
}

// Metrics is what the plugin records.
type Metrics interface {
	reducer.Metrics
	RecordError(label string, err error)
}

// Config configures a Plugin.
type Config struct {
	ProjectCode string
	Env         string
	// Name of the file storage, storage.None disables diagnostics
	FileStorage string
	// Directory holding the run record and lock files
	WorkDir     string
	Coordinator coordinator.Options
	// Receives warnings about results that could not be reported
	Terminal io.Writer
	Metrics  Metrics
}

// Summary describes what a process did during the session.
type Summary struct {
	Run        *model.Run
	Outcome    model.RunOutcome
	Reported   int
	Suppressed int
	Dropped    int
	Results    []model.HistoryResult
}

// Plugin reports a session to Qase.
type Plugin struct {
	logger     zerolog.Logger
	cfg        Config
	mapper     *mapper.Mapper
	coord      *coordinator.Coordinator
	reducer    *reducer.Reducer
	knownCases []model.CaseID
	summary    Summary
}

// New loads the project cases and resolves every provider of registry.
func New(ctx context.Context, logger zerolog.Logger, api API, registry *Registry, cfg Config) (*Plugin, error) {
	known, err := api.ListCaseIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load cases of project %s: %w", cfg.ProjectCode, err)
	}

	browser := registry.Browser()
	fs := storage.Resolve(logger, cfg.FileStorage, registry.Storages())

	rcfg := reducer.Config{
		Env:      cfg.Env,
		Browser:  browser,
		Storage:  fs,
		Debug:    registry.Debug,
		Terminal: cfg.Terminal,
	}
	if cfg.Metrics != nil {
		rcfg.Metrics = cfg.Metrics
	}

	logger.Debug().
		Str("project", cfg.ProjectCode).
		Str("env", cfg.Env).
		Str("browser", browser).
		Int("known_cases", len(known)).
		Bool("storage", fs != nil).
		Msg("Qase plugin configured")

	return &Plugin{
		logger:     logger,
		cfg:        cfg,
		mapper:     mapper.New(logger, cfg.ProjectCode, cfg.Env, browser, mapper.WithRunName(registry.RunName())),
		coord:      coordinator.New(logger, api, cfg.WorkDir, cfg.Coordinator),
		reducer:    reducer.New(logger, api, rcfg),
		knownCases: known,
	}, nil
}

// SessionStart prepares the shared session state on the primary process.
func (p *Plugin) SessionStart(primary bool) error {
	return p.coord.SessionStart(primary)
}

// CollectionFinish maps the collected items and creates or joins the run.
func (p *Plugin) CollectionFinish(ctx context.Context, items []model.TestItem) error {
	var mapping model.TestCaseMapping
	run, outcome, err := p.coord.Configure(ctx, func() (model.RunCreate, error) {
		payload, m, err := p.mapper.PrepareRun(p.knownCases, items)
		mapping = m
		return payload, err
	})
	if err != nil {
		p.recordError("configure", err)
		return err
	}

	p.reducer.Configure(run, mapping)
	p.summary.Run = &run
	p.summary.Outcome = outcome
	return nil
}

// MakeReport handles one lifecycle event. Only fatal errors are returned.
func (p *Plugin) MakeReport(ctx context.Context, item model.TestItem, ev model.Event) error {
	d, err := p.reducer.Handle(ctx, item, ev)
	if err != nil {
		p.recordError("report", err)
		return err
	}

	switch d.Action {
	case reducer.ActionSuppressed:
		p.summary.Suppressed++
		return nil
	case reducer.ActionReported:
		p.summary.Reported++
	case reducer.ActionDropped:
		p.summary.Dropped++
		p.recordError("submit", d.Err)
	}

	res := model.HistoryResult{
		NodeID: item.NodeID,
		CaseID: d.Report.CaseID,
		Status: d.Report.Status,
		Phase:  ev.Phase,
		Hash:   d.Hash,
	}
	if d.Err != nil {
		res.Error = d.Err.Error()
	}
	p.summary.Results = append(p.summary.Results, res)
	return nil
}

// SessionFinish returns what the session did.
func (p *Plugin) SessionFinish() Summary {
	p.logger.Debug().
		Int("reported", p.summary.Reported).
		Int("suppressed", p.summary.Suppressed).
		Int("dropped", p.summary.Dropped).
		Msg("Qase session finished")
	return p.summary
}

func (p *Plugin) recordError(label string, err error) {
	if p.cfg.Metrics != nil {
		p.cfg.Metrics.RecordError(label, err)
	}
}
