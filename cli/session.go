package cli

// This file contains a reporting session: the plugin hooks driven by one go
// test process.

import (
	"context"
	"fmt"
	"time"

	"github.com/qasego/qasego/config"
	"github.com/qasego/qasego/gotest"
	"github.com/qasego/qasego/metrics"
	"github.com/qasego/qasego/model"
	"github.com/qasego/qasego/plugin"
	"github.com/qasego/qasego/qase"
	"github.com/urfave/cli/v2"
)

// session runs the tests of opts and reports them to Qase. h receives the run
// and the results.
func (a *App) session(ctx context.Context, opts *testOptions, h *model.History) error {
	env, err := config.Load(ctx)
	if err != nil {
		return cli.Exit(err.Error(), exitUsageError)
	}
	if err := env.Validate(); err != nil {
		return cli.Exit(fmt.Sprintf("Qase reporting is enabled but not configured: %v", err), exitUsageError)
	}

	logger := a.logger.With().Str("project", env.ProjectCode).Logger()
	if env.WorkerID != "" {
		logger = logger.With().Str("worker", env.WorkerID).Logger()
	}

	met := metrics.New()
	defer func() {
		met.RecordSession(time.Since(opts.startTime))
		if opts.metricsFile == "" {
			return
		}
		file := workerPath(opts.metricsFile, env.WorkerID)
		if err := met.WriteTextfile(file); err != nil {
			logger.Warn().Err(err).Str("file", file).Msg("Failed to write metrics")
		}
	}()

	client := qase.NewClient(logger, env.Token, env.ProjectCode,
		qase.WithBaseURL(env.APIURL),
		qase.WithRateLimit(env.RateLimit, 1),
		qase.WithMetrics(met),
	)

	p, err := plugin.New(ctx, logger, client, a.registry(client, opts), plugin.Config{
		ProjectCode: env.ProjectCode,
		Env:         env.Environment,
		FileStorage: opts.fileStorage,
		WorkDir:     opts.module.Root,
		Coordinator: env.Coordinator(),
		Terminal:    a.stdout,
		Metrics:     met,
	})
	if err != nil {
		return err
	}
	if err := p.SessionStart(env.Primary()); err != nil {
		return err
	}

	manifest, err := gotest.ManifestFor(opts.module, opts.manifest)
	if err != nil {
		return cli.Exit(err.Error(), exitUsageError)
	}
	items, err := gotest.NewCollector(logger, opts.module, manifest).Collect(opts.packages)
	if err != nil {
		return cli.Exit(err.Error(), exitUsageError)
	}
	selector, err := gotest.NewSelector(opts.runtimeArgs)
	if err != nil {
		return cli.Exit(err.Error(), exitUsageError)
	}
	if selected := selector.Filter(items); len(selected) != len(items) {
		logger.Debug().Int("collected", len(items)).Int("selected", len(selected)).Msg("Deselected tests")
		items = selected
	}

	if err := p.CollectionFinish(ctx, items); err != nil {
		return pluginExit(err)
	}

	translator := gotest.NewTranslator(logger, items, func(item model.TestItem, ev model.Event) error {
		return p.MakeReport(ctx, item, ev)
	})
	runErr := a.runTests(ctx, opts, translator.Handle)

	summary := p.SessionFinish()
	if summary.Run != nil {
		h.Run = &model.HistoryRun{ID: summary.Run.ID, Title: summary.Run.Title, Outcome: summary.Outcome}
	}
	h.Results = summary.Results
	a.printSummary(summary)

	return pluginExit(runErr)
}

// pluginExit turns errors aborting the session into an exit with the
// reporter's message.
func pluginExit(err error) error {
	if pe, ok := model.AsPluginError(err); ok {
		return cli.Exit(pe.PluginMessage(), exitPluginError)
	}
	return err
}
