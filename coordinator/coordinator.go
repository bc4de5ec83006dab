package coordinator

// Package coordinator makes every worker process of a session share a single
// Qase run. The first process to take the lock creates the run and stores its
// id in the record file, the others load the run by that id.

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/qasego/qasego/model"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

const (
	// RecordFileName holds the active run id
	RecordFileName = ".qasego-run"
	// LockFileName guards RecordFileName; its content is irrelevant
	LockFileName = ".qasego-run.lock"

	lockRetryDelay = 50 * time.Millisecond
)

// RunService is the part of the Qase API needed to create or load a run.
type RunService interface {
	CreateRun(ctx context.Context, run model.RunCreate) (model.Run, error)
	GetRun(ctx context.Context, id int64) (model.Run, error)
}

// Options carries the optional run settings applied to every payload.
type Options struct {
	PlanID        int64
	EnvironmentID int64
	// Custom field receiving SourceURL
	CustomFieldID string
	SourceURL     string
}

// Coordinator creates or loads the session run.
type Coordinator struct {
	logger   zerolog.Logger
	runs     RunService
	fs       afero.Fs
	record   *RecordFile
	lockPath string
	opts     Options
}

// New creates a Coordinator keeping its record and lock files in dir.
func New(logger zerolog.Logger, runs RunService, dir string, opts Options) *Coordinator {
	fsys := afero.NewOsFs()
	return &Coordinator{
		logger:   logger,
		runs:     runs,
		fs:       fsys,
		record:   NewRecordFile(fsys, filepath.Join(dir, RecordFileName)),
		lockPath: filepath.Join(dir, LockFileName),
		opts:     opts,
	}
}

// SessionStart clears the previous session state. Only the primary process
// does anything; the others rely on what the primary prepared.
func (c *Coordinator) SessionStart(primary bool) error {
	if !primary {
		return nil
	}

	if err := c.record.Remove(); err != nil {
		return err
	}

	f, err := c.fs.OpenFile(c.lockPath, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create lock file %s: %w", c.lockPath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close lock file %s: %w", c.lockPath, err)
	}

	c.logger.Debug().Str("record", c.record.Path()).Str("lock", c.lockPath).Msg("Prepared run coordination files")
	return nil
}

// Configure resolves the session run while holding the cross-process lock.
// build is called under the lock; plugin errors it returns abort the session.
func (c *Coordinator) Configure(ctx context.Context, build func() (model.RunCreate, error)) (model.Run, model.RunOutcome, error) {
	lock := flock.New(c.lockPath)
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return model.Run{}, "", fmt.Errorf("failed to acquire run lock %s: %w", c.lockPath, err)
	}
	if !locked {
		return model.Run{}, "", fmt.Errorf("failed to acquire run lock %s", c.lockPath)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			c.logger.Warn().Err(err).Str("lock", c.lockPath).Msg("Failed to release run lock")
		}
	}()

	payload, err := build()
	if err != nil {
		return model.Run{}, "", err
	}
	c.applyOptions(&payload)

	id, ok, err := c.record.Read()
	if err != nil {
		return model.Run{}, "", err
	}
	if ok {
		run, err := c.runs.GetRun(ctx, id)
		if err != nil {
			return model.Run{}, "", fmt.Errorf("failed to load run %d: %w", id, err)
		}
		c.logger.Info().Int64("run_id", run.ID).Msg("Joined existing Qase run")
		return run, model.RunOutcomeLoaded, nil
	}

	run, err := c.runs.CreateRun(ctx, payload)
	if err != nil {
		return model.Run{}, "", fmt.Errorf("failed to create run: %w", err)
	}
	if err := c.record.Write(run.ID); err != nil {
		return model.Run{}, "", err
	}

	c.logger.Info().
		Int64("run_id", run.ID).
		Str("title", run.Title).
		Int("cases", len(payload.Cases)).
		Msg("Created Qase run")
	return run, model.RunOutcomeCreated, nil
}

// applyOptions sets plan, environment and source URL custom field. A plan
// makes the run hold every plan case in addition to the collected ones.
func (c *Coordinator) applyOptions(payload *model.RunCreate) {
	if c.opts.PlanID != 0 {
		payload.PlanID = c.opts.PlanID
	}
	if c.opts.EnvironmentID != 0 {
		payload.EnvironmentID = c.opts.EnvironmentID
	}
	if c.opts.CustomFieldID != "" {
		payload.CustomField = map[string]string{
			c.opts.CustomFieldID: c.opts.SourceURL,
		}
	}
}
