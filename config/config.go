package config

// Package config loads the environment of a reporting session.

import (
	"context"
	"errors"
	"fmt"

	"github.com/qasego/qasego/coordinator"
	"github.com/sethvargo/go-envconfig"
	"go.uber.org/multierr"
)

// Env is the environment of a reporting session.
type Env struct {
	Token       string `env:"QASE_TOKEN"`
	ProjectCode string `env:"QASE_PROJECT_CODE"`
	// Environment label used in run titles and diagnostics folders
	Environment string `env:"ENVIRONMENT"`

	// Create the run from this plan
	PlanID        int64 `env:"QASE_PLAN_ID"`
	EnvironmentID int64 `env:"QASE_ENVIRONMENT_ID"`
	// Custom field of the run receiving RunSourceURL, e.g. a CI job link
	URLCustomFieldID string `env:"QASE_URL_CUSTOM_FIELD_ID"`
	RunSourceURL     string `env:"RUN_SOURCE_URL"`

	APIURL string `env:"QASE_API_URL, default=https://api.qase.io/v1"`
	// Requests per second, 0 disables limiting
	RateLimit float64 `env:"QASE_RATE_LIMIT, default=10"`

	// Set by the parent process on worker processes
	WorkerID string `env:"QASE_WORKER_ID"`
}

// Load reads Env from the process environment.
func Load(ctx context.Context) (Env, error) {
	return LoadFrom(ctx, envconfig.OsLookuper())
}

// LoadFrom reads Env from lookuper.
func LoadFrom(ctx context.Context, lookuper envconfig.Lookuper) (Env, error) {
	var env Env
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &env,
		Lookuper: lookuper,
	}); err != nil {
		return Env{}, fmt.Errorf("failed to load environment: %w", err)
	}
	return env, nil
}

// Validate checks the variables required for reporting.
func (e Env) Validate() error {
	var err error
	if e.Token == "" {
		err = multierr.Append(err, errors.New("QASE_TOKEN is not set"))
	}
	if e.ProjectCode == "" {
		err = multierr.Append(err, errors.New("QASE_PROJECT_CODE is not set"))
	}
	if e.Environment == "" {
		err = multierr.Append(err, errors.New("ENVIRONMENT is not set"))
	}
	return err
}

// Primary reports whether this process is the session's primary process.
func (e Env) Primary() bool {
	return e.WorkerID == ""
}

// Coordinator returns the run options taken from the environment.
func (e Env) Coordinator() coordinator.Options {
	return coordinator.Options{
		PlanID:        e.PlanID,
		EnvironmentID: e.EnvironmentID,
		CustomFieldID: e.URLCustomFieldID,
		SourceURL:     e.RunSourceURL,
	}
}
