package cli

// This file contains the test and worker commands: resolving what to run and
// fanning out to worker processes.

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/qasego/qasego/coordinator"
	"github.com/qasego/qasego/debuginfo"
	"github.com/qasego/qasego/gotest"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

const (
	// Exit code of a session the reporter aborted
	exitPluginError = 3
	// Exit code of a session that could not start
	exitUsageError = 4

	workerIDEnv = "QASE_WORKER_ID"
)

// Flags of the test command forwarded to worker processes
var forwardedFlags = []string{"qase-enabled", "qase-file-storage", "browser", "run-name", "metrics-file", "manifest"}

type testOptions struct {
	startTime time.Time
	workDir   string
	module    gotest.Module
	// Repository root, the module root outside of git
	repoRoot string

	packages    []gotest.Package
	buildArgs   []string
	runtimeArgs []string

	qaseEnabled bool
	fileStorage string
	browser     string
	runName     string
	workers     int
	metricsFile string
	manifest    string
	debugDir    string

	// Empty for the primary process
	workerID string
}

// parseTestOptions resolves the packages and flags of the test and worker
// commands.
func (a *App) parseTestOptions(ctx *cli.Context) (*testOptions, error) {
	opts := &testOptions{
		startTime:   time.Now(),
		qaseEnabled: ctx.Bool("qase-enabled"),
		fileStorage: ctx.String("qase-file-storage"),
		browser:     ctx.String("browser"),
		runName:     ctx.String("run-name"),
		workers:     ctx.Int("workers"),
		metricsFile: ctx.String("metrics-file"),
		manifest:    ctx.String("manifest"),
		debugDir:    ctx.String("debug-dir"),
		workerID:    os.Getenv(workerIDEnv),
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	opts.workDir = wd

	opts.module, err = gotest.FindModule(wd)
	if err != nil {
		return nil, err
	}
	opts.repoRoot = opts.module.Root
	if root, err := a.getRepoRoot(ctx.Context, wd); err == nil {
		opts.repoRoot = root
	}

	patterns, buildArgs, runtimeArgs := a.separateTestArgs(ctx.Args().Slice())
	opts.buildArgs, opts.runtimeArgs = buildArgs, runtimeArgs
	if len(buildArgs) > 0 {
		a.logger.Debug().Strs("build_args", buildArgs).Msg("Build-time arguments")
	}
	if len(runtimeArgs) > 0 {
		a.logger.Debug().Strs("runtime_args", runtimeArgs).Msg("Runtime arguments")
	}

	opts.packages, err = gotest.ResolvePackages(opts.module, wd, patterns)
	if err != nil {
		return nil, err
	}
	if len(opts.packages) == 0 {
		return nil, fmt.Errorf("no packages to test: please provide package paths (e.g., '.' or './e2e/...')")
	}
	return opts, nil
}

// prepareDebugDir makes sure tests have a directory to save diagnostics in.
// The returned function removes it when it was created here.
func (a *App) prepareDebugDir(opts *testOptions) (func(), error) {
	if opts.debugDir != "" {
		abs, err := filepath.Abs(opts.debugDir)
		if err != nil {
			return nil, err
		}
		opts.debugDir = abs
		return func() {}, os.MkdirAll(abs, 0755)
	}

	dir, err := os.MkdirTemp("", "qasego-debug-")
	if err != nil {
		return nil, fmt.Errorf("failed to create debug directory: %w", err)
	}
	opts.debugDir = dir
	return func() {
		if err := os.RemoveAll(dir); err != nil {
			a.logger.Debug().Err(err).Str("dir", dir).Msg("Failed to clean up debug directory")
		}
	}, nil
}

func (a *App) test(ctx *cli.Context) error {
	opts, err := a.parseTestOptions(ctx)
	if err != nil {
		return cli.Exit(err.Error(), exitUsageError)
	}
	cleanup, err := a.prepareDebugDir(opts)
	if err != nil {
		return err
	}
	defer cleanup()

	if opts.workers > 1 && len(opts.packages) > 1 && opts.workerID == "" {
		return a.fanOut(ctx, opts)
	}
	return a.run(ctx.Context, opts)
}

func (a *App) worker(ctx *cli.Context) error {
	index, count, err := parseShard(ctx.String("shard"))
	if err != nil {
		return cli.Exit(err.Error(), exitUsageError)
	}
	opts, err := a.parseTestOptions(ctx)
	if err != nil {
		return cli.Exit(err.Error(), exitUsageError)
	}
	cleanup, err := a.prepareDebugDir(opts)
	if err != nil {
		return err
	}
	defer cleanup()

	opts.packages = gotest.Shard(opts.packages, index, count)
	if len(opts.packages) == 0 {
		return nil
	}
	return a.run(ctx.Context, opts)
}

// run executes one process worth of packages, reporting to Qase when enabled.
func (a *App) run(ctx context.Context, opts *testOptions) (err error) {
	h := a.newHistory(ctx, opts)
	defer func() {
		a.recordHistory(h, opts, err)
	}()

	if !opts.qaseEnabled {
		return a.runTests(ctx, opts, func(gotest.TestEvent) error { return nil })
	}
	return a.session(ctx, opts, h)
}

// runTests executes go test for opts.packages and hands every event to handle.
func (a *App) runTests(ctx context.Context, opts *testOptions, handle func(gotest.TestEvent) error) error {
	importPaths := make([]string, 0, len(opts.packages))
	for _, pkg := range opts.packages {
		importPaths = append(importPaths, pkg.ImportPath)
	}

	runner := gotest.NewRunner(a.logger,
		gotest.WithDir(opts.workDir),
		gotest.WithEnv(debuginfo.DirEnv+"="+opts.debugDir),
		gotest.WithOutput(a.stdout, a.stderr),
	)
	err := runner.Run(ctx, gotest.Args(opts.buildArgs, importPaths, opts.runtimeArgs), handle)

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return cli.Exit("", exitErr.ExitCode())
	}
	return err
}

// fanOut runs the packages in opts.workers child processes sharing one run.
// This process is the primary one and only prepares the session.
func (a *App) fanOut(ctx *cli.Context, opts *testOptions) error {
	if opts.qaseEnabled {
		if err := coordinator.New(a.logger, nil, opts.module.Root, coordinator.Options{}).SessionStart(true); err != nil {
			return err
		}
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate %s executable: %w", AppName, err)
	}

	workers := min(opts.workers, len(opts.packages))
	codes := make([]int, workers)

	var g errgroup.Group
	for i := 0; i < workers; i++ {
		args := a.workerArgs(ctx, i, workers)
		g.Go(func() error {
			cmd := exec.CommandContext(ctx.Context, exe, args...)
			cmd.Dir = opts.workDir
			cmd.Stdout = a.stdout
			cmd.Stderr = a.stderr
			cmd.Env = append(os.Environ(),
				workerIDEnv+"="+strconv.Itoa(i),
				debuginfo.DirEnv+"="+opts.debugDir,
			)

			a.logger.Debug().Int("worker", i).Strs("args", args).Msg("Starting worker")
			err := cmd.Run()
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				codes[i] = exitErr.ExitCode()
				return nil
			}
			if err != nil {
				return fmt.Errorf("worker %d: %w", i, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	code := 0
	for _, c := range codes {
		code = max(code, c)
	}
	if code != 0 {
		return cli.Exit("", code)
	}
	return nil
}

// workerArgs returns the command line of worker index out of count.
func (a *App) workerArgs(ctx *cli.Context, index, count int) []string {
	var args []string
	if ctx.Bool("verbose") {
		args = append(args, "--verbose")
	}
	if file := ctx.String("log-file"); file != "" {
		args = append(args, "--log-file", workerPath(file, strconv.Itoa(index)))
	}

	args = append(args, "worker", "--shard", fmt.Sprintf("%d/%d", index, count))
	for _, name := range forwardedFlags {
		if ctx.IsSet(name) {
			args = append(args, fmt.Sprintf("--%s=%v", name, ctx.Value(name)))
		}
	}
	args = append(args, "--")
	return append(args, ctx.Args().Slice()...)
}

// parseShard parses "index/count".
func parseShard(s string) (index, count int, err error) {
	i, n, ok := strings.Cut(s, "/")
	if ok {
		index, err = strconv.Atoi(i)
		if err == nil {
			count, err = strconv.Atoi(n)
		}
	}
	if !ok || err != nil || count < 1 || index < 0 || index >= count {
		return 0, 0, fmt.Errorf("invalid shard %q: expected index/count", s)
	}
	return index, count, nil
}

// workerPath suffixes a file name with the worker id, before the extension.
func workerPath(file, workerID string) string {
	if workerID == "" {
		return file
	}
	ext := filepath.Ext(file)
	return strings.TrimSuffix(file, ext) + "-w" + workerID + ext
}
