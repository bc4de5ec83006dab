package gotest

// This file contains the execution of `go test -json` and the decoding of
// its event stream.

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"al.essio.dev/pkg/shellescape"
	"github.com/rs/zerolog"
)

// Runner runs go test.
type Runner struct {
	logger zerolog.Logger
	// go binary
	goBin string
	dir   string
	env   []string
	// Receives the test output as go test would print it
	stdout io.Writer
	stderr io.Writer
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithDir runs go test in dir.
func WithDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.dir = dir
	}
}

// WithEnv appends environment variables (KEY=value) to the test process.
func WithEnv(env ...string) RunnerOption {
	return func(r *Runner) {
		r.env = append(r.env, env...)
	}
}

// WithOutput redirects test output.
func WithOutput(stdout, stderr io.Writer) RunnerOption {
	return func(r *Runner) {
		r.stdout = stdout
		r.stderr = stderr
	}
}

// WithGoBinary replaces the go binary.
func WithGoBinary(bin string) RunnerOption {
	return func(r *Runner) {
		r.goBin = bin
	}
}

// NewRunner creates a Runner.
func NewRunner(logger zerolog.Logger, opts ...RunnerOption) *Runner {
	r := &Runner{
		logger: logger,
		goBin:  "go",
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Args returns the go test arguments for the given packages.
func Args(buildArgs, packages, runtimeArgs []string) []string {
	args := []string{"test", "-json"}
	args = append(args, buildArgs...)
	args = append(args, packages...)
	args = append(args, runtimeArgs...)
	return args
}

// Run executes go test with args and passes every event to handle. The
// returned error is an *exec.ExitError when tests failed.
func (r *Runner) Run(ctx context.Context, args []string, handle func(TestEvent) error) error {
	cmd := exec.CommandContext(ctx, r.goBin, args...)
	cmd.Dir = r.dir
	cmd.Stderr = r.stderr
	if len(r.env) > 0 {
		cmd.Env = append(os.Environ(), r.env...)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open go test output: %w", err)
	}

	r.logger.Debug().
		Str("cmd", shellescape.QuoteCommand(append([]string{r.goBin}, args...))).
		Str("dir", r.dir).
		Msg("Running go test")

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start go test: %w", err)
	}

	handleErr := r.decode(stdout, handle)
	if handleErr != nil {
		// Drain so the process is not blocked on a full pipe
		_, _ = io.Copy(io.Discard, stdout)
	}

	waitErr := cmd.Wait()
	if handleErr != nil {
		return handleErr
	}
	return waitErr
}

// decode reads events line by line. Lines that are not JSON (e.g. output of
// a TestMain writing to stdout before the framework starts) are printed.
func (r *Runner) decode(stdout io.Reader, handle func(TestEvent) error) error {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()

		var e TestEvent
		if err := json.Unmarshal(line, &e); err != nil || e.Action == "" {
			fmt.Fprintln(r.stdout, string(line))
			continue
		}

		if e.Action == "output" || e.Action == "build-output" {
			fmt.Fprint(r.stdout, e.Output)
		}
		if err := handle(e); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read go test output: %w", err)
	}
	return nil
}

// ExitCode returns the exit code carried by err, 0 for nil and 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}
