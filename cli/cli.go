package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/qasego/qasego/plugin"
	"github.com/qasego/qasego/storage"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"gopkg.in/natefinch/lumberjack.v2"
)

const AppName = "qasego"

type App struct {
	logger zerolog.Logger
	cli    *cli.App

	stdout io.Writer
	stderr io.Writer
	// Registers providers ahead of the defaults
	providers []func(*plugin.Registry)
}

// Option configures an App.
type Option func(*App)

// WithProviders registers providers that take precedence over the built in
// ones, e.g. a browser driver exposing live screenshots.
func WithProviders(register func(*plugin.Registry)) Option {
	return func(a *App) {
		a.providers = append(a.providers, register)
	}
}

// WithOutput redirects everything the App prints.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(a *App) {
		a.stdout = stdout
		a.stderr = stderr
	}
}

func New(opts ...Option) *App {

	// Set default log level to info
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	app := &App{
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	for _, opt := range opts {
		opt(app)
	}
	app.logger = zerolog.New(app.console()).With().Timestamp().Logger()

	app.cli = &cli.App{
		Name:      AppName,
		Usage:     "Run Go tests and report their results to Qase",
		Writer:    app.stdout,
		ErrWriter: app.stderr,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable verbose (debug) logging",
			},
			&cli.StringFlag{
				Name:    "log-file",
				Usage:   "Additionally write JSON logs to this file (rotated)",
				EnvVars: []string{"QASEGO_LOG_FILE"},
			},
		},
		Before: func(ctx *cli.Context) error {
			if ctx.Bool("verbose") {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
			if file := ctx.String("log-file"); file != "" {
				app.logger = zerolog.New(zerolog.MultiLevelWriter(app.console(), &lumberjack.Logger{
					Filename:   file,
					MaxSize:    50,
					MaxBackups: 3,
				})).With().Timestamp().Logger()
			}
			return nil
		},
	}
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:      "test",
		Usage:     "Run go test and report the results to Qase",
		ArgsUsage: "[packages] [go test flags] [-- test binary flags]",
		Description: `Runs go test -json on the given packages. Tests are bound to Qase cases
with a directive in their doc comment or with a qase.yaml manifest:

  //qase:case PRJ-42
  func TestLogin(t *testing.T) { ... }

Reporting is only active with --qase-enabled; QASE_TOKEN, QASE_PROJECT_CODE
and ENVIRONMENT are required then.

Examples:
  qasego test --qase-enabled ./e2e/...
  qasego test --qase-enabled --workers 4 ./... -race -run 'TestCheckout'`,
		Action: app.test,
		Flags:  testFlags(),
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "worker",
		Usage:  "Run one shard of a parallel session",
		Hidden: true,
		Action: app.worker,
		Flags: append(testFlags(), &cli.StringFlag{
			Name:     "shard",
			Usage:    "Shard of the packages to run, as index/count",
			Required: true,
		}),
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "cases",
		Usage:  "List the case ids of the Qase project",
		Action: app.cases,
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "list",
		Usage:  "List previous sessions",
		Action: app.list,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "path",
				Aliases: []string{"p"},
				Usage:   "Filter by relative path (e.g., e2e/checkout)",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Limit number of results (default: 20)",
				Value:   20,
			},
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:            "view",
		Usage:           "View the results of a previous session",
		ArgsUsage:       "[ID|INDEX]",
		Action:          app.view,
		SkipFlagParsing: true,
		Description: `View the results a session reported to Qase.

Arguments:
  0           View last session (default)
  -1          View 2nd last session
  -2          View 3rd last session
  <hex-id>    View session matching the hex ID prefix

Examples:
  qasego view           # View last session
  qasego view -1        # View 2nd last session
  qasego view abc123    # View session with ID starting with abc123`,
	})
	return app
}

func testFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:    "qase-enabled",
			Usage:   "Report results to Qase",
			EnvVars: []string{"QASE_ENABLED"},
		},
		&cli.StringFlag{
			Name:    "qase-file-storage",
			Usage:   fmt.Sprintf("File storage for failure diagnostics (%s disables them)", storage.None),
			Value:   "qase",
			EnvVars: []string{"QASE_FILE_STORAGE"},
		},
		&cli.StringFlag{
			Name:    "browser",
			Usage:   "Browser label used in run titles and diagnostics folders",
			Value:   "chrome",
			EnvVars: []string{"QASE_BROWSER", "BROWSER"},
		},
		&cli.StringFlag{
			Name:    "run-name",
			Usage:   "Title of the Qase run instead of the generated one",
			EnvVars: []string{"QASE_RUN_NAME"},
		},
		&cli.IntFlag{
			Name:  "workers",
			Usage: "Run packages in this many parallel processes sharing one Qase run",
			Value: 1,
		},
		&cli.StringFlag{
			Name:  "metrics-file",
			Usage: "Write reporting metrics in Prometheus text format to this file",
		},
		&cli.StringFlag{
			Name:  "manifest",
			Usage: "Case manifest (default: qase.yaml at the module root, if present)",
		},
		&cli.StringFlag{
			Name:    "debug-dir",
			Usage:   "Directory tests save failure diagnostics into (default: temporary)",
			EnvVars: []string{"QASE_DEBUG_DIR"},
		},
	}
}

func (a *App) console() io.Writer {
	return zerolog.ConsoleWriter{
		Out:        a.stderr,
		TimeFormat: time.RFC3339Nano,
	}
}

func (a *App) Run(args []string) error {
	return a.cli.Run(args)
}

// SetVersion sets the version information for the CLI application
func (a *App) SetVersion(version, commit, date string) {
	a.cli.Version = version
	if commit != "none" && commit != "" {
		a.cli.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit[:min(8, len(commit))], date)
	}
}
