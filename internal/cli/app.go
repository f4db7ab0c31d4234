// Package cli provides the gridrunner command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AaronLay10/gridrunner/internal/config"
	"github.com/AaronLay10/gridrunner/internal/logging"
	"github.com/AaronLay10/gridrunner/internal/version"
)

// App represents the CLI application.
type App struct {
	root   *cobra.Command
	stdout io.Writer
	stderr io.Writer

	logLevel  string
	logFormat string
}

// New creates the CLI application.
func New() *App {
	app := &App{
		stdout: os.Stdout,
		stderr: os.Stderr,
	}

	app.root = &cobra.Command{
		Use:   "gridrunner",
		Short: "Grid pathfinding and route traversal engine",
		Long: `gridrunner plans shortest routes through ordered waypoints on an
obstacle grid and drives a robot along them one cell at a time, reporting
progress as events over HTTP, WebSocket and MQTT.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			app.initLogging(nil)
		},
	}

	app.root.PersistentFlags().StringVar(&app.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	app.root.PersistentFlags().StringVar(&app.logFormat, "log-format", "", "Log format (json, console)")

	app.root.AddCommand(
		app.newVersionCmd(),
		app.newPlanCmd(),
		app.newRunCmd(),
		app.newServeCmd(),
	)

	return app
}

// WithOutput sets custom output writers.
func (a *App) WithOutput(stdout, stderr io.Writer) *App {
	a.stdout = stdout
	a.stderr = stderr
	a.root.SetOut(stdout)
	a.root.SetErr(stderr)
	return a
}

// Execute runs the CLI application until it completes or SIGINT/SIGTERM.
func (a *App) Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return a.root.ExecuteContext(ctx)
}

// ExecuteWithArgs runs the CLI with specific arguments.
func (a *App) ExecuteWithArgs(ctx context.Context, args []string) error {
	a.root.SetArgs(args)
	return a.Execute(ctx)
}

// initLogging configures the process logger. Flags win over the scenario
// file's logging section.
func (a *App) initLogging(cfg *config.ScenarioConfig) {
	lc := logging.DefaultConfig()
	lc.Output = a.stderr
	if cfg != nil {
		if cfg.Logging.Level != "" {
			lc.Level = cfg.Logging.Level
		}
		if cfg.Logging.Format != "" {
			lc.Format = cfg.Logging.Format
		}
	}
	if a.logLevel != "" {
		lc.Level = a.logLevel
	}
	if a.logFormat != "" {
		lc.Format = a.logFormat
	}
	logging.Init(lc)
}

func (a *App) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(a.stdout, version.String())
		},
	}
}
