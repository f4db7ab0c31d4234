package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/AaronLay10/gridrunner/internal/api"
	"github.com/AaronLay10/gridrunner/internal/config"
	"github.com/AaronLay10/gridrunner/internal/events"
)

type serveOptions struct {
	configPath string
	port       int
}

func (a *App) newServeCmd() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the planning API without driving a run",
		Long: `Serve the HTTP API for on-demand route planning (POST /route), health,
readiness, metrics and the event stream. No run is started, so /state and
/dispatch answer 503.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to scenario.yaml (for network settings)")
	cmd.Flags().IntVarP(&opts.port, "port", "p", 0, "Listen port (overrides network.api_port)")

	return cmd
}

func (a *App) serve(ctx context.Context, opts *serveOptions) error {
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.LoadScenario(opts.configPath); err != nil {
			return err
		}
		a.initLogging(cfg)
	}
	port := cfg.APIPort()
	if opts.port > 0 {
		port = opts.port
	}

	hostname, _ := os.Hostname()
	events.Emit("info", events.SystemStartup, "gridrunner api starting", map[string]interface{}{
		"port":     port,
		"hostname": hostname,
	})
	defer events.Emit("info", events.SystemShutdown, "gridrunner api stopping", nil)

	api.InitMetrics(cfg.ID())
	if err := api.InitTLS(); err != nil {
		return err
	}
	if err := api.InitAuth(); err != nil {
		return err
	}
	api.SetRunnerReady(true)
	api.SetMQTTStatus(false, true)
	api.SetPostgresStatus(false, true)

	return api.Serve(ctx, port)
}
