package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/AaronLay10/gridrunner/internal/api"
	"github.com/AaronLay10/gridrunner/internal/config"
	"github.com/AaronLay10/gridrunner/internal/events"
	"github.com/AaronLay10/gridrunner/internal/logging"
	"github.com/AaronLay10/gridrunner/internal/mqtt"
	"github.com/AaronLay10/gridrunner/internal/runner"
	"github.com/AaronLay10/gridrunner/internal/storage/postgres"
)

type runOptions struct {
	scenarioOptions
	interval time.Duration
	serve    bool
	mqtt     bool
	postgres bool
	resume   bool
	linger   bool
}

func (a *App) newRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Plan a route and drive the robot along it",
		Long: `Plan a scenario's route and step the robot along it at a fixed interval,
emitting events for every move, waypoint capture and state change.

Examples:
  # Headless run of a random scenario
  gridrunner run --seed 7 --interval 100ms

  # Run a scenario file with the API, MQTT telemetry and a Postgres event log
  gridrunner run -c scenario.yaml --serve --mqtt --postgres

  # Resume the latest unfinished run of the scenario from Postgres
  gridrunner run -c scenario.yaml --postgres --resume`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTraversal(cmd.Context(), opts)
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVar(&opts.engine, "engine", "", "Coordinator engine (reducer, chart); overrides runtime.engine")
	cmd.Flags().DurationVar(&opts.interval, "interval", 0, "Time between steps (overrides runtime.step_interval_ms)")
	cmd.Flags().BoolVar(&opts.serve, "serve", false, "Serve the HTTP API while running")
	cmd.Flags().BoolVar(&opts.mqtt, "mqtt", false, "Publish telemetry and accept commands over MQTT")
	cmd.Flags().BoolVar(&opts.postgres, "postgres", false, "Persist events to Postgres")
	cmd.Flags().BoolVar(&opts.resume, "resume", false, "Resume the latest unfinished run from Postgres")
	cmd.Flags().BoolVar(&opts.linger, "linger", false, "Keep serving after the run finishes until interrupted")

	return cmd
}

func (a *App) runTraversal(ctx context.Context, opts *runOptions) error {
	if opts.resume && !opts.postgres {
		return errors.New("--resume requires --postgres")
	}

	s, err := a.loadScenario(&opts.scenarioOptions)
	if err != nil {
		return err
	}
	secrets, err := config.LoadSecrets()
	if err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}

	hostname, _ := os.Hostname()
	events.Emit("info", events.SystemStartup, "gridrunner starting", map[string]interface{}{
		"scenario": s.cfg.ID(),
		"hostname": hostname,
		"pid":      os.Getpid(),
	})
	defer events.Emit("info", events.SystemShutdown, "gridrunner stopping", nil)

	var pg *postgres.Client
	if opts.postgres {
		pg, err = postgres.New(ctx, postgres.ConfigFromEnv(s.cfg.ID(), secrets.PostgresPassword))
		if err != nil {
			return err
		}
		defer pg.Close()
		events.SetStore(pg)
		defer events.SetStore(nil)
		api.SetPostgresStatus(true, false)
	} else {
		api.SetPostgresStatus(false, true)
	}

	runOpts := []runner.Option{
		runner.WithEngine(s.cfg.Engine()),
		runner.WithTopology(s.topo),
	}

	var (
		mc  *mqtt.Client
		sub atomic.Pointer[mqtt.CommandSubscriber]
	)
	if opts.mqtt {
		mc = mqtt.NewClient(mqtt.Options{
			Broker:   s.cfg.Network.MQTTBroker,
			ClientID: "gridrunner-" + s.cfg.ID(),
			Username: os.Getenv("MQTT_USERNAME"),
			Password: secrets.MQTTPassword,
			OnConnect: func() {
				api.SetMQTTStatus(true, false)
				if cs := sub.Load(); cs != nil {
					// clean sessions drop subscriptions on reconnect
					go func() {
						cs.Reset()
						if err := cs.Subscribe(); err != nil {
							logging.Warn().Add(logging.Component("mqtt")).Add(logging.ErrorField(err)).Msg("resubscribe failed")
						}
					}()
				}
			},
		})
		if err := mc.ConnectWithRetry(ctx, 5, 500*time.Millisecond); err != nil {
			return fmt.Errorf("failed to connect to mqtt: %w", err)
		}
		defer mc.Disconnect()
		runOpts = append(runOpts, runner.WithPublisher(mqtt.NewPublisher(mc, s.cfg.TopicPrefix())))
	} else {
		api.SetMQTTStatus(false, true)
	}

	r, err := runner.New(s.grid, s.waypoints, runOpts...)
	if err != nil {
		return err
	}
	defer r.Close()

	if mc != nil {
		cs := mqtt.NewCommandSubscriber(mc, s.cfg.TopicPrefix(), r.Dispatch)
		if err := cs.Subscribe(); err != nil {
			return fmt.Errorf("failed to subscribe to commands: %w", err)
		}
		sub.Store(cs)
	}

	restored := false
	if opts.resume {
		restored, err = resume(ctx, pg, r)
		if err != nil {
			return err
		}
	}

	var wg sync.WaitGroup
	serveCtx, stopServe := context.WithCancel(ctx)
	defer func() {
		stopServe()
		wg.Wait()
	}()
	if opts.serve {
		api.InitMetrics(s.cfg.ID())
		if err := api.InitTLS(); err != nil {
			return err
		}
		if err := api.InitAuth(); err != nil {
			return err
		}
		api.SetRunController(r)
		api.SetRunnerReady(true)
		defer api.SetRunController(nil)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := api.Serve(serveCtx, s.cfg.APIPort()); err != nil {
				logging.Error().Add(logging.Component("api")).Add(logging.ErrorField(err)).Msg("api server failed")
			}
		}()
	}

	if !restored {
		if err := r.Start(ctx); err != nil {
			return err
		}
	}

	interval := s.cfg.StepInterval()
	if opts.interval > 0 {
		interval = opts.interval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := r.Run(ctx, ticker.C); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r.Snapshot()); err != nil {
		return err
	}

	if opts.serve && opts.linger {
		<-ctx.Done()
	}
	return nil
}

// resume restores the scenario's latest run when it is unfinished. It
// reports whether a run was restored with its route planned.
func resume(ctx context.Context, pg *postgres.Client, r *runner.Runner) (bool, error) {
	runID, err := pg.LatestRunID(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to find latest run: %w", err)
	}
	if runID == "" {
		logging.Info().Add(logging.Component("cli")).Msg("no run to resume")
		return false, nil
	}

	rr, n, err := runner.RestoreFromEvents(ctx, pg, runID)
	if err != nil {
		return false, fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	if rr == nil || rr.Finished {
		logging.Info().Add(logging.RunID(runID)).Msg("latest run already finished")
		return false, nil
	}
	if err := r.ApplyRestored(ctx, rr); err != nil {
		return false, err
	}
	logging.Info().Add(logging.RunID(runID)).Add(logging.State(rr.State)).Add(logging.Steps(n)).Msg("run restored")
	return rr.Planned, nil
}
