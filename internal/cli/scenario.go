package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/AaronLay10/gridrunner/internal/config"
	"github.com/AaronLay10/gridrunner/internal/grid"
	"github.com/AaronLay10/gridrunner/internal/logging"
)

// scenarioOptions are the flags shared by commands that build a scenario.
type scenarioOptions struct {
	configPath string
	seed       int64
	diagonal   bool
	engine     string
}

func (o *scenarioOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.configPath, "config", "c", "", "Path to scenario.yaml (default: random 10x10 scenario)")
	cmd.Flags().Int64Var(&o.seed, "seed", 0, "Seed for random scenarios (0 picks one and logs it)")
	cmd.Flags().BoolVar(&o.diagonal, "diagonal", false, "Allow diagonal moves")
}

// scenario is a loaded and materialised scenario.
type scenario struct {
	cfg       *config.ScenarioConfig
	grid      *grid.Grid
	waypoints []grid.Position
	topo      grid.Topology
}

// loadScenario loads the scenario named by o and reconfigures logging from
// its file.
func (a *App) loadScenario(o *scenarioOptions) (*scenario, error) {
	cfg := config.Default()
	if o.configPath != "" {
		var err error
		cfg, err = config.LoadScenario(o.configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load scenario: %w", err)
		}
	}
	a.initLogging(cfg)

	if o.engine != "" {
		switch o.engine {
		case config.EngineReducer, config.EngineChart:
			cfg.Runtime.Engine = o.engine
		default:
			return nil, fmt.Errorf("unsupported engine: %q", o.engine)
		}
	}
	if cfg.Random.Enabled {
		if o.seed != 0 {
			cfg.Random.Seed = o.seed
		}
		if cfg.Random.Seed == 0 {
			cfg.Random.Seed = time.Now().UnixNano()
		}
		logging.Info().Add(logging.Component("cli")).Add(logging.Str("seed", fmt.Sprint(cfg.Random.Seed))).Msg("random scenario")
	}

	g, wps, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build scenario: %w", err)
	}

	var topo grid.Topology = g
	if o.diagonal {
		topo = grid.EightConnected(g)
	}
	return &scenario{cfg: cfg, grid: g, waypoints: wps, topo: topo}, nil
}
