package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AaronLay10/gridrunner/internal/grid"
	"github.com/AaronLay10/gridrunner/internal/scenario"
)

const (
	EngineReducer = "reducer"
	EngineChart   = "chart"
)

type ScenarioConfig struct {
	Version  int `yaml:"version"`
	Scenario struct {
		ID          string `yaml:"id"`
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
	} `yaml:"scenario"`
	Grid struct {
		Rows      int             `yaml:"rows"`
		Cols      int             `yaml:"cols"`
		Obstacles []grid.Position `yaml:"obstacles"`
	} `yaml:"grid"`
	Route struct {
		Start     *grid.Position  `yaml:"start"`
		Goal      *grid.Position  `yaml:"goal"`
		Waypoints []grid.Position `yaml:"waypoints"`
		GoalsFile string          `yaml:"goals_file"`
	} `yaml:"route"`
	Random struct {
		Enabled       bool  `yaml:"enabled"`
		Seed          int64 `yaml:"seed"`
		Obstacles     *int  `yaml:"obstacles"`
		Intermediate  *int  `yaml:"intermediate"`
		EdgePositions bool  `yaml:"edge_positions"`
	} `yaml:"random"`
	Runtime struct {
		StepIntervalMS int    `yaml:"step_interval_ms"`
		Engine         string `yaml:"engine"`
	} `yaml:"runtime"`
	Network struct {
		APIPort         int    `yaml:"api_port"`
		MQTTBroker      string `yaml:"mqtt_broker"`
		MQTTTopicPrefix string `yaml:"mqtt_topic_prefix"`
	} `yaml:"network"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	// dir is the directory the file was loaded from; relative goals_file
	// paths resolve against it.
	dir string
}

// ID returns the scenario id, defaulting to "default".
func (c *ScenarioConfig) ID() string {
	if c.Scenario.ID == "" {
		return "default"
	}
	return c.Scenario.ID
}

func (c *ScenarioConfig) Rows() int {
	if c.Grid.Rows <= 0 {
		return scenario.DefaultRows
	}
	return c.Grid.Rows
}

func (c *ScenarioConfig) Cols() int {
	if c.Grid.Cols <= 0 {
		return scenario.DefaultCols
	}
	return c.Grid.Cols
}

// APIPort returns the configured API port, defaulting to 8080 if not set.
func (c *ScenarioConfig) APIPort() int {
	if c.Network.APIPort == 0 {
		return 8080
	}
	return c.Network.APIPort
}

// StepInterval returns the pause between robot steps, defaulting to 500ms.
func (c *ScenarioConfig) StepInterval() time.Duration {
	if c.Runtime.StepIntervalMS <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(c.Runtime.StepIntervalMS) * time.Millisecond
}

// Engine returns the coordinator engine name, defaulting to "reducer".
func (c *ScenarioConfig) Engine() string {
	if c.Runtime.Engine == "" {
		return EngineReducer
	}
	return c.Runtime.Engine
}

// TopicPrefix returns the MQTT topic prefix, defaulting to "gridrunner".
func (c *ScenarioConfig) TopicPrefix() string {
	if c.Network.MQTTTopicPrefix == "" {
		return "gridrunner"
	}
	return c.Network.MQTTTopicPrefix
}

// Default returns the config used when no scenario file is given: a random
// 10x10 map with the sampler defaults.
func Default() *ScenarioConfig {
	cfg := &ScenarioConfig{Version: 1}
	cfg.Random.Enabled = true
	return cfg
}

func LoadScenario(path string) (*ScenarioConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg ScenarioConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}

	if cfg.Version != 1 {
		return nil, fmt.Errorf("unsupported scenario.yaml version: %d", cfg.Version)
	}

	switch cfg.Engine() {
	case EngineReducer, EngineChart:
	default:
		return nil, fmt.Errorf("unsupported runtime.engine: %q", cfg.Runtime.Engine)
	}

	cfg.dir = filepath.Dir(path)
	return &cfg, nil
}

// Build materialises the grid and the ordered waypoint list. Random
// scenarios are sampled; fixed ones take obstacles and waypoints from the
// file, with intermediate goals from goals_file appended after any inline
// waypoints.
func (c *ScenarioConfig) Build() (*grid.Grid, []grid.Position, error) {
	if c.Random.Enabled {
		opts := scenario.Options{
			Rows:          c.Grid.Rows,
			Cols:          c.Grid.Cols,
			Seed:          c.Random.Seed,
			EdgePositions: c.Random.EdgePositions,
			Obstacles:     scenario.DefaultObstacles,
			Intermediate:  scenario.DefaultIntermediate,
			Explicit:      true,
		}
		if c.Random.Obstacles != nil {
			opts.Obstacles = *c.Random.Obstacles
		}
		if c.Random.Intermediate != nil {
			opts.Intermediate = *c.Random.Intermediate
		}
		s, err := scenario.Generate(opts)
		if err != nil {
			return nil, nil, err
		}
		return s.Grid, s.Waypoints(), nil
	}

	g := grid.New(c.Rows(), c.Cols())
	for _, p := range c.Grid.Obstacles {
		if err := g.AddObstacleChecked(p); err != nil {
			return nil, nil, fmt.Errorf("grid.obstacles: %w", err)
		}
	}

	start := grid.P(0, 0)
	if c.Route.Start != nil {
		start = *c.Route.Start
	}
	goal := grid.P(c.Rows()-1, c.Cols()-1)
	if c.Route.Goal != nil {
		goal = *c.Route.Goal
	}

	waypoints := []grid.Position{start}
	waypoints = append(waypoints, c.Route.Waypoints...)
	if c.Route.GoalsFile != "" {
		path := c.Route.GoalsFile
		if !filepath.IsAbs(path) && c.dir != "" {
			path = filepath.Join(c.dir, path)
		}
		goals, err := LoadGoals(path)
		if err != nil {
			return nil, nil, err
		}
		waypoints = append(waypoints, goals.Positions()...)
	}
	waypoints = append(waypoints, goal)

	for i, p := range waypoints {
		if !g.IsWithinBounds(p) {
			return nil, nil, fmt.Errorf("waypoint %d: %w: %s", i, grid.ErrOutOfBounds, p)
		}
	}
	return g, waypoints, nil
}
