package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/AaronLay10/gridrunner/internal/grid"
)

// Goal is one named intermediate goal. x_position is the row and
// y_position the column.
type Goal struct {
	Name  string `yaml:"name"`
	Order int    `yaml:"order"`
	X     int    `yaml:"x_position"`
	Y     int    `yaml:"y_position"`
}

func (g Goal) Position() grid.Position {
	return grid.P(g.X, g.Y)
}

type GoalsConfig struct {
	Version     int    `yaml:"version"`
	Individuals []Goal `yaml:"individuals"`
}

// Positions returns the goal cells sorted by order, then name.
func (c *GoalsConfig) Positions() []grid.Position {
	goals := append([]Goal(nil), c.Individuals...)
	sort.SliceStable(goals, func(i, j int) bool {
		if goals[i].Order != goals[j].Order {
			return goals[i].Order < goals[j].Order
		}
		return goals[i].Name < goals[j].Name
	})
	out := make([]grid.Position, len(goals))
	for i, g := range goals {
		out[i] = g.Position()
	}
	return out
}

func LoadGoals(path string) (*GoalsConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg GoalsConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}

	if cfg.Version != 1 {
		return nil, fmt.Errorf("unsupported goals.yaml version: %d", cfg.Version)
	}

	seen := make(map[string]bool, len(cfg.Individuals))
	for i, g := range cfg.Individuals {
		if g.Name == "" {
			return nil, fmt.Errorf("individual %d: missing name", i)
		}
		if seen[g.Name] {
			return nil, fmt.Errorf("duplicate individual %q", g.Name)
		}
		seen[g.Name] = true
	}

	return &cfg, nil
}
