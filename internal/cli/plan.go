package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AaronLay10/gridrunner/internal/grid"
	"github.com/AaronLay10/gridrunner/internal/planner"
)

type planOptions struct {
	scenarioOptions
	format string
}

func (a *App) newPlanCmd() *cobra.Command {
	opts := &planOptions{}

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Plan a route and print it",
		Long: `Plan the route through every waypoint of a scenario and print it.

Examples:
  # Plan a random scenario and draw it
  gridrunner plan --seed 42

  # Plan a scenario file and emit GeoJSON
  gridrunner plan -c scenario.yaml --format geojson`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.loadScenario(&opts.scenarioOptions)
			if err != nil {
				return err
			}
			route, err := planner.PlanContext(cmd.Context(), s.topo, s.waypoints)
			if err != nil {
				return fmt.Errorf("failed to plan route: %w", err)
			}
			return a.printRoute(opts.format, s.grid, route)
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format (text, json, geojson)")

	return cmd
}

func (a *App) printRoute(format string, g *grid.Grid, route *planner.Route) error {
	switch format {
	case "text":
		fmt.Fprint(a.stdout, renderRoute(g, route))
		fmt.Fprintf(a.stdout, "steps: %d  cost: %.2f\n", route.Len(), route.Cost)
		return nil
	case "json":
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(route)
	case "geojson":
		b, err := route.GeoJSON()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(a.stdout, string(b))
		return err
	default:
		return fmt.Errorf("unknown format: %q", format)
	}
}

// renderRoute draws the grid row by row: '#' obstacle, '*' path, 'S' start,
// 'G' goal, '1'-'9' intermediate waypoints (then 'w').
func renderRoute(g *grid.Grid, route *planner.Route) string {
	cells := make([][]byte, g.Rows())
	for r := range cells {
		cells[r] = []byte(strings.Repeat(".", g.Cols()))
	}
	for _, p := range g.Obstacles() {
		cells[p.Row][p.Col] = '#'
	}
	for _, p := range route.Steps {
		cells[p.Row][p.Col] = '*'
	}
	last := len(route.Waypoints) - 1
	for i, p := range route.Waypoints {
		cells[p.Row][p.Col] = waypointGlyph(i, last)
	}

	var b strings.Builder
	for _, row := range cells {
		b.Write(row)
		b.WriteByte('\n')
	}
	return b.String()
}

func waypointGlyph(i, last int) byte {
	switch {
	case i == 0:
		return 'S'
	case i == last:
		return 'G'
	case i <= 9:
		return byte('0' + i)
	default:
		return 'w'
	}
}
