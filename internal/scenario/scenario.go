// Package scenario samples random obstacle maps and intermediate goals.
package scenario

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/AaronLay10/gridrunner/internal/grid"
)

// ErrNotEnoughCells is returned when the grid cannot hold the requested
// obstacles and intermediate goals.
var ErrNotEnoughCells = errors.New("not enough free cells")

const (
	DefaultRows         = 10
	DefaultCols         = 10
	DefaultObstacles    = 10
	DefaultIntermediate = 4
)

// Options controls sampling. Zero values fall back to the defaults above,
// except Obstacles and Intermediate which are taken as given once Explicit
// is set.
type Options struct {
	Rows          int
	Cols          int
	Obstacles     int
	Intermediate  int
	Seed          int64
	EdgePositions bool
	Explicit      bool
}

// Scenario is one sampled map with its waypoints.
type Scenario struct {
	Grid         *grid.Grid
	Start        grid.Position
	Goal         grid.Position
	Obstacles    []grid.Position
	Intermediate []grid.Position
	Seed         int64
}

// Waypoints returns start, the intermediate goals in sampled order, then goal.
func (s *Scenario) Waypoints() []grid.Position {
	out := make([]grid.Position, 0, len(s.Intermediate)+2)
	out = append(out, s.Start)
	out = append(out, s.Intermediate...)
	return append(out, s.Goal)
}

func (o Options) normalized() Options {
	if o.Rows <= 0 {
		o.Rows = DefaultRows
	}
	if o.Cols <= 0 {
		o.Cols = DefaultCols
	}
	if !o.Explicit {
		if o.Obstacles == 0 {
			o.Obstacles = DefaultObstacles
		}
		if o.Intermediate == 0 {
			o.Intermediate = DefaultIntermediate
		}
	}
	if o.Seed == 0 {
		o.Seed = time.Now().UnixNano()
	}
	return o
}

// Generate samples a scenario. Obstacles are drawn from every cell except
// start and goal; intermediate goals are drawn from what remains. The same
// Options with the same non-zero Seed always produce the same scenario.
func Generate(opts Options) (*Scenario, error) {
	opts = opts.normalized()
	if opts.Obstacles < 0 || opts.Intermediate < 0 {
		return nil, fmt.Errorf("negative sample size: obstacles=%d intermediate=%d", opts.Obstacles, opts.Intermediate)
	}
	r := rand.New(rand.NewSource(opts.Seed))

	start := grid.P(0, 0)
	goal := grid.P(opts.Rows-1, opts.Cols-1)
	if opts.EdgePositions {
		start, goal = sampleEdgePair(r, opts.Rows, opts.Cols)
	}

	cells := freeCells(opts.Rows, opts.Cols, start, goal)
	if opts.Obstacles+opts.Intermediate > len(cells) {
		return nil, fmt.Errorf("%w: need %d, have %d", ErrNotEnoughCells, opts.Obstacles+opts.Intermediate, len(cells))
	}

	// A single shuffle gives disjoint obstacle and intermediate samples.
	r.Shuffle(len(cells), func(i, j int) { cells[i], cells[j] = cells[j], cells[i] })
	obstacles := append([]grid.Position(nil), cells[:opts.Obstacles]...)
	intermediate := append([]grid.Position(nil), cells[opts.Obstacles:opts.Obstacles+opts.Intermediate]...)

	g := grid.New(opts.Rows, opts.Cols)
	for _, p := range obstacles {
		g.AddObstacle(p)
	}

	return &Scenario{
		Grid:         g,
		Start:        start,
		Goal:         goal,
		Obstacles:    obstacles,
		Intermediate: intermediate,
		Seed:         opts.Seed,
	}, nil
}

func freeCells(rows, cols int, start, goal grid.Position) []grid.Position {
	out := make([]grid.Position, 0, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			p := grid.P(r, c)
			if p == start || p == goal {
				continue
			}
			out = append(out, p)
		}
	}
	return out
}

// edgeCells lists border cells clockwise from the top-left corner.
func edgeCells(rows, cols int) []grid.Position {
	var out []grid.Position
	for c := 0; c < cols; c++ {
		out = append(out, grid.P(0, c))
	}
	for r := 1; r < rows; r++ {
		out = append(out, grid.P(r, cols-1))
	}
	if rows > 1 {
		for c := cols - 2; c >= 0; c-- {
			out = append(out, grid.P(rows-1, c))
		}
	}
	if cols > 1 {
		for r := rows - 2; r >= 1; r-- {
			out = append(out, grid.P(r, 0))
		}
	}
	return out
}

func sampleEdgePair(r *rand.Rand, rows, cols int) (grid.Position, grid.Position) {
	edges := edgeCells(rows, cols)
	if len(edges) < 2 {
		return grid.P(0, 0), grid.P(rows-1, cols-1)
	}
	i := r.Intn(len(edges))
	j := r.Intn(len(edges) - 1)
	if j >= i {
		j++
	}
	return edges[i], edges[j]
}
