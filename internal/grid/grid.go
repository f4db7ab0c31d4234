// Package grid provides the occupancy map the planner searches over.
package grid

import (
	"errors"
	"fmt"
	"sort"
)

// ErrOutOfBounds is returned by AddObstacleChecked for cells outside the grid.
var ErrOutOfBounds = errors.New("position out of bounds")

// Topology enumerates the cells reachable in one move from a position.
type Topology interface {
	Neighbors(pos Position) []Position
}

// Grid is a rectangular occupancy map. Obstacles are added before a search
// and the grid is read-only while a search runs.
type Grid struct {
	rows      int
	cols      int
	obstacles map[Position]struct{}
}

// New creates an empty rows x cols grid.
func New(rows, cols int) *Grid {
	return &Grid{
		rows:      rows,
		cols:      cols,
		obstacles: make(map[Position]struct{}),
	}
}

func (g *Grid) Rows() int { return g.rows }
func (g *Grid) Cols() int { return g.cols }

// AddObstacle marks pos as impassable.
// The caller must keep pos within bounds; use AddObstacleChecked otherwise.
func (g *Grid) AddObstacle(pos Position) {
	g.obstacles[pos] = struct{}{}
}

// AddObstacleChecked is AddObstacle with a bounds check.
func (g *Grid) AddObstacleChecked(pos Position) error {
	if !g.IsWithinBounds(pos) {
		return fmt.Errorf("%w: %s on %dx%d grid", ErrOutOfBounds, pos, g.rows, g.cols)
	}
	g.AddObstacle(pos)
	return nil
}

// IsWithinBounds reports whether pos lies inside the grid.
func (g *Grid) IsWithinBounds(pos Position) bool {
	return pos.Row >= 0 && pos.Row < g.rows && pos.Col >= 0 && pos.Col < g.cols
}

// IsObstacle reports whether pos was marked as an obstacle. Bounds are not checked.
func (g *Grid) IsObstacle(pos Position) bool {
	_, ok := g.obstacles[pos]
	return ok
}

// IsWalkable reports whether pos is inside the grid and not an obstacle.
func (g *Grid) IsWalkable(pos Position) bool {
	return g.IsWithinBounds(pos) && !g.IsObstacle(pos)
}

// Neighbors returns the walkable axis-aligned neighbours of pos in the fixed
// order up, down, left, right. Search tie-breaking depends on this order.
func (g *Grid) Neighbors(pos Position) []Position {
	candidates := [4]Position{
		{Row: pos.Row - 1, Col: pos.Col},
		{Row: pos.Row + 1, Col: pos.Col},
		{Row: pos.Row, Col: pos.Col - 1},
		{Row: pos.Row, Col: pos.Col + 1},
	}
	out := make([]Position, 0, len(candidates))
	for _, c := range candidates {
		if g.IsWalkable(c) {
			out = append(out, c)
		}
	}
	return out
}

// ObstacleCount returns the number of marked cells.
func (g *Grid) ObstacleCount() int {
	return len(g.obstacles)
}

// Obstacles returns the marked cells in row-major order.
func (g *Grid) Obstacles() []Position {
	out := make([]Position, 0, len(g.obstacles))
	for p := range g.obstacles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// eightConnected extends a grid with diagonal moves.
type eightConnected struct {
	g *Grid
}

// EightConnected returns a topology that yields the four axis neighbours of
// g (same order) followed by the walkable diagonals: up-left, up-right,
// down-left, down-right.
func EightConnected(g *Grid) Topology {
	return eightConnected{g: g}
}

func (e eightConnected) Neighbors(pos Position) []Position {
	out := e.g.Neighbors(pos)
	diagonals := [4]Position{
		{Row: pos.Row - 1, Col: pos.Col - 1},
		{Row: pos.Row - 1, Col: pos.Col + 1},
		{Row: pos.Row + 1, Col: pos.Col - 1},
		{Row: pos.Row + 1, Col: pos.Col + 1},
	}
	for _, d := range diagonals {
		if e.g.IsWalkable(d) {
			out = append(out, d)
		}
	}
	return out
}
