// Package pathfind implements A* search over a grid topology.
//
// Moves cost 1, or 1.41 when both coordinates change. The heuristic is the
// Manhattan distance. With the default 4-connected grid the diagonal cost
// never applies; it is kept so 8-connected topologies price diagonals.
package pathfind

import (
	"container/heap"
	"context"
	"errors"
	"fmt"

	"github.com/AaronLay10/gridrunner/internal/grid"
)

// DiagonalCost is the price of a move that changes row and column.
const DiagonalCost = 1.41

// ErrNoPath is matched by every NoPathError.
var ErrNoPath = errors.New("no path found")

// NoPathError reports that the frontier emptied before reaching the goal.
type NoPathError struct {
	From grid.Position
	To   grid.Position
}

func (e *NoPathError) Error() string {
	return fmt.Sprintf("no path from %s to %s", e.From, e.To)
}

func (e *NoPathError) Is(target error) bool {
	return target == ErrNoPath
}

// Result is a successful search.
type Result struct {
	// Path runs from start to goal inclusive.
	Path []grid.Position
	// Cost is the accumulated step cost of Path.
	Cost float64
	// Expanded counts frontier pops, stale entries included.
	Expanded int
}

// Manhattan returns |a.Row-b.Row| + |a.Col-b.Col|.
func Manhattan(a, b grid.Position) int {
	return abs(a.Row-b.Row) + abs(a.Col-b.Col)
}

// StepCost prices a single move from one cell to the next.
func StepCost(from, to grid.Position) float64 {
	if to.Row != from.Row && to.Col != from.Col {
		return DiagonalCost
	}
	return 1
}

// Search finds a shortest path from start to goal. It returns a *NoPathError
// when goal is unreachable. start == goal yields the single-cell path.
func Search(topo grid.Topology, start, goal grid.Position) (Result, error) {
	return SearchContext(context.Background(), topo, start, goal)
}

// SearchContext is Search with cancellation checked once per frontier pop.
func SearchContext(ctx context.Context, topo grid.Topology, start, goal grid.Position) (Result, error) {
	open := make(frontier, 0, 16)
	heap.Init(&open)

	var seq uint64
	heap.Push(&open, frontierItem{pos: start, priority: 0, seq: seq})

	cameFrom := map[grid.Position]grid.Position{}
	costSoFar := map[grid.Position]float64{start: 0}

	expanded := 0
	for open.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return Result{Expanded: expanded}, err
		}

		current := heap.Pop(&open).(frontierItem).pos
		expanded++

		if current == goal {
			return Result{
				Path:     reconstructPath(cameFrom, start, goal),
				Cost:     costSoFar[goal],
				Expanded: expanded,
			}, nil
		}

		for _, next := range topo.Neighbors(current) {
			newCost := costSoFar[current] + StepCost(current, next)
			if old, seen := costSoFar[next]; !seen || newCost < old {
				costSoFar[next] = newCost
				cameFrom[next] = current
				seq++
				heap.Push(&open, frontierItem{
					pos:      next,
					priority: newCost + float64(Manhattan(goal, next)),
					seq:      seq,
				})
			}
		}
	}

	return Result{Expanded: expanded}, &NoPathError{From: start, To: goal}
}

func reconstructPath(cameFrom map[grid.Position]grid.Position, start, goal grid.Position) []grid.Position {
	path := []grid.Position{goal}
	for current := goal; current != start; {
		current = cameFrom[current]
		path = append(path, current)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
