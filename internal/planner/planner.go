// Package planner stitches point-to-point searches into one route through
// an ordered list of waypoints.
package planner

import (
	"context"
	"errors"
	"fmt"

	"github.com/AaronLay10/gridrunner/internal/grid"
	"github.com/AaronLay10/gridrunner/internal/pathfind"
)

// ErrInvalidWaypoints is returned when fewer than two waypoints are given.
var ErrInvalidWaypoints = errors.New("at least 2 waypoints required")

// LegFailure identifies the first leg whose search failed.
type LegFailure struct {
	Index int
	From  grid.Position
	To    grid.Position
	Err   error
}

func (e *LegFailure) Error() string {
	return fmt.Sprintf("leg %d %s -> %s: %v", e.Index, e.From, e.To, e.Err)
}

func (e *LegFailure) Unwrap() error {
	return e.Err
}

// Route is a continuous path through every waypoint in order.
type Route struct {
	// Steps holds each cell once; shared waypoints between legs are not repeated.
	Steps []grid.Position `json:"steps"`
	// Waypoints is the input list.
	Waypoints []grid.Position `json:"waypoints"`
	// WaypointSteps[i] is the index into Steps where Waypoints[i] is reached.
	WaypointSteps []int `json:"waypoint_steps"`
	// Cost sums the leg costs.
	Cost float64 `json:"cost"`
}

// Len returns the number of cells in the route.
func (r *Route) Len() int {
	return len(r.Steps)
}

// Plan searches every consecutive waypoint pair and concatenates the legs.
// It stops at the first failing leg and returns a *LegFailure.
func Plan(topo grid.Topology, waypoints []grid.Position) (*Route, error) {
	return PlanContext(context.Background(), topo, waypoints)
}

// PlanContext is Plan with cancellation passed through to each search.
func PlanContext(ctx context.Context, topo grid.Topology, waypoints []grid.Position) (*Route, error) {
	if len(waypoints) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidWaypoints, len(waypoints))
	}

	route := &Route{
		Waypoints:     append([]grid.Position(nil), waypoints...),
		WaypointSteps: make([]int, 0, len(waypoints)),
	}

	for i := 0; i < len(waypoints)-1; i++ {
		from, to := waypoints[i], waypoints[i+1]
		res, err := pathfind.SearchContext(ctx, topo, from, to)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, &LegFailure{Index: i, From: from, To: to, Err: err}
		}

		leg := res.Path
		if i == 0 {
			route.WaypointSteps = append(route.WaypointSteps, 0)
		} else {
			leg = leg[1:]
		}
		route.Steps = append(route.Steps, leg...)
		route.WaypointSteps = append(route.WaypointSteps, len(route.Steps)-1)
		route.Cost += res.Cost
	}

	return route, nil
}
