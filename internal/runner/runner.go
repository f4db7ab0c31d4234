// Package runner drives one traversal: it plans the route, walks it a step
// at a time, dispatches coordinator actions, and reports progress through
// events and telemetry.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AaronLay10/gridrunner/internal/coordinator"
	"github.com/AaronLay10/gridrunner/internal/events"
	"github.com/AaronLay10/gridrunner/internal/grid"
	"github.com/AaronLay10/gridrunner/internal/logging"
	"github.com/AaronLay10/gridrunner/internal/planner"
)

var (
	ErrRunNotStarted = errors.New("run not started")
	ErrRunFinished   = errors.New("run finished")
	ErrRunStarted    = errors.New("run already started")
)

const (
	EngineReducer = "reducer"
	EngineChart   = "chart"
)

// Publisher receives run telemetry. *mqtt.Publisher satisfies it.
type Publisher interface {
	PublishStep(runID string, s planner.Step) error
	PublishState(runID string, from, to coordinator.State) error
	PublishRoute(runID string, r *planner.Route) error
}

// Runner owns one run. All methods are safe for concurrent use.
type Runner struct {
	mu sync.Mutex

	grid      *grid.Grid
	topo      grid.Topology
	waypoints []grid.Position
	runID     string
	engine    string
	publisher Publisher

	driver coordinator.Driver
	coord  *coordinator.Coordinator
	chart  *coordinator.Chart

	route     *planner.Route
	cursor    *planner.Cursor
	position  grid.Position
	stepIndex int
	captured  int
	started   bool
	restoring bool
	startedAt time.Time
}

type Option func(*Runner)

// WithEngine selects the coordinator engine: "reducer" (default) or "chart".
func WithEngine(name string) Option {
	return func(r *Runner) { r.engine = name }
}

func WithPublisher(p Publisher) Option {
	return func(r *Runner) { r.publisher = p }
}

func WithRunID(id string) Option {
	return func(r *Runner) { r.runID = id }
}

// WithTopology overrides the neighbourhood used for planning. The grid
// itself (4-connected) is the default.
func WithTopology(t grid.Topology) Option {
	return func(r *Runner) { r.topo = t }
}

// New prepares a run over g visiting waypoints in order. Nothing is planned
// until Start.
func New(g *grid.Grid, waypoints []grid.Position, opts ...Option) (*Runner, error) {
	r := &Runner{
		grid:      g,
		topo:      g,
		waypoints: append([]grid.Position(nil), waypoints...),
		engine:    EngineReducer,
		stepIndex: -1,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.runID == "" {
		r.runID = uuid.New().String()
	}
	if len(r.waypoints) > 0 {
		r.position = r.waypoints[0]
	}

	switch r.engine {
	case EngineReducer:
		r.coord = coordinator.New(coordinator.WithObserver(r.onStateChange))
		r.driver = r.coord
	case EngineChart:
		chart, err := coordinator.NewChart(r.onStateChange)
		if err != nil {
			return nil, fmt.Errorf("build statechart: %w", err)
		}
		r.chart = chart
		r.driver = chart
	default:
		return nil, fmt.Errorf("unknown engine %q", r.engine)
	}
	return r, nil
}

func (r *Runner) RunID() string { return r.runID }

// Start dispatches START_SEARCH and plans the route. When planning fails
// the run stays in PathFinding and Start may be called again.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.route != nil {
		return ErrRunStarted
	}
	if !r.started {
		r.started = true
		r.startedAt = time.Now()
		r.emit("info", events.RunStarted, "", map[string]interface{}{
			"rows":      r.grid.Rows(),
			"cols":      r.grid.Cols(),
			"obstacles": r.grid.ObstacleCount(),
			"waypoints": len(r.waypoints),
			"engine":    r.engine,
		})
	}

	if err := r.driver.Dispatch(coordinator.ActionStartSearch); err != nil {
		return err
	}

	route, err := planner.PlanContext(ctx, r.topo, r.waypoints)
	if err != nil {
		fields := map[string]interface{}{"error": err.Error()}
		var leg *planner.LegFailure
		if errors.As(err, &leg) {
			fields["leg"] = leg.Index
			fields["from"] = leg.From.String()
			fields["to"] = leg.To.String()
		}
		r.emit("warn", events.RouteFailed, "no route", fields)
		logging.Warn().Add(logging.RunID(r.runID)).Add(logging.ErrorField(err)).Msg("route planning failed")
		return err
	}

	r.adoptRoute(route)
	r.emit("info", events.RoutePlanned, "", map[string]interface{}{
		"steps":     route.Len(),
		"cost":      route.Cost,
		"waypoints": len(route.Waypoints),
	})
	logging.Info().Add(logging.RunID(r.runID)).Add(logging.Steps(route.Len())).Add(logging.Cost(route.Cost)).Msg("route planned")
	if r.publisher != nil {
		if err := r.publisher.PublishRoute(r.runID, route); err != nil {
			r.publishFailed("route", err)
		}
	}
	return nil
}

func (r *Runner) adoptRoute(route *planner.Route) {
	r.route = route
	r.cursor = route.Cursor()
	r.stepIndex = -1
	r.captured = 0
	if route.Len() > 0 {
		r.position = route.Steps[0]
	}
}

// Step advances the robot one cell. The first call lands on the start
// cell. MOVE_STEP is dispatched for every step, GOAL_CAPTURED on each
// waypoint after the start, and FINISH on the last cell.
func (r *Runner) Step() (planner.Step, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.route == nil {
		return planner.Step{}, ErrRunNotStarted
	}
	if r.driver.IsState(coordinator.StateFinish) {
		return planner.Step{}, ErrRunFinished
	}
	step, ok := r.cursor.Next()
	if !ok {
		return planner.Step{}, ErrRunFinished
	}

	r.position = step.Position
	r.stepIndex = step.Index

	if err := r.driver.Dispatch(coordinator.ActionMoveStep); err != nil {
		return step, err
	}
	r.emit("info", events.RobotStep, "", map[string]interface{}{
		"index": step.Index,
		"row":   step.Position.Row,
		"col":   step.Position.Col,
	})
	if r.publisher != nil {
		if err := r.publisher.PublishStep(r.runID, step); err != nil {
			r.publishFailed("step", err)
		}
	}

	if step.Waypoint && step.WaypointIndex > 0 {
		r.captured = step.WaypointIndex
		if err := r.driver.Dispatch(coordinator.ActionGoalCaptured); err != nil {
			return step, err
		}
		r.emit("info", events.WaypointCaptured, "", map[string]interface{}{
			"waypoint": step.WaypointIndex,
			"index":    step.Index,
			"row":      step.Position.Row,
			"col":      step.Position.Col,
		})
	}

	if step.Last {
		if err := r.driver.Dispatch(coordinator.ActionFinish); err != nil {
			return step, err
		}
		r.emit("info", events.RunFinished, "", map[string]interface{}{
			"steps":       r.route.Len(),
			"cost":        r.route.Cost,
			"duration_ms": time.Since(r.startedAt).Milliseconds(),
		})
		logging.Info().Add(logging.RunID(r.runID)).Add(logging.Steps(r.route.Len())).Add(logging.Duration(time.Since(r.startedAt))).Msg("run finished")
	}
	return step, nil
}

// Dispatch applies an operator action to the coordinator.
func (r *Runner) Dispatch(action coordinator.Action) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.driver.State()
	if err := r.driver.Dispatch(action); err != nil {
		return err
	}
	r.emit("info", events.OperatorDispatch, "", map[string]interface{}{
		"action":  string(action),
		"from":    string(prev),
		"to":      string(r.driver.State()),
		"changed": prev != r.driver.State(),
	})
	return nil
}

// Run steps the robot on every tick until the route is finished or ctx is
// done. Pacing belongs to the caller.
func (r *Runner) Run(ctx context.Context, ticks <-chan time.Time) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-ticks:
			if !ok {
				return nil
			}
			if _, err := r.Step(); err != nil {
				if errors.Is(err, ErrRunFinished) {
					return nil
				}
				return err
			}
			if r.Finished() {
				return nil
			}
		}
	}
}

// Finished reports whether the coordinator reached Finish.
func (r *Runner) Finished() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.driver.IsState(coordinator.StateFinish)
}

// Route returns the planned route, or nil before a successful Start.
func (r *Runner) Route() *planner.Route {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.route
}

// Snapshot is a point-in-time view of a run.
type Snapshot struct {
	RunID      string          `json:"run_id"`
	Engine     string          `json:"engine"`
	State      string          `json:"state"`
	Label      string          `json:"label"`
	Position   grid.Position   `json:"position"`
	StepIndex  int             `json:"step_index"`
	TotalSteps int             `json:"total_steps"`
	Captured   int             `json:"captured"`
	Waypoints  []grid.Position `json:"waypoints"`
	Cost       float64         `json:"cost"`
	Finished   bool            `json:"finished"`
}

func (r *Runner) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.driver.State()
	snap := Snapshot{
		RunID:     r.runID,
		Engine:    r.engine,
		State:     string(s),
		Label:     s.Label(),
		Position:  r.position,
		StepIndex: r.stepIndex,
		Captured:  r.captured,
		Waypoints: append([]grid.Position(nil), r.waypoints...),
		Finished:  s == coordinator.StateFinish,
	}
	if r.route != nil {
		snap.TotalSteps = r.route.Len()
		snap.Cost = r.route.Cost
	}
	return snap
}

// Close releases engine resources.
func (r *Runner) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.chart != nil {
		r.chart.Stop()
	}
}

// onStateChange runs inside Dispatch, so r.mu is already held.
func (r *Runner) onStateChange(prev, next coordinator.State) {
	if r.restoring {
		return
	}
	r.emit("info", events.StateChanged, "", map[string]interface{}{
		"from":  string(prev),
		"to":    string(next),
		"label": next.Label(),
	})
	logging.Debug().Add(logging.RunID(r.runID)).Add(logging.Transition(prev, next)).Msg("state changed")
	if r.publisher != nil {
		if err := r.publisher.PublishState(r.runID, prev, next); err != nil {
			r.publishFailed("state", err)
		}
	}
}

func (r *Runner) emit(level, name, msg string, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["run_id"] = r.runID
	if _, err := events.Emit(level, name, msg, fields); err != nil {
		logging.Error().Add(logging.RunID(r.runID)).Add(logging.Str("event", name)).Add(logging.ErrorField(err)).Msg("emit failed")
	}
}

func (r *Runner) publishFailed(kind string, err error) {
	logging.Debug().Add(logging.RunID(r.runID)).Add(logging.Component("mqtt")).Add(logging.Str("kind", kind)).Add(logging.ErrorField(err)).Msg("publish failed")
}
