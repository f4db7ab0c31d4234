package runner

import (
	"context"
	"errors"
	"time"

	"github.com/AaronLay10/gridrunner/internal/coordinator"
	"github.com/AaronLay10/gridrunner/internal/events"
	"github.com/AaronLay10/gridrunner/internal/planner"
	"github.com/AaronLay10/gridrunner/internal/storage/postgres"
)

// ErrRestoreUnsupported is returned when restoring into the chart engine,
// which cannot be placed into an arbitrary state.
var ErrRestoreUnsupported = errors.New("restore requires the reducer engine")

// EventSource loads one run's persisted events in order.
// *postgres.Client satisfies it.
type EventSource interface {
	QueryRun(ctx context.Context, runID string) ([]postgres.EventRow, error)
}

// RestoredRun is the progress reconstructed from a run's event log.
type RestoredRun struct {
	RunID     string
	State     coordinator.State
	StepIndex int
	Captured  int
	Planned   bool
	Finished  bool
}

type record struct {
	name   string
	fields map[string]interface{}
}

// RestoreFromEvents rebuilds a run's progress from the persisted log.
// It returns nil when the source is nil or holds no events for runID.
func RestoreFromEvents(ctx context.Context, src EventSource, runID string) (*RestoredRun, int, error) {
	if src == nil {
		return nil, 0, nil
	}
	rows, err := src.QueryRun(ctx, runID)
	if err != nil {
		return nil, 0, err
	}
	recs := make([]record, len(rows))
	for i, row := range rows {
		recs[i] = record{name: row.Event, fields: row.Fields}
	}
	return replay(runID, recs), len(rows), nil
}

func replay(runID string, recs []record) *RestoredRun {
	if len(recs) == 0 {
		return nil
	}
	rr := &RestoredRun{RunID: runID, State: coordinator.StateIdle, StepIndex: -1}
	for _, rec := range recs {
		switch rec.name {
		case events.RunStarted:
			rr.State = coordinator.StateIdle
			rr.StepIndex = -1
			rr.Captured = 0
			rr.Planned = false
			rr.Finished = false
		case events.RoutePlanned:
			rr.Planned = true
		case events.StateChanged:
			if to, ok := rec.fields["to"].(string); ok {
				if s, err := coordinator.ParseState(to); err == nil {
					rr.State = s
				}
			}
		case events.RobotStep:
			if idx, ok := intField(rec.fields, "index"); ok {
				rr.StepIndex = idx
			}
		case events.WaypointCaptured:
			if wp, ok := intField(rec.fields, "waypoint"); ok {
				rr.Captured = wp
			}
		case events.RunFinished:
			rr.Finished = true
		}
	}
	return rr
}

// intField reads a numeric field. Values decoded from JSON arrive as float64.
func intField(fields map[string]interface{}, key string) (int, bool) {
	switch v := fields[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

// ApplyRestored replans the route and places the run where the log left
// it. No events are re-emitted for the replayed progress; a single
// run.restored is emitted instead.
func (r *Runner) ApplyRestored(ctx context.Context, rr *RestoredRun) error {
	if rr == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.coord == nil {
		return ErrRestoreUnsupported
	}

	r.runID = rr.RunID
	r.started = true
	r.startedAt = time.Now()
	if rr.Planned {
		route, err := planner.PlanContext(ctx, r.topo, r.waypoints)
		if err != nil {
			return err
		}
		r.adoptRoute(route)
		if rr.StepIndex >= 0 && rr.StepIndex < route.Len() {
			r.cursor.Seek(rr.StepIndex + 1)
			r.position = route.Steps[rr.StepIndex]
			r.stepIndex = rr.StepIndex
		}
		r.captured = rr.Captured
	}

	r.restoring = true
	r.coord.SetState(rr.State)
	r.restoring = false

	r.emit("info", events.RunRestored, "", map[string]interface{}{
		"state":      string(rr.State),
		"step_index": r.stepIndex,
		"captured":   r.captured,
	})
	return nil
}
