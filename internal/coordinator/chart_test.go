package coordinator

import (
	"errors"
	"testing"
)

func TestNewTraversalMachine(t *testing.T) {
	machine, err := NewTraversalMachine()
	if err != nil {
		t.Fatalf("NewTraversalMachine() error = %v", err)
	}
	if machine == nil {
		t.Fatal("NewTraversalMachine() returned nil machine")
	}
}

func TestChartCanonicalSequence(t *testing.T) {
	var changes int
	c, err := NewChart(func(prev, next State) { changes++ })
	if err != nil {
		t.Fatalf("NewChart() error = %v", err)
	}
	defer c.Stop()

	if c.State() != StateIdle {
		t.Fatalf("expected idle, got %s", c.State())
	}

	for _, a := range []Action{ActionStartSearch, ActionMoveStep, ActionGoalCaptured, ActionMoveStep, ActionFinish} {
		if err := c.Dispatch(a); err != nil {
			t.Fatalf("dispatch %s: %v", a, err)
		}
	}
	if !c.IsState(StateFinish) {
		t.Errorf("expected finish, got %s", c.State())
	}
	if changes != 5 {
		t.Errorf("expected 5 state changes, got %d", changes)
	}
	if c.Transitions() != 5 {
		t.Errorf("expected 5 recorded transitions, got %d", c.Transitions())
	}
}

func TestChartGuardMissIsNoop(t *testing.T) {
	c, err := NewChart()
	if err != nil {
		t.Fatalf("NewChart() error = %v", err)
	}
	defer c.Stop()

	if err := c.Dispatch(ActionFinish); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.State() != StateIdle {
		t.Errorf("expected idle, got %s", c.State())
	}
}

func TestChartUnknownAction(t *testing.T) {
	c, err := NewChart()
	if err != nil {
		t.Fatalf("NewChart() error = %v", err)
	}
	defer c.Stop()

	var uae *UnknownActionError
	if err := c.Dispatch(Action("HOVER")); !errors.As(err, &uae) {
		t.Errorf("expected *UnknownActionError, got %v", err)
	}
}

func TestEnginesAgree(t *testing.T) {
	seq := []Action{
		ActionFinish, ActionStartSearch, ActionGoalCaptured, ActionMoveStep,
		ActionMoveStep, ActionGoalCaptured, ActionGoalCaptured, ActionMoveStep, ActionFinish, ActionMoveStep,
	}

	r := New()
	c, err := NewChart()
	if err != nil {
		t.Fatalf("NewChart() error = %v", err)
	}
	defer c.Stop()

	var drivers = []Driver{r, c}
	for i, a := range seq {
		for _, d := range drivers {
			if err := d.Dispatch(a); err != nil {
				t.Fatalf("step %d %s: %v", i, a, err)
			}
		}
		if r.State() != c.State() {
			t.Fatalf("step %d %s: reducer=%s chart=%s", i, a, r.State(), c.State())
		}
	}
}
