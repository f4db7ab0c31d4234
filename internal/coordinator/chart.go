package coordinator

import (
	"github.com/felixgeelhaar/statekit"
)

// chartContext is the extended state carried by the statechart.
type chartContext struct {
	Transitions int
	LastAction  Action
}

// recordTransition counts transitions taken by the chart.
func recordTransition(ctx **chartContext, event statekit.Event) {
	if ctx == nil || *ctx == nil {
		return
	}
	(*ctx).Transitions++
	(*ctx).LastAction = Action(event.Type)
}

// NewTraversalMachine builds the traversal statechart from the canonical
// transition table.
func NewTraversalMachine() (*statekit.MachineConfig[*chartContext], error) {
	return statekit.NewMachine[*chartContext]("traversal").
		WithInitial(statekit.StateID(StateIdle)).
		WithContext(&chartContext{}).
		WithAction("record", recordTransition).
		State(statekit.StateID(StateIdle)).
			On(statekit.EventType(ActionStartSearch)).Target(statekit.StateID(StatePathFinding)).Do("record").
			Done().
		State(statekit.StateID(StatePathFinding)).
			On(statekit.EventType(ActionMoveStep)).Target(statekit.StateID(StateMoving)).Do("record").
			Done().
		State(statekit.StateID(StateMoving)).
			On(statekit.EventType(ActionGoalCaptured)).Target(statekit.StateID(StateCapture)).Do("record").
			On(statekit.EventType(ActionFinish)).Target(statekit.StateID(StateFinish)).Do("record").
			Done().
		State(statekit.StateID(StateCapture)).
			On(statekit.EventType(ActionMoveStep)).Target(statekit.StateID(StateMoving)).Do("record").
			On(statekit.EventType(ActionFinish)).Target(statekit.StateID(StateFinish)).Do("record").
			Done().
		State(statekit.StateID(StateFinish)).
			Final().
			Done().
		Build()
}

// Chart drives a run through the statekit interpreter.
type Chart struct {
	interp    *statekit.Interpreter[*chartContext]
	ctx       *chartContext
	observers []Observer
}

// NewChart builds and starts a chart in Idle.
func NewChart(observers ...Observer) (*Chart, error) {
	machine, err := NewTraversalMachine()
	if err != nil {
		return nil, err
	}
	ctx := &chartContext{}
	interp := statekit.NewInterpreter(machine)
	interp.UpdateContext(func(c **chartContext) {
		*c = ctx
	})
	interp.Start()
	return &Chart{interp: interp, ctx: ctx, observers: observers}, nil
}

// State returns the current state.
func (c *Chart) State() State {
	return State(c.interp.State().Value)
}

// IsState reports whether the chart is in s.
func (c *Chart) IsState(s State) bool {
	return c.interp.Matches(statekit.StateID(s))
}

// Dispatch sends action to the chart. Actions outside the canonical set
// return *UnknownActionError; a guard miss is a no-op.
func (c *Chart) Dispatch(action Action) error {
	t, ok := canonicalTable[action]
	if !ok {
		return &UnknownActionError{Action: action}
	}
	prev := c.State()
	if !t.allows(prev) {
		return nil
	}
	c.interp.Send(statekit.Event{Type: statekit.EventType(action)})
	next := c.State()
	if next != prev {
		for _, o := range c.observers {
			o(prev, next)
		}
	}
	return nil
}

// Transitions returns how many transitions the chart has taken.
func (c *Chart) Transitions() int {
	return c.ctx.Transitions
}

// Done reports whether the chart reached its final state.
func (c *Chart) Done() bool {
	return c.interp.Done()
}

// Stop halts the interpreter.
func (c *Chart) Stop() {
	c.interp.Stop()
}
