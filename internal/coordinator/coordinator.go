// Package coordinator tracks the traversal state of a run.
//
// Two engines share one transition table:
//
//   - Coordinator: reducers keyed by action, plus direct SetState.
//   - Chart: the same table as a statekit machine.
//
// Both satisfy Driver. Neither is safe for concurrent use; callers that
// dispatch from several goroutines must serialise access.
package coordinator

import "fmt"

// UnknownActionError is returned when an action has no reducer.
type UnknownActionError struct {
	Action Action
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("reducer for action %q is not defined", string(e.Action))
}

// Observer is notified after every state change.
type Observer func(prev, next State)

// Driver is the surface the runner drives a run through.
type Driver interface {
	Dispatch(action Action) error
	State() State
	IsState(s State) bool
}

// Coordinator is the reducer-driven state machine.
type Coordinator struct {
	state     State
	reducers  map[Action]Reducer
	observers []Observer
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithObserver registers an observer at construction.
func WithObserver(o Observer) Option {
	return func(c *Coordinator) { c.observers = append(c.observers, o) }
}

// WithInitialState starts the coordinator somewhere other than Idle.
func WithInitialState(s State) Option {
	return func(c *Coordinator) { c.state = s }
}

// WithReducer registers or replaces the reducer for action.
func WithReducer(action Action, r Reducer) Option {
	return func(c *Coordinator) { c.reducers[action] = r }
}

// WithoutCanonicalReducers starts with an empty reducer registry.
func WithoutCanonicalReducers() Option {
	return func(c *Coordinator) { c.reducers = make(map[Action]Reducer) }
}

// New returns a coordinator in Idle with the canonical reducers registered.
func New(opts ...Option) *Coordinator {
	c := &Coordinator{
		state:    StateIdle,
		reducers: CanonicalReducers(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current state.
func (c *Coordinator) State() State {
	return c.state
}

// IsState reports whether the current state is s.
func (c *Coordinator) IsState(s State) bool {
	return c.state == s
}

// SetState overwrites the current state and notifies observers, even when
// s equals the current state.
func (c *Coordinator) SetState(s State) {
	prev := c.state
	c.state = s
	c.notify(prev, s)
}

// Register stores reducer under action, replacing any previous one.
func (c *Coordinator) Register(action Action, reducer Reducer) {
	c.reducers[action] = reducer
}

// Dispatch runs the reducer for action against the current state and adopts
// the result when it differs.
func (c *Coordinator) Dispatch(action Action) error {
	reducer, ok := c.reducers[action]
	if !ok {
		return &UnknownActionError{Action: action}
	}
	next := reducer(c.state)
	if next == c.state {
		return nil
	}
	prev := c.state
	c.state = next
	c.notify(prev, next)
	return nil
}

// AddObserver registers an observer after construction.
func (c *Coordinator) AddObserver(o Observer) {
	c.observers = append(c.observers, o)
}

func (c *Coordinator) notify(prev, next State) {
	for _, o := range c.observers {
		o(prev, next)
	}
}
