package coordinator

import "fmt"

// State is the traversal phase of a run.
type State string

const (
	StateIdle        State = "idle"
	StatePathFinding State = "path_finding"
	StateMoving      State = "moving"
	StateCapture     State = "capture"
	StateFinish      State = "finish"
)

// States lists every state in lifecycle order.
var States = []State{StateIdle, StatePathFinding, StateMoving, StateCapture, StateFinish}

// Label returns display text for status widgets.
func (s State) Label() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StatePathFinding:
		return "Path finding"
	case StateMoving:
		return "Moving"
	case StateCapture:
		return "Capture"
	case StateFinish:
		return "Finished"
	default:
		return string(s)
	}
}

// IsTerminal reports whether no action leaves s.
func (s State) IsTerminal() bool {
	return s == StateFinish
}

// ParseState validates a state name.
func ParseState(name string) (State, error) {
	for _, s := range States {
		if string(s) == name {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown state: %q", name)
}

// Action names a traversal event dispatched to the coordinator.
type Action string

const (
	ActionStartSearch  Action = "START_SEARCH"
	ActionMoveStep     Action = "MOVE_STEP"
	ActionGoalCaptured Action = "GOAL_CAPTURED"
	ActionFinish       Action = "FINISH"
)

// Actions lists the canonical actions.
var Actions = []Action{ActionStartSearch, ActionMoveStep, ActionGoalCaptured, ActionFinish}

// ParseAction maps a wire name to a canonical action. Unknown names are
// returned as an *UnknownActionError.
func ParseAction(name string) (Action, error) {
	for _, a := range Actions {
		if string(a) == name {
			return a, nil
		}
	}
	return "", &UnknownActionError{Action: Action(name)}
}
