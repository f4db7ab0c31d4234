package coordinator

// Reducer maps the current state to the next one for a single action.
// Returning the input state leaves the coordinator unchanged.
type Reducer func(current State) State

// transition is one row of the canonical table: action fires from any of
// the listed states and lands on target.
type transition struct {
	from   []State
	target State
}

var canonicalTable = map[Action]transition{
	ActionStartSearch:  {from: []State{StateIdle}, target: StatePathFinding},
	ActionMoveStep:     {from: []State{StatePathFinding, StateCapture}, target: StateMoving},
	ActionGoalCaptured: {from: []State{StateMoving}, target: StateCapture},
	ActionFinish:       {from: []State{StateMoving, StateCapture}, target: StateFinish},
}

func (t transition) allows(s State) bool {
	for _, f := range t.from {
		if f == s {
			return true
		}
	}
	return false
}

func guarded(t transition) Reducer {
	return func(current State) State {
		if t.allows(current) {
			return t.target
		}
		return current
	}
}

// CanonicalReducers returns a fresh reducer set for the four traversal
// actions. A dispatch whose guard fails leaves the state unchanged.
func CanonicalReducers() map[Action]Reducer {
	out := make(map[Action]Reducer, len(canonicalTable))
	for _, a := range Actions {
		out[a] = guarded(canonicalTable[a])
	}
	return out
}

// Next applies the canonical table directly.
func Next(current State, action Action) (State, error) {
	t, ok := canonicalTable[action]
	if !ok {
		return current, &UnknownActionError{Action: action}
	}
	return guarded(t)(current), nil
}
