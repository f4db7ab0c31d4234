package logging

import (
	"time"

	"github.com/felixgeelhaar/bolt/v3"

	"github.com/AaronLay10/gridrunner/internal/coordinator"
	"github.com/AaronLay10/gridrunner/internal/grid"
)

// Field applies structured data to a log event.
type Field func(*bolt.Event) *bolt.Event

func RunID(id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("run_id", id)
	}
}

func State(s coordinator.State) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("state", string(s))
	}
}

// Transition adds from_state and to_state.
func Transition(from, to coordinator.State) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("from_state", string(from)).Str("to_state", string(to))
	}
}

func Action(a coordinator.Action) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("action", string(a))
	}
}

// Position adds row and col.
func Position(p grid.Position) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int("row", p.Row).Int("col", p.Col)
	}
}

func Steps(n int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int("steps", n)
	}
}

func Cost(c float64) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Float64("cost", c)
	}
}

func Duration(d time.Duration) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int64("duration_ms", d.Milliseconds())
	}
}

// ErrorField adds an error field; a nil error adds nothing.
func ErrorField(err error) Field {
	return func(e *bolt.Event) *bolt.Event {
		if err == nil {
			return e
		}
		return e.Err(err)
	}
}

func Component(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("component", name)
	}
}

func Str(key, value string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str(key, value)
	}
}
