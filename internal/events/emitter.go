// Package events records domain events for a run. Emitted events are
// validated against the registry, kept in a ring buffer, fanned out to
// subscribers and, when a Store is set, persisted.
package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// BufferSize is the number of events kept in memory.
const BufferSize = 256

var buffer = NewRingBuffer(BufferSize)

var totalCount atomic.Int64

// Store persists events. *postgres.Client satisfies it.
type Store interface {
	Append(ts time.Time, level, event, msg string, fields map[string]interface{}, runID string) error
}

var (
	store         Store
	storeMu       sync.RWMutex
	storeErrorSet bool
)

// SetStore sets the persistence backend; nil disables persistence.
func SetStore(s Store) {
	storeMu.Lock()
	store = s
	storeErrorSet = false
	storeMu.Unlock()
}

// GetStore returns the current persistence backend.
func GetStore() Store {
	storeMu.RLock()
	defer storeMu.RUnlock()
	return store
}

type Event struct {
	Timestamp string                 `json:"ts"`
	Level     string                 `json:"level"`
	Name      string                 `json:"event"`
	Message   string                 `json:"msg,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// RunID returns the run_id field, if present.
func (e Event) RunID() string {
	if id, ok := e.Fields["run_id"].(string); ok {
		return id
	}
	return ""
}

// Emit records an event and returns its JSON encoding.
func Emit(level, name, msg string, fields map[string]interface{}) ([]byte, error) {
	if err := Validate(name); err != nil {
		return nil, err
	}

	ts := time.Now().UTC()
	e := Event{
		Timestamp: ts.Format(time.RFC3339Nano),
		Level:     level,
		Name:      name,
		Message:   msg,
		Fields:    fields,
	}

	record(e)
	persist(ts, e)

	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return b, nil
}

func record(e Event) {
	buffer.Add(e)
	totalCount.Add(1)
	broadcast(e)
}

// persist writes e to the store. The first failure is reported once as a
// system.error that bypasses the store so a dead database cannot recurse.
func persist(ts time.Time, e Event) {
	storeMu.RLock()
	s := store
	reported := storeErrorSet
	storeMu.RUnlock()

	if s == nil {
		return
	}
	err := s.Append(ts, e.Level, e.Name, e.Message, e.Fields, e.RunID())
	if err == nil || reported {
		return
	}

	storeMu.Lock()
	if storeErrorSet {
		storeMu.Unlock()
		return
	}
	storeErrorSet = true
	storeMu.Unlock()

	record(Event{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     "error",
		Name:      SystemError,
		Message:   "event store append failed",
		Fields:    map[string]interface{}{"error": err.Error()},
	})
}

func Snapshot() []Event {
	return buffer.Snapshot()
}

// TotalCount returns how many events have been emitted since start or the
// last Clear.
func TotalCount() int64 {
	return totalCount.Load()
}

// Clear resets the buffer and counter.
func Clear() {
	buffer.Clear()
	totalCount.Store(0)
}
