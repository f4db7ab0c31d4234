package mqtt

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/AaronLay10/gridrunner/internal/coordinator"
	"github.com/AaronLay10/gridrunner/internal/events"
)

var ErrNotConnected = errors.New("mqtt not connected")

// DispatchFunc applies an operator action to the active run.
type DispatchFunc func(action coordinator.Action) error

// commandPayload is the JSON form of a command. A bare action name such as
// MOVE_STEP is accepted as well.
type commandPayload struct {
	Action string `json:"action"`
	Source string `json:"source,omitempty"`
}

// CommandSubscriber listens on <prefix>/command and forwards actions to the
// runner. Subscribing is idempotent across reconnects.
type CommandSubscriber struct {
	mu         sync.Mutex
	conn       Conn
	prefix     string
	dispatch   DispatchFunc
	subscribed bool
}

func NewCommandSubscriber(conn Conn, prefix string, dispatch DispatchFunc) *CommandSubscriber {
	return &CommandSubscriber{
		conn:     conn,
		prefix:   strings.TrimSuffix(prefix, "/"),
		dispatch: dispatch,
	}
}

func (s *CommandSubscriber) Topic() string {
	return s.prefix + "/command"
}

// Subscribe subscribes to the command topic unless already subscribed.
func (s *CommandSubscriber) Subscribe() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subscribed {
		return nil
	}
	if err := s.conn.Subscribe(s.Topic(), s.handle); err != nil {
		return err
	}
	s.subscribed = true
	return nil
}

// Reset forgets the subscription so the next Subscribe re-registers it.
// Call on reconnect.
func (s *CommandSubscriber) Reset() {
	s.mu.Lock()
	s.subscribed = false
	s.mu.Unlock()
}

func (s *CommandSubscriber) IsSubscribed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribed
}

func (s *CommandSubscriber) handle(_ paho.Client, msg paho.Message) {
	cmd := parseCommand(msg.Payload())

	action, err := coordinator.ParseAction(cmd.Action)
	if err != nil {
		events.Emit("warn", events.CommandRejected, "unknown action", map[string]interface{}{
			"topic":  msg.Topic(),
			"action": cmd.Action,
		})
		return
	}

	events.Emit("info", events.CommandReceived, "", commandFields(msg.Topic(), action, cmd.Source))

	if err := s.dispatch(action); err != nil {
		// emitted field maps must not be mutated
		fields := commandFields(msg.Topic(), action, cmd.Source)
		fields["error"] = err.Error()
		events.Emit("warn", events.CommandRejected, "dispatch failed", fields)
	}
}

func commandFields(topic string, action coordinator.Action, source string) map[string]interface{} {
	fields := map[string]interface{}{
		"topic":  topic,
		"action": string(action),
	}
	if source != "" {
		fields["source"] = source
	}
	return fields
}

func parseCommand(payload []byte) commandPayload {
	var cmd commandPayload
	if err := json.Unmarshal(payload, &cmd); err == nil && cmd.Action != "" {
		return cmd
	}
	return commandPayload{Action: strings.TrimSpace(string(payload))}
}
