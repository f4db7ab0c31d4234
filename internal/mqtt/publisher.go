package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/AaronLay10/gridrunner/internal/coordinator"
	"github.com/AaronLay10/gridrunner/internal/planner"
)

// StepMessage is published once per robot step.
type StepMessage struct {
	RunID         string `json:"run_id"`
	Index         int    `json:"index"`
	Row           int    `json:"row"`
	Col           int    `json:"col"`
	Waypoint      bool   `json:"waypoint"`
	WaypointIndex int    `json:"waypoint_index,omitempty"`
	Last          bool   `json:"last"`
	TS            string `json:"ts"`
}

// StateMessage is published, retained, on every state change.
type StateMessage struct {
	RunID string `json:"run_id"`
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label"`
	TS    string `json:"ts"`
}

// Publisher writes run telemetry under <prefix>/runs/<run_id>/.
type Publisher struct {
	conn   Conn
	prefix string
}

func NewPublisher(conn Conn, prefix string) *Publisher {
	return &Publisher{conn: conn, prefix: strings.TrimSuffix(prefix, "/")}
}

func (p *Publisher) topic(runID, leaf string) string {
	return fmt.Sprintf("%s/runs/%s/%s", p.prefix, runID, leaf)
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func (p *Publisher) PublishStep(runID string, s planner.Step) error {
	return p.publish(p.topic(runID, "step"), false, StepMessage{
		RunID:         runID,
		Index:         s.Index,
		Row:           s.Position.Row,
		Col:           s.Position.Col,
		Waypoint:      s.Waypoint,
		WaypointIndex: s.WaypointIndex,
		Last:          s.Last,
		TS:            now(),
	})
}

func (p *Publisher) PublishState(runID string, from, to coordinator.State) error {
	return p.publish(p.topic(runID, "state"), true, StateMessage{
		RunID: runID,
		From:  string(from),
		To:    string(to),
		Label: to.Label(),
		TS:    now(),
	})
}

// PublishRoute sends the planned route as retained GeoJSON.
func (p *Publisher) PublishRoute(runID string, r *planner.Route) error {
	if !p.conn.IsConnected() {
		return ErrNotConnected
	}
	b, err := r.GeoJSON()
	if err != nil {
		return err
	}
	return p.conn.Publish(p.topic(runID, "route"), true, b)
}

func (p *Publisher) publish(topic string, retained bool, v interface{}) error {
	if !p.conn.IsConnected() {
		return ErrNotConnected
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", topic, err)
	}
	return p.conn.Publish(topic, retained, b)
}
