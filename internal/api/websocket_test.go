package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AaronLay10/gridrunner/internal/events"
)

// waitFor polls a condition until it returns true or timeout expires.
func waitFor(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("timeout waiting for: %s", msg)
}

func dialEvents(t *testing.T, query string) (*websocket.Conn, func()) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(wsEventsHandler))
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + query

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		server.Close()
		t.Fatalf("failed to connect: %v", err)
	}
	return conn, func() {
		conn.Close()
		server.Close()
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) events.Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read message: %v", err)
	}
	var e events.Event
	if err := json.Unmarshal(msg, &e); err != nil {
		t.Fatalf("failed to unmarshal event: %v", err)
	}
	return e
}

func TestWebSocketReceivesRecentEvents(t *testing.T) {
	events.Clear()
	for i := 0; i < 5; i++ {
		events.Emit("info", events.RobotStep, "", map[string]interface{}{"index": i})
	}

	conn, done := dialEvents(t, "")
	defer done()

	for i := 0; i < 5; i++ {
		e := readEvent(t, conn)
		if e.Name != events.RobotStep {
			t.Errorf("expected %q, got %q", events.RobotStep, e.Name)
		}
	}
}

func TestWebSocketReceivesNewEvents(t *testing.T) {
	events.Clear()
	conn, done := dialEvents(t, "")
	defer done()

	go func() {
		time.Sleep(50 * time.Millisecond)
		events.Emit("info", events.WaypointCaptured, "", map[string]interface{}{"waypoint": 1})
	}()

	e := readEvent(t, conn)
	if e.Name != events.WaypointCaptured {
		t.Errorf("expected %q, got %q", events.WaypointCaptured, e.Name)
	}
	if e.Fields["waypoint"] != float64(1) {
		t.Errorf("expected waypoint 1, got %v", e.Fields["waypoint"])
	}
}

func TestWebSocketRunFilter(t *testing.T) {
	events.Clear()
	events.Emit("info", events.RobotStep, "", map[string]interface{}{"run_id": "other"})
	events.Emit("info", events.RobotStep, "", map[string]interface{}{"run_id": "mine", "index": 0})

	conn, done := dialEvents(t, "?run_id=mine")
	defer done()

	e := readEvent(t, conn)
	if e.RunID() != "mine" {
		t.Fatalf("expected replay filtered to run mine, got %q", e.RunID())
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		events.Emit("info", events.RobotStep, "", map[string]interface{}{"run_id": "other"})
		events.Emit("info", events.RunFinished, "", map[string]interface{}{"run_id": "mine"})
	}()

	e = readEvent(t, conn)
	if e.Name != events.RunFinished || e.RunID() != "mine" {
		t.Errorf("expected run.finished for mine, got %s for %q", e.Name, e.RunID())
	}
}

func TestWebSocketDisconnectCleansUp(t *testing.T) {
	events.Clear()
	events.CloseAllSubscribers()

	conn, done := dialEvents(t, "")
	defer done()

	go func() {
		time.Sleep(20 * time.Millisecond)
		events.Emit("info", events.StateChanged, "", nil)
	}()
	if e := readEvent(t, conn); e.Name != events.StateChanged {
		t.Errorf("expected %q, got %q", events.StateChanged, e.Name)
	}

	conn.Close()
	for i := 0; i < 5; i++ {
		events.Emit("info", events.RobotStep, "", nil)
		time.Sleep(50 * time.Millisecond)
	}

	waitFor(t, 5*time.Second, func() bool {
		return events.SubscriberCount() == 0
	}, "subscriber count to return to 0 after close")
}

func TestWebSocketMultipleClients(t *testing.T) {
	events.Clear()
	conn1, done1 := dialEvents(t, "")
	defer done1()
	conn2, done2 := dialEvents(t, "")
	defer done2()

	go func() {
		time.Sleep(50 * time.Millisecond)
		events.Emit("info", events.RunStarted, "", nil)
	}()

	if e := readEvent(t, conn1); e.Name != events.RunStarted {
		t.Errorf("client1: expected %q, got %q", events.RunStarted, e.Name)
	}
	if e := readEvent(t, conn2); e.Name != events.RunStarted {
		t.Errorf("client2: expected %q, got %q", events.RunStarted, e.Name)
	}
}
