package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AaronLay10/gridrunner/internal/planner"
	"github.com/AaronLay10/gridrunner/internal/runner"
	"github.com/AaronLay10/gridrunner/internal/version"
)

const cornerScenario = `
version: 1
scenario:
  id: corner
grid:
  rows: 3
  cols: 3
route:
  start: {row: 0, col: 0}
  goal: {row: 2, col: 2}
  waypoints:
    - {row: 0, col: 2}
`

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write scenario: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := New().WithOutput(&stdout, &stderr)
	err := app.ExecuteWithArgs(context.Background(), args)
	return stdout.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, version.Version) {
		t.Errorf("expected version %s in output, got %q", version.Version, out)
	}
}

func TestPlanCommandText(t *testing.T) {
	path := writeScenario(t, cornerScenario)
	out, err := execute(t, "plan", "-c", path)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	want := "S*1\n..*\n..G\nsteps: 5  cost: 4.00\n"
	if out != want {
		t.Errorf("expected:\n%s\ngot:\n%s", want, out)
	}
}

func TestPlanCommandJSON(t *testing.T) {
	path := writeScenario(t, cornerScenario)
	out, err := execute(t, "plan", "-c", path, "--format", "json")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	var route planner.Route
	if err := json.Unmarshal([]byte(out), &route); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(route.WaypointSteps) != 3 || route.WaypointSteps[1] != 2 || route.WaypointSteps[2] != 4 {
		t.Errorf("expected waypoint steps [0 2 4], got %v", route.WaypointSteps)
	}
}

func TestPlanCommandRandomSeedIsDeterministic(t *testing.T) {
	path := writeScenario(t, `
version: 1
random:
  enabled: true
  obstacles: 0
  intermediate: 3
`)
	first, err := execute(t, "plan", "-c", path, "--seed", "99", "--format", "json")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	second, err := execute(t, "plan", "-c", path, "--seed", "99", "--format", "json")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if first != second {
		t.Error("expected identical routes for the same seed")
	}
}

func TestPlanCommandErrors(t *testing.T) {
	path := writeScenario(t, cornerScenario)
	if _, err := execute(t, "plan", "-c", path, "--format", "svg"); err == nil {
		t.Error("expected error for unknown format")
	}
	if _, err := execute(t, "plan", "-c", filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing scenario file")
	}

	walled := writeScenario(t, `
version: 1
grid:
  rows: 3
  cols: 3
  obstacles:
    - {row: 0, col: 1}
    - {row: 1, col: 1}
    - {row: 2, col: 1}
`)
	_, err := execute(t, "plan", "-c", walled)
	if err == nil || !strings.Contains(err.Error(), "no path") {
		t.Errorf("expected no path error, got %v", err)
	}
}

func TestRunCommand(t *testing.T) {
	for _, engine := range []string{"reducer", "chart"} {
		t.Run(engine, func(t *testing.T) {
			path := writeScenario(t, cornerScenario)
			out, err := execute(t, "run", "-c", path, "--engine", engine, "--interval", "1ms")
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			var snap runner.Snapshot
			if err := json.Unmarshal([]byte(out), &snap); err != nil {
				t.Fatalf("decode snapshot: %v (%q)", err, out)
			}
			if !snap.Finished || snap.State != "finish" {
				t.Errorf("expected finished run, got %+v", snap)
			}
			if snap.Engine != engine {
				t.Errorf("expected engine %s, got %s", engine, snap.Engine)
			}
			if snap.StepIndex != 4 || snap.Captured != 2 {
				t.Errorf("expected step 4 and waypoint 2, got step %d waypoint %d", snap.StepIndex, snap.Captured)
			}
		})
	}
}

func TestRunCommandFlagErrors(t *testing.T) {
	path := writeScenario(t, cornerScenario)
	if _, err := execute(t, "run", "-c", path, "--resume"); err == nil {
		t.Error("expected --resume without --postgres to fail")
	}
	if _, err := execute(t, "run", "-c", path, "--engine", "fsm"); err == nil {
		t.Error("expected unknown engine to fail")
	}
}

func TestRenderRouteGlyphs(t *testing.T) {
	if got := waypointGlyph(0, 3); got != 'S' {
		t.Errorf("expected S, got %c", got)
	}
	if got := waypointGlyph(3, 3); got != 'G' {
		t.Errorf("expected G, got %c", got)
	}
	if got := waypointGlyph(2, 3); got != '2' {
		t.Errorf("expected 2, got %c", got)
	}
	if got := waypointGlyph(12, 20); got != 'w' {
		t.Errorf("expected w, got %c", got)
	}
}

func TestPlanBundledScenarios(t *testing.T) {
	tests := []struct {
		path      string
		waypoints int
	}{
		{"../../scenarios/warehouse/scenario.yaml", 5},
	}
	for _, tc := range tests {
		t.Run(filepath.Base(tc.path), func(t *testing.T) {
			out, err := execute(t, "plan", "-c", tc.path, "--format", "json")
			if err != nil {
				t.Fatalf("plan: %v", err)
			}
			var route planner.Route
			if err := json.Unmarshal([]byte(out), &route); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(route.Waypoints) != tc.waypoints {
				t.Errorf("expected %d waypoints, got %d", tc.waypoints, len(route.Waypoints))
			}
		})
	}
}
