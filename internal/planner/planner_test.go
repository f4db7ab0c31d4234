package planner

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/AaronLay10/gridrunner/internal/grid"
	"github.com/AaronLay10/gridrunner/internal/pathfind"
)

func TestPlanConcatenatesLegs(t *testing.T) {
	g := grid.New(10, 10)
	a, b, c := grid.P(0, 0), grid.P(4, 6), grid.P(9, 2)

	route, err := Plan(g, []grid.Position{a, b, c})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ab, err := pathfind.Search(g, a, b)
	if err != nil {
		t.Fatalf("search a->b: %v", err)
	}
	bc, err := pathfind.Search(g, b, c)
	if err != nil {
		t.Fatalf("search b->c: %v", err)
	}
	want := append(append([]grid.Position{}, ab.Path...), bc.Path[1:]...)
	if !reflect.DeepEqual(route.Steps, want) {
		t.Errorf("expected %v, got %v", want, route.Steps)
	}

	wantLen := 1 + pathfind.Manhattan(a, b) + pathfind.Manhattan(b, c)
	if route.Len() != wantLen {
		t.Errorf("expected length %d, got %d", wantLen, route.Len())
	}

	wantIdx := []int{0, pathfind.Manhattan(a, b), wantLen - 1}
	if !reflect.DeepEqual(route.WaypointSteps, wantIdx) {
		t.Errorf("expected waypoint steps %v, got %v", wantIdx, route.WaypointSteps)
	}
	for i, idx := range route.WaypointSteps {
		if route.Steps[idx] != route.Waypoints[i] {
			t.Errorf("waypoint %d: expected %s at step %d, got %s", i, route.Waypoints[i], idx, route.Steps[idx])
		}
	}
}

func TestPlanHaltsAtFirstFailingLeg(t *testing.T) {
	g := grid.New(6, 6)
	a := grid.P(3, 3)
	for _, p := range []grid.Position{grid.P(2, 3), grid.P(4, 3), grid.P(3, 2), grid.P(3, 4)} {
		g.AddObstacle(p)
	}
	b, c := grid.P(0, 0), grid.P(5, 5)

	counting := &countingTopology{inner: g}
	route, err := Plan(counting, []grid.Position{a, b, c})
	if route != nil {
		t.Errorf("expected no route on failure, got %v", route.Steps)
	}
	var lf *LegFailure
	if !errors.As(err, &lf) {
		t.Fatalf("expected *LegFailure, got %v", err)
	}
	if lf.Index != 0 || lf.From != a || lf.To != b {
		t.Errorf("expected leg 0 %s->%s, got leg %d %s->%s", a, b, lf.Index, lf.From, lf.To)
	}
	if !errors.Is(err, pathfind.ErrNoPath) {
		t.Errorf("expected error to wrap ErrNoPath, got %v", err)
	}
	if counting.calls[b] != 0 {
		t.Errorf("expected leg 1 not to be searched, but %s was expanded %d times", b, counting.calls[b])
	}
}

func TestPlanReportsLaterLeg(t *testing.T) {
	g := grid.New(5, 5)
	for _, p := range []grid.Position{grid.P(0, 3), grid.P(1, 4)} {
		g.AddObstacle(p)
	}
	wps := []grid.Position{grid.P(0, 0), grid.P(4, 4), grid.P(0, 4)}

	route, err := Plan(g, wps)
	if route != nil {
		t.Errorf("expected no route on failure, got %v", route.Steps)
	}
	var lf *LegFailure
	if !errors.As(err, &lf) {
		t.Fatalf("expected *LegFailure, got %v", err)
	}
	if lf.Index != 1 {
		t.Errorf("expected failing leg 1, got %d", lf.Index)
	}
}

func TestPlanInvalidWaypoints(t *testing.T) {
	g := grid.New(3, 3)

	for _, wps := range [][]grid.Position{nil, {grid.P(0, 0)}} {
		_, err := Plan(g, wps)
		if !errors.Is(err, ErrInvalidWaypoints) {
			t.Errorf("expected ErrInvalidWaypoints for %v, got %v", wps, err)
		}
	}
}

func TestPlanRepeatedWaypoint(t *testing.T) {
	g := grid.New(3, 3)
	a := grid.P(1, 1)

	route, err := Plan(g, []grid.Position{a, a})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(route.Steps, []grid.Position{a}) {
		t.Errorf("expected single-cell route, got %v", route.Steps)
	}
}

func TestCursorWalksRoute(t *testing.T) {
	g := grid.New(3, 3)
	route, err := Plan(g, []grid.Position{grid.P(0, 0), grid.P(0, 2), grid.P(2, 2)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cur := route.Cursor()
	var steps []Step
	for {
		s, ok := cur.Next()
		if !ok {
			break
		}
		steps = append(steps, s)
	}

	if len(steps) != 5 {
		t.Fatalf("expected 5 steps, got %d", len(steps))
	}
	if !steps[0].Waypoint || steps[0].WaypointIndex != 0 {
		t.Errorf("expected first step to be waypoint 0, got %+v", steps[0])
	}
	if !steps[2].Waypoint || steps[2].WaypointIndex != 1 {
		t.Errorf("expected step 2 to be waypoint 1, got %+v", steps[2])
	}
	if steps[1].Waypoint || steps[3].Waypoint {
		t.Error("expected intermediate cells not to be waypoints")
	}
	if !steps[4].Last || steps[4].WaypointIndex != 2 {
		t.Errorf("expected last step to be waypoint 2, got %+v", steps[4])
	}
	if cur.Remaining() != 0 {
		t.Errorf("expected 0 remaining, got %d", cur.Remaining())
	}
}

func TestCursorSeek(t *testing.T) {
	g := grid.New(3, 3)
	route, err := Plan(g, []grid.Position{grid.P(0, 0), grid.P(0, 2), grid.P(2, 2)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cur := route.Cursor()
	cur.Seek(2)
	s, ok := cur.Next()
	if !ok {
		t.Fatal("expected a step after seek")
	}
	if s.Index != 2 || !s.Waypoint || s.WaypointIndex != 1 {
		t.Errorf("expected waypoint 1 at index 2, got %+v", s)
	}
}

func TestRouteGeoJSON(t *testing.T) {
	g := grid.New(3, 3)
	route, err := Plan(g, []grid.Position{grid.P(0, 0), grid.P(1, 2)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := route.GeoJSON()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var doc struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Type        string          `json:"type"`
				Coordinates json.RawMessage `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]interface{} `json:"properties"`
		} `json:"features"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("failed to decode geojson: %v", err)
	}
	if doc.Type != "FeatureCollection" {
		t.Errorf("expected FeatureCollection, got %s", doc.Type)
	}
	if len(doc.Features) != 3 {
		t.Fatalf("expected 3 features, got %d", len(doc.Features))
	}
	if doc.Features[0].Geometry.Type != "LineString" {
		t.Errorf("expected LineString, got %s", doc.Features[0].Geometry.Type)
	}
	if doc.Features[2].Properties["kind"] != "goal" {
		t.Errorf("expected goal feature, got %v", doc.Features[2].Properties["kind"])
	}
}

type countingTopology struct {
	inner grid.Topology
	calls map[grid.Position]int
}

func (c *countingTopology) Neighbors(p grid.Position) []grid.Position {
	if c.calls == nil {
		c.calls = make(map[grid.Position]int)
	}
	c.calls[p]++
	return c.inner.Neighbors(p)
}
