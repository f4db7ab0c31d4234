package grid

import (
	"errors"
	"reflect"
	"testing"
)

func TestBounds(t *testing.T) {
	g := New(3, 4)

	tests := []struct {
		pos  Position
		want bool
	}{
		{P(0, 0), true},
		{P(2, 3), true},
		{P(3, 0), false},
		{P(0, 4), false},
		{P(-1, 0), false},
		{P(0, -1), false},
	}
	for _, tt := range tests {
		if got := g.IsWithinBounds(tt.pos); got != tt.want {
			t.Errorf("IsWithinBounds(%s): expected %v, got %v", tt.pos, tt.want, got)
		}
	}
}

func TestObstacleAndWalkable(t *testing.T) {
	g := New(3, 3)
	g.AddObstacle(P(1, 1))

	if !g.IsObstacle(P(1, 1)) {
		t.Error("expected (1,1) to be an obstacle")
	}
	if g.IsWalkable(P(1, 1)) {
		t.Error("expected (1,1) to be unwalkable")
	}
	if !g.IsWalkable(P(0, 1)) {
		t.Error("expected (0,1) to be walkable")
	}
	if g.IsWalkable(P(5, 5)) {
		t.Error("expected out-of-bounds cell to be unwalkable")
	}
	if g.ObstacleCount() != 1 {
		t.Errorf("expected 1 obstacle, got %d", g.ObstacleCount())
	}
}

func TestNeighborsOrder(t *testing.T) {
	g := New(3, 3)

	got := g.Neighbors(P(1, 1))
	want := []Position{P(0, 1), P(2, 1), P(1, 0), P(1, 2)}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestNeighborsFiltersObstaclesAndEdges(t *testing.T) {
	g := New(3, 3)
	g.AddObstacle(P(1, 0))

	got := g.Neighbors(P(0, 0))
	want := []Position{P(0, 1)}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestAddObstacleChecked(t *testing.T) {
	g := New(2, 2)

	if err := g.AddObstacleChecked(P(1, 1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := g.AddObstacleChecked(P(2, 0))
	if !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("expected ErrOutOfBounds, got %v", err)
	}
	if g.ObstacleCount() != 1 {
		t.Errorf("expected 1 obstacle, got %d", g.ObstacleCount())
	}
}

func TestObstaclesSorted(t *testing.T) {
	g := New(4, 4)
	g.AddObstacle(P(3, 1))
	g.AddObstacle(P(0, 2))
	g.AddObstacle(P(0, 1))

	want := []Position{P(0, 1), P(0, 2), P(3, 1)}
	if got := g.Obstacles(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestEightConnected(t *testing.T) {
	g := New(3, 3)
	g.AddObstacle(P(0, 0))

	got := EightConnected(g).Neighbors(P(1, 1))
	want := []Position{
		P(0, 1), P(2, 1), P(1, 0), P(1, 2),
		P(0, 2), P(2, 0), P(2, 2),
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestPositionString(t *testing.T) {
	if s := P(3, 7).String(); s != "(3,7)" {
		t.Errorf("expected (3,7), got %s", s)
	}
}
