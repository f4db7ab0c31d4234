package planner

import "github.com/AaronLay10/gridrunner/internal/grid"

// Step is one cell of a route as handed to the presentation layer.
type Step struct {
	Index    int           `json:"index"`
	Position grid.Position `json:"position"`
	// Waypoint is set when this cell reaches a waypoint. The start cell
	// counts as waypoint 0.
	Waypoint      bool `json:"waypoint"`
	WaypointIndex int  `json:"waypoint_index"`
	Last          bool `json:"last"`
}

// Cursor walks a route one step at a time.
type Cursor struct {
	route *Route
	next  int
	wp    int
}

// Cursor returns a cursor positioned before the first step.
func (r *Route) Cursor() *Cursor {
	return &Cursor{route: r}
}

// Next returns the next step, or false once the route is exhausted.
func (c *Cursor) Next() (Step, bool) {
	if c.next >= len(c.route.Steps) {
		return Step{}, false
	}
	idx := c.next
	c.next++

	step := Step{
		Index:    idx,
		Position: c.route.Steps[idx],
		Last:     idx == len(c.route.Steps)-1,
	}
	// Several waypoints can land on the same index when consecutive
	// waypoints are equal; report the last of them.
	for c.wp < len(c.route.WaypointSteps) && c.route.WaypointSteps[c.wp] == idx {
		step.Waypoint = true
		step.WaypointIndex = c.wp
		c.wp++
	}
	return step, true
}

// Remaining returns how many steps are left.
func (c *Cursor) Remaining() int {
	return len(c.route.Steps) - c.next
}

// Seek positions the cursor so the next call to Next returns step idx.
func (c *Cursor) Seek(idx int) {
	if idx < 0 {
		idx = 0
	}
	if idx > len(c.route.Steps) {
		idx = len(c.route.Steps)
	}
	c.next = idx
	c.wp = 0
	for c.wp < len(c.route.WaypointSteps) && c.route.WaypointSteps[c.wp] < idx {
		c.wp++
	}
}
