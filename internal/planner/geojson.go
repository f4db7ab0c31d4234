package planner

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/AaronLay10/gridrunner/internal/grid"
)

// cellPoint maps a cell to planar coordinates with x = column, y = row.
func cellPoint(p grid.Position) orb.Point {
	return orb.Point{float64(p.Col), float64(p.Row)}
}

// FeatureCollection renders the route as a LineString feature followed by
// one Point feature per waypoint.
func (r *Route) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	line := make(orb.LineString, 0, len(r.Steps))
	for _, p := range r.Steps {
		line = append(line, cellPoint(p))
	}
	path := geojson.NewFeature(line)
	path.Properties["kind"] = "route"
	path.Properties["steps"] = len(r.Steps)
	path.Properties["cost"] = r.Cost
	fc.Append(path)

	for i, wp := range r.Waypoints {
		f := geojson.NewFeature(cellPoint(wp))
		f.Properties["kind"] = waypointKind(i, len(r.Waypoints))
		f.Properties["index"] = i
		if i < len(r.WaypointSteps) {
			f.Properties["step"] = r.WaypointSteps[i]
		}
		fc.Append(f)
	}
	return fc
}

// GeoJSON returns the encoded FeatureCollection.
func (r *Route) GeoJSON() ([]byte, error) {
	return r.FeatureCollection().MarshalJSON()
}

func waypointKind(i, n int) string {
	switch i {
	case 0:
		return "start"
	case n - 1:
		return "goal"
	default:
		return "intermediate"
	}
}
