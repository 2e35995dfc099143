package route

import (
	"errors"
	"time"

	"github.com/airlinked/commtime/internal/physics"
)

// ErrDegenerateRoute indicates a route with fewer than two points. Progress
// and ETA calls return a zero result with this condition instead of failing.
var ErrDegenerateRoute = errors.New("degenerate route: fewer than two points")

// Point is an ordered route coordinate with optional planned timing data.
// Points are owned by the route and read-only to the trackers.
type Point struct {
	Name            string     `json:"name,omitempty"`
	Lat             float64    `json:"lat"`
	Lon             float64    `json:"lon"`
	PlannedArrival  *time.Time `json:"planned_arrival,omitempty"`
	SegmentSpeedKts *float64   `json:"segment_speed_kts,omitempty"` // expected ground speed inbound to this point
}

// Route is an ordered list of points for one mission leg
type Route struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Points []Point `json:"points"`
}

// Degenerate reports whether the route has too few points to compute
// progress or ETAs against
func (r *Route) Degenerate() bool {
	return r == nil || len(r.Points) < 2
}

// Destination returns the final route point
func (r *Route) Destination() (Point, bool) {
	if r == nil || len(r.Points) == 0 {
		return Point{}, false
	}
	return r.Points[len(r.Points)-1], true
}

// TotalDistance returns the sum of the great-circle leg lengths in meters
func (r *Route) TotalDistance() (float64, error) {
	if r.Degenerate() {
		return 0, ErrDegenerateRoute
	}
	var total float64
	for i := 1; i < len(r.Points); i++ {
		d, err := physics.Haversine(
			r.Points[i-1].Lat, r.Points[i-1].Lon,
			r.Points[i].Lat, r.Points[i].Lon)
		if err != nil {
			return 0, err
		}
		total += d
	}
	return total, nil
}

// AssignPlannedArrival maps a planned arrival timestamp onto the nearest
// route point, accepting it only if the point is within toleranceM meters
// of the given position. Returns the point index and whether the timestamp
// was assigned. Timestamps outside tolerance leave the route untouched.
func (r *Route) AssignPlannedArrival(lat, lon float64, arrival time.Time, toleranceM float64) (int, bool) {
	if r == nil || len(r.Points) == 0 {
		return -1, false
	}

	bestIdx := -1
	bestDist := toleranceM
	for i := range r.Points {
		d, err := physics.Haversine(lat, lon, r.Points[i].Lat, r.Points[i].Lon)
		if err != nil {
			continue
		}
		if d <= bestDist {
			bestDist = d
			bestIdx = i
		}
	}

	if bestIdx < 0 {
		return -1, false
	}
	ts := arrival
	r.Points[bestIdx].PlannedArrival = &ts
	return bestIdx, true
}
