package route

import (
	"time"

	"github.com/airlinked/commtime/internal/physics"
)

// DefaultTimestampToleranceM is how close a position must be to a route
// point for a planned timestamp to attach to it
const DefaultTimestampToleranceM = 1000.0

// Progress describes where along the route a position projects to
type Progress struct {
	WaypointIndex      int     `json:"waypoint_index"` // index of the next route point
	ProgressPercent    float64 `json:"progress_percent"`
	DistanceTraveledM  float64 `json:"distance_traveled_m"`
	DistanceRemainingM float64 `json:"distance_remaining_m"`
	CrossTrackErrorM   float64 `json:"cross_track_error_m"`
	BearingToNext      float64 `json:"bearing_to_next"`
	MagBearingToNext   float64 `json:"mag_bearing_to_next"`
}

// ProgressTracker projects positions onto a fixed route. The route and the
// precomputed leg distances are immutable after construction, so concurrent
// Progress calls need no locking.
type ProgressTracker struct {
	route      *Route
	cumulative []float64 // cumulative distance in meters up to point i
	total      float64
}

// NewProgressTracker builds a tracker for the given route. A degenerate
// route still yields a tracker; its Progress calls return the zero result
// with ErrDegenerateRoute.
func NewProgressTracker(r *Route) (*ProgressTracker, error) {
	pt := &ProgressTracker{route: r}
	if r.Degenerate() {
		return pt, nil
	}

	pt.cumulative = make([]float64, len(r.Points))
	for i := 1; i < len(r.Points); i++ {
		d, err := physics.Haversine(
			r.Points[i-1].Lat, r.Points[i-1].Lon,
			r.Points[i].Lat, r.Points[i].Lon)
		if err != nil {
			return nil, err
		}
		pt.cumulative[i] = pt.cumulative[i-1] + d
	}
	pt.total = pt.cumulative[len(pt.cumulative)-1]
	return pt, nil
}

// Route returns the tracked route
func (pt *ProgressTracker) Route() *Route {
	return pt.route
}

// TotalDistanceM returns the full route length in meters
func (pt *ProgressTracker) TotalDistanceM() float64 {
	return pt.total
}

// DistanceToPoint returns the along-route distance in meters from the given
// position to route point idx, clamped to zero once the point is passed
func (pt *ProgressTracker) DistanceToPoint(lat, lon float64, idx int) (float64, error) {
	if pt.route.Degenerate() {
		return 0, ErrDegenerateRoute
	}
	if idx < 0 || idx >= len(pt.route.Points) {
		return 0, ErrDegenerateRoute
	}

	prog, err := pt.Progress(lat, lon)
	if err != nil {
		return 0, err
	}

	remaining := pt.cumulative[idx] - prog.DistanceTraveledM
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Progress projects the position onto the nearest route segment and returns
// cumulative distances. The projection walks every segment and keeps the one
// with the smallest distance from the position to its projected point, using
// great-circle cross-track math throughout.
func (pt *ProgressTracker) Progress(lat, lon float64) (Progress, error) {
	if pt.route.Degenerate() {
		return Progress{}, ErrDegenerateRoute
	}
	if err := physics.ValidateCoordinate(lat, lon); err != nil {
		return Progress{}, err
	}

	points := pt.route.Points
	bestDist := -1.0
	bestSegment := 0
	bestAlong := 0.0
	bestCross := 0.0

	for i := 0; i < len(points)-1; i++ {
		segLen := pt.cumulative[i+1] - pt.cumulative[i]
		if segLen <= 0 {
			continue
		}

		cross, along, err := physics.CrossTrackDistance(lat, lon,
			points[i].Lat, points[i].Lon, points[i+1].Lat, points[i+1].Lon)
		if err != nil {
			return Progress{}, err
		}

		// Clamp the projection to the segment and measure how far the
		// position sits from the clamped point.
		var distToSeg float64
		switch {
		case along < 0:
			distToSeg, err = physics.Haversine(lat, lon, points[i].Lat, points[i].Lon)
			along = 0
		case along > segLen:
			distToSeg, err = physics.Haversine(lat, lon, points[i+1].Lat, points[i+1].Lon)
			along = segLen
		default:
			distToSeg = cross
		}
		if err != nil {
			return Progress{}, err
		}

		if bestDist < 0 || distToSeg < bestDist {
			bestDist = distToSeg
			bestSegment = i
			bestAlong = along
			bestCross = cross
		}
	}

	traveled := pt.cumulative[bestSegment] + bestAlong
	if traveled > pt.total {
		traveled = pt.total
	}
	remaining := pt.total - traveled

	next := bestSegment + 1
	bearing, err := physics.Bearing(lat, lon, points[next].Lat, points[next].Lon)
	if err != nil {
		return Progress{}, err
	}
	magVar := physics.MagneticVariation(lat, lon, 0, time.Now().UTC())
	magBearing := bearing - magVar
	if magBearing < 0 {
		magBearing += 360
	} else if magBearing >= 360 {
		magBearing -= 360
	}

	percent := 0.0
	if pt.total > 0 {
		percent = traveled / pt.total * 100
	}

	return Progress{
		WaypointIndex:      next,
		ProgressPercent:    percent,
		DistanceTraveledM:  traveled,
		DistanceRemainingM: remaining,
		CrossTrackErrorM:   bestCross,
		BearingToNext:      bearing,
		MagBearingToNext:   magBearing,
	}, nil
}
