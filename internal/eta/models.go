package eta

import (
	"errors"
	"fmt"
	"time"

	"github.com/airlinked/commtime/internal/flight"
)

// Defaults for the ETA subsystem
const (
	DefaultCacheTTL          = 5 * time.Second
	DefaultMinCruiseSpeedKts = 0.5
)

// ErrMissingTimingData indicates the route carries no planned timestamps
// for the requested waypoint. Callers fall back to distance/speed; the
// error only surfaces when no fallback input exists either.
var ErrMissingTimingData = errors.New("route missing planned timing data")

// Estimate is one computed arrival estimate. Estimates are value types and
// safe to cache and hand out to concurrent readers.
type Estimate struct {
	RouteID       string         `json:"route_id"`
	WaypointIndex int            `json:"waypoint_index"` // -1 for a free-form location target
	TargetName    string         `json:"target_name,omitempty"`
	Mode          flight.ETAMode `json:"mode"`
	ETASeconds    float64        `json:"eta_seconds"`
	DistanceM     float64        `json:"distance_m"`
	SpeedKts      float64        `json:"speed_kts"` // denominator speed; 0 for schedule-based results
	GeneratedAt   time.Time      `json:"generated_at"`
}

// waypointKey builds the cache key for a waypoint target
func waypointKey(routeID string, idx int, phase flight.Phase) string {
	return fmt.Sprintf("%s|wp:%d|%s", routeID, idx, phase)
}

// locationKey builds the cache key for a coordinate target. Coordinates are
// rounded to ~11 m so repeated queries for the same spot share an entry.
func locationKey(routeID string, lat, lon float64, phase flight.Phase) string {
	return fmt.Sprintf("%s|loc:%.4f,%.4f|%s", routeID, lat, lon, phase)
}
