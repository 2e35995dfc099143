package eta

import (
	"fmt"
	"time"

	"github.com/airlinked/commtime/internal/flight"
	"github.com/airlinked/commtime/internal/physics"
	"github.com/airlinked/commtime/internal/route"
	"github.com/airlinked/commtime/pkg/logger"
)

// Calculator produces arrival estimates to route waypoints or free-form
// locations. The estimation path is selected by the flight phase: before
// departure the planned schedule drives the numbers (anticipated mode),
// afterwards live smoothed performance does (estimated mode). Results are
// written through the cache, so concurrent readers hitting the same key
// within the TTL never recompute.
type Calculator struct {
	logger            *logger.Logger
	tracker           *route.ProgressTracker
	speed             *route.SpeedTracker
	state             *flight.StateManager
	cache             *Cache
	accuracy          *AccuracyTracker
	minCruiseSpeedKts float64
}

// NewCalculator wires a calculator to its collaborators. minCruiseSpeedKts
// is the denominator floor preventing division blow-up while stationary;
// zero selects the 0.5 kn default.
func NewCalculator(
	tracker *route.ProgressTracker,
	speed *route.SpeedTracker,
	state *flight.StateManager,
	cache *Cache,
	accuracy *AccuracyTracker,
	minCruiseSpeedKts float64,
	log *logger.Logger,
) *Calculator {
	if minCruiseSpeedKts <= 0 {
		minCruiseSpeedKts = DefaultMinCruiseSpeedKts
	}
	return &Calculator{
		logger:            log.Named("eta"),
		tracker:           tracker,
		speed:             speed,
		state:             state,
		cache:             cache,
		accuracy:          accuracy,
		minCruiseSpeedKts: minCruiseSpeedKts,
	}
}

// Cache returns the underlying estimate cache
func (c *Calculator) Cache() *Cache {
	return c.cache
}

// Accuracy returns the accuracy tracker
func (c *Calculator) Accuracy() *AccuracyTracker {
	return c.accuracy
}

// ETAToWaypoint returns the estimate from the current position to route
// point waypointIndex, serving from cache when fresh
func (c *Calculator) ETAToWaypoint(now time.Time, lat, lon float64, waypointIndex int) (Estimate, error) {
	r := c.tracker.Route()
	if r.Degenerate() {
		return Estimate{}, route.ErrDegenerateRoute
	}
	if waypointIndex < 0 || waypointIndex >= len(r.Points) {
		return Estimate{}, fmt.Errorf("waypoint index %d out of range [0, %d)", waypointIndex, len(r.Points))
	}

	phase := c.state.Phase()
	key := waypointKey(r.ID, waypointIndex, phase)
	if est, ok := c.cache.Get(key, now); ok {
		return est, nil
	}

	dist, err := c.tracker.DistanceToPoint(lat, lon, waypointIndex)
	if err != nil {
		return Estimate{}, err
	}

	wp := r.Points[waypointIndex]
	est := Estimate{
		RouteID:       r.ID,
		WaypointIndex: waypointIndex,
		TargetName:    wp.Name,
		Mode:          flight.ModeForPhase(phase),
		DistanceM:     dist,
		GeneratedAt:   now,
	}

	if phase == flight.PhasePreDeparture {
		secs, schedErr := c.scheduleETA(now, wp)
		if schedErr == nil {
			est.ETASeconds = secs
		} else {
			// No planned timestamp for this point; fall back to
			// distance over planned or live speed
			c.logger.Debug("Falling back to distance/speed for anticipated ETA",
				logger.String("route_id", r.ID),
				logger.Int("waypoint", waypointIndex),
				logger.Error(schedErr))
			est.ETASeconds, est.SpeedKts = c.speedETA(dist, wp.SegmentSpeedKts)
		}
	} else {
		est.ETASeconds, est.SpeedKts = c.speedETA(dist, wp.SegmentSpeedKts)
	}

	c.cache.Put(key, est, now)
	c.accuracy.RecordPrediction(r.ID, waypointIndex, est.ETASeconds, now)
	return est, nil
}

// ETAToLocation returns the estimate from the current position to an
// arbitrary coordinate, using direct great-circle distance
func (c *Calculator) ETAToLocation(now time.Time, lat, lon, targetLat, targetLon float64) (Estimate, error) {
	r := c.tracker.Route()
	routeID := ""
	if r != nil {
		routeID = r.ID
	}

	phase := c.state.Phase()
	key := locationKey(routeID, targetLat, targetLon, phase)
	if est, ok := c.cache.Get(key, now); ok {
		return est, nil
	}

	dist, err := physics.Haversine(lat, lon, targetLat, targetLon)
	if err != nil {
		return Estimate{}, err
	}

	est := Estimate{
		RouteID:       routeID,
		WaypointIndex: -1,
		Mode:          flight.ModeForPhase(phase),
		DistanceM:     dist,
		GeneratedAt:   now,
	}
	est.ETASeconds, est.SpeedKts = c.speedETA(dist, nil)

	c.cache.Put(key, est, now)
	return est, nil
}

// scheduleETA computes the anticipated ETA from a planned arrival timestamp
func (c *Calculator) scheduleETA(now time.Time, wp route.Point) (float64, error) {
	if wp.PlannedArrival == nil {
		return 0, ErrMissingTimingData
	}
	secs := wp.PlannedArrival.Sub(now).Seconds()
	if secs < 0 {
		c.logger.Warn("Planned arrival is in the past, clamping ETA to zero",
			logger.Time("planned_arrival", *wp.PlannedArrival))
		secs = 0
	}
	return secs, nil
}

// speedETA computes distance/speed with the live smoothed speed blended
// against the route's expected segment speed. Simple average when both are
// available, whichever exists otherwise, floored at the minimum cruise
// speed so a stationary platform never divides by zero.
func (c *Calculator) speedETA(distanceM float64, segmentSpeedKts *float64) (etaSecs, usedSpeedKts float64) {
	smoothed := c.speed.SmoothedSpeedKts()

	var blended float64
	switch {
	case smoothed > 0 && segmentSpeedKts != nil && *segmentSpeedKts > 0:
		blended = (smoothed + *segmentSpeedKts) / 2
	case smoothed > 0:
		blended = smoothed
	case segmentSpeedKts != nil && *segmentSpeedKts > 0:
		blended = *segmentSpeedKts
	}

	if blended < c.minCruiseSpeedKts {
		blended = c.minCruiseSpeedKts
	}

	if distanceM < 0 {
		c.logger.Warn("Negative remaining distance clamped to zero",
			logger.Float64("distance_m", distanceM))
		distanceM = 0
	}
	return distanceM / (blended * physics.KnotsToMs), blended
}
