package eta

import (
	"sync"
	"time"
)

// prediction remembers the last estimate issued for a waypoint so it can be
// scored once the waypoint is actually passed
type prediction struct {
	etaSeconds float64
	issuedAt   time.Time
}

// AccuracyTracker compares predicted against realized arrival times. For
// each waypoint it keeps the most recent prediction; when the waypoint is
// passed the absolute error |predicted - actual elapsed| feeds an aggregate
// average exposed read-only.
type AccuracyTracker struct {
	mu          sync.Mutex
	predictions map[string]prediction // routeID|waypoint -> last prediction
	totalAbsErr float64
	scored      int
}

// NewAccuracyTracker creates an empty accuracy tracker
func NewAccuracyTracker() *AccuracyTracker {
	return &AccuracyTracker{
		predictions: make(map[string]prediction),
	}
}

// RecordPrediction stores the latest prediction for a waypoint
func (a *AccuracyTracker) RecordPrediction(routeID string, waypointIndex int, etaSeconds float64, issuedAt time.Time) {
	key := waypointKey(routeID, waypointIndex, "")
	a.mu.Lock()
	defer a.mu.Unlock()
	a.predictions[key] = prediction{etaSeconds: etaSeconds, issuedAt: issuedAt}
}

// WaypointPassed scores the outstanding prediction for a waypoint, if any,
// and returns the absolute error in seconds
func (a *AccuracyTracker) WaypointPassed(routeID string, waypointIndex int, passedAt time.Time) (float64, bool) {
	key := waypointKey(routeID, waypointIndex, "")
	a.mu.Lock()
	defer a.mu.Unlock()

	p, ok := a.predictions[key]
	if !ok {
		return 0, false
	}
	delete(a.predictions, key)

	actualElapsed := passedAt.Sub(p.issuedAt).Seconds()
	errSecs := p.etaSeconds - actualElapsed
	if errSecs < 0 {
		errSecs = -errSecs
	}
	a.totalAbsErr += errSecs
	a.scored++
	return errSecs, true
}

// AverageErrorSeconds returns the mean absolute prediction error across all
// scored waypoints, 0.0 before any waypoint has been scored
func (a *AccuracyTracker) AverageErrorSeconds() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.scored == 0 {
		return 0.0
	}
	return a.totalAbsErr / float64(a.scored)
}

// ScoredCount returns how many waypoints have been scored
func (a *AccuracyTracker) ScoredCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scored
}

// Reset clears outstanding predictions and the aggregate error
func (a *AccuracyTracker) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.predictions = make(map[string]prediction)
	a.totalAbsErr = 0
	a.scored = 0
}
