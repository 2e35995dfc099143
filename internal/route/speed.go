package route

import (
	"sync"
	"time"

	"github.com/airlinked/commtime/internal/physics"
)

// Default speed smoothing parameters
const (
	DefaultSpeedWindow      = 120 * time.Second
	DefaultMinDisplacementM = 10.0
)

// speedSample is one timestamped position in the smoothing window
type speedSample struct {
	timestamp time.Time
	lat       float64
	lon       float64
}

// SpeedTracker maintains a rolling, time-windowed buffer of position samples
// and derives a smoothed ground speed from the window endpoints. Samples
// closer than the displacement floor to the oldest retained sample do not
// move the speed estimate, which suppresses GPS jitter while stationary.
type SpeedTracker struct {
	mu               sync.Mutex
	samples          []speedSample
	window           time.Duration
	minDisplacementM float64
	smoothedKts      float64
}

// NewSpeedTracker creates a speed tracker with the given smoothing window
// and minimum displacement. Zero values select the defaults.
func NewSpeedTracker(window time.Duration, minDisplacementM float64) *SpeedTracker {
	if window <= 0 {
		window = DefaultSpeedWindow
	}
	if minDisplacementM <= 0 {
		minDisplacementM = DefaultMinDisplacementM
	}
	return &SpeedTracker{
		window:           window,
		minDisplacementM: minDisplacementM,
	}
}

// AddSample records a new position sample and updates the smoothed speed.
// Samples must arrive in time order; out-of-order samples are dropped.
func (t *SpeedTracker) AddSample(timestamp time.Time, lat, lon float64) error {
	if err := physics.ValidateCoordinate(lat, lon); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if n := len(t.samples); n > 0 && !timestamp.After(t.samples[n-1].timestamp) {
		return nil
	}

	t.samples = append(t.samples, speedSample{timestamp: timestamp, lat: lat, lon: lon})

	// Evict samples that fell out of the window. Only the boundary moves,
	// so this is O(1) amortized per update.
	cutoff := timestamp.Add(-t.window)
	start := 0
	for start < len(t.samples)-1 && t.samples[start].timestamp.Before(cutoff) {
		start++
	}
	if start > 0 {
		t.samples = t.samples[start:]
	}

	if len(t.samples) < 2 {
		return nil
	}

	oldest := t.samples[0]
	newest := t.samples[len(t.samples)-1]
	dist, err := physics.Haversine(oldest.lat, oldest.lon, newest.lat, newest.lon)
	if err != nil {
		return err
	}
	if dist < t.minDisplacementM {
		return nil
	}

	elapsed := newest.timestamp.Sub(oldest.timestamp).Seconds()
	if elapsed <= 0 {
		return nil
	}
	t.smoothedKts = dist / elapsed * physics.MsToKnots
	return nil
}

// SmoothedSpeedKts returns the current smoothed ground speed in knots.
// Returns 0.0 until at least two qualifying samples exist.
func (t *SpeedTracker) SmoothedSpeedKts() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.samples) < 2 {
		return 0.0
	}
	return t.smoothedKts
}

// SampleCount returns the number of samples currently in the window
func (t *SpeedTracker) SampleCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.samples)
}

// Reset clears the window and the smoothed speed
func (t *SpeedTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.samples = nil
	t.smoothedKts = 0
}
