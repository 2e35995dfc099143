package simulation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/airlinked/commtime/internal/physics"
	"github.com/airlinked/commtime/internal/route"
	"github.com/airlinked/commtime/internal/telemetry"
	"github.com/airlinked/commtime/pkg/logger"
)

// Service flies a simulated platform along a route by dead reckoning and
// feeds the resulting position reports into the telemetry service. It
// exercises the whole live path without a real feed: speed smoothing,
// phase detection, ETA scoring and the WebSocket broadcast all see the
// same samples a real platform would produce.
type Service struct {
	logger    *logger.Logger
	telemetry *telemetry.Service
	interval  time.Duration
	speedKts  float64

	mu         sync.Mutex
	running    bool
	stopCh     chan struct{}
	route      *route.Route
	lat        float64
	lon        float64
	target     int // index of the waypoint currently flown toward
	lastUpdate time.Time
}

// NewService creates a simulation service
func NewService(interval time.Duration, speedKts float64, telemetrySvc *telemetry.Service, log *logger.Logger) *Service {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if speedKts <= 0 {
		speedKts = 250
	}
	return &Service{
		logger:    log.Named("simulation"),
		telemetry: telemetrySvc,
		interval:  interval,
		speedKts:  speedKts,
	}
}

// Start places the platform at the route's first point and begins
// emitting position reports. The simulation ends on Stop, on context
// cancellation, or when the final waypoint is reached.
func (s *Service) Start(ctx context.Context, r *route.Route) error {
	if r.Degenerate() {
		return route.ErrDegenerateRoute
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("simulation already running for route %s", s.route.ID)
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.route = r
	s.lat = r.Points[0].Lat
	s.lon = r.Points[0].Lon
	s.target = 1
	s.lastUpdate = time.Now().UTC()
	stopCh := s.stopCh
	s.mu.Unlock()

	s.logger.Info("Starting simulated flight",
		logger.String("route_id", r.ID),
		logger.Float64("speed_kts", s.speedKts),
		logger.Duration("interval", s.interval))

	go s.run(ctx, stopCh)
	return nil
}

// Stop halts the simulation
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.stopCh)
	s.logger.Info("Simulation stopped")
}

// Running reports whether a simulated flight is in progress
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Service) run(ctx context.Context, stopCh chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Stop()
			return
		case <-stopCh:
			return
		case now := <-ticker.C:
			done, err := s.step(now.UTC())
			if err != nil {
				s.logger.Error("Simulation step failed", logger.Error(err))
				s.Stop()
				return
			}
			if done {
				s.logger.Info("Simulated flight reached the final waypoint")
				s.Stop()
				return
			}
		}
	}
}

// step advances the platform toward the current target waypoint and
// reports the new position. Returns done once the destination is held.
func (s *Service) step(now time.Time) (bool, error) {
	s.mu.Lock()
	r := s.route
	deltaSecs := now.Sub(s.lastUpdate).Seconds()
	if deltaSecs <= 0 {
		s.mu.Unlock()
		return false, nil
	}
	s.lastUpdate = now

	remaining := s.speedKts * physics.KnotsToMs * deltaSecs
	for remaining > 0 && s.target < len(r.Points) {
		wp := r.Points[s.target]
		dist, err := physics.Haversine(s.lat, s.lon, wp.Lat, wp.Lon)
		if err != nil {
			s.mu.Unlock()
			return false, err
		}

		if dist <= remaining {
			// Snap to the waypoint and continue along the next leg
			s.lat, s.lon = wp.Lat, wp.Lon
			s.target++
			remaining -= dist
			continue
		}

		bearing, err := physics.Bearing(s.lat, s.lon, wp.Lat, wp.Lon)
		if err != nil {
			s.mu.Unlock()
			return false, err
		}
		s.lat, s.lon, err = physics.DestinationPoint(s.lat, s.lon, bearing, remaining)
		if err != nil {
			s.mu.Unlock()
			return false, err
		}
		remaining = 0
	}

	lat, lon := s.lat, s.lon
	arrived := s.target >= len(r.Points)
	s.mu.Unlock()

	err := s.telemetry.IngestPosition(telemetry.PositionSample{
		Timestamp: now,
		Lat:       lat,
		Lon:       lon,
		Source:    "sim",
	})
	if err != nil {
		return false, err
	}
	return arrived, nil
}
