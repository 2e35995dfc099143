package telemetry

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/airlinked/commtime/internal/eta"
	"github.com/airlinked/commtime/internal/flight"
	"github.com/airlinked/commtime/internal/route"
	"github.com/airlinked/commtime/internal/websocket"
	"github.com/airlinked/commtime/pkg/logger"
)

// DefaultWaypointPassRadiusM is how close the platform must come to a
// route point before it scores the outstanding ETA prediction
const DefaultWaypointPassRadiusM = 500.0

// Config carries the tunable ingest parameters
type Config struct {
	SpeedWindow         time.Duration
	MinDisplacementM    float64
	WaypointPassRadiusM float64
}

// Service is the live glue between position reports and the estimation
// core: every sample drives the speed tracker, the route projection and
// the flight state machine, then lands in storage and on the WebSocket
// feed. Phase transitions invalidate the ETA cache so the next query
// switches modes immediately.
type Service struct {
	mu sync.RWMutex

	logger   *logger.Logger
	storage  Storage
	wsServer *websocket.Server

	state    *flight.StateManager
	speed    *route.SpeedTracker
	cache    *eta.Cache
	accuracy *eta.AccuracyTracker

	tracker *route.ProgressTracker
	calc    *eta.Calculator

	cfg          Config
	minCruiseKts float64

	lastSample   *PositionSample
	lastProgress *route.Progress
	ingested     int64

	// nextWaypoint is the lowest route point index not yet passed
	nextWaypoint int
}

// NewService wires the telemetry service and installs the phase
// transition hook on the state manager. storage and wsServer may be nil;
// the service then runs in-memory and silent respectively.
func NewService(
	cfg Config,
	state *flight.StateManager,
	cache *eta.Cache,
	accuracy *eta.AccuracyTracker,
	minCruiseKts float64,
	storage Storage,
	wsServer *websocket.Server,
	log *logger.Logger,
) *Service {
	if cfg.WaypointPassRadiusM <= 0 {
		cfg.WaypointPassRadiusM = DefaultWaypointPassRadiusM
	}
	s := &Service{
		logger:       log.Named("telemetry"),
		storage:      storage,
		wsServer:     wsServer,
		state:        state,
		speed:        route.NewSpeedTracker(cfg.SpeedWindow, cfg.MinDisplacementM),
		cache:        cache,
		accuracy:     accuracy,
		cfg:          cfg,
		minCruiseKts: minCruiseKts,
	}

	state.SetTransitionHook(s.onPhaseChange)
	return s
}

// ActivateRoute binds the service to a route: fresh projection, fresh
// speed window, state machine back to pre-departure
func (s *Service) ActivateRoute(r *route.Route) error {
	if r.Degenerate() {
		return route.ErrDegenerateRoute
	}

	tracker, err := route.NewProgressTracker(r)
	if err != nil {
		return fmt.Errorf("failed to build progress tracker for route %s: %w", r.ID, err)
	}
	calc := eta.NewCalculator(tracker, s.speed, s.state, s.cache, s.accuracy, s.minCruiseKts, s.logger)

	s.mu.Lock()
	s.tracker = tracker
	s.calc = calc
	s.lastSample = nil
	s.lastProgress = nil
	s.nextWaypoint = 1
	s.mu.Unlock()

	s.speed.Reset()
	s.cache.Clear()

	var schedDep, schedArr *time.Time
	if first := r.Points[0].PlannedArrival; first != nil {
		schedDep = first
	}
	if dest, ok := r.Destination(); ok && dest.PlannedArrival != nil {
		schedArr = dest.PlannedArrival
	}
	s.state.ActivateRoute(r.ID, schedDep, schedArr)

	s.logger.Info("Route activated for telemetry",
		logger.String("route_id", r.ID),
		logger.Int("points", len(r.Points)))
	return nil
}

// DeactivateRoute unbinds the active route and clears all derived state
func (s *Service) DeactivateRoute() {
	s.mu.Lock()
	s.tracker = nil
	s.calc = nil
	s.lastSample = nil
	s.lastProgress = nil
	s.nextWaypoint = 0
	s.mu.Unlock()

	s.speed.Reset()
	s.cache.Clear()
	s.accuracy.Reset()
	s.state.DeactivateRoute()
}

// Calculator returns the active ETA calculator, or nil when no route is
// bound
func (s *Service) Calculator() *eta.Calculator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calc
}

// IngestPosition processes one position report end to end
func (s *Service) IngestPosition(sample PositionSample) error {
	if err := s.speed.AddSample(sample.Timestamp, sample.Lat, sample.Lon); err != nil {
		return fmt.Errorf("rejected position sample: %w", err)
	}
	speedKts := s.speed.SmoothedSpeedKts()

	s.mu.Lock()
	tracker := s.tracker
	var prog *route.Progress
	distToDest := math.MaxFloat64
	routeID := ""

	if tracker != nil {
		routeID = tracker.Route().ID
		p, err := tracker.Progress(sample.Lat, sample.Lon)
		if err == nil {
			prog = &p
			s.markPassedWaypointsLocked(sample, p.WaypointIndex)
		} else {
			s.logger.Warn("Failed to project position onto route",
				logger.String("route_id", routeID),
				logger.Error(err))
		}
		if d, err := tracker.DistanceToPoint(sample.Lat, sample.Lon, len(tracker.Route().Points)-1); err == nil {
			distToDest = d
		}
	}

	s.lastSample = &sample
	s.lastProgress = prog
	s.ingested++
	s.mu.Unlock()

	s.state.Update(sample.Timestamp, speedKts, distToDest)

	if s.storage != nil {
		if err := s.storage.SavePosition(routeID, sample); err != nil {
			s.logger.Error("Failed to persist position sample", logger.Error(err))
		}
	}

	s.broadcastStatus(sample.Timestamp)
	return nil
}

// markPassedWaypointsLocked scores predictions for every waypoint the
// projection has moved past, plus the upcoming one once the platform is
// within the pass radius. Caller holds the lock.
func (s *Service) markPassedWaypointsLocked(sample PositionSample, nextIndex int) {
	routeID := s.tracker.Route().ID

	for s.nextWaypoint < nextIndex {
		if errSecs, ok := s.accuracy.WaypointPassed(routeID, s.nextWaypoint, sample.Timestamp); ok {
			s.logger.Debug("Waypoint passed, prediction scored",
				logger.String("route_id", routeID),
				logger.Int("waypoint", s.nextWaypoint),
				logger.Float64("error_secs", errSecs))
		}
		s.nextWaypoint++
	}

	// The last waypoint's index never advances past it, so a proximity
	// check closes it out
	if s.nextWaypoint < len(s.tracker.Route().Points) {
		d, err := s.tracker.DistanceToPoint(sample.Lat, sample.Lon, s.nextWaypoint)
		if err == nil && d <= s.cfg.WaypointPassRadiusM {
			s.accuracy.WaypointPassed(routeID, s.nextWaypoint, sample.Timestamp)
			s.nextWaypoint++
		}
	}
}

// Snapshot returns the combined live picture
func (s *Service) Snapshot(now time.Time) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		SpeedKts:        s.speed.SmoothedSpeedKts(),
		Flight:          s.state.Snapshot(now),
		SamplesIngested: s.ingested,
	}
	if s.tracker != nil {
		snap.RouteID = s.tracker.Route().ID
	}
	if s.lastSample != nil {
		c := *s.lastSample
		snap.Position = &c
	}
	if s.lastProgress != nil {
		c := *s.lastProgress
		snap.Progress = &c
	}
	return snap
}

// RecentPositions returns the latest persisted samples for the active
// route
func (s *Service) RecentPositions(limit int) ([]PositionSample, error) {
	if s.storage == nil {
		return nil, nil
	}
	s.mu.RLock()
	routeID := ""
	if s.tracker != nil {
		routeID = s.tracker.Route().ID
	}
	s.mu.RUnlock()
	return s.storage.GetRecentPositions(routeID, limit)
}

// onPhaseChange invalidates the ETA cache and announces the transition.
// Runs outside the state manager's lock.
func (s *Service) onPhaseChange(from, to flight.Phase) {
	s.cache.Clear()
	s.logger.Info("Phase change, ETA cache cleared",
		logger.String("from", string(from)),
		logger.String("to", string(to)))

	if s.wsServer != nil {
		s.wsServer.Broadcast(&websocket.Message{
			Type: websocket.MessageTypePhaseChange,
			Data: map[string]any{
				"from": string(from),
				"to":   string(to),
			},
		})
	}
}

// broadcastStatus pushes the current snapshot over the live feed; the
// hub's limiter thins these to the configured rate
func (s *Service) broadcastStatus(now time.Time) {
	if s.wsServer == nil {
		return
	}
	snap := s.Snapshot(now)
	s.wsServer.Broadcast(&websocket.Message{
		Type: websocket.MessageTypeStatusUpdate,
		Data: map[string]any{
			"snapshot": snap,
		},
	})
}
