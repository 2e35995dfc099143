package flight

import (
	"fmt"
	"sync"
	"time"

	"github.com/airlinked/commtime/pkg/logger"
)

// StateManager tracks the flight phase and the active ETA mode. It is
// constructor-injected everywhere it is needed; there is no process-wide
// instance. One mutex guards the whole record, and every reader gets a
// consistent snapshot copy.
type StateManager struct {
	mu     sync.Mutex
	cfg    Config
	logger *logger.Logger

	phase              Phase
	activeRouteID      string
	scheduledDeparture *time.Time
	scheduledArrival   *time.Time
	actualDeparture    *time.Time
	actualArrival      *time.Time

	// withinArrivalSince tracks how long the platform has stayed inside
	// the arrival radius; leaving the radius clears it
	withinArrivalSince *time.Time

	onTransition func(from, to Phase)
}

// NewStateManager creates a state manager in the pre-departure phase
func NewStateManager(cfg Config, log *logger.Logger) *StateManager {
	if cfg.DepartureThresholdKts <= 0 {
		cfg.DepartureThresholdKts = DefaultConfig().DepartureThresholdKts
	}
	if cfg.ArrivalRadiusM <= 0 {
		cfg.ArrivalRadiusM = DefaultConfig().ArrivalRadiusM
	}
	if cfg.ArrivalHold <= 0 {
		cfg.ArrivalHold = DefaultConfig().ArrivalHold
	}
	return &StateManager{
		cfg:    cfg,
		logger: log.Named("flight-state"),
		phase:  PhasePreDeparture,
	}
}

// SetTransitionHook registers a callback invoked (outside the lock) after
// every phase transition. Used by the telemetry service to invalidate the
// ETA cache and broadcast the change.
func (m *StateManager) SetTransitionHook(hook func(from, to Phase)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTransition = hook
}

// ActivateRoute binds the manager to a route and its schedule, resetting
// to pre-departure
func (m *StateManager) ActivateRoute(routeID string, scheduledDeparture, scheduledArrival *time.Time) {
	m.mu.Lock()
	from := m.phase
	m.activeRouteID = routeID
	m.scheduledDeparture = scheduledDeparture
	m.scheduledArrival = scheduledArrival
	m.phase = PhasePreDeparture
	m.actualDeparture = nil
	m.actualArrival = nil
	m.withinArrivalSince = nil
	hook := m.onTransition
	m.mu.Unlock()

	m.logger.Info("Route activated",
		logger.String("route_id", routeID),
		logger.String("phase", string(PhasePreDeparture)))
	if hook != nil && from != PhasePreDeparture {
		hook(from, PhasePreDeparture)
	}
}

// DeactivateRoute clears the active route and resets to pre-departure
func (m *StateManager) DeactivateRoute() {
	m.mu.Lock()
	from := m.phase
	routeID := m.activeRouteID
	m.activeRouteID = ""
	m.scheduledDeparture = nil
	m.scheduledArrival = nil
	m.phase = PhasePreDeparture
	m.actualDeparture = nil
	m.actualArrival = nil
	m.withinArrivalSince = nil
	hook := m.onTransition
	m.mu.Unlock()

	m.logger.Info("Route deactivated", logger.String("route_id", routeID))
	if hook != nil && from != PhasePreDeparture {
		hook(from, PhasePreDeparture)
	}
}

// Update consumes the latest smoothed speed and distance to destination and
// applies automatic transitions. Returns whether a transition happened.
func (m *StateManager) Update(now time.Time, smoothedSpeedKts, distToDestinationM float64) bool {
	m.mu.Lock()

	from := m.phase
	switch m.phase {
	case PhasePreDeparture:
		if smoothedSpeedKts > m.cfg.DepartureThresholdKts {
			m.transitionLocked(PhaseInFlight, now)
		}

	case PhaseInFlight:
		if distToDestinationM >= 0 && distToDestinationM <= m.cfg.ArrivalRadiusM {
			if m.withinArrivalSince == nil {
				t := now
				m.withinArrivalSince = &t
			} else if now.Sub(*m.withinArrivalSince) >= m.cfg.ArrivalHold {
				m.transitionLocked(PhasePostArrival, now)
			}
		} else {
			m.withinArrivalSince = nil
		}
	}

	to := m.phase
	hook := m.onTransition
	m.mu.Unlock()

	if to != from {
		m.logger.Info("Flight phase transition",
			logger.String("from", string(from)),
			logger.String("to", string(to)),
			logger.Float64("speed_kts", smoothedSpeedKts),
			logger.Float64("dist_to_dest_m", distToDestinationM))
		if hook != nil {
			hook(from, to)
		}
		return true
	}
	return false
}

// Depart forces the pre_departure -> in_flight transition
func (m *StateManager) Depart(now time.Time) error {
	m.mu.Lock()
	if m.phase != PhasePreDeparture {
		phase := m.phase
		m.mu.Unlock()
		return fmt.Errorf("cannot depart: flight is %s, expected %s", phase, PhasePreDeparture)
	}
	m.transitionLocked(PhaseInFlight, now)
	hook := m.onTransition
	m.mu.Unlock()

	m.logger.Info("Manual departure command applied")
	if hook != nil {
		hook(PhasePreDeparture, PhaseInFlight)
	}
	return nil
}

// Arrive forces the in_flight -> post_arrival transition
func (m *StateManager) Arrive(now time.Time) error {
	m.mu.Lock()
	if m.phase != PhaseInFlight {
		phase := m.phase
		m.mu.Unlock()
		return fmt.Errorf("cannot arrive: flight is %s, expected %s", phase, PhaseInFlight)
	}
	m.transitionLocked(PhasePostArrival, now)
	hook := m.onTransition
	m.mu.Unlock()

	m.logger.Info("Manual arrival command applied")
	if hook != nil {
		hook(PhaseInFlight, PhasePostArrival)
	}
	return nil
}

// Reset returns the machine from post_arrival to pre_departure, keeping the
// active route. Any other starting phase is rejected; use DeactivateRoute to
// reset unconditionally.
func (m *StateManager) Reset() error {
	m.mu.Lock()
	if m.phase != PhasePostArrival {
		phase := m.phase
		m.mu.Unlock()
		return fmt.Errorf("cannot reset: flight is %s, expected %s", phase, PhasePostArrival)
	}
	m.phase = PhasePreDeparture
	m.actualDeparture = nil
	m.actualArrival = nil
	m.withinArrivalSince = nil
	hook := m.onTransition
	m.mu.Unlock()

	m.logger.Info("Flight state reset to pre-departure")
	if hook != nil {
		hook(PhasePostArrival, PhasePreDeparture)
	}
	return nil
}

// transitionLocked applies a phase change; the caller holds the lock
func (m *StateManager) transitionLocked(to Phase, now time.Time) {
	switch to {
	case PhaseInFlight:
		t := now
		m.actualDeparture = &t
	case PhasePostArrival:
		t := now
		m.actualArrival = &t
	}
	m.phase = to
	m.withinArrivalSince = nil
}

// Phase returns the current flight phase
func (m *StateManager) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Mode returns the active ETA mode for the current phase
func (m *StateManager) Mode() ETAMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ModeForPhase(m.phase)
}

// ActiveRouteID returns the bound route, or empty when no route is active
func (m *StateManager) ActiveRouteID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeRouteID
}

// Snapshot returns a consistent copy of the flight status
func (m *StateManager) Snapshot(now time.Time) Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Status{
		Phase:              m.phase,
		ETAMode:            ModeForPhase(m.phase),
		ActiveRouteID:      m.activeRouteID,
		ScheduledDeparture: copyTime(m.scheduledDeparture),
		ScheduledArrival:   copyTime(m.scheduledArrival),
		ActualDeparture:    copyTime(m.actualDeparture),
		ActualArrival:      copyTime(m.actualArrival),
	}

	if m.phase == PhasePreDeparture && m.scheduledDeparture != nil {
		secs := m.scheduledDeparture.Sub(now).Seconds()
		if secs < 0 {
			secs = 0
		}
		st.TimeUntilDepartureSecs = &secs
	}
	if m.actualDeparture != nil {
		secs := now.Sub(*m.actualDeparture).Seconds()
		if secs < 0 {
			secs = 0
		}
		st.TimeSinceDepartureSecs = &secs
	}
	return st
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
