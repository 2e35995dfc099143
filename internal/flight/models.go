package flight

import "time"

// Phase represents the flight phase of the platform
type Phase string

const (
	PhasePreDeparture Phase = "pre_departure"
	PhaseInFlight     Phase = "in_flight"
	PhasePostArrival  Phase = "post_arrival"
)

// ETAMode selects which ETA computation strategy is active
type ETAMode string

const (
	ETAModeAnticipated ETAMode = "anticipated" // planned-schedule based
	ETAModeEstimated   ETAMode = "estimated"   // live-performance based
)

// ModeForPhase returns the ETA mode for a flight phase. The mode is a pure
// function of phase: only pre-departure uses the planned schedule.
func ModeForPhase(p Phase) ETAMode {
	if p == PhasePreDeparture {
		return ETAModeAnticipated
	}
	return ETAModeEstimated
}

// Status is an immutable snapshot of the flight state. Readers always get
// a copy; the live record never leaves the manager's lock.
type Status struct {
	Phase                  Phase      `json:"phase"`
	ETAMode                ETAMode    `json:"eta_mode"`
	ActiveRouteID          string     `json:"active_route_id,omitempty"`
	ScheduledDeparture     *time.Time `json:"scheduled_departure,omitempty"`
	ScheduledArrival       *time.Time `json:"scheduled_arrival,omitempty"`
	ActualDeparture        *time.Time `json:"actual_departure,omitempty"`
	ActualArrival          *time.Time `json:"actual_arrival,omitempty"`
	TimeUntilDepartureSecs *float64   `json:"time_until_departure_secs,omitempty"`
	TimeSinceDepartureSecs *float64   `json:"time_since_departure_secs,omitempty"`
}

// Config holds the transition thresholds for automatic phase detection
type Config struct {
	DepartureThresholdKts float64       // smoothed speed above which departure is detected
	ArrivalRadiusM        float64       // distance to destination considered "arrived"
	ArrivalHold           time.Duration // how long the platform must stay inside the radius
}

// DefaultConfig returns the standard transition thresholds
func DefaultConfig() Config {
	return Config{
		DepartureThresholdKts: 40.0,
		ArrivalRadiusM:        100.0,
		ArrivalHold:           60 * time.Second,
	}
}
