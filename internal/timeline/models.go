package timeline

import (
	"time"
)

// ChannelID identifies one of the three communication channels
type ChannelID string

const (
	ChannelX  ChannelID = "X"
	ChannelKa ChannelID = "Ka"
	ChannelKu ChannelID = "Ku"
)

// ChannelState is the availability state of a single channel
type ChannelState string

const (
	ChannelAvailable ChannelState = "available"
	ChannelDegraded  ChannelState = "degraded"
	ChannelOffline   ChannelState = "offline"
)

// CombinedStatus is the rolled-up status across all three channels.
// StatusWarning only appears through the conflict override; the builder
// itself produces the first three by the impact-counting rule.
type CombinedStatus string

const (
	StatusNominal  CombinedStatus = "NOMINAL"
	StatusDegraded CombinedStatus = "DEGRADED"
	StatusCritical CombinedStatus = "CRITICAL"
	StatusWarning  CombinedStatus = "WARNING"
)

// SegmentType separates normal status segments from reservation blocks
type SegmentType string

const (
	SegmentTypeStatus      SegmentType = "status"
	SegmentTypeReservation SegmentType = "reservation"
)

// Transition is a scheduled channel reassignment (satellite handover).
// The channel is degraded for the duration of the handover window.
type Transition struct {
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	FromSatellite string    `json:"from_satellite,omitempty"`
	ToSatellite   string    `json:"to_satellite,omitempty"`
	Reason        string    `json:"reason,omitempty"`
}

// Outage is a scheduled window during which the channel is offline
type Outage struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Reason string    `json:"reason,omitempty"`
}

// ReservationWindow is an "AAR" block: the channel is deliberately
// unavailable for communication for an unrelated operational purpose.
// Rendered as its own segment type, never as a degradation.
type ReservationWindow struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Purpose string    `json:"purpose,omitempty"`
}

// ChannelConfig declares one channel's identity, initial state and its
// ordered event lists for a mission leg
type ChannelConfig struct {
	ID               ChannelID           `json:"id"`
	InitialState     ChannelState        `json:"initial_state,omitempty"`
	InitialSatellite string              `json:"initial_satellite,omitempty"`
	Transitions      []Transition        `json:"transitions,omitempty"`
	Outages          []Outage            `json:"outages,omitempty"`
	Reservations     []ReservationWindow `json:"reservations,omitempty"`
}

// TransportConfig is the full declarative input for one mission leg's
// timeline computation. It is treated as immutable once handed to the
// builder; recomputation always starts from a fresh config snapshot.
type TransportConfig struct {
	MissionID    string          `json:"mission_id"`
	LegID        string          `json:"leg_id"`
	MissionStart time.Time       `json:"mission_start"`
	MissionEnd   time.Time       `json:"mission_end"`
	Channels     []ChannelConfig `json:"channels"`
}

// SegmentMetadata carries the known metadata kinds as explicit fields.
// Extra exists only for genuinely open-ended annotations.
type SegmentMetadata struct {
	ActiveSatellites   []string          `json:"active_satellites,omitempty"`
	ReservationChannel ChannelID         `json:"reservation_channel,omitempty"`
	ReservationPurpose string            `json:"reservation_purpose,omitempty"`
	Extra              map[string]string `json:"extra,omitempty"`
}

// Segment is a maximal interval with constant combined status and channel
// states. Segments are contiguous and non-overlapping and together cover
// exactly [MissionStart, MissionEnd]. Reservation segments carry no
// combined status or channel states; the block itself is the display
// state for the window.
type Segment struct {
	Start            time.Time                  `json:"start"`
	End              time.Time                  `json:"end"`
	Type             SegmentType                `json:"type"`
	CombinedStatus   CombinedStatus             `json:"combined_status,omitempty"`
	ChannelStates    map[ChannelID]ChannelState `json:"channel_states,omitempty"`
	ImpactedChannels []ChannelID                `json:"impacted_channels,omitempty"`
	Reasons          []string                   `json:"reasons,omitempty"`
	Metadata         *SegmentMetadata           `json:"metadata,omitempty"`
}

// DurationSeconds returns the segment length in seconds
func (s *Segment) DurationSeconds() float64 {
	return s.End.Sub(s.Start).Seconds()
}

// AdvisoryEventType labels the boundary crossing an advisory marks
type AdvisoryEventType string

const (
	EventTransitionStart  AdvisoryEventType = "transition_start"
	EventTransitionEnd    AdvisoryEventType = "transition_end"
	EventOutageStart      AdvisoryEventType = "outage_start"
	EventOutageEnd        AdvisoryEventType = "outage_end"
	EventReservationStart AdvisoryEventType = "reservation_start"
	EventReservationEnd   AdvisoryEventType = "reservation_end"
	EventConflictStart    AdvisoryEventType = "conflict_start"
	EventConflictEnd      AdvisoryEventType = "conflict_end"
)

// AdvisorySeverity grades an advisory
type AdvisorySeverity string

const (
	SeverityInfo     AdvisorySeverity = "info"
	SeverityWarning  AdvisorySeverity = "warning"
	SeverityCritical AdvisorySeverity = "critical"
)

// Advisory is a discrete timestamped event derived from the timeline
type Advisory struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType AdvisoryEventType `json:"event_type"`
	Channel   ChannelID         `json:"channel,omitempty"`
	Severity  AdvisorySeverity  `json:"severity"`
	Message   string            `json:"message"`
}

// Statistics is the public duration rollup, serialized in API responses.
// Reservation time lives in InternalStatistics, never here.
type Statistics struct {
	TotalSeconds    float64 `json:"total_seconds"`
	NominalSeconds  float64 `json:"nominal_seconds"`
	DegradedSeconds float64 `json:"degraded_seconds"`
	CriticalSeconds float64 `json:"critical_seconds"`
	WarningSeconds  float64 `json:"warning_seconds"`
	AdvisoryCount   int     `json:"advisory_count"`
}

// InternalStatistics holds operator-facing buckets that are deliberately
// kept out of the public rollup and never serialized
type InternalStatistics struct {
	ReservationSeconds float64
	ReservationCount   int
}

// MissionTimeline is the immutable product of one computation pass for one
// mission leg. A changed TransportConfig produces a brand-new timeline;
// there is no patching path.
type MissionTimeline struct {
	MissionID     string             `json:"mission_id"`
	LegID         string             `json:"leg_id"`
	ComputationID string             `json:"computation_id"`
	Start         time.Time          `json:"start"`
	End           time.Time          `json:"end"`
	GeneratedAt   time.Time          `json:"generated_at"`
	Segments      []Segment          `json:"segments"`
	Advisories    []Advisory         `json:"advisories"`
	Stats         Statistics         `json:"stats"`
	Internal      InternalStatistics `json:"-"`
}

/// CombineStates applies the counting rule: zero impacted channels is
// NOMINAL, exactly one is DEGRADED, two or more is CRITICAL
func CombineStates(states map[ChannelID]ChannelState) (CombinedStatus, []ChannelID) {
	var impacted []ChannelID
	for _, id := range [...]ChannelID{ChannelX, ChannelKa, ChannelKu} {
		if st, ok := states[id]; ok && st != ChannelAvailable {
			impacted = append(impacted, id)
		}
	}
	// Channels outside the standard three still count
	for id, st := range states {
		if id != ChannelX && id != ChannelKa && id != ChannelKu && st != ChannelAvailable {
			impacted = append(impacted, id)
		}
	}

	switch len(impacted) {
	case 0:
		return StatusNominal, nil
	case 1:
		return StatusDegraded, impacted
	default:
		return StatusCritical, impacted
	}
}
