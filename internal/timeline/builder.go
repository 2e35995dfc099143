package timeline

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/airlinked/commtime/pkg/logger"
)

// Builder turns a declarative TransportConfig into a MissionTimeline.
// The computation is a full rebuild every time: collect every event
// boundary, evaluate channel states on each elementary interval, merge
// runs of identical status, overlay reservation windows, then layer
// conflicts, advisories and stats on top. Builders are stateless and
// safe for concurrent use.
type Builder struct {
	logger    *logger.Logger
	conflicts *ConflictDetector
}

// NewBuilder creates a timeline builder
func NewBuilder(log *logger.Logger) *Builder {
	return &Builder{
		logger:    log.Named("timeline"),
		conflicts: NewConflictDetector(),
	}
}

// Build computes the timeline for one mission leg. The returned timeline
// covers [MissionStart, MissionEnd] exactly, with no gaps or overlaps.
func (b *Builder) Build(cfg TransportConfig) (*MissionTimeline, error) {
	if err := b.validate(cfg); err != nil {
		return nil, err
	}

	boundaries := b.collectBoundaries(cfg)
	segments := b.sweep(cfg, boundaries)
	segments = mergeAdjacent(segments)
	segments = overlayReservations(cfg, segments)
	conflictRanges := b.conflicts.Apply(segments)
	advisories := buildAdvisories(cfg, conflictRanges)
	stats, internal := aggregate(segments, len(advisories))

	tl := &MissionTimeline{
		MissionID:     cfg.MissionID,
		LegID:         cfg.LegID,
		ComputationID: uuid.NewString(),
		Start:         cfg.MissionStart,
		End:           cfg.MissionEnd,
		GeneratedAt:   time.Now().UTC(),
		Segments:      segments,
		Advisories:    advisories,
		Stats:         stats,
		Internal:      internal,
	}

	b.logger.Debug("Built mission timeline",
		logger.String("mission_id", cfg.MissionID),
		logger.String("leg_id", cfg.LegID),
		logger.String("computation_id", tl.ComputationID),
		logger.Int("segments", len(segments)),
		logger.Int("advisories", len(advisories)))
	return tl, nil
}

func (b *Builder) validate(cfg TransportConfig) error {
	if cfg.LegID == "" {
		return fmt.Errorf("transport config missing leg ID")
	}
	if !cfg.MissionEnd.After(cfg.MissionStart) {
		return fmt.Errorf("leg %s: mission end %s not after start %s",
			cfg.LegID, cfg.MissionEnd.Format(time.RFC3339), cfg.MissionStart.Format(time.RFC3339))
	}
	if len(cfg.Channels) != 3 {
		return fmt.Errorf("leg %s: expected 3 channels, got %d", cfg.LegID, len(cfg.Channels))
	}

	seen := make(map[ChannelID]bool, 3)
	for _, ch := range cfg.Channels {
		if ch.ID == "" {
			return fmt.Errorf("leg %s: channel with empty ID", cfg.LegID)
		}
		if seen[ch.ID] {
			return fmt.Errorf("leg %s: duplicate channel %s", cfg.LegID, ch.ID)
		}
		seen[ch.ID] = true

		for i, tr := range ch.Transitions {
			if !tr.End.After(tr.Start) {
				return fmt.Errorf("leg %s: channel %s transition %d has non-positive window", cfg.LegID, ch.ID, i)
			}
		}
		for i, o := range ch.Outages {
			if !o.End.After(o.Start) {
				return fmt.Errorf("leg %s: channel %s outage %d has non-positive window", cfg.LegID, ch.ID, i)
			}
		}
		for i, rw := range ch.Reservations {
			if !rw.End.After(rw.Start) {
				return fmt.Errorf("leg %s: channel %s reservation %d has non-positive window", cfg.LegID, ch.ID, i)
			}
		}
	}
	return nil
}

// collectBoundaries gathers every instant at which any channel's state can
// change, clipped to the mission window, sorted and deduplicated. The
// mission start and end always bracket the list. Reservation windows are
// not boundaries here; they are overlaid after the status merge.
func (b *Builder) collectBoundaries(cfg TransportConfig) []time.Time {
	set := map[time.Time]bool{
		cfg.MissionStart: true,
		cfg.MissionEnd:   true,
	}
	add := func(t time.Time) {
		if t.After(cfg.MissionStart) && t.Before(cfg.MissionEnd) {
			set[t] = true
		}
	}
	for _, ch := range cfg.Channels {
		for _, tr := range ch.Transitions {
			add(tr.Start)
			add(tr.End)
		}
		for _, o := range ch.Outages {
			add(o.Start)
			add(o.End)
		}
	}

	boundaries := make([]time.Time, 0, len(set))
	for t := range set {
		boundaries = append(boundaries, t)
	}
	sort.Slice(boundaries, func(i, j int) bool { return boundaries[i].Before(boundaries[j]) })
	return boundaries
}

// sweep evaluates each elementary interval between consecutive boundaries.
// Interval membership is [start, end): an event's start instant belongs to
// the event, its end instant does not.
func (b *Builder) sweep(cfg TransportConfig, boundaries []time.Time) []Segment {
	segments := make([]Segment, 0, len(boundaries)-1)
	for i := 0; i < len(boundaries)-1; i++ {
		at := boundaries[i]
		seg := Segment{
			Start: at,
			End:   boundaries[i+1],
			Type:  SegmentTypeStatus,
		}

		states := make(map[ChannelID]ChannelState, len(cfg.Channels))
		var reasons []string
		var satellites []string
		for _, ch := range cfg.Channels {
			state, reason, sat := channelStateAt(ch, at)
			states[ch.ID] = state
			if reason != "" {
				reasons = append(reasons, reason)
			}
			if sat != "" {
				satellites = append(satellites, fmt.Sprintf("%s:%s", ch.ID, sat))
			}
		}

		seg.ChannelStates = states
		seg.CombinedStatus, seg.ImpactedChannels = CombineStates(states)
		seg.Reasons = reasons
		if len(satellites) > 0 {
			seg.Metadata = &SegmentMetadata{ActiveSatellites: satellites}
		}
		segments = append(segments, seg)
	}
	return segments
}

// channelStateAt resolves one channel's state at an instant. An outage
// covering the instant wins over a transition covering it, including the
// coincident-start case where both begin at the same timestamp.
func channelStateAt(ch ChannelConfig, at time.Time) (state ChannelState, reason, satellite string) {
	satellite = ch.InitialSatellite
	for _, tr := range ch.Transitions {
		if tr.ToSatellite != "" && !tr.End.After(at) {
			satellite = tr.ToSatellite
		}
	}

	for _, o := range ch.Outages {
		if covers(o.Start, o.End, at) {
			reason = o.Reason
			if reason == "" {
				reason = fmt.Sprintf("%s channel outage", ch.ID)
			}
			return ChannelOffline, reason, satellite
		}
	}

	for _, tr := range ch.Transitions {
		if covers(tr.Start, tr.End, at) {
			reason = tr.Reason
			if reason == "" {
				reason = fmt.Sprintf("%s satellite handover", ch.ID)
				if tr.FromSatellite != "" && tr.ToSatellite != "" {
					reason = fmt.Sprintf("%s satellite handover %s to %s", ch.ID, tr.FromSatellite, tr.ToSatellite)
				}
			}
			return ChannelDegraded, reason, satellite
		}
	}

	state = ch.InitialState
	if state == "" {
		state = ChannelAvailable
	}
	return state, "", satellite
}

// covers reports whether at falls in [start, end)
func covers(start, end, at time.Time) bool {
	return !at.Before(start) && at.Before(end)
}

// mergeAdjacent collapses consecutive status segments whose observable
// content is identical
func mergeAdjacent(segments []Segment) []Segment {
	if len(segments) == 0 {
		return segments
	}
	merged := make([]Segment, 0, len(segments))
	merged = append(merged, segments[0])
	for _, seg := range segments[1:] {
		last := &merged[len(merged)-1]
		if sameContent(*last, seg) {
			last.End = seg.End
			continue
		}
		merged = append(merged, seg)
	}
	return merged
}

// overlayReservations carves each reservation window out of the merged
// status timeline and inserts a single reservation segment in its place.
// Whatever degradations or outages fall inside the window are hidden by
// the block; stats account for them separately. Where two windows
// overlap, the earlier one keeps the contested range.
func overlayReservations(cfg TransportConfig, segments []Segment) []Segment {
	type window struct {
		channel ChannelID
		rw      ReservationWindow
	}
	var windows []window
	for _, ch := range cfg.Channels {
		for _, rw := range ch.Reservations {
			clipped := rw
			if clipped.Start.Before(cfg.MissionStart) {
				clipped.Start = cfg.MissionStart
			}
			if clipped.End.After(cfg.MissionEnd) {
				clipped.End = cfg.MissionEnd
			}
			if clipped.End.After(clipped.Start) {
				windows = append(windows, window{channel: ch.ID, rw: clipped})
			}
		}
	}
	sort.Slice(windows, func(i, j int) bool { return windows[i].rw.Start.Before(windows[j].rw.Start) })

	for _, w := range windows {
		out := make([]Segment, 0, len(segments)+2)
		var spanStart, spanEnd *time.Time
		flush := func() {
			if spanStart == nil {
				return
			}
			out = append(out, Segment{
				Start: *spanStart,
				End:   *spanEnd,
				Type:  SegmentTypeReservation,
				Metadata: &SegmentMetadata{
					ReservationChannel: w.channel,
					ReservationPurpose: w.rw.Purpose,
				},
			})
			spanStart, spanEnd = nil, nil
		}

		for _, seg := range segments {
			if !seg.End.After(w.rw.Start) || !seg.Start.Before(w.rw.End) {
				flush()
				out = append(out, seg)
				continue
			}
			// Already-reserved ranges stay with the earlier window
			if seg.Type == SegmentTypeReservation {
				flush()
				out = append(out, seg)
				continue
			}

			before, covered, after := splitSegment(seg, w.rw.Start, w.rw.End)
			if before != nil {
				flush()
				out = append(out, *before)
			}
			if spanStart == nil {
				spanStart = &covered.Start
			}
			spanEnd = &covered.End
			if after != nil {
				flush()
				out = append(out, *after)
			}
		}
		flush()
		segments = out
	}
	return segments
}

// splitSegment cuts a status segment against [start, end), returning the
// uncovered head, the covered middle and the uncovered tail
func splitSegment(seg Segment, start, end time.Time) (before *Segment, covered Segment, after *Segment) {
	covered = seg
	if seg.Start.Before(start) {
		head := seg
		head.End = start
		before = &head
		covered.Start = start
	}
	if seg.End.After(end) {
		tail := seg
		tail.Start = end
		after = &tail
		covered.End = end
	}
	return before, covered, after
}

func sameContent(a, b Segment) bool {
	if a.Type != b.Type || a.CombinedStatus != b.CombinedStatus {
		return false
	}
	if len(a.ChannelStates) != len(b.ChannelStates) {
		return false
	}
	for id, st := range a.ChannelStates {
		if b.ChannelStates[id] != st {
			return false
		}
	}
	if !sameStrings(a.Reasons, b.Reasons) {
		return false
	}
	return sameMetadata(a.Metadata, b.Metadata)
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sameMetadata(a, b *SegmentMetadata) bool {
	switch {
	case a == nil && b == nil:
		return true
	case a == nil || b == nil:
		return false
	}
	return sameStrings(a.ActiveSatellites, b.ActiveSatellites) &&
		a.ReservationChannel == b.ReservationChannel &&
		a.ReservationPurpose == b.ReservationPurpose
}
