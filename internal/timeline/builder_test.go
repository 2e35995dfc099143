package timeline

import (
	"reflect"
	"testing"
	"time"

	"github.com/airlinked/commtime/pkg/logger"
)

var missionStart = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func baseConfig() TransportConfig {
	return TransportConfig{
		MissionID:    "msn-100",
		LegID:        "leg-1",
		MissionStart: missionStart,
		MissionEnd:   missionStart.Add(time.Hour),
		Channels: []ChannelConfig{
			{ID: ChannelX},
			{ID: ChannelKa},
			{ID: ChannelKu},
		},
	}
}

func min(m int) time.Time {
	return missionStart.Add(time.Duration(m) * time.Minute)
}

// assertCoverage checks the structural invariant: segments are contiguous,
// non-overlapping, strictly positive and cover the mission window exactly
func assertCoverage(t *testing.T, tl *MissionTimeline) {
	t.Helper()
	if len(tl.Segments) == 0 {
		t.Fatal("expected at least one segment")
	}
	if !tl.Segments[0].Start.Equal(tl.Start) {
		t.Errorf("first segment starts at %s, mission at %s", tl.Segments[0].Start, tl.Start)
	}
	if !tl.Segments[len(tl.Segments)-1].End.Equal(tl.End) {
		t.Errorf("last segment ends at %s, mission at %s", tl.Segments[len(tl.Segments)-1].End, tl.End)
	}
	for i, seg := range tl.Segments {
		if !seg.End.After(seg.Start) {
			t.Errorf("segment %d has non-positive duration", i)
		}
		if i > 0 && !seg.Start.Equal(tl.Segments[i-1].End) {
			t.Errorf("gap or overlap between segments %d and %d", i-1, i)
		}
	}
}

func TestSingleTransitionProducesThreeSegments(t *testing.T) {
	cfg := baseConfig()
	cfg.Channels[0].Transitions = []Transition{{Start: min(10), End: min(20)}}

	tl, err := NewBuilder(logger.NewNop()).Build(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertCoverage(t, tl)

	if len(tl.Segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(tl.Segments))
	}
	if tl.Segments[0].CombinedStatus != StatusNominal {
		t.Errorf("segment 0: expected NOMINAL, got %s", tl.Segments[0].CombinedStatus)
	}
	mid := tl.Segments[1]
	if mid.CombinedStatus != StatusDegraded {
		t.Errorf("segment 1: expected DEGRADED, got %s", mid.CombinedStatus)
	}
	if len(mid.ImpactedChannels) != 1 || mid.ImpactedChannels[0] != ChannelX {
		t.Errorf("segment 1: expected impacted [X], got %v", mid.ImpactedChannels)
	}
	if !mid.Start.Equal(min(10)) || !mid.End.Equal(min(20)) {
		t.Errorf("segment 1 spans %s to %s", mid.Start, mid.End)
	}
	if tl.Segments[2].CombinedStatus != StatusNominal {
		t.Errorf("segment 2: expected NOMINAL, got %s", tl.Segments[2].CombinedStatus)
	}
}

func TestOverlappingOutagesGoCritical(t *testing.T) {
	cfg := baseConfig()
	cfg.Channels[0].Outages = []Outage{{Start: min(10), End: min(30), Reason: "ground station maintenance"}}
	cfg.Channels[1].Outages = []Outage{{Start: min(20), End: min(40)}}

	tl, err := NewBuilder(logger.NewNop()).Build(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertCoverage(t, tl)

	// N | DEG[X] | CRIT[X,Ka] | DEG[Ka] | N
	want := []CombinedStatus{StatusNominal, StatusDegraded, StatusCritical, StatusDegraded, StatusNominal}
	if len(tl.Segments) != len(want) {
		t.Fatalf("expected %d segments, got %d", len(want), len(tl.Segments))
	}
	for i, st := range want {
		if tl.Segments[i].CombinedStatus != st {
			t.Errorf("segment %d: expected %s, got %s", i, st, tl.Segments[i].CombinedStatus)
		}
	}
	crit := tl.Segments[2]
	if len(crit.ImpactedChannels) != 2 {
		t.Errorf("expected 2 impacted channels, got %v", crit.ImpactedChannels)
	}
	if crit.ChannelStates[ChannelX] != ChannelOffline || crit.ChannelStates[ChannelKa] != ChannelOffline {
		t.Errorf("expected both channels offline, got %v", crit.ChannelStates)
	}
}

func TestOutageWinsOverCoincidentTransition(t *testing.T) {
	cfg := baseConfig()
	cfg.Channels[0].Outages = []Outage{{Start: min(10), End: min(20), Reason: "power cycle"}}
	cfg.Channels[0].Transitions = []Transition{{Start: min(10), End: min(20)}}

	tl, err := NewBuilder(logger.NewNop()).Build(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mid := tl.Segments[1]
	if mid.ChannelStates[ChannelX] != ChannelOffline {
		t.Errorf("expected outage to win the coincident boundary, got %s", mid.ChannelStates[ChannelX])
	}
	if len(mid.Reasons) != 1 || mid.Reasons[0] != "power cycle" {
		t.Errorf("expected the outage reason, got %v", mid.Reasons)
	}
}

func TestBackToBackOutagesMerge(t *testing.T) {
	cfg := baseConfig()
	cfg.Channels[0].Outages = []Outage{
		{Start: min(10), End: min(20), Reason: "maintenance"},
		{Start: min(20), End: min(30), Reason: "maintenance"},
	}

	tl, err := NewBuilder(logger.NewNop()).Build(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertCoverage(t, tl)

	if len(tl.Segments) != 3 {
		t.Fatalf("expected the identical runs to merge into 3 segments, got %d", len(tl.Segments))
	}
	if !tl.Segments[1].Start.Equal(min(10)) || !tl.Segments[1].End.Equal(min(30)) {
		t.Errorf("merged segment spans %s to %s", tl.Segments[1].Start, tl.Segments[1].End)
	}
}

func TestReservationHidesContainedOutages(t *testing.T) {
	cfg := baseConfig()
	cfg.Channels[1].Reservations = []ReservationWindow{{Start: min(30), End: min(45), Purpose: "AAR"}}
	cfg.Channels[0].Outages = []Outage{{Start: min(32), End: min(40)}}
	cfg.Channels[2].Outages = []Outage{{Start: min(35), End: min(42)}}

	tl, err := NewBuilder(logger.NewNop()).Build(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertCoverage(t, tl)

	// The two outages overlap inside the window and would read CRITICAL,
	// but the reservation block owns the whole interval
	if len(tl.Segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(tl.Segments))
	}
	res := tl.Segments[1]
	if res.Type != SegmentTypeReservation {
		t.Fatalf("expected reservation segment, got %s %s", res.Type, res.CombinedStatus)
	}
	if !res.Start.Equal(min(30)) || !res.End.Equal(min(45)) {
		t.Errorf("reservation spans %s to %s", res.Start, res.End)
	}
	if res.Metadata == nil || res.Metadata.ReservationPurpose != "AAR" || res.Metadata.ReservationChannel != ChannelKa {
		t.Errorf("unexpected reservation metadata: %+v", res.Metadata)
	}

	if tl.Stats.CriticalSeconds != 0 || tl.Stats.DegradedSeconds != 0 {
		t.Errorf("reserved time leaked into public buckets: %+v", tl.Stats)
	}
	if tl.Stats.NominalSeconds != 45*60 {
		t.Errorf("expected 2700 nominal seconds, got %f", tl.Stats.NominalSeconds)
	}
	if tl.Internal.ReservationSeconds != 15*60 || tl.Internal.ReservationCount != 1 {
		t.Errorf("expected 900 reserved seconds in 1 block, got %+v", tl.Internal)
	}
}

func TestReservationWinsCoincidentBoundary(t *testing.T) {
	cfg := baseConfig()
	// Outage and reservation both start at T+10 on different channels
	cfg.Channels[0].Outages = []Outage{{Start: min(10), End: min(20)}}
	cfg.Channels[1].Reservations = []ReservationWindow{{Start: min(10), End: min(15), Purpose: "AAR"}}

	tl, err := NewBuilder(logger.NewNop()).Build(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertCoverage(t, tl)

	if tl.Segments[1].Type != SegmentTypeReservation {
		t.Errorf("expected the reservation to take the contested boundary, got %s", tl.Segments[1].Type)
	}
	// The outage reappears once the reservation releases the channel
	after := tl.Segments[2]
	if after.CombinedStatus != StatusDegraded || after.ChannelStates[ChannelX] != ChannelOffline {
		t.Errorf("expected the outage to resurface at %s: %+v", min(15), after)
	}
}

func TestSatelliteHandoverTracksMetadata(t *testing.T) {
	cfg := baseConfig()
	cfg.Channels[0].InitialSatellite = "SAT-A"
	cfg.Channels[0].Transitions = []Transition{
		{Start: min(10), End: min(20), FromSatellite: "SAT-A", ToSatellite: "SAT-B"},
	}

	tl, err := NewBuilder(logger.NewNop()).Build(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first := tl.Segments[0]
	if first.Metadata == nil || first.Metadata.ActiveSatellites[0] != "X:SAT-A" {
		t.Errorf("expected initial satellite in metadata, got %+v", first.Metadata)
	}
	mid := tl.Segments[1]
	if len(mid.Reasons) != 1 || mid.Reasons[0] != "X satellite handover SAT-A to SAT-B" {
		t.Errorf("unexpected handover reason: %v", mid.Reasons)
	}
	last := tl.Segments[2]
	if last.Metadata == nil || last.Metadata.ActiveSatellites[0] != "X:SAT-B" {
		t.Errorf("expected new satellite after handover, got %+v", last.Metadata)
	}
}

func TestEventsClippedToMissionWindow(t *testing.T) {
	cfg := baseConfig()
	cfg.Channels[0].Outages = []Outage{{Start: missionStart.Add(-10 * time.Minute), End: min(10)}}
	cfg.Channels[1].Reservations = []ReservationWindow{{Start: min(55), End: min(70), Purpose: "AAR"}}

	tl, err := NewBuilder(logger.NewNop()).Build(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertCoverage(t, tl)

	if !tl.Segments[0].Start.Equal(missionStart) || tl.Segments[0].CombinedStatus != StatusDegraded {
		t.Errorf("expected the straddling outage clipped to mission start: %+v", tl.Segments[0])
	}
	last := tl.Segments[len(tl.Segments)-1]
	if last.Type != SegmentTypeReservation || !last.End.Equal(cfg.MissionEnd) {
		t.Errorf("expected the reservation clipped to mission end: %+v", last)
	}
}

func TestRecomputationIsDeterministic(t *testing.T) {
	cfg := baseConfig()
	cfg.Channels[0].Transitions = []Transition{{Start: min(5), End: min(12), ToSatellite: "SAT-B"}}
	cfg.Channels[0].Outages = []Outage{{Start: min(12), End: min(18), Reason: "maintenance"}}
	cfg.Channels[1].Outages = []Outage{{Start: min(15), End: min(25)}}
	cfg.Channels[2].Reservations = []ReservationWindow{{Start: min(40), End: min(50), Purpose: "AAR"}}

	b := NewBuilder(logger.NewNop())
	first, err := b.Build(cfg)
	if err != nil {
		t.Fatal(err)
	}
	second, err := b.Build(cfg)
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(first.Segments, second.Segments) {
		t.Error("expected identical segments on recomputation")
	}
	if !reflect.DeepEqual(first.Advisories, second.Advisories) {
		t.Error("expected identical advisories on recomputation")
	}
	if first.Stats != second.Stats {
		t.Errorf("expected identical stats: %+v vs %+v", first.Stats, second.Stats)
	}
	if first.ComputationID == second.ComputationID {
		t.Error("expected distinct computation IDs per pass")
	}
}

func TestStatsTotalMatchesMissionDuration(t *testing.T) {
	cfg := baseConfig()
	cfg.Channels[0].Outages = []Outage{{Start: min(10), End: min(20)}}
	cfg.Channels[1].Reservations = []ReservationWindow{{Start: min(30), End: min(40), Purpose: "AAR"}}

	tl, err := NewBuilder(logger.NewNop()).Build(cfg)
	if err != nil {
		t.Fatal(err)
	}

	if tl.Stats.TotalSeconds != 3600 {
		t.Errorf("expected 3600 total seconds, got %f", tl.Stats.TotalSeconds)
	}
	public := tl.Stats.NominalSeconds + tl.Stats.DegradedSeconds +
		tl.Stats.CriticalSeconds + tl.Stats.WarningSeconds
	if public+tl.Internal.ReservationSeconds != tl.Stats.TotalSeconds {
		t.Errorf("buckets do not sum to total: public %f + reserved %f != %f",
			public, tl.Internal.ReservationSeconds, tl.Stats.TotalSeconds)
	}
}

func TestAdvisoriesSortedWithOneEntryPerCrossing(t *testing.T) {
	cfg := baseConfig()
	cfg.Channels[0].Transitions = []Transition{{Start: min(10), End: min(20), ToSatellite: "SAT-B"}}
	cfg.Channels[1].Outages = []Outage{{Start: min(15), End: min(25), Reason: "maintenance"}}
	cfg.Channels[2].Reservations = []ReservationWindow{{Start: min(40), End: min(50), Purpose: "AAR"}}

	tl, err := NewBuilder(logger.NewNop()).Build(cfg)
	if err != nil {
		t.Fatal(err)
	}

	if len(tl.Advisories) != 6 {
		t.Fatalf("expected 6 advisories, got %d", len(tl.Advisories))
	}
	for i := 1; i < len(tl.Advisories); i++ {
		if tl.Advisories[i].Timestamp.Before(tl.Advisories[i-1].Timestamp) {
			t.Errorf("advisories out of order at %d", i)
		}
	}
	if tl.Advisories[0].EventType != EventTransitionStart || tl.Advisories[0].Severity != SeverityInfo {
		t.Errorf("unexpected first advisory: %+v", tl.Advisories[0])
	}
	if tl.Advisories[1].EventType != EventOutageStart || tl.Advisories[1].Severity != SeverityWarning {
		t.Errorf("unexpected outage advisory: %+v", tl.Advisories[1])
	}
	if tl.Stats.AdvisoryCount != 6 {
		t.Errorf("stats advisory count %d", tl.Stats.AdvisoryCount)
	}
}

func TestValidationRejectsMalformedConfigs(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*TransportConfig)
	}{
		{"missing leg ID", func(c *TransportConfig) { c.LegID = "" }},
		{"end before start", func(c *TransportConfig) { c.MissionEnd = c.MissionStart.Add(-time.Hour) }},
		{"too few channels", func(c *TransportConfig) { c.Channels = c.Channels[:2] }},
		{"duplicate channel", func(c *TransportConfig) { c.Channels[2].ID = ChannelX }},
		{"inverted outage", func(c *TransportConfig) {
			c.Channels[0].Outages = []Outage{{Start: min(20), End: min(10)}}
		}},
		{"zero-length transition", func(c *TransportConfig) {
			c.Channels[0].Transitions = []Transition{{Start: min(10), End: min(10)}}
		}},
	}

	b := NewBuilder(logger.NewNop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			tt.mutate(&cfg)
			if _, err := b.Build(cfg); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
