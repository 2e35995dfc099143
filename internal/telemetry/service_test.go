package telemetry

import (
	"testing"
	"time"

	"github.com/airlinked/commtime/internal/eta"
	"github.com/airlinked/commtime/internal/flight"
	"github.com/airlinked/commtime/internal/physics"
	"github.com/airlinked/commtime/internal/route"
	"github.com/airlinked/commtime/pkg/logger"
)

type fixture struct {
	svc      *Service
	state    *flight.StateManager
	cache    *eta.Cache
	accuracy *eta.AccuracyTracker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	state := flight.NewStateManager(flight.DefaultConfig(), logger.NewNop())
	cache := eta.NewCache(eta.DefaultCacheTTL)
	accuracy := eta.NewAccuracyTracker()
	svc := NewService(Config{}, state, cache, accuracy, 0, nil, nil, logger.NewNop())
	return &fixture{svc: svc, state: state, cache: cache, accuracy: accuracy}
}

func eastboundRoute() *route.Route {
	return &route.Route{
		ID: "leg-1",
		Points: []route.Point{
			{Name: "DEP", Lat: 44.0, Lon: -80.0},
			{Name: "MID", Lat: 44.0, Lon: -79.0},
			{Name: "ARR", Lat: 44.0, Lon: -78.0},
		},
	}
}

// sampleAlong returns a sample moved east from the departure point by the
// distance covered at speedKts over elapsed
func sampleAlong(t *testing.T, base time.Time, elapsed time.Duration, speedKts float64) PositionSample {
	t.Helper()
	dist := speedKts * physics.KnotsToMs * elapsed.Seconds()
	lat, lon, err := physics.DestinationPoint(44.0, -80.0, 90, dist)
	if err != nil {
		t.Fatal(err)
	}
	return PositionSample{Timestamp: base.Add(elapsed), Lat: lat, Lon: lon, Source: "feed"}
}

func TestActivateRouteRejectsDegenerate(t *testing.T) {
	f := newFixture(t)
	if err := f.svc.ActivateRoute(&route.Route{ID: "empty"}); err != route.ErrDegenerateRoute {
		t.Errorf("expected ErrDegenerateRoute, got %v", err)
	}
}

func TestIngestRejectsInvalidCoordinate(t *testing.T) {
	f := newFixture(t)
	err := f.svc.IngestPosition(PositionSample{Timestamp: time.Now(), Lat: 95, Lon: 0})
	if err == nil {
		t.Error("expected error for invalid coordinate")
	}
}

func TestIngestDrivesSpeedProgressAndDeparture(t *testing.T) {
	f := newFixture(t)
	if err := f.svc.ActivateRoute(eastboundRoute()); err != nil {
		t.Fatal(err)
	}

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := f.svc.IngestPosition(sampleAlong(t, base, 0, 200)); err != nil {
		t.Fatal(err)
	}
	if f.state.Phase() != flight.PhasePreDeparture {
		t.Error("one sample should not trigger departure")
	}

	if err := f.svc.IngestPosition(sampleAlong(t, base, 60*time.Second, 200)); err != nil {
		t.Fatal(err)
	}

	snap := f.svc.Snapshot(base.Add(time.Minute))
	if snap.RouteID != "leg-1" {
		t.Errorf("expected active route in snapshot, got %q", snap.RouteID)
	}
	if snap.SpeedKts < 190 || snap.SpeedKts > 210 {
		t.Errorf("expected ~200 kn smoothed speed, got %f", snap.SpeedKts)
	}
	if snap.Flight.Phase != flight.PhaseInFlight {
		t.Errorf("expected automatic departure above threshold, got %s", snap.Flight.Phase)
	}
	if snap.Progress == nil || snap.Progress.WaypointIndex != 1 {
		t.Errorf("expected progress toward waypoint 1, got %+v", snap.Progress)
	}
	if snap.SamplesIngested != 2 {
		t.Errorf("expected 2 ingested samples, got %d", snap.SamplesIngested)
	}
}

func TestWaypointPassScoresPrediction(t *testing.T) {
	f := newFixture(t)
	if err := f.svc.ActivateRoute(eastboundRoute()); err != nil {
		t.Fatal(err)
	}

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f.accuracy.RecordPrediction("leg-1", 1, 600, base)

	// A report past the mid waypoint advances the projection and scores
	// the outstanding prediction
	sample := PositionSample{Timestamp: base.Add(10 * time.Minute), Lat: 44.0, Lon: -78.9}
	if err := f.svc.IngestPosition(sample); err != nil {
		t.Fatal(err)
	}

	if f.accuracy.ScoredCount() != 1 {
		t.Fatalf("expected 1 scored waypoint, got %d", f.accuracy.ScoredCount())
	}
	if got := f.accuracy.AverageErrorSeconds(); got != 0 {
		t.Errorf("expected 0 s error for on-time pass, got %f", got)
	}
}

func TestPhaseChangeClearsETACache(t *testing.T) {
	f := newFixture(t)
	if err := f.svc.ActivateRoute(eastboundRoute()); err != nil {
		t.Fatal(err)
	}

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	calc := f.svc.Calculator()
	if calc == nil {
		t.Fatal("expected calculator after route activation")
	}
	if _, err := calc.ETAToWaypoint(now, 44.0, -80.0, 2); err != nil {
		t.Fatal(err)
	}
	if _, _, size := f.cache.Stats(); size != 1 {
		t.Fatalf("expected 1 cached estimate, got %d", size)
	}

	if err := f.state.Depart(now); err != nil {
		t.Fatal(err)
	}
	if _, _, size := f.cache.Stats(); size != 0 {
		t.Errorf("expected cache cleared on phase change, got %d entries", size)
	}
}

func TestDeactivateRouteClearsState(t *testing.T) {
	f := newFixture(t)
	if err := f.svc.ActivateRoute(eastboundRoute()); err != nil {
		t.Fatal(err)
	}
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := f.svc.IngestPosition(sampleAlong(t, base, 0, 0)); err != nil {
		t.Fatal(err)
	}

	f.svc.DeactivateRoute()

	snap := f.svc.Snapshot(base)
	if snap.RouteID != "" || snap.Position != nil || snap.Progress != nil {
		t.Errorf("expected cleared snapshot, got %+v", snap)
	}
	if f.state.Phase() != flight.PhasePreDeparture {
		t.Errorf("expected pre-departure after deactivation, got %s", f.state.Phase())
	}
	if f.svc.Calculator() != nil {
		t.Error("expected no calculator without an active route")
	}
}
