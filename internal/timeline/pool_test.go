package timeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/airlinked/commtime/pkg/logger"
)

func TestBuildAllPreservesOrder(t *testing.T) {
	var configs []TransportConfig
	for _, leg := range []string{"leg-1", "leg-2", "leg-3", "leg-4", "leg-5"} {
		cfg := baseConfig()
		cfg.LegID = leg
		cfg.Channels[0].Outages = []Outage{{Start: min(10), End: min(20)}}
		configs = append(configs, cfg)
	}

	results := NewBuilder(logger.NewNop()).BuildAll(context.Background(), configs, 2)
	if len(results) != len(configs) {
		t.Fatalf("expected %d results, got %d", len(configs), len(results))
	}
	for i, res := range results {
		if res.LegID != configs[i].LegID {
			t.Errorf("result %d: expected %s, got %s", i, configs[i].LegID, res.LegID)
		}
		if res.Err != nil {
			t.Errorf("leg %s: unexpected error %v", res.LegID, res.Err)
		}
		if res.Timeline == nil || len(res.Timeline.Segments) != 3 {
			t.Errorf("leg %s: unexpected timeline %+v", res.LegID, res.Timeline)
		}
	}
}

func TestBuildAllIsolatesFailures(t *testing.T) {
	good := baseConfig()
	good.LegID = "leg-ok"

	bad := baseConfig()
	bad.LegID = "leg-bad"
	bad.Channels = bad.Channels[:1]

	tail := baseConfig()
	tail.LegID = "leg-tail"

	results := NewBuilder(logger.NewNop()).BuildAll(context.Background(),
		[]TransportConfig{good, bad, tail}, 2)

	if results[0].Err != nil || results[0].Timeline == nil {
		t.Errorf("leg-ok should succeed: %+v", results[0])
	}
	if results[1].Err == nil {
		t.Error("leg-bad should fail validation")
	}
	if results[2].Err != nil || results[2].Timeline == nil {
		t.Errorf("leg-tail should succeed despite the earlier failure: %+v", results[2])
	}
}

func TestBuildAllHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var configs []TransportConfig
	for i := 0; i < 8; i++ {
		cfg := baseConfig()
		cfg.LegID = fmt.Sprintf("leg-%d", i)
		configs = append(configs, cfg)
	}

	results := NewBuilder(logger.NewNop()).BuildAll(ctx, configs, 2)
	if len(results) != len(configs) {
		t.Fatalf("expected %d results, got %d", len(configs), len(results))
	}
	// Dispatch races the cancelled context, so some legs may still have
	// completed; every result must be either a built timeline or ctx.Err
	for i, res := range results {
		switch {
		case res.Timeline != nil && res.Err == nil:
		case res.Timeline == nil && res.Err == context.Canceled:
		default:
			t.Errorf("result %d in inconsistent state: %+v", i, res)
		}
	}
}

func TestBuildAllDefaultWorkerCount(t *testing.T) {
	cfg := baseConfig()
	results := NewBuilder(logger.NewNop()).BuildAll(context.Background(), []TransportConfig{cfg}, 0)
	if len(results) != 1 || results[0].Err != nil {
		t.Fatalf("unexpected results: %+v", results)
	}
}
