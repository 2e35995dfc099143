package eta

import (
	"testing"
	"time"
)

func TestCacheHitWithinTTL(t *testing.T) {
	c := NewCache(5 * time.Second)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	est := Estimate{RouteID: "leg-1", WaypointIndex: 2, ETASeconds: 1234}
	c.Put("k", est, now)

	got, ok := c.Get("k", now.Add(4*time.Second))
	if !ok {
		t.Fatal("expected cache hit within TTL")
	}
	if got != est {
		t.Errorf("cached value changed: %+v != %+v", got, est)
	}

	// A second read within the TTL returns the identical value
	got2, ok := c.Get("k", now.Add(4900*time.Millisecond))
	if !ok || got2 != est {
		t.Error("expected identical value on repeated read")
	}
}

func TestCacheExpiresAfterTTL(t *testing.T) {
	c := NewCache(5 * time.Second)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	c.Put("k", Estimate{ETASeconds: 1}, now)
	if _, ok := c.Get("k", now.Add(5*time.Second+time.Millisecond)); ok {
		t.Error("expected miss after TTL elapsed")
	}
}

func TestCacheClear(t *testing.T) {
	c := NewCache(time.Minute)
	now := time.Now()
	c.Put("a", Estimate{}, now)
	c.Put("b", Estimate{}, now)

	c.Clear()
	if _, ok := c.Get("a", now); ok {
		t.Error("expected miss after clear")
	}
	_, _, size := c.Stats()
	if size != 0 {
		t.Errorf("expected empty cache, got %d entries", size)
	}
}

func TestCacheCounters(t *testing.T) {
	c := NewCache(time.Minute)
	now := time.Now()

	c.Get("missing", now)
	c.Put("k", Estimate{}, now)
	c.Get("k", now)
	c.Get("k", now)

	hits, misses, size := c.Stats()
	if hits != 2 {
		t.Errorf("expected 2 hits, got %d", hits)
	}
	if misses != 1 {
		t.Errorf("expected 1 miss, got %d", misses)
	}
	if size != 1 {
		t.Errorf("expected 1 entry, got %d", size)
	}
}
