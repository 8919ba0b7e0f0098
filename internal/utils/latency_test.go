package utils

import (
	"testing"
	"time"
)

func TestLatencyTrackerEmpty(t *testing.T) {
	tracker := NewLatencyTracker(8)
	if got := tracker.Percentile(95); got != 0 {
		t.Fatalf("empty tracker must return 0, got %v", got)
	}
	if tracker.Count() != 0 {
		t.Fatalf("empty tracker must count 0")
	}
}

func TestLatencyTrackerPercentiles(t *testing.T) {
	tracker := NewLatencyTracker(16)
	for i := 1; i <= 10; i++ {
		tracker.Observe(time.Duration(i) * time.Millisecond)
	}

	if got := tracker.Percentile(0); got != time.Millisecond {
		t.Fatalf("p0 should be the minimum, got %v", got)
	}
	if got := tracker.Percentile(100); got != 10*time.Millisecond {
		t.Fatalf("p100 should be the maximum, got %v", got)
	}
	if got := tracker.Percentile(50); got < 4*time.Millisecond || got > 6*time.Millisecond {
		t.Fatalf("p50 out of range: %v", got)
	}
}

func TestLatencyTrackerEvictsOldest(t *testing.T) {
	tracker := NewLatencyTracker(3)
	for i := 1; i <= 5; i++ {
		tracker.Observe(time.Duration(i) * time.Second)
	}

	if tracker.Count() != 3 {
		t.Fatalf("expected bounded window of 3, got %d", tracker.Count())
	}
	if got := tracker.Percentile(0); got != 3*time.Second {
		t.Fatalf("oldest samples must be evicted, min is %v", got)
	}
}
