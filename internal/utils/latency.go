package utils

import (
	"sort"
	"sync"
	"time"
)

// LatencyTracker keeps a bounded window of duration samples and computes
// percentiles over it.
type LatencyTracker struct {
	mu      sync.RWMutex
	samples []time.Duration
	maxSize int
}

// NewLatencyTracker creates a tracker storing up to maxSize samples.
func NewLatencyTracker(maxSize int) *LatencyTracker {
	if maxSize <= 0 {
		maxSize = 256
	}
	return &LatencyTracker{maxSize: maxSize}
}

// Observe records a new duration, evicting the oldest sample once full.
func (l *LatencyTracker) Observe(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.samples) == l.maxSize {
		copy(l.samples, l.samples[1:])
		l.samples = l.samples[:l.maxSize-1]
	}
	l.samples = append(l.samples, d)
}

// Percentile returns the p-th percentile (0-100) duration, or zero when no
// samples have been observed.
func (l *LatencyTracker) Percentile(p float64) time.Duration {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if len(l.samples) == 0 {
		return 0
	}

	sorted := append([]time.Duration(nil), l.samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	index := int((p / 100.0) * float64(len(sorted)-1))
	return sorted[index]
}

// Count returns the number of samples currently held.
func (l *LatencyTracker) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.samples)
}
