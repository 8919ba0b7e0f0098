package models

import (
	"fmt"
	"time"
)

// Metric identifies one of the six tracked telemetry signals.
type Metric string

const (
	MetricCPUSteal            Metric = "cpu_steal"
	MetricIOWait              Metric = "iowait"
	MetricMemorySaturation    Metric = "memory_saturation"
	MetricDiskUsage           Metric = "disk_usage"
	MetricCPUCreditBalance    Metric = "cpu_credit_balance"
	MetricStatusCheckFailures Metric = "status_check_failures"
)

// TrackedMetrics returns the tracked signals in canonical order. Factor
// extraction and aggregation iterate in this order.
func TrackedMetrics() []Metric {
	return []Metric{
		MetricCPUSteal,
		MetricIOWait,
		MetricMemorySaturation,
		MetricDiskUsage,
		MetricCPUCreditBalance,
		MetricStatusCheckFailures,
	}
}

// ParseMetric maps a metric name onto the closed Metric set, rejecting
// unknown names at construction rather than at lookup time.
func ParseMetric(name string) (Metric, error) {
	for _, m := range TrackedMetrics() {
		if string(m) == name {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown metric %q", name)
}

// Severity is the ordinal per-metric signal state: none < warning < critical.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Trend captures the direction of recent change relative to the
// longer-window baseline.
type Trend string

const (
	TrendStable     Trend = "stable"
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendUnknown    Trend = "unknown"
)

// Sample is one fixed-width time bucket statistic from the metric source.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// MetricVerdict is the analysis result for one signal. Detected is true if
// and only if Severity != none. Auxiliary fields are populated only where
// the signal computes them.
type MetricVerdict struct {
	Detected     bool     `json:"detected"`
	Severity     Severity `json:"severity"`
	Trend        Trend    `json:"trend"`
	CurrentValue float64  `json:"current_value,omitempty"`
	AverageValue float64  `json:"average_value,omitempty"`
	MaxValue     float64  `json:"max_value,omitempty"`
	MinValue     float64  `json:"min_value,omitempty"`
	Variance     float64  `json:"variance,omitempty"`
	HasSpikes    bool     `json:"has_spikes,omitempty"`
	FailureCount int      `json:"failure_count,omitempty"`
	SampleCount  int      `json:"sample_count,omitempty"`
}

// MetricResultSet holds the verdicts for every tracked signal of one
// instance, produced once per analysis cycle.
type MetricResultSet struct {
	InstanceID          string        `json:"instance_id"`
	Timestamp           time.Time     `json:"timestamp"`
	CPUSteal            MetricVerdict `json:"cpu_steal"`
	IOWait              MetricVerdict `json:"iowait"`
	MemorySaturation    MetricVerdict `json:"memory_saturation"`
	DiskUsage           MetricVerdict `json:"disk_usage"`
	CPUCreditBalance    MetricVerdict `json:"cpu_credit_balance"`
	StatusCheckFailures MetricVerdict `json:"status_check_failures"`
}

// Verdict returns the verdict recorded for the given metric.
func (rs MetricResultSet) Verdict(m Metric) MetricVerdict {
	switch m {
	case MetricCPUSteal:
		return rs.CPUSteal
	case MetricIOWait:
		return rs.IOWait
	case MetricMemorySaturation:
		return rs.MemorySaturation
	case MetricDiskUsage:
		return rs.DiskUsage
	case MetricCPUCreditBalance:
		return rs.CPUCreditBalance
	case MetricStatusCheckFailures:
		return rs.StatusCheckFailures
	default:
		return MetricVerdict{Severity: SeverityNone, Trend: TrendUnknown}
	}
}

// VerdictEntry pairs a metric with its verdict for ordered iteration.
type VerdictEntry struct {
	Metric  Metric
	Verdict MetricVerdict
}

// Verdicts returns all verdicts in canonical metric order.
func (rs MetricResultSet) Verdicts() []VerdictEntry {
	metrics := TrackedMetrics()
	entries := make([]VerdictEntry, 0, len(metrics))
	for _, m := range metrics {
		entries = append(entries, VerdictEntry{Metric: m, Verdict: rs.Verdict(m)})
	}
	return entries
}
