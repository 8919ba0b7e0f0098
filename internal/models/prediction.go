package models

import "time"

// Confidence is the coarse output tier derived from the aggregate score.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Rank orders confidence tiers: low < medium < high.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 2
	case ConfidenceMedium:
		return 1
	default:
		return 0
	}
}

// FailureType is the closed classification set for predicted failures.
type FailureType string

const (
	FailureTypeImminent    FailureType = "Imminent Failure"
	FailureTypeHardware    FailureType = "Potential Hardware Issue"
	FailureTypePerformance FailureType = "Performance Risk"
)

// PredictionFactor cites one detected signal as contributing evidence.
type PredictionFactor struct {
	Metric       Metric        `json:"metric"`
	Severity     Severity      `json:"severity"`
	Trend        Trend         `json:"trend"`
	CurrentValue float64       `json:"current_value"`
	Details      MetricVerdict `json:"details"`
}

// Prediction is the scorer's output for one instance and cycle.
type Prediction struct {
	InstanceID      string             `json:"instance_id"`
	Timestamp       time.Time          `json:"timestamp"`
	Score           float64            `json:"score"`
	Confidence      Confidence         `json:"confidence"`
	PredictedWindow string             `json:"predicted_window"`
	FailureType     FailureType        `json:"failure_type"`
	Factors         []PredictionFactor `json:"factors"`
	MetricResults   MetricResultSet    `json:"metric_results"`
}

// InstanceConfig is the per-instance monitoring record returned by the
// fleet enumerator. Instances default to monitored when no explicit
// configuration exists.
type InstanceConfig struct {
	ID                string `json:"instance_id" yaml:"id"`
	MonitoringEnabled bool   `json:"monitoring_enabled" yaml:"monitoring_enabled"`
	Quarantine        bool   `json:"quarantine" yaml:"quarantine"`
}

// ShouldMonitor reports whether the instance participates in the cycle.
func (c InstanceConfig) ShouldMonitor() bool {
	return c.MonitoringEnabled && !c.Quarantine
}
