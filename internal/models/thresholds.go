package models

import "fmt"

// ThresholdSet carries the per-metric severity bounds and the global
// confidence cutoffs. It is loaded once at cycle start and read-only for
// the duration of a cycle.
type ThresholdSet struct {
	CPUStealWarning          float64 `json:"cpu_steal_warning" yaml:"cpu_steal_warning"`
	CPUStealCritical         float64 `json:"cpu_steal_critical" yaml:"cpu_steal_critical"`
	IOWaitWarning            float64 `json:"iowait_warning" yaml:"iowait_warning"`
	IOWaitCritical           float64 `json:"iowait_critical" yaml:"iowait_critical"`
	MemorySaturationWarning  float64 `json:"memory_saturation_warning" yaml:"memory_saturation_warning"`
	MemorySaturationCritical float64 `json:"memory_saturation_critical" yaml:"memory_saturation_critical"`
	DiskUsageWarning         float64 `json:"disk_usage_warning" yaml:"disk_usage_warning"`
	DiskUsageCritical        float64 `json:"disk_usage_critical" yaml:"disk_usage_critical"`
	CPUCreditBalanceWarning  float64 `json:"cpu_credit_balance_warning" yaml:"cpu_credit_balance_warning"`
	HighConfidence           float64 `json:"high_confidence_threshold" yaml:"high_confidence_threshold"`
	MediumConfidence         float64 `json:"medium_confidence_threshold" yaml:"medium_confidence_threshold"`
	LookbackHours            int     `json:"lookback_hours" yaml:"lookback_hours"`
}

// DefaultThresholds returns the shipped threshold values.
func DefaultThresholds() ThresholdSet {
	return ThresholdSet{
		CPUStealWarning:          5.0,
		CPUStealCritical:         10.0,
		IOWaitWarning:            20.0,
		IOWaitCritical:           40.0,
		MemorySaturationWarning:  85.0,
		MemorySaturationCritical: 95.0,
		DiskUsageWarning:         80.0,
		DiskUsageCritical:        90.0,
		CPUCreditBalanceWarning:  100.0,
		HighConfidence:           0.8,
		MediumConfidence:         0.6,
		LookbackHours:            168,
	}
}

// Validate enforces the ordering invariants: critical >= warning per metric
// and high confidence cutoff strictly above medium.
func (t ThresholdSet) Validate() error {
	ordered := []struct {
		name              string
		warning, critical float64
	}{
		{"cpu_steal", t.CPUStealWarning, t.CPUStealCritical},
		{"iowait", t.IOWaitWarning, t.IOWaitCritical},
		{"memory_saturation", t.MemorySaturationWarning, t.MemorySaturationCritical},
		{"disk_usage", t.DiskUsageWarning, t.DiskUsageCritical},
	}
	for _, pair := range ordered {
		if pair.critical < pair.warning {
			return fmt.Errorf("%s thresholds inverted: critical %.2f < warning %.2f", pair.name, pair.critical, pair.warning)
		}
	}
	if t.HighConfidence <= t.MediumConfidence {
		return fmt.Errorf("high confidence threshold %.2f must exceed medium %.2f", t.HighConfidence, t.MediumConfidence)
	}
	if t.LookbackHours <= 0 {
		return fmt.Errorf("lookback hours must be positive, got %d", t.LookbackHours)
	}
	return nil
}
