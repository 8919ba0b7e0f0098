package engine

import (
	"sort"
	"time"

	"github.com/fleetguard/fleetguard-predict/internal/models"
)

// Severity base scores and weighting constants.
const (
	criticalScore = 0.8
	warningScore  = 0.4

	// Non-stable trends amplify the per-metric score.
	trendMultiplier = 1.2

	// Status check failures are the most reliable immediate-failure signal
	// and get extra weight before aggregation.
	statusCheckWeight = 1.5
)

// Scorer turns a MetricResultSet into a calibrated Prediction. It is a pure
// function of its input plus the two confidence cutoffs: identical inputs
// yield identical output except the timestamp.
type Scorer struct {
	highThreshold   float64
	mediumThreshold float64
}

// NewScorer constructs a Scorer from the configured confidence cutoffs.
// Callers are responsible for high > medium; see ThresholdSet.Validate.
func NewScorer(thresholds models.ThresholdSet) *Scorer {
	return &Scorer{
		highThreshold:   thresholds.HighConfidence,
		mediumThreshold: thresholds.MediumConfidence,
	}
}

// ScoreAnomalies computes the aggregate score, confidence bucket, failure
// window, classification, and contributing factors for one instance.
func (s *Scorer) ScoreAnomalies(results models.MetricResultSet) models.Prediction {
	score := aggregateScore(results)
	confidence := s.confidence(score)

	return models.Prediction{
		InstanceID:      results.InstanceID,
		Timestamp:       time.Now().UTC(),
		Score:           score,
		Confidence:      confidence,
		PredictedWindow: predictWindow(confidence),
		FailureType:     classifyFailureType(results),
		Factors:         extractFactors(results),
		MetricResults:   results,
	}
}

// severityScore maps one verdict onto [0,1]: critical 0.8, warning 0.4,
// amplified by 1.2 when the trend is worsening in either direction.
func severityScore(v models.MetricVerdict) float64 {
	if !v.Detected {
		return 0.0
	}

	base := 0.0
	switch v.Severity {
	case models.SeverityCritical:
		base = criticalScore
	case models.SeverityWarning:
		base = warningScore
	}

	if v.Trend == models.TrendIncreasing || v.Trend == models.TrendDecreasing {
		base *= trendMultiplier
	}

	if base > 1.0 {
		base = 1.0
	}
	return base
}

// aggregateScore combines the detected signals' scores, keeping only the
// top three. Many weak signals must not outweigh one dominant signal, but
// two or more strong ones score higher than any single signal alone.
func aggregateScore(results models.MetricResultSet) float64 {
	scores := make([]float64, 0, 6)
	for _, entry := range results.Verdicts() {
		if !entry.Verdict.Detected {
			continue
		}
		score := severityScore(entry.Verdict)
		if entry.Metric == models.MetricStatusCheckFailures {
			score *= statusCheckWeight
		}
		scores = append(scores, score)
	}

	switch len(scores) {
	case 0:
		return 0.0
	case 1:
		return scores[0]
	}

	sort.Sort(sort.Reverse(sort.Float64Slice(scores)))
	if len(scores) == 2 {
		return scores[0]*0.6 + scores[1]*0.4
	}
	return scores[0]*0.5 + scores[1]*0.3 + scores[2]*0.2
}

func (s *Scorer) confidence(score float64) models.Confidence {
	switch {
	case score >= s.highThreshold:
		return models.ConfidenceHigh
	case score >= s.mediumThreshold:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

// predictWindow is a fixed lookup by confidence, not derived from the score
// magnitude.
func predictWindow(confidence models.Confidence) string {
	switch confidence {
	case models.ConfidenceHigh:
		return "24 hours"
	case models.ConfidenceMedium:
		return "24-72 hours"
	default:
		return "72+ hours"
	}
}

// classifyFailureType applies the closed priority list: status checks, then
// host contention signals, then saturation signals, with Performance Risk
// as the catch-all.
func classifyFailureType(results models.MetricResultSet) models.FailureType {
	switch {
	case results.StatusCheckFailures.Detected:
		return models.FailureTypeImminent
	case results.CPUSteal.Detected || results.IOWait.Detected:
		return models.FailureTypeHardware
	case results.MemorySaturation.Detected || results.DiskUsage.Detected:
		return models.FailureTypePerformance
	default:
		return models.FailureTypePerformance
	}
}

// extractFactors cites every detected signal in canonical metric order.
func extractFactors(results models.MetricResultSet) []models.PredictionFactor {
	factors := make([]models.PredictionFactor, 0, 6)
	for _, entry := range results.Verdicts() {
		if !entry.Verdict.Detected {
			continue
		}
		factors = append(factors, models.PredictionFactor{
			Metric:       entry.Metric,
			Severity:     entry.Verdict.Severity,
			Trend:        entry.Verdict.Trend,
			CurrentValue: entry.Verdict.CurrentValue,
			Details:      entry.Verdict,
		})
	}
	return factors
}
