package patterns

import (
	"sort"
	"time"

	"github.com/fleetguard/fleetguard-predict/internal/models"
)

// InstancePattern summarises recurring prediction evidence for one instance.
type InstancePattern struct {
	InstanceID          string             `json:"instance_id"`
	Predictions         int                `json:"predictions"`
	DominantFailureType models.FailureType `json:"dominant_failure_type"`
	TopFactors          []FactorCount      `json:"top_factors"`
	LastSeen            time.Time          `json:"last_seen"`
}

// FactorCount records how often a metric contributed to predictions.
type FactorCount struct {
	Metric models.Metric `json:"metric"`
	Count  int           `json:"count"`
}

// Mine aggregates stored predictions into per-instance recurring-factor
// summaries, ordered by prediction count descending. Instances repeatedly
// predicted against are chronic offenders worth manual review.
func Mine(predictions []models.Prediction) []InstancePattern {
	if len(predictions) == 0 {
		return nil
	}

	type aggregate struct {
		count        int
		lastSeen     time.Time
		factorCounts map[models.Metric]int
		failureTypes map[models.FailureType]int
	}

	byInstance := make(map[string]*aggregate)
	for _, p := range predictions {
		agg, ok := byInstance[p.InstanceID]
		if !ok {
			agg = &aggregate{
				factorCounts: make(map[models.Metric]int),
				failureTypes: make(map[models.FailureType]int),
			}
			byInstance[p.InstanceID] = agg
		}
		agg.count++
		agg.failureTypes[p.FailureType]++
		if p.Timestamp.After(agg.lastSeen) {
			agg.lastSeen = p.Timestamp
		}
		for _, factor := range p.Factors {
			agg.factorCounts[factor.Metric]++
		}
	}

	result := make([]InstancePattern, 0, len(byInstance))
	for instanceID, agg := range byInstance {
		result = append(result, InstancePattern{
			InstanceID:          instanceID,
			Predictions:         agg.count,
			DominantFailureType: dominantFailureType(agg.failureTypes),
			TopFactors:          topFactors(agg.factorCounts, 3),
			LastSeen:            agg.lastSeen,
		})
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Predictions != result[j].Predictions {
			return result[i].Predictions > result[j].Predictions
		}
		return result[i].InstanceID < result[j].InstanceID
	})
	return result
}

func dominantFailureType(counts map[models.FailureType]int) models.FailureType {
	best := models.FailureTypePerformance
	bestCount := -1
	for ft, count := range counts {
		if count > bestCount || (count == bestCount && ft < best) {
			best = ft
			bestCount = count
		}
	}
	return best
}

func topFactors(counts map[models.Metric]int, limit int) []FactorCount {
	factors := make([]FactorCount, 0, len(counts))
	for metric, count := range counts {
		factors = append(factors, FactorCount{Metric: metric, Count: count})
	}
	sort.Slice(factors, func(i, j int) bool {
		if factors[i].Count != factors[j].Count {
			return factors[i].Count > factors[j].Count
		}
		return factors[i].Metric < factors[j].Metric
	})
	if len(factors) > limit {
		factors = factors[:limit]
	}
	return factors
}
