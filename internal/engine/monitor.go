package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/fleetguard/fleetguard-predict/internal/metrics"
	"github.com/fleetguard/fleetguard-predict/internal/models"
	"github.com/fleetguard/fleetguard-predict/internal/utils"
)

// FleetEnumerator lists the instances eligible for monitoring together
// with their per-instance configuration.
type FleetEnumerator interface {
	ListInstances(ctx context.Context) ([]models.InstanceConfig, error)
}

// InstanceAnalyzer produces the per-metric verdicts for one instance.
type InstanceAnalyzer interface {
	AnalyzeAll(ctx context.Context, instanceID string) models.MetricResultSet
}

// PredictionSink receives qualifying predictions for persistence.
type PredictionSink interface {
	StorePrediction(ctx context.Context, p models.Prediction) error
}

// Notifier delivers qualifying predictions to operators.
type Notifier interface {
	NotifyPrediction(ctx context.Context, p models.Prediction, recommendations []string) error
}

// InstanceResult is the per-instance outcome of one cycle.
type InstanceResult struct {
	InstanceID string
	Prediction *models.Prediction
	Err        error
	Skipped    bool
}

// CycleReport summarises one full fleet pass.
type CycleReport struct {
	InstancesChecked int
	PredictionsFound int
	Skipped          int
	Failures         int
	Results          []InstanceResult
}

// Monitor drives one pass over the monitored fleet: filter, analyze, score,
// and forward qualifying predictions.
type Monitor struct {
	logger         *slog.Logger
	fleet          FleetEnumerator
	analyzer       InstanceAnalyzer
	scorer         *Scorer
	sink           PredictionSink
	notifier       Notifier
	rules          *RuleEngine
	maxConcurrency int64
	latencies      *utils.LatencyTracker
}

// NewMonitor constructs a Monitor. Sink, notifier, and rules may be nil.
func NewMonitor(
	logger *slog.Logger,
	fleet FleetEnumerator,
	instanceAnalyzer InstanceAnalyzer,
	scorer *Scorer,
	sink PredictionSink,
	notifier Notifier,
	rules *RuleEngine,
	maxConcurrency int,
) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	return &Monitor{
		logger:         logger,
		fleet:          fleet,
		analyzer:       instanceAnalyzer,
		scorer:         scorer,
		sink:           sink,
		notifier:       notifier,
		rules:          rules,
		maxConcurrency: int64(maxConcurrency),
		latencies:      utils.NewLatencyTracker(256),
	}
}

// RunCycle executes one complete fleet pass. Per-instance failures are
// collected, never propagated; only fleet enumeration failure is fatal.
// Cancellation stops starting new instance analyses but lets in-flight
// ones finish.
func (m *Monitor) RunCycle(ctx context.Context) (CycleReport, error) {
	start := time.Now()
	m.logger.Info("starting monitoring cycle")

	instances, err := m.fleet.ListInstances(ctx)
	if err != nil {
		metrics.ObserveCycle(time.Since(start), metrics.OutcomeError)
		return CycleReport{}, utils.NewAppError("monitor.RunCycle", "fleet enumeration failed", err)
	}
	if len(instances) == 0 {
		m.logger.Info("no instances found for monitoring")
		metrics.ObserveCycle(time.Since(start), metrics.OutcomeSuccess)
		return CycleReport{}, nil
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make([]InstanceResult, 0, len(instances))
	)
	sem := semaphore.NewWeighted(m.maxConcurrency)

	for _, inst := range instances {
		if !inst.ShouldMonitor() {
			m.logger.Info("skipping instance",
				slog.String("instance_id", inst.ID),
				slog.Bool("monitoring_enabled", inst.MonitoringEnabled),
				slog.Bool("quarantine", inst.Quarantine),
			)
			mu.Lock()
			results = append(results, InstanceResult{InstanceID: inst.ID, Skipped: true})
			mu.Unlock()
			continue
		}

		// Acquire honours cancellation, so no new analysis starts once the
		// context is done.
		if err := sem.Acquire(ctx, 1); err != nil {
			m.logger.Warn("cycle cancelled before fleet pass completed", slog.Any("error", err))
			break
		}

		wg.Add(1)
		go func(inst models.InstanceConfig) {
			defer wg.Done()
			defer sem.Release(1)

			result := m.checkInstance(ctx, inst.ID)
			mu.Lock()
			results = append(results, result)
			mu.Unlock()
		}(inst)
	}

	wg.Wait()

	report := CycleReport{Results: results}
	for _, r := range results {
		switch {
		case r.Skipped:
			report.Skipped++
		case r.Err != nil:
			report.InstancesChecked++
			report.Failures++
		default:
			report.InstancesChecked++
			if r.Prediction != nil {
				report.PredictionsFound++
			}
		}
	}

	duration := time.Since(start)
	m.latencies.Observe(duration)
	metrics.ObserveCycle(duration, metrics.OutcomeSuccess)
	metrics.SetInstancesChecked(report.InstancesChecked)

	m.logger.Info("monitoring cycle completed",
		slog.Int("instances_checked", report.InstancesChecked),
		slog.Int("predictions_found", report.PredictionsFound),
		slog.Int("skipped", report.Skipped),
		slog.Int("failures", report.Failures),
		slog.Duration("duration", duration),
	)
	if count := m.latencies.Count(); count >= 5 && count%5 == 0 {
		m.logger.Info("cycle latency", slog.Duration("p95", m.latencies.Percentile(95)), slog.Int("samples", count))
	}

	return report, nil
}

// checkInstance runs analyze-then-score for one instance and forwards the
// prediction when confidence qualifies. Predictions below medium are
// dropped here, not persisted.
func (m *Monitor) checkInstance(ctx context.Context, instanceID string) InstanceResult {
	m.logger.Debug("analyzing instance", slog.String("instance_id", instanceID))

	resultSet := m.analyzer.AnalyzeAll(ctx, instanceID)
	prediction := m.scorer.ScoreAnomalies(resultSet)

	if prediction.Confidence == models.ConfidenceLow {
		m.logger.Info("no significant prediction",
			slog.String("instance_id", instanceID),
			slog.Float64("score", prediction.Score),
		)
		return InstanceResult{InstanceID: instanceID}
	}

	if m.sink != nil {
		if err := m.sink.StorePrediction(ctx, prediction); err != nil {
			m.logger.Error("failed to persist prediction",
				slog.String("instance_id", instanceID),
				slog.Any("error", err),
			)
			return InstanceResult{InstanceID: instanceID, Err: err}
		}
	}

	metrics.RecordPrediction(string(prediction.Confidence))
	m.logger.Warn("prediction detected",
		slog.String("instance_id", instanceID),
		slog.String("confidence", string(prediction.Confidence)),
		slog.String("failure_type", string(prediction.FailureType)),
		slog.Float64("score", prediction.Score),
	)

	if m.notifier != nil {
		recommendations := m.rules.Recommend(prediction)
		if err := m.notifier.NotifyPrediction(ctx, prediction, recommendations); err != nil {
			// Notification failures are logged but never fail the instance.
			m.logger.Warn("prediction notification failed",
				slog.String("instance_id", instanceID),
				slog.Any("error", err),
			)
		}
	}

	return InstanceResult{InstanceID: instanceID, Prediction: &prediction}
}

// LatencyP95 returns the current p95 cycle latency.
func (m *Monitor) LatencyP95() time.Duration {
	return m.latencies.Percentile(95)
}
