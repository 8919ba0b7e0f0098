package analyzer

import (
	"context"
	"log/slog"
	"time"

	"github.com/fleetguard/fleetguard-predict/internal/models"
)

// SeriesSpec identifies the (namespace, metric name, statistic) triple a
// signal is fetched with.
type SeriesSpec struct {
	Namespace string
	Metric    string
	Statistic string
}

// MetricSource fetches per-instance historical samples at 1-hour buckets.
// Implementations return an empty slice, not an error, when no data exists
// for the window.
type MetricSource interface {
	GetSeries(ctx context.Context, instanceID string, spec SeriesSpec, lookbackHours int) ([]models.Sample, error)
}

// Query triples per signal. The iowait proxy queries general CPU
// utilization until richer per-mode CPU telemetry is collected; downstream
// threshold calibration assumes this stand-in.
var (
	cpuStealSeries         = SeriesSpec{Namespace: "node", Metric: "cpu_steal_percent", Statistic: "avg"}
	iowaitSeries           = SeriesSpec{Namespace: "node", Metric: "cpu_utilization_percent", Statistic: "avg"}
	memorySaturationSeries = SeriesSpec{Namespace: "agent", Metric: "mem_used_percent", Statistic: "avg"}
	diskUsageSeries        = SeriesSpec{Namespace: "agent", Metric: "disk_used_percent", Statistic: "avg"}
	cpuCreditSeries        = SeriesSpec{Namespace: "node", Metric: "cpu_credit_balance", Statistic: "avg"}
)

// recentWindow is the number of most recent buckets the representative
// value is averaged over.
const recentWindow = 24

// Analyzer evaluates the tracked signals of one instance against the
// configured thresholds.
type Analyzer struct {
	logger     *slog.Logger
	source     MetricSource
	thresholds models.ThresholdSet
}

// New constructs an Analyzer with an injected metric source.
func New(logger *slog.Logger, source MetricSource, thresholds models.ThresholdSet) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{logger: logger, source: source, thresholds: thresholds}
}

// AnalyzeAll runs every signal analysis and assembles the result set.
func (a *Analyzer) AnalyzeAll(ctx context.Context, instanceID string) models.MetricResultSet {
	return models.MetricResultSet{
		InstanceID:          instanceID,
		Timestamp:           time.Now().UTC(),
		CPUSteal:            a.AnalyzeCPUSteal(ctx, instanceID),
		IOWait:              a.AnalyzeIOWait(ctx, instanceID),
		MemorySaturation:    a.AnalyzeMemorySaturation(ctx, instanceID),
		DiskUsage:           a.AnalyzeDiskUsage(ctx, instanceID),
		CPUCreditBalance:    a.AnalyzeCPUCreditBalance(ctx, instanceID),
		StatusCheckFailures: a.AnalyzeStatusCheckFailures(ctx, instanceID),
	}
}

// AnalyzeCPUSteal evaluates CPU steal time against the steal thresholds.
// Sustained steal indicates noisy-neighbour or host contention issues.
func (a *Analyzer) AnalyzeCPUSteal(ctx context.Context, instanceID string) models.MetricVerdict {
	values, ok := a.fetch(ctx, instanceID, models.MetricCPUSteal, cpuStealSeries)
	if !ok || len(values) == 0 {
		return unknownVerdict()
	}

	avg := mean(values)
	recent := recentMean(values)

	trend := models.TrendStable
	switch {
	case recent > avg*1.2:
		trend = models.TrendIncreasing
	case recent < avg*0.8:
		trend = models.TrendDecreasing
	}

	severity := models.SeverityNone
	switch {
	case recent >= a.thresholds.CPUStealCritical:
		severity = models.SeverityCritical
	case recent >= a.thresholds.CPUStealWarning:
		severity = models.SeverityWarning
	}

	return models.MetricVerdict{
		Detected:     severity != models.SeverityNone,
		Severity:     severity,
		Trend:        trend,
		CurrentValue: recent,
		AverageValue: avg,
		MaxValue:     maxOf(values),
		SampleCount:  len(values),
	}
}

// AnalyzeIOWait evaluates the I/O wait proxy. Severity fires only when the
// series shows spikes: sample variance above half the series mean. A high
// mean without variance does not trigger.
func (a *Analyzer) AnalyzeIOWait(ctx context.Context, instanceID string) models.MetricVerdict {
	values, ok := a.fetch(ctx, instanceID, models.MetricIOWait, iowaitSeries)
	if !ok || len(values) < 2 {
		return unknownVerdict()
	}

	meanVal := mean(values)
	variance := sampleVariance(values, meanVal)
	recent := recentMean(values)
	hasSpikes := variance > meanVal*0.5

	trend := models.TrendStable
	switch {
	case recent > meanVal*1.3:
		trend = models.TrendIncreasing
	case recent < meanVal*0.7:
		trend = models.TrendDecreasing
	}

	severity := models.SeverityNone
	switch {
	case hasSpikes && recent >= a.thresholds.IOWaitCritical:
		severity = models.SeverityCritical
	case hasSpikes && recent >= a.thresholds.IOWaitWarning:
		severity = models.SeverityWarning
	}

	return models.MetricVerdict{
		Detected:     severity != models.SeverityNone,
		Severity:     severity,
		Trend:        trend,
		CurrentValue: recent,
		Variance:     variance,
		HasSpikes:    hasSpikes,
		SampleCount:  len(values),
	}
}

// AnalyzeMemorySaturation evaluates memory usage against the saturation
// thresholds.
func (a *Analyzer) AnalyzeMemorySaturation(ctx context.Context, instanceID string) models.MetricVerdict {
	values, ok := a.fetch(ctx, instanceID, models.MetricMemorySaturation, memorySaturationSeries)
	if !ok || len(values) == 0 {
		return unknownVerdict()
	}
	return a.saturationVerdict(values, a.thresholds.MemorySaturationWarning, a.thresholds.MemorySaturationCritical)
}

// AnalyzeDiskUsage evaluates disk usage against the usage thresholds.
func (a *Analyzer) AnalyzeDiskUsage(ctx context.Context, instanceID string) models.MetricVerdict {
	values, ok := a.fetch(ctx, instanceID, models.MetricDiskUsage, diskUsageSeries)
	if !ok || len(values) == 0 {
		return unknownVerdict()
	}
	return a.saturationVerdict(values, a.thresholds.DiskUsageWarning, a.thresholds.DiskUsageCritical)
}

// saturationVerdict covers the memory and disk signals: last-vs-previous
// step trend and mean-based severity.
func (a *Analyzer) saturationVerdict(values []float64, warning, critical float64) models.MetricVerdict {
	recent := recentMean(values)

	trend := models.TrendStable
	if len(values) >= 2 {
		switch {
		case values[len(values)-1] > values[len(values)-2]:
			trend = models.TrendIncreasing
		case values[len(values)-1] < values[len(values)-2]:
			trend = models.TrendDecreasing
		}
	}

	severity := models.SeverityNone
	switch {
	case recent >= critical:
		severity = models.SeverityCritical
	case recent >= warning:
		severity = models.SeverityWarning
	}

	return models.MetricVerdict{
		Detected:     severity != models.SeverityNone,
		Severity:     severity,
		Trend:        trend,
		CurrentValue: recent,
		MaxValue:     maxOf(values),
		SampleCount:  len(values),
	}
}

// AnalyzeCPUCreditBalance evaluates burst-credit depletion. Severity is
// driven by the minimum observed balance in the window, not the mean, and
// has no critical tier.
func (a *Analyzer) AnalyzeCPUCreditBalance(ctx context.Context, instanceID string) models.MetricVerdict {
	values, ok := a.fetch(ctx, instanceID, models.MetricCPUCreditBalance, cpuCreditSeries)
	if !ok || len(values) == 0 {
		return unknownVerdict()
	}

	avg := mean(values)
	recent := recentMean(values)
	minValue := minOf(values)

	trend := models.TrendStable
	if recent < avg*0.8 {
		trend = models.TrendDecreasing
	}

	severity := models.SeverityNone
	if minValue < a.thresholds.CPUCreditBalanceWarning {
		severity = models.SeverityWarning
	}

	return models.MetricVerdict{
		Detected:     severity != models.SeverityNone,
		Severity:     severity,
		Trend:        trend,
		CurrentValue: recent,
		MinValue:     minValue,
		SampleCount:  len(values),
	}
}

// AnalyzeStatusCheckFailures is a designed extension point for an
// event-driven status check feed. It never detects until that feed is
// wired, but keeps the verdict shape of the other signals.
func (a *Analyzer) AnalyzeStatusCheckFailures(ctx context.Context, instanceID string) models.MetricVerdict {
	_ = ctx
	_ = instanceID
	return models.MetricVerdict{
		Detected:     false,
		Severity:     models.SeverityNone,
		Trend:        models.TrendUnknown,
		FailureCount: 0,
	}
}

// fetch retrieves a series and downgrades source errors to a logged miss so
// one failing signal never aborts the rest of the analysis.
func (a *Analyzer) fetch(ctx context.Context, instanceID string, metric models.Metric, spec SeriesSpec) ([]float64, bool) {
	samples, err := a.source.GetSeries(ctx, instanceID, spec, a.thresholds.LookbackHours)
	if err != nil {
		a.logger.Error("metric source lookup failed",
			slog.String("instance_id", instanceID),
			slog.String("metric", string(metric)),
			slog.Any("error", err),
		)
		return nil, false
	}
	values := make([]float64, 0, len(samples))
	for _, s := range samples {
		values = append(values, s.Value)
	}
	return values, true
}

func unknownVerdict() models.MetricVerdict {
	return models.MetricVerdict{
		Detected: false,
		Severity: models.SeverityNone,
		Trend:    models.TrendUnknown,
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// recentMean averages the last recentWindow samples, or all samples when
// fewer exist.
func recentMean(values []float64) float64 {
	if len(values) >= recentWindow {
		return mean(values[len(values)-recentWindow:])
	}
	return mean(values)
}

// sampleVariance uses the n-1 divisor; callers guarantee len >= 2.
func sampleVariance(values []float64, meanVal float64) float64 {
	sum := 0.0
	for _, v := range values {
		d := v - meanVal
		sum += d * d
	}
	return sum / float64(len(values)-1)
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func minOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
