package analyzer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/fleetguard/fleetguard-predict/internal/models"
)

// fakeSource serves canned series keyed by metric name.
type fakeSource struct {
	series map[string][]float64
	err    error
}

func (f *fakeSource) GetSeries(ctx context.Context, instanceID string, spec SeriesSpec, lookbackHours int) ([]models.Sample, error) {
	if f.err != nil {
		return nil, f.err
	}
	values := f.series[spec.Metric]
	samples := make([]models.Sample, 0, len(values))
	base := time.Now().Add(-time.Duration(len(values)) * time.Hour)
	for i, v := range values {
		samples = append(samples, models.Sample{Timestamp: base.Add(time.Duration(i) * time.Hour), Value: v})
	}
	return samples, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func flatSeries(value float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = value
	}
	return out
}

func newTestAnalyzer(source MetricSource) *Analyzer {
	return New(testLogger(), source, models.DefaultThresholds())
}

func TestAnalyzeCPUStealFlatCritical(t *testing.T) {
	src := &fakeSource{series: map[string][]float64{
		"cpu_steal_percent": flatSeries(15.0, 168),
	}}
	v := newTestAnalyzer(src).AnalyzeCPUSteal(context.Background(), "i-001")

	if !v.Detected {
		t.Fatalf("expected detection at 15%% steal")
	}
	if v.Severity != models.SeverityCritical {
		t.Fatalf("expected critical, got %s", v.Severity)
	}
	if v.Trend != models.TrendStable {
		t.Fatalf("flat series must be stable, got %s", v.Trend)
	}
	if v.CurrentValue != 15.0 || v.AverageValue != 15.0 {
		t.Fatalf("unexpected values: current=%v average=%v", v.CurrentValue, v.AverageValue)
	}
	if v.SampleCount != 168 {
		t.Fatalf("expected 168 samples, got %d", v.SampleCount)
	}
}

func TestAnalyzeCPUStealRisingTrend(t *testing.T) {
	series := append(flatSeries(2.0, 144), flatSeries(12.0, 24)...)
	src := &fakeSource{series: map[string][]float64{"cpu_steal_percent": series}}
	v := newTestAnalyzer(src).AnalyzeCPUSteal(context.Background(), "i-001")

	if v.Severity != models.SeverityCritical {
		t.Fatalf("recent mean 12 should be critical, got %s", v.Severity)
	}
	if v.Trend != models.TrendIncreasing {
		t.Fatalf("expected increasing trend, got %s", v.Trend)
	}
}

func TestAnalyzeCPUStealEmptySeries(t *testing.T) {
	src := &fakeSource{series: map[string][]float64{}}
	v := newTestAnalyzer(src).AnalyzeCPUSteal(context.Background(), "i-001")

	if v.Detected {
		t.Fatalf("no data must not detect")
	}
	if v.Trend != models.TrendUnknown {
		t.Fatalf("expected unknown trend, got %s", v.Trend)
	}
}

func TestAnalyzeCPUStealSourceError(t *testing.T) {
	src := &fakeSource{err: errors.New("metrics store down")}
	v := newTestAnalyzer(src).AnalyzeCPUSteal(context.Background(), "i-001")

	if v.Detected || v.Severity != models.SeverityNone || v.Trend != models.TrendUnknown {
		t.Fatalf("source error must yield the unknown verdict, got %+v", v)
	}
}

func TestAnalyzeIOWaitVarianceGate(t *testing.T) {
	// Flat at 50: above critical but zero variance, must not fire.
	src := &fakeSource{series: map[string][]float64{
		"cpu_utilization_percent": flatSeries(50.0, 48),
	}}
	v := newTestAnalyzer(src).AnalyzeIOWait(context.Background(), "i-001")

	if v.Detected {
		t.Fatalf("flat series has no spikes, must not detect")
	}
	if v.HasSpikes {
		t.Fatalf("zero variance must not count as spiky")
	}
}

func TestAnalyzeIOWaitSpikyCritical(t *testing.T) {
	// Alternating 10/90 keeps the recent mean at 50 with large variance.
	series := make([]float64, 48)
	for i := range series {
		if i%2 == 0 {
			series[i] = 10.0
		} else {
			series[i] = 90.0
		}
	}
	src := &fakeSource{series: map[string][]float64{"cpu_utilization_percent": series}}
	v := newTestAnalyzer(src).AnalyzeIOWait(context.Background(), "i-001")

	if !v.HasSpikes {
		t.Fatalf("expected spiky series, variance=%v", v.Variance)
	}
	if v.Severity != models.SeverityCritical {
		t.Fatalf("spiky mean 50 should be critical, got %s", v.Severity)
	}
}

func TestAnalyzeIOWaitSingleSampleUnknown(t *testing.T) {
	src := &fakeSource{series: map[string][]float64{"cpu_utilization_percent": {42.0}}}
	v := newTestAnalyzer(src).AnalyzeIOWait(context.Background(), "i-001")

	if v.Detected || v.Trend != models.TrendUnknown {
		t.Fatalf("one sample cannot produce a variance verdict, got %+v", v)
	}
}

func TestAnalyzeMemorySaturationStepTrend(t *testing.T) {
	series := append(flatSeries(90.0, 47), 96.0)
	src := &fakeSource{series: map[string][]float64{"mem_used_percent": series}}
	v := newTestAnalyzer(src).AnalyzeMemorySaturation(context.Background(), "i-001")

	if !v.Detected || v.Severity != models.SeverityWarning {
		t.Fatalf("recent mean just above warning expected, got %+v", v)
	}
	if v.Trend != models.TrendIncreasing {
		t.Fatalf("last sample rose, expected increasing, got %s", v.Trend)
	}
}

func TestAnalyzeDiskUsageCritical(t *testing.T) {
	src := &fakeSource{series: map[string][]float64{"disk_used_percent": flatSeries(95.0, 24)}}
	v := newTestAnalyzer(src).AnalyzeDiskUsage(context.Background(), "i-001")

	if v.Severity != models.SeverityCritical {
		t.Fatalf("95%% disk should be critical, got %s", v.Severity)
	}
}

func TestAnalyzeCPUCreditBalanceMinBased(t *testing.T) {
	// Healthy mean but one dip below the floor still warns.
	series := flatSeries(300.0, 48)
	series[10] = 40.0
	src := &fakeSource{series: map[string][]float64{"cpu_credit_balance": series}}
	v := newTestAnalyzer(src).AnalyzeCPUCreditBalance(context.Background(), "i-001")

	if !v.Detected || v.Severity != models.SeverityWarning {
		t.Fatalf("min below floor must warn, got %+v", v)
	}
	if v.MinValue != 40.0 {
		t.Fatalf("expected min 40, got %v", v.MinValue)
	}
	if v.Trend != models.TrendStable {
		t.Fatalf("recent mean near overall mean, expected stable, got %s", v.Trend)
	}
}

func TestAnalyzeCPUCreditBalanceDepleting(t *testing.T) {
	series := append(flatSeries(400.0, 144), flatSeries(150.0, 24)...)
	src := &fakeSource{series: map[string][]float64{"cpu_credit_balance": series}}
	v := newTestAnalyzer(src).AnalyzeCPUCreditBalance(context.Background(), "i-001")

	if v.Trend != models.TrendDecreasing {
		t.Fatalf("recent well below mean, expected decreasing, got %s", v.Trend)
	}
	if v.Detected {
		t.Fatalf("min 150 above floor must not warn, got %+v", v)
	}
}

func TestAnalyzeStatusCheckFailuresStub(t *testing.T) {
	v := newTestAnalyzer(&fakeSource{}).AnalyzeStatusCheckFailures(context.Background(), "i-001")
	if v.Detected || v.FailureCount != 0 {
		t.Fatalf("status check feed not wired, must not detect, got %+v", v)
	}
}

func TestAnalyzeAllDetectionMatchesSeverity(t *testing.T) {
	src := &fakeSource{series: map[string][]float64{
		"cpu_steal_percent":       flatSeries(7.0, 48),
		"cpu_utilization_percent": flatSeries(10.0, 48),
		"mem_used_percent":        flatSeries(50.0, 48),
		"disk_used_percent":       flatSeries(85.0, 48),
		"cpu_credit_balance":      flatSeries(500.0, 48),
	}}
	rs := newTestAnalyzer(src).AnalyzeAll(context.Background(), "i-001")

	if rs.InstanceID != "i-001" {
		t.Fatalf("instance id not carried through")
	}
	for _, entry := range rs.Verdicts() {
		detected := entry.Verdict.Severity != models.SeverityNone
		if entry.Verdict.Detected != detected {
			t.Fatalf("%s: detected=%v but severity=%s", entry.Metric, entry.Verdict.Detected, entry.Verdict.Severity)
		}
	}
	if !rs.CPUSteal.Detected || rs.CPUSteal.Severity != models.SeverityWarning {
		t.Fatalf("7%% steal should warn, got %+v", rs.CPUSteal)
	}
	if !rs.DiskUsage.Detected {
		t.Fatalf("85%% disk should warn")
	}
	if rs.MemorySaturation.Detected {
		t.Fatalf("50%% memory must not detect")
	}
}
