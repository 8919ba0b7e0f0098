package repo

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	promapi "github.com/prometheus/client_golang/api"
	promv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"

	"github.com/fleetguard/fleetguard-predict/internal/analyzer"
	"github.com/fleetguard/fleetguard-predict/internal/models"
)

// PrometheusSource fetches per-instance metric series from a
// Prometheus-compatible store, bucketed at 1-hour resolution.
type PrometheusSource struct {
	api     promv1.API
	logger  *slog.Logger
	timeout time.Duration
}

// NewPrometheusSource constructs a source targeting the given base URL.
func NewPrometheusSource(baseURL string, timeout time.Duration, logger *slog.Logger) (*PrometheusSource, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("metrics store URL not configured")
	}
	client, err := promapi.NewClient(promapi.Config{Address: baseURL})
	if err != nil {
		return nil, fmt.Errorf("create prometheus client: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PrometheusSource{api: promv1.NewAPI(client), logger: logger, timeout: timeout}, nil
}

// newPrometheusSourceWithTransport supports tests that stub the HTTP layer.
func newPrometheusSourceWithTransport(baseURL string, rt http.RoundTripper, timeout time.Duration) (*PrometheusSource, error) {
	client, err := promapi.NewClient(promapi.Config{Address: baseURL, RoundTripper: rt})
	if err != nil {
		return nil, err
	}
	return &PrometheusSource{api: promv1.NewAPI(client), logger: slog.Default(), timeout: timeout}, nil
}

// GetSeries runs a range query over the lookback window at 1-hour step and
// returns the samples oldest first. No data yields an empty slice, never an
// error; missing buckets are omitted, not interpolated.
func (s *PrometheusSource) GetSeries(ctx context.Context, instanceID string, spec analyzer.SeriesSpec, lookbackHours int) ([]models.Sample, error) {
	if lookbackHours <= 0 {
		lookbackHours = 168
	}

	end := time.Now().UTC()
	start := end.Add(-time.Duration(lookbackHours) * time.Hour)
	query := fmt.Sprintf("%s_over_time(%s_%s{instance=%q}[1h])",
		spec.Statistic, spec.Namespace, spec.Metric, instanceID)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	value, warnings, err := s.api.QueryRange(ctx, query, promv1.Range{
		Start: start,
		End:   end,
		Step:  time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("query_range %s for %s: %w", spec.Metric, instanceID, err)
	}
	for _, warning := range warnings {
		s.logger.Warn("metrics store warning",
			slog.String("metric", spec.Metric),
			slog.String("warning", warning),
		)
	}

	matrix, ok := value.(model.Matrix)
	if !ok || matrix.Len() == 0 {
		return []models.Sample{}, nil
	}

	// A single-instance selector yields one series; extra series would
	// indicate duplicate scrape targets, so only the first is used.
	series := matrix[0]
	samples := make([]models.Sample, 0, len(series.Values))
	for _, pair := range series.Values {
		samples = append(samples, models.Sample{
			Timestamp: pair.Timestamp.Time(),
			Value:     float64(pair.Value),
		})
	}
	return samples, nil
}
