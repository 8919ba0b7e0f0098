package repo

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/fleetguard/fleetguard-predict/internal/analyzer"
)

func promResponse(body string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestGetSeriesParsesMatrix(t *testing.T) {
	var capturedQuery string
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if err := req.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		capturedQuery = req.Form.Get("query")
		return promResponse(`{
			"status": "success",
			"data": {
				"resultType": "matrix",
				"result": [{
					"metric": {"instance": "i-001"},
					"values": [[1700000000, "15"], [1700003600, "16.5"]]
				}]
			}
		}`), nil
	})

	source, err := newPrometheusSourceWithTransport("http://prometheus:9090", rt, 5*time.Second)
	if err != nil {
		t.Fatalf("create source: %v", err)
	}

	spec := analyzer.SeriesSpec{Namespace: "node", Metric: "cpu_steal_percent", Statistic: "avg"}
	samples, err := source.GetSeries(context.Background(), "i-001", spec, 168)
	if err != nil {
		t.Fatalf("get series: %v", err)
	}

	if want := `avg_over_time(node_cpu_steal_percent{instance="i-001"}[1h])`; capturedQuery != want {
		t.Fatalf("unexpected query %q, want %q", capturedQuery, want)
	}
	if len(samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(samples))
	}
	if samples[0].Value != 15.0 || samples[1].Value != 16.5 {
		t.Fatalf("unexpected values %v %v", samples[0].Value, samples[1].Value)
	}
	if !samples[0].Timestamp.Before(samples[1].Timestamp) {
		t.Fatalf("samples must be oldest first")
	}
}

func TestGetSeriesEmptyResult(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return promResponse(`{"status":"success","data":{"resultType":"matrix","result":[]}}`), nil
	})

	source, err := newPrometheusSourceWithTransport("http://prometheus:9090", rt, 5*time.Second)
	if err != nil {
		t.Fatalf("create source: %v", err)
	}

	spec := analyzer.SeriesSpec{Namespace: "agent", Metric: "disk_used_percent", Statistic: "avg"}
	samples, err := source.GetSeries(context.Background(), "i-001", spec, 168)
	if err != nil {
		t.Fatalf("missing data is not an error: %v", err)
	}
	if samples == nil || len(samples) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", samples)
	}
}

func TestGetSeriesQueryError(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusInternalServerError,
			Body:       io.NopCloser(strings.NewReader(`{"status":"error","errorType":"internal","error":"boom"}`)),
		}, nil
	})

	source, err := newPrometheusSourceWithTransport("http://prometheus:9090", rt, 5*time.Second)
	if err != nil {
		t.Fatalf("create source: %v", err)
	}

	spec := analyzer.SeriesSpec{Namespace: "node", Metric: "cpu_credit_balance", Statistic: "avg"}
	if _, err := source.GetSeries(context.Background(), "i-001", spec, 168); err == nil {
		t.Fatalf("expected query failure to surface")
	}
}

func TestNewPrometheusSourceRequiresURL(t *testing.T) {
	if _, err := NewPrometheusSource("", time.Second, nil); err == nil {
		t.Fatalf("expected error for missing URL")
	}
}
