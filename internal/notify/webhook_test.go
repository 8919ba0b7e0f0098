package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fleetguard/fleetguard-predict/internal/models"
)

func samplePrediction() models.Prediction {
	return models.Prediction{
		InstanceID:      "i-001",
		Score:           0.8,
		Confidence:      models.ConfidenceHigh,
		PredictedWindow: "24 hours",
		FailureType:     models.FailureTypeHardware,
		Factors: []models.PredictionFactor{
			{Metric: models.MetricCPUSteal, Severity: models.SeverityCritical, Trend: models.TrendIncreasing},
		},
	}
}

func TestNotifyPredictionPostsPayload(t *testing.T) {
	var received webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Fatalf("unexpected content type %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := n.NotifyPrediction(context.Background(), samplePrediction(), []string{"Migrate the instance"}); err != nil {
		t.Fatalf("notify: %v", err)
	}

	if received.InstanceID != "i-001" || received.FailureType != "Potential Hardware Issue" {
		t.Fatalf("unexpected payload %+v", received)
	}
	if received.Text == "" {
		t.Fatalf("payload must include a human-readable summary")
	}
	if len(received.Factors) != 1 || len(received.Recommendations) != 1 {
		t.Fatalf("factors and recommendations must be carried: %+v", received)
	}
}

func TestNotifyPredictionNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := n.NotifyPrediction(context.Background(), samplePrediction(), nil); err == nil {
		t.Fatalf("expected error for non-2xx response")
	}
}

func TestNotifyPredictionUnreachable(t *testing.T) {
	n := NewWebhookNotifier("http://127.0.0.1:1", 200*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := n.NotifyPrediction(context.Background(), samplePrediction(), nil); err == nil {
		t.Fatalf("expected error for unreachable webhook")
	}
}
