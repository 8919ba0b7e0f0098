package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fleetguard/fleetguard-predict/internal/models"
)

type stubStore struct {
	predictions []models.Prediction
	err         error
	lastLimit   int
}

func (s *stubStore) ListRecent(ctx context.Context, limit int) ([]models.Prediction, error) {
	s.lastLimit = limit
	return s.predictions, s.err
}

func newTestHTTPServer(store ReadStore) *HTTPServer {
	return NewHTTPServer(":0", store, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHandleHealth(t *testing.T) {
	srv := newTestHTTPServer(&stubStore{})
	rec := httptest.NewRecorder()
	srv.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHandlePredictions(t *testing.T) {
	store := &stubStore{predictions: []models.Prediction{
		{InstanceID: "i-001", Confidence: models.ConfidenceHigh, Timestamp: time.Now().UTC()},
	}}
	srv := newTestHTTPServer(store)

	rec := httptest.NewRecorder()
	srv.handlePredictions(rec, httptest.NewRequest(http.MethodGet, "/api/v1/predictions?limit=5", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if store.lastLimit != 5 {
		t.Fatalf("limit not forwarded, got %d", store.lastLimit)
	}

	var body struct {
		Predictions []models.Prediction `json:"predictions"`
		Count       int                 `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Count != 1 || len(body.Predictions) != 1 || body.Predictions[0].InstanceID != "i-001" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestHandlePredictionsBadLimit(t *testing.T) {
	srv := newTestHTTPServer(&stubStore{})
	rec := httptest.NewRecorder()
	srv.handlePredictions(rec, httptest.NewRequest(http.MethodGet, "/api/v1/predictions?limit=abc", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandlePredictionsStoreError(t *testing.T) {
	srv := newTestHTTPServer(&stubStore{err: errors.New("db locked")})
	rec := httptest.NewRecorder()
	srv.handlePredictions(rec, httptest.NewRequest(http.MethodGet, "/api/v1/predictions", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestHandlePredictionsMethodNotAllowed(t *testing.T) {
	srv := newTestHTTPServer(&stubStore{})
	rec := httptest.NewRecorder()
	srv.handlePredictions(rec, httptest.NewRequest(http.MethodPost, "/api/v1/predictions", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestHandlePatterns(t *testing.T) {
	now := time.Now().UTC()
	store := &stubStore{predictions: []models.Prediction{
		{InstanceID: "i-001", Timestamp: now, FailureType: models.FailureTypeHardware,
			Factors: []models.PredictionFactor{{Metric: models.MetricCPUSteal}}},
		{InstanceID: "i-001", Timestamp: now.Add(-time.Hour), FailureType: models.FailureTypeHardware,
			Factors: []models.PredictionFactor{{Metric: models.MetricCPUSteal}}},
	}}
	srv := newTestHTTPServer(store)

	rec := httptest.NewRecorder()
	srv.handlePatterns(rec, httptest.NewRequest(http.MethodGet, "/api/v1/patterns", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Count    int `json:"count"`
		Patterns []struct {
			InstanceID  string `json:"instance_id"`
			Predictions int    `json:"predictions"`
		} `json:"patterns"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Count != 1 || body.Patterns[0].Predictions != 2 {
		t.Fatalf("unexpected body %+v", body)
	}
}
