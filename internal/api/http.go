package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/fleetguard/fleetguard-predict/internal/models"
	"github.com/fleetguard/fleetguard-predict/internal/patterns"
)

// ReadStore is the slice of the prediction store the HTTP API reads from.
type ReadStore interface {
	ListRecent(ctx context.Context, limit int) ([]models.Prediction, error)
}

// HTTPServer serves the read-only operational API alongside /metrics.
type HTTPServer struct {
	store  ReadStore
	logger *slog.Logger
	server *http.Server
}

// NewHTTPServer builds the HTTP server. The metrics handler is mounted by
// the caller so the registry stays wired in one place.
func NewHTTPServer(addr string, store ReadStore, metricsHandler http.Handler, logger *slog.Logger) *HTTPServer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &HTTPServer{store: store, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/v1/predictions", s.handlePredictions)
	mux.HandleFunc("/api/v1/patterns", s.handlePatterns)
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}

	s.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Start serves until Shutdown is invoked.
func (s *HTTPServer) Start() error {
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully drains in-flight requests.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handlePredictions handles GET /api/v1/predictions?limit=N.
func (s *HTTPServer) handlePredictions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 1000 {
			http.Error(w, "limit must be an integer between 1 and 1000", http.StatusBadRequest)
			return
		}
		limit = n
	}

	preds, err := s.store.ListRecent(r.Context(), limit)
	if err != nil {
		s.logger.Error("list predictions failed", slog.String("error", err.Error()))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"predictions": preds,
		"count":       len(preds),
	})
}

// handlePatterns handles GET /api/v1/patterns, mining recurring factors
// from recent stored predictions.
func (s *HTTPServer) handlePatterns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	preds, err := s.store.ListRecent(r.Context(), 1000)
	if err != nil {
		s.logger.Error("list predictions failed", slog.String("error", err.Error()))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	mined := patterns.Mine(preds)
	respondJSON(w, http.StatusOK, map[string]any{
		"patterns": mined,
		"count":    len(mined),
	})
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
