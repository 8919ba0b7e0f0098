package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/fleetguard/fleetguard-predict/internal/models"
)

// WebhookNotifier posts a prediction summary to a configured webhook
// (Slack/Teams-compatible payload plus structured fields).
type WebhookNotifier struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewWebhookNotifier constructs a notifier; url must be non-empty.
func NewWebhookNotifier(url string, timeout time.Duration, logger *slog.Logger) *WebhookNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookNotifier{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type webhookPayload struct {
	Text            string   `json:"text"`
	InstanceID      string   `json:"instance_id"`
	Confidence      string   `json:"confidence"`
	Score           float64  `json:"score"`
	FailureType     string   `json:"failure_type"`
	PredictedWindow string   `json:"predicted_window"`
	Factors         []string `json:"factors"`
	Recommendations []string `json:"recommendations,omitempty"`
}

// NotifyPrediction delivers one qualifying prediction. Errors are returned
// for the caller to log; delivery is best-effort by design.
func (n *WebhookNotifier) NotifyPrediction(ctx context.Context, p models.Prediction, recommendations []string) error {
	factors := make([]string, 0, len(p.Factors))
	for _, f := range p.Factors {
		factors = append(factors, fmt.Sprintf("%s (%s, %s)", f.Metric, f.Severity, f.Trend))
	}

	payload := webhookPayload{
		Text: fmt.Sprintf("%s predicted for %s within %s (confidence %s, score %.2f)",
			p.FailureType, p.InstanceID, p.PredictedWindow, p.Confidence, p.Score),
		InstanceID:      p.InstanceID,
		Confidence:      string(p.Confidence),
		Score:           p.Score,
		FailureType:     string(p.FailureType),
		PredictedWindow: p.PredictedWindow,
		Factors:         factors,
		Recommendations: recommendations,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}

	n.logger.Debug("prediction notification delivered", slog.String("instance_id", p.InstanceID))
	return nil
}
