package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/fleetguard/fleetguard-predict/internal/models"
)

// Store persists emitted predictions with an expiry marker for retention.
// It implements the monitor's PredictionSink.
type Store struct {
	db        *sql.DB
	retention time.Duration
}

// NewStore opens (and migrates) the SQLite database at the given path.
func NewStore(dbPath string, retention time.Duration) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	return &Store{db: db, retention: retention}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// StorePrediction appends a prediction event and upserts the per-instance
// latest row. The event carries an expires_at marker honoured by
// PruneExpired.
func (s *Store) StorePrediction(ctx context.Context, p models.Prediction) error {
	factorsJSON, err := json.Marshal(p.Factors)
	if err != nil {
		return fmt.Errorf("marshal factors: %w", err)
	}
	resultsJSON, err := json.Marshal(p.MetricResults)
	if err != nil {
		return fmt.Errorf("marshal metric results: %w", err)
	}

	expiresAt := p.Timestamp.Add(s.retention)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO prediction_events (
			instance_id, confidence, score, failure_type, predicted_window,
			factors_json, results_json, timestamp, expires_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.InstanceID,
		string(p.Confidence),
		p.Score,
		string(p.FailureType),
		p.PredictedWindow,
		string(factorsJSON),
		string(resultsJSON),
		p.Timestamp,
		expiresAt,
	)
	if err != nil {
		return fmt.Errorf("store prediction event: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO latest_predictions (
			instance_id, confidence, score, failure_type, predicted_window, factors_json, timestamp
		)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(instance_id) DO UPDATE SET
			confidence = excluded.confidence,
			score = excluded.score,
			failure_type = excluded.failure_type,
			predicted_window = excluded.predicted_window,
			factors_json = excluded.factors_json,
			timestamp = excluded.timestamp,
			updated_at = CURRENT_TIMESTAMP
	`,
		p.InstanceID,
		string(p.Confidence),
		p.Score,
		string(p.FailureType),
		p.PredictedWindow,
		string(factorsJSON),
		p.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("update latest prediction: %w", err)
	}

	return nil
}

// ListRecent returns up to limit prediction events, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]models.Prediction, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT instance_id, confidence, score, failure_type, predicted_window,
		       factors_json, results_json, timestamp
		FROM prediction_events
		ORDER BY timestamp DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query prediction events: %w", err)
	}
	defer rows.Close()

	predictions := make([]models.Prediction, 0, limit)
	for rows.Next() {
		var (
			p           models.Prediction
			confidence  string
			failureType string
			factorsJSON string
			resultsJSON string
		)
		if err := rows.Scan(
			&p.InstanceID,
			&confidence,
			&p.Score,
			&failureType,
			&p.PredictedWindow,
			&factorsJSON,
			&resultsJSON,
			&p.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan prediction event: %w", err)
		}
		p.Confidence = models.Confidence(confidence)
		p.FailureType = models.FailureType(failureType)
		if err := json.Unmarshal([]byte(factorsJSON), &p.Factors); err != nil {
			return nil, fmt.Errorf("unmarshal factors: %w", err)
		}
		if err := json.Unmarshal([]byte(resultsJSON), &p.MetricResults); err != nil {
			return nil, fmt.Errorf("unmarshal metric results: %w", err)
		}
		predictions = append(predictions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate prediction events: %w", err)
	}
	return predictions, nil
}

// PruneExpired deletes events whose expiry marker has passed and returns
// the number of rows removed.
func (s *Store) PruneExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM prediction_events WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("prune expired events: %w", err)
	}
	return res.RowsAffected()
}
