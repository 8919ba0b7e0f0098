package sqlite

// Schema defines the SQLite database schema.
const Schema = `
-- Prediction events audit table
CREATE TABLE IF NOT EXISTS prediction_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	instance_id TEXT NOT NULL,
	confidence TEXT NOT NULL,
	score REAL NOT NULL,
	failure_type TEXT NOT NULL,
	predicted_window TEXT NOT NULL,
	factors_json TEXT NOT NULL,
	results_json TEXT NOT NULL,
	timestamp TIMESTAMP NOT NULL,
	expires_at TIMESTAMP NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_prediction_events_instance ON prediction_events(instance_id);
CREATE INDEX IF NOT EXISTS idx_prediction_events_confidence ON prediction_events(confidence);
CREATE INDEX IF NOT EXISTS idx_prediction_events_timestamp ON prediction_events(timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_prediction_events_expires ON prediction_events(expires_at);

-- Latest prediction per instance
CREATE TABLE IF NOT EXISTS latest_predictions (
	instance_id TEXT PRIMARY KEY,
	confidence TEXT NOT NULL,
	score REAL NOT NULL,
	failure_type TEXT NOT NULL,
	predicted_window TEXT NOT NULL,
	factors_json TEXT NOT NULL,
	timestamp TIMESTAMP NOT NULL,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`
