package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Prediction is one served classification.
type Prediction struct {
	ID            int64              `json:"id"`
	PredictionID  string             `json:"prediction_id"`
	RequestID     string             `json:"request_id,omitempty"`
	Source        string             `json:"source"`
	Features      map[string]float64 `json:"features"`
	ClassCode     int                `json:"class_code"`
	Label         string             `json:"label"`
	ModelChecksum string             `json:"model_checksum"`
	CreatedAt     time.Time          `json:"created_at"`
}

// History persists served predictions in SQLite.
type History struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS predictions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    prediction_id TEXT NOT NULL UNIQUE,
    request_id TEXT NOT NULL DEFAULT '',
    source TEXT NOT NULL,
    features TEXT NOT NULL,
    class_code INTEGER NOT NULL,
    label TEXT NOT NULL,
    model_checksum TEXT NOT NULL,
    created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_predictions_request_id ON predictions(request_id);
CREATE INDEX IF NOT EXISTS idx_predictions_created_at ON predictions(created_at);
`

// Open opens (creating if needed) the database at path. ":memory:" is
// accepted for tests.
func Open(path string) (*History, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}
	database, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database failed: %w", err)
	}
	// a single connection keeps :memory: databases shared and serializes writers
	database.SetMaxOpenConns(1)

	if _, err := database.Exec(schema); err != nil {
		database.Close()
		return nil, fmt.Errorf("create tables failed: %w", err)
	}
	return &History{db: database}, nil
}

func (h *History) Close() error {
	return h.db.Close()
}

func (h *History) Save(ctx context.Context, p Prediction) (int64, error) {
	if p.PredictionID == "" {
		return 0, errors.New("prediction id required")
	}
	features, err := json.Marshal(p.Features)
	if err != nil {
		return 0, err
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	res, err := h.db.ExecContext(ctx, `
        INSERT INTO predictions (prediction_id, request_id, source, features, class_code, label, model_checksum, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.PredictionID, p.RequestID, p.Source, string(features), p.ClassCode, p.Label, p.ModelChecksum, p.CreatedAt.UTC())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Recent returns up to limit predictions, newest first.
func (h *History) Recent(ctx context.Context, limit int) ([]Prediction, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := h.db.QueryContext(ctx, `
        SELECT id, prediction_id, request_id, source, features, class_code, label, model_checksum, created_at
        FROM predictions
        ORDER BY id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	predictions := make([]Prediction, 0)
	for rows.Next() {
		var p Prediction
		var features string
		if err := rows.Scan(&p.ID, &p.PredictionID, &p.RequestID, &p.Source, &features, &p.ClassCode, &p.Label, &p.ModelChecksum, &p.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(features), &p.Features); err != nil {
			return nil, fmt.Errorf("prediction %d: %w", p.ID, err)
		}
		predictions = append(predictions, p)
	}
	return predictions, rows.Err()
}

// LabelCounts returns how many predictions were served per label.
func (h *History) LabelCounts(ctx context.Context) (map[string]int64, error) {
	rows, err := h.db.QueryContext(ctx, `SELECT label, COUNT(*) FROM predictions GROUP BY label`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var label string
		var count int64
		if err := rows.Scan(&label, &count); err != nil {
			return nil, err
		}
		counts[label] = count
	}
	return counts, rows.Err()
}
