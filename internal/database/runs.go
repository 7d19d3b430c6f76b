package database

import (
	"time"

	"github.com/google/uuid"
)

// Run statuses.
const (
	RunRunning  = "running"
	RunSuccess  = "success"
	RunDegraded = "degraded"
	RunFailed   = "failed"
)

// ValuationRun records one pipeline invocation
type ValuationRun struct {
	ID           string     `json:"id"`
	Status       string     `json:"status"`
	SkuCount     int        `json:"skuCount"`
	QueryCount   int        `json:"queryCount"`
	CacheHits    int        `json:"cacheHits"`
	AuthError    bool       `json:"authError"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	StartedAt    time.Time  `json:"startedAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

// CreateRun inserts run, assigning an ID if it has none
func (db *DB) CreateRun(run *ValuationRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	_, err := db.Exec(`
		INSERT INTO valuation_runs (id, status, sku_count, query_count, cache_hits, auth_error, error_message, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Status, run.SkuCount, run.QueryCount, run.CacheHits, run.AuthError, run.ErrorMessage, run.StartedAt)
	return err
}

// CompleteRun updates counters, status and completion time
func (db *DB) CompleteRun(run *ValuationRun) error {
	_, err := db.Exec(`
		UPDATE valuation_runs
		SET status = ?, sku_count = ?, query_count = ?, cache_hits = ?, auth_error = ?, error_message = ?, completed_at = ?
		WHERE id = ?
	`, run.Status, run.SkuCount, run.QueryCount, run.CacheHits, run.AuthError, run.ErrorMessage, run.CompletedAt, run.ID)
	return err
}

// ListRuns returns the most recent runs first
func (db *DB) ListRuns(limit int) ([]ValuationRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(`
		SELECT id, status, sku_count, query_count, cache_hits, auth_error, error_message, started_at, completed_at
		FROM valuation_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []ValuationRun
	for rows.Next() {
		var r ValuationRun
		err := rows.Scan(&r.ID, &r.Status, &r.SkuCount, &r.QueryCount, &r.CacheHits,
			&r.AuthError, &r.ErrorMessage, &r.StartedAt, &r.CompletedAt)
		if err != nil {
			return nil, err
		}
		history = append(history, r)
	}
	return history, rows.Err()
}
