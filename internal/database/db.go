package database

import (
	"database/sql"
	_ "embed"
	"fmt"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/connorodea/upscaled-quicklotz-dashboard-sub001/internal/valuation"
)

//go:embed schema.sql
var schemaSQL string

// Setting keys for the valuation parameters.
const (
	SettingFeeRate          = "fee_rate"
	SettingWholesaleRate    = "wholesale_rate"
	SettingRoutingThreshold = "routing_threshold"
)

// DB wraps the SQLite database
type DB struct {
	*sql.DB
}

// Setting represents an application setting (key-value pair)
type Setting struct {
	ID          int64     `json:"id"`
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	Description string    `json:"description,omitempty"`
	DataType    string    `json:"dataType"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Open opens or creates the database
func Open(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// sqlite3 allows a single writer
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &DB{db}, nil
}

// GetAllSettings returns all application settings
func (db *DB) GetAllSettings() ([]Setting, error) {
	rows, err := db.Query(`
		SELECT id, key, value, COALESCE(description, ''), data_type, created_at, updated_at
		FROM settings
		ORDER BY key
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var settings []Setting
	for rows.Next() {
		var s Setting
		err := rows.Scan(&s.ID, &s.Key, &s.Value, &s.Description, &s.DataType, &s.CreatedAt, &s.UpdatedAt)
		if err != nil {
			return nil, err
		}
		settings = append(settings, s)
	}
	return settings, rows.Err()
}

// GetSetting returns a single setting by key, or nil if it does not exist
func (db *DB) GetSetting(key string) (*Setting, error) {
	var s Setting
	err := db.QueryRow(`
		SELECT id, key, value, COALESCE(description, ''), data_type, created_at, updated_at
		FROM settings
		WHERE key = ?
	`, key).Scan(&s.ID, &s.Key, &s.Value, &s.Description, &s.DataType, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateSetting updates the value of an existing setting
func (db *DB) UpdateSetting(key, value string) error {
	result, err := db.Exec(`
		UPDATE settings
		SET value = ?, updated_at = CURRENT_TIMESTAMP
		WHERE key = ?
	`, value, key)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("unknown setting %q", key)
	}
	return nil
}

// GetParams resolves valuation parameters from settings. Missing or
// unparseable values keep the corresponding field of defaults.
func (db *DB) GetParams(defaults valuation.Params) (valuation.Params, error) {
	settings, err := db.GetAllSettings()
	if err != nil {
		return defaults, fmt.Errorf("failed to load settings: %w", err)
	}

	p := defaults
	for _, s := range settings {
		v, err := strconv.ParseFloat(s.Value, 64)
		if err != nil {
			continue
		}
		switch s.Key {
		case SettingFeeRate:
			p.FeeRate = v
		case SettingWholesaleRate:
			p.WholesaleRate = v
		case SettingRoutingThreshold:
			p.RoutingThreshold = v
		}
	}
	return p, nil
}

// SaveParams writes all three valuation parameters in one transaction.
func (db *DB) SaveParams(p valuation.Params) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	values := map[string]float64{
		SettingFeeRate:          p.FeeRate,
		SettingWholesaleRate:    p.WholesaleRate,
		SettingRoutingThreshold: p.RoutingThreshold,
	}
	for key, v := range values {
		_, err := tx.Exec(`
			UPDATE settings
			SET value = ?, updated_at = CURRENT_TIMESTAMP
			WHERE key = ?
		`, strconv.FormatFloat(v, 'f', -1, 64), key)
		if err != nil {
			return fmt.Errorf("failed to update %s: %w", key, err)
		}
	}
	return tx.Commit()
}
