package database

import (
	"database/sql"
	"errors"
	"fmt"
)

// ErrNoCredentials is returned when no secret is stored for a client id.
var ErrNoCredentials = errors.New("no stored credentials")

// SaveCredentials seals secret under key and stores it for clientID.
func (db *DB) SaveCredentials(clientID, secret string, key []byte) error {
	sealed, err := SealSecret(secret, key)
	if err != nil {
		return fmt.Errorf("failed to seal secret: %w", err)
	}
	_, err = db.Exec(`
		INSERT INTO credentials (client_id, secret, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(client_id) DO UPDATE SET secret = excluded.secret, updated_at = CURRENT_TIMESTAMP
	`, clientID, sealed)
	return err
}

// LoadCredentials returns the stored secret for clientID.
func (db *DB) LoadCredentials(clientID string, key []byte) (string, error) {
	var sealed []byte
	err := db.QueryRow(`SELECT secret FROM credentials WHERE client_id = ?`, clientID).Scan(&sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoCredentials
	}
	if err != nil {
		return "", err
	}
	return OpenSecret(sealed, key)
}
