package database

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
)

// EncryptionKeyEnv names the variable holding the base64 AES-256 key that
// seals stored API secrets.
const EncryptionKeyEnv = "EBAY_ENCRYPTION_KEY"

// ErrNoEncryptionKey is returned when EncryptionKeyEnv is unset.
var ErrNoEncryptionKey = errors.New(EncryptionKeyEnv + " environment variable not set")

// EncryptionKeyFromEnv loads and validates the key from EncryptionKeyEnv.
func EncryptionKeyFromEnv() ([]byte, error) {
	keyStr := os.Getenv(EncryptionKeyEnv)
	if keyStr == "" {
		return nil, ErrNoEncryptionKey
	}
	return ParseEncryptionKey(keyStr)
}

// ParseEncryptionKey decodes a base64 key, which must be 32 bytes.
func ParseEncryptionKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode encryption key from base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("invalid encryption key length: got %d bytes, expected 32", len(key))
	}
	return key, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("invalid key length: got %d bytes, expected 32", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// SealSecret encrypts plaintext with AES-256-GCM. The output is nonce||ciphertext.
func SealSecret(plaintext string, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

// OpenSecret reverses SealSecret.
func OpenSecret(sealed []byte, key []byte) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	n := gcm.NonceSize()
	if len(sealed) < n {
		return "", errors.New("sealed secret too short")
	}
	plaintext, err := gcm.Open(nil, sealed[:n], sealed[n:], nil)
	if err != nil {
		return "", fmt.Errorf("failed to open secret: %w", err)
	}
	return string(plaintext), nil
}
