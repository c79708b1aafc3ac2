package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// ResetTokenTTL is the window within which a password-reset token is valid.
const ResetTokenTTL = 15 * time.Minute

const resetTokenBytes = 32

// GenerateResetToken produces a random capability token and its SHA-256 hash.
// Only the hash is persisted; the raw token travels to the user by email.
func GenerateResetToken() (raw, hash string, err error) {
	buf := make([]byte, resetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate reset token: %w", err)
	}
	raw = hex.EncodeToString(buf)
	return raw, HashResetToken(raw), nil
}

// HashResetToken hashes a presented raw token for lookup against the stored
// hash.
func HashResetToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
