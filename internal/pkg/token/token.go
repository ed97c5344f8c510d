package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// NewRequestToken generates a cryptographically random 32-character hex token
// (128 bits of entropy) used to gate account redemption.
func NewRequestToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate request token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
