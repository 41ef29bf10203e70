package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const opaqueTokenBytes = 32

// GenerateOpaque creates a cryptographically random hex token for single-use
// flows (password reset, email verification). Unlike a JWT it carries no
// claims and cannot be forged offline.
func GenerateOpaque() (string, error) {
	b := make([]byte, opaqueTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
