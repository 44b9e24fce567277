package utils

import (
	"crypto/rand"
	"encoding/hex"
)

// SessionTokenBytes is the entropy of an opaque delivery session token.
const SessionTokenBytes = 32

// GenerateSessionToken returns a random hex encoded opaque token.
func GenerateSessionToken() (string, error) {
	buf := make([]byte, SessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
