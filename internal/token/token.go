// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package token generates and hashes the opaque setup tokens that gate
// invitation-based signup.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Length is the number of random bytes in a raw token (256 bits of entropy).
const Length = 32

// Generate returns a new unguessable raw token as a hex string.
func Generate() (string, error) {
	bytes := make([]byte, Length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// Hash computes the SHA256 hex digest of a raw token. The digest is stored
// instead of the raw token so a leaked table never reveals a usable credential.
func Hash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
