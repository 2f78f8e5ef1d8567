// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

var (
	ErrMissingAdminKey = errors.New("admin key required")
	ErrInvalidAdminKey = errors.New("invalid admin key")
)

// ValidateAdminKey compares the provided key with the configured one in
// constant time. Both are hashed first so their lengths do not leak.
func ValidateAdminKey(provided, expected string) error {
	if provided == "" {
		return ErrMissingAdminKey
	}
	p := sha256.Sum256([]byte(provided))
	e := sha256.Sum256([]byte(expected))
	if expected == "" || !hmac.Equal(p[:], e[:]) {
		return ErrInvalidAdminKey
	}
	return nil
}

// AdminKeyFromHeaders reads the key from an "Authorization: Bearer" value,
// falling back to the X-Admin-Key value.
func AdminKeyFromHeaders(authorization, adminKey string) string {
	if token, ok := strings.CutPrefix(authorization, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return strings.TrimSpace(adminKey)
}

// HashIP creates a one-way hash of an IP address for privacy
// Includes salt to prevent rainbow table attacks
func HashIP(ip, salt string) string {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(ip))
	sum := h.Sum(nil)
	// first 16 hex chars (64 bits) are enough for deduplication
	return hex.EncodeToString(sum[:8])
}
