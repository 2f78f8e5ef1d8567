// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides admin-key checks and IP hashing.

# Admin Key

Settings routes require the configured ADMIN_KEY, sent either as a bearer
token or in the X-Admin-Key header:

	key := auth.AdminKeyFromHeaders(r.Header.Get("Authorization"), r.Header.Get("X-Admin-Key"))
	err := auth.ValidateAdminKey(key, cfg.AdminKey)

Both sides are hashed with SHA-256 and compared with hmac.Equal.

# IP Hashing

Proxy votes store a salted hash of the caller's address rather than the
address itself:

	hash := auth.HashIP(ipAddress, cfg.IPHashSalt)

Returns the first 8 bytes (16 hex chars) of HMAC-SHA256.
*/
package auth
