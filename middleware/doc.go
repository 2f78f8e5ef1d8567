// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Chain

The router installs, in order:

	r.Use(chimw.RequestID, chimw.Recoverer)
	r.Use(middleware.WithLogging)
	r.Use(middleware.WithMetrics(m))
	r.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))

WithLogging logs method, path, status and duration_ms per request.
WithMetrics observes latency labelled by the chi route pattern, so ids in
paths do not explode label cardinality.

# Rate Limiting

RateLimit keeps one token bucket per remote address. Exceeding it returns
429 with a Retry-After header. Idle buckets are swept inline; there is no
background goroutine.

# Admin Key

Settings writes are wrapped with RequireAdminKey:

	r.With(middleware.RequireAdminKey(cfg.AdminKey)).Put("/settings/vote-splitting", h.UpdateGlobal)

# JSON Helpers

Write JSON responses:

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusBadRequest, "message")

Map proxy service errors onto status codes:

	if err != nil {
		middleware.ServiceError(w, r, err)
		return
	}

NotFound → 404, Validation → 400, Conflict → 409, Forbidden → 403 with the
voters that locked the group, anything else → 500.

Parse JSON request bodies (unknown fields are rejected):

	var req models.CreateAppointmentRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

# Client IP Extraction

Get the original client IP (handles X-Forwarded-For, X-Real-IP):

	ip := middleware.GetClientIP(r)

Used for IP hashing on proxy votes.
*/
package middleware
