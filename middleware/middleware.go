// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/danielhkuo/agm-proxy/auth"
	"github.com/danielhkuo/agm-proxy/metrics"
	"github.com/danielhkuo/agm-proxy/models"
)

// WithLogging wraps a handler with request logging
func WithLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		slog.Debug("request started",
			"method", r.Method,
			"path", r.URL.Path,
			"remote", r.RemoteAddr,
		)

		next.ServeHTTP(ww, r)

		slog.Info("request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status(ww),
			"request_id", chimw.GetReqID(r.Context()),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// WithMetrics records request latency per route pattern. Unmatched
// requests are grouped under "unmatched".
func WithMetrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			m.ObserveRequest(r.Method, route, status(ww), time.Since(start))
		})
	}
}

func status(ww chimw.WrapResponseWriter) int {
	if ww.Status() == 0 {
		return http.StatusOK
	}
	return ww.Status()
}

// RequireAdminKey rejects requests that do not carry the configured admin
// key as a bearer token or in X-Admin-Key.
func RequireAdminKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := auth.AdminKeyFromHeaders(r.Header.Get("Authorization"), r.Header.Get("X-Admin-Key"))
			if err := auth.ValidateAdminKey(provided, key); err != nil {
				slog.Warn("admin key rejected", "path", r.URL.Path, "error", err)
				ErrorResponse(w, http.StatusUnauthorized, err.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// JSONResponse writes a JSON response
func JSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	err := json.NewEncoder(w).Encode(data)
	if err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// ErrorResponse writes a JSON error response
func ErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	JSONResponse(w, statusCode, models.ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	})
}

// ServiceError maps a proxy service error onto its HTTP status. Forbidden
// responses carry the voters that locked the group. Anything outside the
// taxonomy is logged and reported as a 500 without detail.
func ServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		nf *models.NotFoundError
		ve *models.ValidationError
		ce *models.ConflictError
		fe *models.ForbiddenError
	)

	switch {
	case errors.As(err, &nf):
		ErrorResponse(w, http.StatusNotFound, nf.Message)
	case errors.As(err, &ve):
		ErrorResponse(w, http.StatusBadRequest, ve.Message)
	case errors.As(err, &ce):
		ErrorResponse(w, http.StatusConflict, ce.Message)
	case errors.As(err, &fe):
		JSONResponse(w, http.StatusForbidden, models.ErrorResponse{
			Error:   http.StatusText(http.StatusForbidden),
			Message: fe.Message,
			Voters:  fe.Voters,
		})
	default:
		slog.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"commit_failed", errors.Is(err, models.ErrCommitFailed),
			"error", err,
		)
		ErrorResponse(w, http.StatusInternalServerError, "Internal server error")
	}
}

// ParseJSONBody parses the request body into the given struct
func ParseJSONBody(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// GetClientIP extracts the client IP address
// Checks X-Forwarded-For, X-Real-IP, then falls back to RemoteAddr
func GetClientIP(r *http.Request) string {
	// first IP in the load balancer chain
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	// nginx
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	return remoteHost(r)
}

// remoteHost strips the port from RemoteAddr.
func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
