// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danielhkuo/agm-proxy/cliparse"
	"github.com/danielhkuo/agm-proxy/handlers"
	"github.com/danielhkuo/agm-proxy/metrics"
	"github.com/danielhkuo/agm-proxy/middleware"
	"github.com/danielhkuo/agm-proxy/proxy"
)

// NewRouter wires the proxy service and its handlers onto a chi mux.
// Collectors are registered with reg, which /metrics also serves.
func NewRouter(db *sql.DB, cfg cliparse.Config, reg *prometheus.Registry) http.Handler {
	m := metrics.New(reg)
	svc := proxy.New(db, cfg.Dialect(),
		proxy.WithPolicy(cfg.Policy),
		proxy.WithMetrics(m),
	)

	// Initialize handlers
	appointmentHandler := handlers.NewAppointmentHandler(svc, cfg)
	groupHandler := handlers.NewGroupHandler(svc, cfg)
	settingsHandler := handlers.NewSettingsHandler(svc, cfg)
	requireAdmin := middleware.RequireAdminKey(cfg.AdminKey)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Admin-Key"},
		MaxAge:         300,
	}))
	r.Use(middleware.WithLogging)
	r.Use(middleware.WithMetrics(m))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			middleware.ErrorResponse(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))

		// Appointments and views
		r.Post("/appointments", appointmentHandler.CreateAppointment)
		r.Get("/principals/{id}/groups", appointmentHandler.GetPrincipalGroups)
		r.Get("/delegates/{id}/groups", appointmentHandler.GetDelegateGroups)
		r.Get("/candidates", appointmentHandler.ListCandidates)

		// Group mutations (guarded once any member has voted)
		r.Route("/groups/{id}", func(r chi.Router) {
			r.Get("/", groupHandler.GetGroup)
			r.Patch("/", groupHandler.UpdateGroup)
			r.Delete("/", groupHandler.DeleteGroup)
			r.Post("/activate", groupHandler.ActivateGroup)
			r.Post("/deactivate", groupHandler.DeactivateGroup)
			r.Post("/members", groupHandler.AddMember)
			r.Post("/votes", groupHandler.CastVote)

			r.Get("/limits", settingsHandler.GetGroupLimits)
			r.With(requireAdmin).Put("/limits", settingsHandler.UpdateGroupLimits)
			r.Get("/voter-limits", settingsHandler.GetVoterLimits)
			r.With(requireAdmin).Put("/voter-limits", settingsHandler.SetVoterLimits)
		})

		r.Delete("/members/{id}", groupHandler.RemoveMember)
		r.Post("/members/{id}/candidates", groupHandler.AddCandidate)
		r.Delete("/members/{id}/candidates/{employeeId}", groupHandler.RemoveCandidate)

		// Global bounds
		r.Get("/settings/vote-splitting", settingsHandler.GetGlobal)
		r.With(requireAdmin).Put("/settings/vote-splitting", settingsHandler.UpdateGlobal)
	})

	// Root endpoint
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("agm-proxy API v1"))
	})

	return r
}
