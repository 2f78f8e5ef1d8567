// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/danielhkuo/agm-proxy/cliparse"
	"github.com/danielhkuo/agm-proxy/middleware"
	"github.com/danielhkuo/agm-proxy/models"
	"github.com/danielhkuo/agm-proxy/proxy"
)

type AppointmentHandler struct {
	svc *proxy.Service
	cfg cliparse.Config
}

func NewAppointmentHandler(svc *proxy.Service, cfg cliparse.Config) *AppointmentHandler {
	return &AppointmentHandler{svc: svc, cfg: cfg}
}

// CreateAppointment handles POST /appointments
func (h *AppointmentHandler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	var req models.CreateAppointmentRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	resp, err := h.svc.CreateAppointment(r.Context(), req)
	if err != nil {
		middleware.ServiceError(w, r, err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, resp)
}

// GetPrincipalGroups handles GET /principals/{id}/groups
func (h *AppointmentHandler) GetPrincipalGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.svc.GetGroupsForPrincipal(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		middleware.ServiceError(w, r, err)
		return
	}
	if groups == nil {
		groups = []models.ProxyGroup{}
	}

	middleware.JSONResponse(w, http.StatusOK, groups)
}

// GetDelegateGroups handles GET /delegates/{id}/groups
func (h *AppointmentHandler) GetDelegateGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.svc.GetGroupsForDelegate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		middleware.ServiceError(w, r, err)
		return
	}
	if groups == nil {
		groups = []models.DelegateGroup{}
	}

	middleware.JSONResponse(w, http.StatusOK, groups)
}

// ListCandidates handles GET /candidates
func (h *AppointmentHandler) ListCandidates(w http.ResponseWriter, r *http.Request) {
	employees, err := h.svc.ListEligibleEmployees(r.Context())
	if err != nil {
		slog.Error("failed to list candidates", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if employees == nil {
		employees = []models.Employee{}
	}

	middleware.JSONResponse(w, http.StatusOK, employees)
}
