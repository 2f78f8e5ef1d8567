// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/danielhkuo/agm-proxy/cliparse"
	"github.com/danielhkuo/agm-proxy/middleware"
	"github.com/danielhkuo/agm-proxy/models"
	"github.com/danielhkuo/agm-proxy/proxy"
)

// SettingsHandler serves the vote-splitting bounds. Writes are mounted
// behind middleware.RequireAdminKey by the router.
type SettingsHandler struct {
	svc *proxy.Service
	cfg cliparse.Config
}

func NewSettingsHandler(svc *proxy.Service, cfg cliparse.Config) *SettingsHandler {
	return &SettingsHandler{svc: svc, cfg: cfg}
}

// GetGlobal handles GET /settings/vote-splitting
func (h *SettingsHandler) GetGlobal(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.GetGlobalSettings(r.Context())
	if err != nil {
		middleware.ServiceError(w, r, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, v)
}

// UpdateGlobal handles PUT /settings/vote-splitting
func (h *SettingsHandler) UpdateGlobal(w http.ResponseWriter, r *http.Request) {
	var req models.VoteSplittingSettings
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	v, err := h.svc.UpdateGlobalSettings(r.Context(), req)
	if err != nil {
		middleware.ServiceError(w, r, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, v)
}

// GetGroupLimits handles GET /groups/{id}/limits
func (h *SettingsHandler) GetGroupLimits(w http.ResponseWriter, r *http.Request) {
	l, err := h.svc.GetGroupLimits(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		middleware.ServiceError(w, r, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, l)
}

// UpdateGroupLimits handles PUT /groups/{id}/limits
func (h *SettingsHandler) UpdateGroupLimits(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateGroupLimitsRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	l, err := h.svc.UpdateGroupLimits(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		middleware.ServiceError(w, r, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, l)
}

// GetVoterLimits handles GET /groups/{id}/voter-limits
func (h *SettingsHandler) GetVoterLimits(w http.ResponseWriter, r *http.Request) {
	limits, err := h.svc.GetVoterLimits(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		middleware.ServiceError(w, r, err)
		return
	}
	if limits == nil {
		limits = []models.VoterLimit{}
	}

	middleware.JSONResponse(w, http.StatusOK, limits)
}

// SetVoterLimits handles PUT /groups/{id}/voter-limits
func (h *SettingsHandler) SetVoterLimits(w http.ResponseWriter, r *http.Request) {
	var req models.SetVoterLimitsRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	limits, err := h.svc.SetVoterLimits(r.Context(), chi.URLParam(r, "id"), req.Limits)
	if err != nil {
		middleware.ServiceError(w, r, err)
		return
	}
	if limits == nil {
		limits = []models.VoterLimit{}
	}

	middleware.JSONResponse(w, http.StatusOK, limits)
}
