// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/danielhkuo/agm-proxy/auth"
	"github.com/danielhkuo/agm-proxy/cliparse"
	"github.com/danielhkuo/agm-proxy/middleware"
	"github.com/danielhkuo/agm-proxy/models"
	"github.com/danielhkuo/agm-proxy/proxy"
)

type GroupHandler struct {
	svc *proxy.Service
	cfg cliparse.Config
}

func NewGroupHandler(svc *proxy.Service, cfg cliparse.Config) *GroupHandler {
	return &GroupHandler{svc: svc, cfg: cfg}
}

// GetGroup handles GET /groups/{id}
func (h *GroupHandler) GetGroup(w http.ResponseWriter, r *http.Request) {
	g, err := h.svc.GetGroup(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		middleware.ServiceError(w, r, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, g)
}

// UpdateGroup handles PATCH /groups/{id}
func (h *GroupHandler) UpdateGroup(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateGroupRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	g, err := h.svc.UpdateGroup(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		middleware.ServiceError(w, r, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, g)
}

// DeleteGroup handles DELETE /groups/{id}
func (h *GroupHandler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteGroup(r.Context(), chi.URLParam(r, "id")); err != nil {
		middleware.ServiceError(w, r, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.MessageResponse{Message: "Group deleted"})
}

// ActivateGroup handles POST /groups/{id}/activate
func (h *GroupHandler) ActivateGroup(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ActivateGroup(r.Context(), chi.URLParam(r, "id")); err != nil {
		middleware.ServiceError(w, r, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.MessageResponse{Message: "Group activated"})
}

// DeactivateGroup handles POST /groups/{id}/deactivate
func (h *GroupHandler) DeactivateGroup(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeactivateGroup(r.Context(), chi.URLParam(r, "id")); err != nil {
		middleware.ServiceError(w, r, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.MessageResponse{Message: "Group deactivated"})
}

// AddMember handles POST /groups/{id}/members
func (h *GroupHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	var req models.MemberDescriptor
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	id, err := h.svc.AddMember(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		middleware.ServiceError(w, r, err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, models.AddMemberResponse{MemberID: id})
}

// RemoveMember handles DELETE /members/{id}
func (h *GroupHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RemoveMember(r.Context(), chi.URLParam(r, "id")); err != nil {
		middleware.ServiceError(w, r, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.MessageResponse{Message: "Member removed"})
}

// AddCandidate handles POST /members/{id}/candidates
func (h *GroupHandler) AddCandidate(w http.ResponseWriter, r *http.Request) {
	var req models.AddCandidateRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.EmployeeID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "employeeId is required")
		return
	}

	if err := h.svc.AddAllowedCandidate(r.Context(), chi.URLParam(r, "id"), req.EmployeeID); err != nil {
		middleware.ServiceError(w, r, err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, models.MessageResponse{Message: "Candidate added"})
}

// RemoveCandidate handles DELETE /members/{id}/candidates/{employeeId}
func (h *GroupHandler) RemoveCandidate(w http.ResponseWriter, r *http.Request) {
	err := h.svc.RemoveAllowedCandidate(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "employeeId"))
	if err != nil {
		middleware.ServiceError(w, r, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.MessageResponse{Message: "Candidate removed"})
}

// CastVote handles POST /groups/{id}/votes
func (h *GroupHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	var req models.CastVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	ipHash := auth.HashIP(middleware.GetClientIP(r), h.cfg.IPHashSalt)
	resp, err := h.svc.CastProxyVote(r.Context(), chi.URLParam(r, "id"), req, &ipHash)
	if err != nil {
		middleware.ServiceError(w, r, err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, resp)
}
