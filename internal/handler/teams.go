// Package handler provides HTTP handlers for the API.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/capitalize-ai/team-inbox/internal/middleware"
	"github.com/capitalize-ai/team-inbox/internal/model"
	"github.com/capitalize-ai/team-inbox/internal/service"
	"github.com/capitalize-ai/team-inbox/pkg/logger"
)

// TeamHandler handles team and membership endpoints.
type TeamHandler struct {
	service *service.TeamService
	logger  *logger.Logger
}

// NewTeamHandler creates a new team handler.
func NewTeamHandler(svc *service.TeamService, log *logger.Logger) *TeamHandler {
	return &TeamHandler{
		service: svc,
		logger:  log,
	}
}

// Create handles POST /api/v1/teams
func (h *TeamHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateTeamRequest
	if err := decode(w, r, &req); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	team, err := h.service.Create(r.Context(), middleware.GetUserID(r.Context()), &req)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, team)
}

// List handles GET /api/v1/teams
func (h *TeamHandler) List(w http.ResponseWriter, r *http.Request) {
	teams, err := h.service.List(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"teams": teams})
}

// Get handles GET /api/v1/teams/{teamID}
func (h *TeamHandler) Get(w http.ResponseWriter, r *http.Request) {
	team, err := h.service.Get(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "teamID"))
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}

// Update handles PATCH /api/v1/teams/{teamID}
func (h *TeamHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateTeamRequest
	if err := decode(w, r, &req); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	team, err := h.service.Update(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "teamID"), &req)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}

// Delete handles DELETE /api/v1/teams/{teamID}
func (h *TeamHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "teamID")); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListMembers handles GET /api/v1/teams/{teamID}/members
func (h *TeamHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.service.ListMembers(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "teamID"))
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": members})
}

// AddMember handles POST /api/v1/teams/{teamID}/members
func (h *TeamHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	var req model.AddMemberRequest
	if err := decode(w, r, &req); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	member, err := h.service.AddMember(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "teamID"), &req)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, member)
}

// UpdateMember handles PATCH /api/v1/teams/{teamID}/members/{memberID}
func (h *TeamHandler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateMemberRequest
	if err := decode(w, r, &req); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	member, err := h.service.UpdateMemberRole(r.Context(), middleware.GetUserID(r.Context()),
		chi.URLParam(r, "teamID"), chi.URLParam(r, "memberID"), &req)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, member)
}

// RemoveMember handles DELETE /api/v1/teams/{teamID}/members/{memberID}
func (h *TeamHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	err := h.service.RemoveMember(r.Context(), middleware.GetUserID(r.Context()),
		chi.URLParam(r, "teamID"), chi.URLParam(r, "memberID"))
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
