package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/capitalize-ai/team-inbox/internal/middleware"
	"github.com/capitalize-ai/team-inbox/internal/model"
	"github.com/capitalize-ai/team-inbox/internal/service"
	"github.com/capitalize-ai/team-inbox/pkg/logger"
)

// ConversationHandler handles conversation, message and note endpoints.
type ConversationHandler struct {
	service *service.ConversationService
	logger  *logger.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(svc *service.ConversationService, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		service: svc,
		logger:  log,
	}
}

// Create handles POST /api/v1/conversations
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateConversationRequest
	if err := decode(w, r, &req); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	conv, err := h.service.Create(r.Context(), middleware.GetUserID(r.Context()), &req)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

// ListByTeam handles GET /api/v1/teams/{teamID}/conversations
func (h *ConversationHandler) ListByTeam(w http.ResponseWriter, r *http.Request) {
	convs, err := h.service.ListByTeam(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "teamID"))
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": convs})
}

// Get handles GET /api/v1/conversations/{id}
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	conv, err := h.service.Get(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// Update handles PATCH /api/v1/conversations/{id}
func (h *ConversationHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateConversationRequest
	if err := decode(w, r, &req); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	conv, err := h.service.Update(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id"), &req)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// ListMessages handles GET /api/v1/conversations/{id}/messages
func (h *ConversationHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.service.ListMessages(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

// ListNotes handles GET /api/v1/conversations/{id}/notes
func (h *ConversationHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := h.service.ListNotes(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notes": notes})
}

// AddNote handles POST /api/v1/conversations/{id}/notes
func (h *ConversationHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	var req model.AddNoteRequest
	if err := decode(w, r, &req); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	note, err := h.service.AddNote(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id"), &req)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}
