package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/capitalize-ai/team-inbox/internal/middleware"
	"github.com/capitalize-ai/team-inbox/internal/model"
	"github.com/capitalize-ai/team-inbox/internal/service"
	"github.com/capitalize-ai/team-inbox/pkg/logger"
)

// ChannelHandler handles channel registry endpoints.
type ChannelHandler struct {
	service *service.ChannelService
	logger  *logger.Logger
}

// NewChannelHandler creates a new channel handler.
func NewChannelHandler(svc *service.ChannelService, log *logger.Logger) *ChannelHandler {
	return &ChannelHandler{
		service: svc,
		logger:  log,
	}
}

// Create handles POST /api/v1/teams/{teamID}/channels
func (h *ChannelHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateChannelRequest
	if err := decode(w, r, &req); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	ch, err := h.service.Create(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "teamID"), &req)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, ch)
}

// List handles GET /api/v1/teams/{teamID}/channels
func (h *ChannelHandler) List(w http.ResponseWriter, r *http.Request) {
	channels, err := h.service.List(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "teamID"))
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"channels": channels})
}

// Delete handles DELETE /api/v1/teams/{teamID}/channels/{channelID}
func (h *ChannelHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.service.Delete(r.Context(), middleware.GetUserID(r.Context()),
		chi.URLParam(r, "teamID"), chi.URLParam(r, "channelID"))
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
