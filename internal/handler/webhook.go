package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/capitalize-ai/team-inbox/internal/ingest"
	"github.com/capitalize-ai/team-inbox/internal/model"
	"github.com/capitalize-ai/team-inbox/pkg/logger"
)

// WebhookHandler receives inbound provider messages.
type WebhookHandler struct {
	ingest   *ingest.Service
	verifier SignatureVerifier
	logger   *logger.Logger
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(svc *ingest.Service, verifier SignatureVerifier, log *logger.Logger) *WebhookHandler {
	if verifier == nil {
		verifier = TrustAll{}
	}
	return &WebhookHandler{
		ingest:   svc,
		verifier: verifier,
		logger:   log,
	}
}

// Twilio handles POST /webhooks/twilio
func (h *WebhookHandler) Twilio(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	params := r.PostForm

	payload := model.InboundPayload{
		MessageSid:        params.Get("MessageSid"),
		From:              params.Get("From"),
		To:                params.Get("To"),
		Body:              params.Get("Body"),
		NumMedia:          params.Get("NumMedia"),
		MediaURL0:         params.Get("MediaUrl0"),
		MediaContentType0: params.Get("MediaContentType0"),
	}

	valid := h.verifier.Verify(r, params)
	if !valid {
		h.logger.Warn("rejected webhook with invalid signature",
			zap.String("remote_addr", r.RemoteAddr),
			zap.String("message_sid", payload.MessageSid),
		)
	}

	res, err := h.ingest.Receive(r.Context(), payload, valid)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"team_id":         res.Team.ID,
		"contact_id":      res.Contact.ID,
		"conversation_id": res.Conversation.ID,
		"message_id":      res.Message.ID,
		"duplicate":       res.Duplicate,
	})
}
