package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/team-inbox/internal/apperr"
	"github.com/capitalize-ai/team-inbox/internal/authz"
	"github.com/capitalize-ai/team-inbox/internal/events"
	"github.com/capitalize-ai/team-inbox/internal/model"
	"github.com/capitalize-ai/team-inbox/internal/store"
	"github.com/capitalize-ai/team-inbox/pkg/logger"
	"github.com/capitalize-ai/team-inbox/pkg/metrics"
)

// ConversationService handles conversation lifecycle, notes and message reads.
type ConversationService struct {
	store   store.Store
	authz   *authz.Engine
	emitter *events.Emitter
	logger  *logger.Logger
}

// NewConversationService creates a new conversation service.
func NewConversationService(s store.Store, engine *authz.Engine, emitter *events.Emitter, log *logger.Logger) *ConversationService {
	return &ConversationService{
		store:   s,
		authz:   engine,
		emitter: emitter,
		logger:  log,
	}
}

// ListByTeam returns a team's conversations, newest first.
func (s *ConversationService) ListByTeam(ctx context.Context, userID, teamID string) ([]model.Conversation, error) {
	if _, err := s.authz.Authorize(ctx, userID, teamID, authz.ConversationList); err != nil {
		return nil, err
	}
	return s.store.ListConversations(ctx, teamID)
}

// Create opens a conversation with an existing contact of the team.
func (s *ConversationService) Create(ctx context.Context, userID string, req *model.CreateConversationRequest) (*model.Conversation, error) {
	d, err := s.authz.Authorize(ctx, userID, req.TeamID, authz.ConversationNew)
	if err != nil {
		return nil, err
	}

	contact, err := s.store.GetContact(ctx, req.ContactID)
	if err != nil {
		return nil, err
	}
	if contact.TeamID != req.TeamID {
		return nil, apperr.NotFound("contact not found")
	}

	now := time.Now().UTC()
	conv := &model.Conversation{
		ID:        uuid.Must(uuid.NewV7()).String(),
		TeamID:    req.TeamID,
		ContactID: contact.ID,
		Channel:   req.Channel,
		Status:    model.StatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.AssignedToID != nil && *req.AssignedToID != "" {
		if d.Team.Member(*req.AssignedToID) == nil {
			return nil, apperr.Validation("assignee must be a member of the team")
		}
		assignee := *req.AssignedToID
		conv.AssignedToID = &assignee
	}

	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, err
	}

	metrics.ConversationsOpenedTotal.WithLabelValues("manual").Inc()
	s.emitter.Emit(ctx, events.New(model.EventConversationOpened, conv.TeamID, conv.ID, map[string]any{
		"contact_id": conv.ContactID,
		"channel":    conv.Channel,
		"opened_by":  userID,
	}))
	s.logger.Info("conversation created",
		zap.String("conversation_id", conv.ID),
		zap.String("team_id", conv.TeamID),
		zap.String("user_id", userID),
	)
	return conv, nil
}

// Get retrieves a conversation.
func (s *ConversationService) Get(ctx context.Context, userID, conversationID string) (*model.Conversation, error) {
	conv, _, err := s.load(ctx, userID, conversationID, authz.ConversationRead)
	return conv, err
}

// Update changes status and/or assignee. An empty assignee unassigns.
func (s *ConversationService) Update(ctx context.Context, userID, conversationID string, req *model.UpdateConversationRequest) (*model.Conversation, error) {
	conv, d, err := s.load(ctx, userID, conversationID, authz.ConversationEdit)
	if err != nil {
		return nil, err
	}

	previous := conv.Status
	if req.Status != nil {
		if !req.Status.Valid() {
			return nil, apperr.Validation("invalid status %q", *req.Status)
		}
		conv.Status = *req.Status
	}
	if req.AssignedToID != nil {
		if *req.AssignedToID == "" {
			conv.AssignedToID = nil
		} else {
			if d.Team.Member(*req.AssignedToID) == nil {
				return nil, apperr.Validation("assignee must be a member of the team")
			}
			assignee := *req.AssignedToID
			conv.AssignedToID = &assignee
		}
	}
	conv.UpdatedAt = time.Now().UTC()

	if err := s.store.UpdateConversation(ctx, conv); err != nil {
		return nil, err
	}

	payload := map[string]any{
		"status":     conv.Status,
		"updated_by": userID,
	}
	if previous != conv.Status {
		payload["previous_status"] = previous
	}
	if conv.AssignedToID != nil {
		payload["assigned_to_id"] = *conv.AssignedToID
	}
	s.emitter.Emit(ctx, events.New(model.EventConversationUpdated, conv.TeamID, conv.ID, payload))

	s.logger.Info("conversation updated",
		zap.String("conversation_id", conv.ID),
		zap.String("status", string(conv.Status)),
		zap.String("user_id", userID),
	)
	return conv, nil
}

// ListMessages returns a conversation's messages, oldest first.
func (s *ConversationService) ListMessages(ctx context.Context, userID, conversationID string) ([]model.Message, error) {
	if _, _, err := s.load(ctx, userID, conversationID, authz.MessageList); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, conversationID)
}

// ListNotes returns a conversation's notes, newest first.
func (s *ConversationService) ListNotes(ctx context.Context, userID, conversationID string) ([]model.Note, error) {
	if _, _, err := s.load(ctx, userID, conversationID, authz.NoteList); err != nil {
		return nil, err
	}
	return s.store.ListNotes(ctx, conversationID)
}

// AddNote attaches an internal note authored by userID.
func (s *ConversationService) AddNote(ctx context.Context, userID, conversationID string, req *model.AddNoteRequest) (*model.Note, error) {
	conv, _, err := s.load(ctx, userID, conversationID, authz.NoteCreate)
	if err != nil {
		return nil, err
	}

	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, apperr.Validation("note content cannot be empty")
	}

	note := &model.Note{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conv.ID,
		AuthorID:       userID,
		Content:        content,
		IsPrivate:      req.IsPrivate,
		CreatedAt:      time.Now().UTC(),
		Mentions:       []model.Mention{},
	}
	seen := make(map[string]bool, len(req.Mentions))
	for _, id := range req.Mentions {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		note.Mentions = append(note.Mentions, model.Mention{
			ID:          uuid.Must(uuid.NewV7()).String(),
			NoteID:      note.ID,
			MentionedID: id,
		})
	}

	if err := s.store.CreateNote(ctx, note); err != nil {
		return nil, err
	}

	mentioned := make([]string, 0, len(note.Mentions))
	for _, m := range note.Mentions {
		mentioned = append(mentioned, m.MentionedID)
	}
	s.emitter.Emit(ctx, events.New(model.EventNoteAdded, conv.TeamID, conv.ID, map[string]any{
		"note_id":    note.ID,
		"author_id":  userID,
		"is_private": note.IsPrivate,
		"mentions":   mentioned,
	}))
	return note, nil
}

// load fetches a conversation and authorizes action on its team.
func (s *ConversationService) load(ctx context.Context, userID, conversationID string, action authz.Action) (*model.Conversation, *authz.Decision, error) {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, nil, err
	}
	d, err := s.authz.Authorize(ctx, userID, conv.TeamID, action)
	if err != nil {
		return nil, nil, err
	}
	return conv, d, nil
}
