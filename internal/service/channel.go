package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/team-inbox/internal/apperr"
	"github.com/capitalize-ai/team-inbox/internal/authz"
	"github.com/capitalize-ai/team-inbox/internal/ingest"
	"github.com/capitalize-ai/team-inbox/internal/model"
	"github.com/capitalize-ai/team-inbox/internal/store"
	"github.com/capitalize-ai/team-inbox/pkg/logger"
)

// ChannelService manages the addresses inbound messages are routed by.
type ChannelService struct {
	store  store.ChannelStore
	authz  *authz.Engine
	logger *logger.Logger
}

// NewChannelService creates a new channel service.
func NewChannelService(s store.ChannelStore, engine *authz.Engine, log *logger.Logger) *ChannelService {
	return &ChannelService{
		store:  s,
		authz:  engine,
		logger: log,
	}
}

// Create registers a channel for a team. The value is stored in the same
// canonical form inbound addresses are normalized to.
func (s *ChannelService) Create(ctx context.Context, userID, teamID string, req *model.CreateChannelRequest) (*model.TeamChannel, error) {
	if _, err := s.authz.Authorize(ctx, userID, teamID, authz.ChannelCreate); err != nil {
		return nil, err
	}

	value := ingest.CanonicalAddress(req.Value)
	if len(value) < 3 {
		return nil, apperr.Validation("channel value must be at least 3 characters")
	}
	switch req.Type {
	case model.ChannelSMS, model.ChannelWhatsApp, model.ChannelEmail:
	default:
		return nil, apperr.Validation("invalid channel type %q", req.Type)
	}

	_, err := s.store.GetChannelByValue(ctx, value)
	if err == nil {
		return nil, apperr.Conflict("this channel value is already in use")
	}
	if !apperr.IsKind(err, apperr.KindNotFound) {
		return nil, err
	}

	ch := &model.TeamChannel{
		ID:        uuid.Must(uuid.NewV7()).String(),
		TeamID:    teamID,
		Type:      req.Type,
		Value:     value,
		IsPrimary: req.IsPrimary,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateChannel(ctx, ch); err != nil {
		return nil, err
	}

	s.logger.Info("channel created",
		zap.String("team_id", teamID),
		zap.String("channel_id", ch.ID),
		zap.String("type", string(ch.Type)),
	)
	return ch, nil
}

// List returns a team's channels.
func (s *ChannelService) List(ctx context.Context, userID, teamID string) ([]model.TeamChannel, error) {
	if _, err := s.authz.Authorize(ctx, userID, teamID, authz.ChannelList); err != nil {
		return nil, err
	}
	return s.store.ListChannels(ctx, teamID)
}

// Delete removes a channel. The channel must belong to teamID.
func (s *ChannelService) Delete(ctx context.Context, userID, teamID, channelID string) error {
	if _, err := s.authz.Authorize(ctx, userID, teamID, authz.ChannelDelete); err != nil {
		return err
	}
	if err := s.store.DeleteChannel(ctx, teamID, channelID); err != nil {
		return err
	}
	s.logger.Info("channel deleted", zap.String("team_id", teamID), zap.String("channel_id", channelID))
	return nil
}
