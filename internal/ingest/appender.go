package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/capitalize-ai/team-inbox/internal/apperr"
	"github.com/capitalize-ai/team-inbox/internal/model"
	"github.com/capitalize-ai/team-inbox/internal/store"
)

// AppendInput describes one message to persist.
type AppendInput struct {
	ConversationID    string
	Direction         model.Direction
	Channel           model.ChannelType
	Body              string
	MediaURL          *string
	MediaContentType  *string
	ProviderMessageID string
}

// Appender writes messages. It never changes conversation status.
type Appender struct {
	store store.MessageStore
	now   func() time.Time
}

// NewAppender creates an appender.
func NewAppender(s store.MessageStore) *Appender {
	return &Appender{
		store: s,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Append persists a message. A conversation deleted since resolution yields
// apperr.KindNotFound.
func (a *Appender) Append(ctx context.Context, in AppendInput) (*model.Message, error) {
	if in.Direction != model.DirectionInbound && in.Direction != model.DirectionOutbound {
		return nil, apperr.Validation("invalid direction %q", in.Direction)
	}

	msg := &model.Message{
		ID:               uuid.Must(uuid.NewV7()).String(),
		ConversationID:   in.ConversationID,
		Direction:        in.Direction,
		Channel:          in.Channel,
		Body:             in.Body,
		MediaURL:         in.MediaURL,
		MediaContentType: in.MediaContentType,
		Timestamp:        a.now(),
	}
	if in.ProviderMessageID != "" {
		sid := in.ProviderMessageID
		msg.ProviderMessageID = &sid
	}

	if err := a.store.AppendMessage(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}
