package ingest

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/capitalize-ai/team-inbox/internal/apperr"
	"github.com/capitalize-ai/team-inbox/internal/events"
	"github.com/capitalize-ai/team-inbox/internal/lock"
	"github.com/capitalize-ai/team-inbox/internal/model"
	"github.com/capitalize-ai/team-inbox/internal/store"
	"github.com/capitalize-ai/team-inbox/pkg/logger"
	"github.com/capitalize-ai/team-inbox/pkg/metrics"
	"github.com/capitalize-ai/team-inbox/pkg/tracing"
)

// Options tune ingestion behaviour.
type Options struct {
	// DedupeByProviderID returns the already stored message when a provider
	// redelivers a MessageSid instead of appending a copy.
	DedupeByProviderID bool
}

// Service is the ingestion pipeline: verify, normalize, resolve, append, announce.
type Service struct {
	store    store.Store
	resolver *Resolver
	appender *Appender
	emitter  *events.Emitter
	logger   *logger.Logger
	tracer   trace.Tracer
	opts     Options
}

// NewService wires the pipeline.
func NewService(s store.Store, l lock.Locker, emitter *events.Emitter, log *logger.Logger, opts Options) *Service {
	return &Service{
		store:    s,
		resolver: NewResolver(s, l, log),
		appender: NewAppender(s),
		emitter:  emitter,
		logger:   log,
		tracer:   tracing.Tracer("team-inbox/ingest"),
		opts:     opts,
	}
}

// Receive ingests one provider payload. signatureValid is the result of the
// transport's signature check; unverified payloads are rejected before any
// parsing happens.
func (s *Service) Receive(ctx context.Context, payload model.InboundPayload, signatureValid bool) (result *model.IngestResult, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "ingest.Receive")
	channel := "unknown"
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = string(apperr.KindOf(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		metrics.RecordInbound(channel, outcome, time.Since(start).Seconds())
		span.End()
	}()

	if !signatureValid {
		return nil, apperr.Unauthorized("invalid webhook signature")
	}

	env, err := Normalize(payload)
	if err != nil {
		return nil, err
	}
	channel = string(env.Channel)
	span.SetAttributes(
		attribute.String("inbox.channel", channel),
		attribute.String("inbox.provider_message_id", env.ProviderMessageID),
	)

	if s.opts.DedupeByProviderID && env.ProviderMessageID != "" {
		if dup, err := s.findDuplicate(ctx, env.ProviderMessageID); err != nil || dup != nil {
			return dup, err
		}
	}

	_, resolveSpan := s.tracer.Start(ctx, "ingest.Resolve")
	res, err := s.resolver.Resolve(ctx, env)
	resolveSpan.End()
	if err != nil {
		if apperr.IsKind(err, apperr.KindUnroutable) {
			s.logger.Warn("no registered channel for inbound message",
				zap.String("to", env.ToAddress),
				zap.String("channel", channel),
			)
		}
		return nil, err
	}
	span.SetAttributes(
		attribute.String("inbox.team_id", res.Team.ID),
		attribute.String("inbox.conversation_id", res.Conversation.ID),
	)

	msg, err := s.appender.Append(ctx, AppendInput{
		ConversationID:    res.Conversation.ID,
		Direction:         model.DirectionInbound,
		Channel:           env.Channel,
		Body:              env.Body,
		MediaURL:          env.MediaURL,
		MediaContentType:  env.MediaContentType,
		ProviderMessageID: env.ProviderMessageID,
	})
	if err != nil {
		s.logger.Error("failed to append inbound message",
			zap.String("conversation_id", res.Conversation.ID),
			zap.Error(err),
		)
		return nil, err
	}

	if res.ConversationCreated {
		metrics.ConversationsOpenedTotal.WithLabelValues("inbound").Inc()
		s.emitter.Emit(ctx, events.New(model.EventConversationOpened, res.Team.ID, res.Conversation.ID, map[string]any{
			"contact_id": res.Contact.ID,
			"channel":    res.Conversation.Channel,
		}))
	}
	s.emitter.Emit(ctx, events.New(model.EventMessageReceived, res.Team.ID, res.Conversation.ID, map[string]any{
		"message_id": msg.ID,
		"contact_id": res.Contact.ID,
		"channel":    msg.Channel,
	}))

	s.logger.Info("inbound message stored",
		zap.String("team_id", res.Team.ID),
		zap.String("conversation_id", res.Conversation.ID),
		zap.String("message_id", msg.ID),
		zap.String("from", env.FromAddress),
		zap.String("to", env.ToAddress),
		zap.Bool("new_conversation", res.ConversationCreated),
	)

	return &model.IngestResult{
		Team:                res.Team,
		Contact:             res.Contact,
		Conversation:        res.Conversation,
		Message:             msg,
		ContactCreated:      res.ContactCreated,
		ConversationCreated: res.ConversationCreated,
	}, nil
}

// findDuplicate returns the stored result for a redelivered provider message,
// or nil when the id is new.
func (s *Service) findDuplicate(ctx context.Context, providerMessageID string) (*model.IngestResult, error) {
	msg, err := s.store.FindMessageByProviderID(ctx, providerMessageID)
	if apperr.IsKind(err, apperr.KindNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	conv, err := s.store.GetConversation(ctx, msg.ConversationID)
	if err != nil {
		return nil, err
	}
	contact, err := s.store.GetContact(ctx, conv.ContactID)
	if err != nil {
		return nil, err
	}
	team, err := s.store.GetTeam(ctx, conv.TeamID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("duplicate provider delivery ignored",
		zap.String("provider_message_id", providerMessageID),
		zap.String("message_id", msg.ID),
	)
	return &model.IngestResult{
		Team:         team,
		Contact:      contact,
		Conversation: conv,
		Message:      msg,
		Duplicate:    true,
	}, nil
}
