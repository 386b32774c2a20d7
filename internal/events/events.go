// Package events defines how inbox state changes are announced to other services.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/team-inbox/internal/model"
	"github.com/capitalize-ai/team-inbox/pkg/logger"
	"github.com/capitalize-ai/team-inbox/pkg/metrics"
)

// Publisher delivers inbox events to a broker.
type Publisher interface {
	Publish(ctx context.Context, event *model.InboxEvent) error
}

// New builds an event with a fresh id and timestamp.
func New(typ model.EventType, teamID, conversationID string, payload map[string]any) *model.InboxEvent {
	return &model.InboxEvent{
		ID:             uuid.Must(uuid.NewV7()).String(),
		Type:           typ,
		TeamID:         teamID,
		ConversationID: conversationID,
		Payload:        payload,
		CreatedAt:      time.Now().UTC(),
	}
}

// Emitter publishes events after the state change has committed. Publish
// failures are logged and counted, never returned: the write already happened.
type Emitter struct {
	publisher Publisher
	logger    *logger.Logger
}

// NewEmitter wraps a publisher. A nil publisher drops events.
func NewEmitter(p Publisher, log *logger.Logger) *Emitter {
	return &Emitter{publisher: p, logger: log}
}

// Emit publishes event on a best-effort basis.
func (e *Emitter) Emit(ctx context.Context, event *model.InboxEvent) {
	if e == nil || e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, event); err != nil {
		metrics.EventsPublishedTotal.WithLabelValues(string(event.Type), "error").Inc()
		e.logger.Warn("failed to publish inbox event",
			zap.String("type", string(event.Type)),
			zap.String("team_id", event.TeamID),
			zap.String("conversation_id", event.ConversationID),
			zap.Error(err),
		)
		return
	}
	metrics.EventsPublishedTotal.WithLabelValues(string(event.Type), "ok").Inc()
}

// Recorder keeps published events in memory. Used in tests and when no broker
// is configured in development.
type Recorder struct {
	mu     sync.Mutex
	events []model.InboxEvent
}

func (r *Recorder) Publish(ctx context.Context, event *model.InboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *event)
	return nil
}

// Events returns a copy of everything recorded.
func (r *Recorder) Events() []model.InboxEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.InboxEvent(nil), r.events...)
}

// OfType returns the recorded events with the given type.
func (r *Recorder) OfType(typ model.EventType) []model.InboxEvent {
	var out []model.InboxEvent
	for _, ev := range r.Events() {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}
