package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/team-inbox/internal/apperr"
	"github.com/capitalize-ai/team-inbox/internal/lock"
	"github.com/capitalize-ai/team-inbox/internal/model"
	"github.com/capitalize-ai/team-inbox/internal/store"
	"github.com/capitalize-ai/team-inbox/pkg/logger"
	"github.com/capitalize-ai/team-inbox/pkg/metrics"
)

// maxResolveAttempts bounds retries after losing a create race.
const maxResolveAttempts = 3

// Resolution is the outcome of entity resolution.
type Resolution struct {
	Team                *model.Team
	Contact             *model.Contact
	Conversation        *model.Conversation
	ContactCreated      bool
	ConversationCreated bool
}

// Resolver maps an envelope onto a team, a contact and the open conversation.
type Resolver struct {
	store  store.Store
	locker lock.Locker
	logger *logger.Logger
	now    func() time.Time
}

// NewResolver creates a resolver. A nil locker falls back to lock.Nop.
func NewResolver(s store.Store, l lock.Locker, log *logger.Logger) *Resolver {
	if l == nil {
		l = lock.Nop{}
	}
	return &Resolver{
		store:  s,
		locker: l,
		logger: log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// resolutionKey covers the contact and all of its conversations in a team.
func resolutionKey(teamID, fromAddress string) string {
	return fmt.Sprintf("resolve:%s:%s", teamID, fromAddress)
}

// Resolve runs the find-or-create sequence for env.
func (r *Resolver) Resolve(ctx context.Context, env *model.Envelope) (*Resolution, error) {
	ch, err := r.store.FindChannel(ctx, env.ToAddress, env.Channel)
	if apperr.IsKind(err, apperr.KindNotFound) {
		return nil, apperr.Unroutable("no %s channel registered for %s", env.Channel, env.ToAddress)
	}
	if err != nil {
		return nil, fmt.Errorf("channel lookup: %w", err)
	}

	team, err := r.store.GetTeam(ctx, ch.TeamID)
	if err != nil {
		return nil, fmt.Errorf("team lookup: %w", err)
	}

	release, err := r.locker.Lock(ctx, resolutionKey(team.ID, env.FromAddress))
	if err != nil {
		return nil, fmt.Errorf("acquire resolution lock: %w", err)
	}
	defer release()

	var lastErr error
	contactCreated := false
	for attempt := 1; attempt <= maxResolveAttempts; attempt++ {
		res, err := r.findOrCreate(ctx, team, env)
		if res != nil && res.ContactCreated {
			contactCreated = true
		}
		if err == nil {
			res.ContactCreated = contactCreated
			return res, nil
		}
		if !apperr.IsKind(err, apperr.KindConflict) {
			return nil, err
		}
		// Another writer created the row first; re-read and reuse it.
		lastErr = err
		metrics.ResolutionRetriesTotal.Inc()
		r.logger.Debug("resolution conflict, retrying",
			zap.String("team_id", team.ID),
			zap.String("from", env.FromAddress),
			zap.Int("attempt", attempt),
		)
	}
	return nil, lastErr
}

func (r *Resolver) findOrCreate(ctx context.Context, team *model.Team, env *model.Envelope) (*Resolution, error) {
	res := &Resolution{Team: team}

	contact, err := r.store.FindContact(ctx, team.ID, env.FromAddress)
	switch {
	case err == nil:
		res.Contact = contact
	case apperr.IsKind(err, apperr.KindNotFound):
		contact = &model.Contact{
			ID:        uuid.Must(uuid.NewV7()).String(),
			TeamID:    team.ID,
			Phone:     env.FromAddress,
			Name:      env.FromAddress,
			CreatedAt: r.now(),
		}
		if err := r.store.CreateContact(ctx, contact); err != nil {
			return nil, err
		}
		res.Contact = contact
		res.ContactCreated = true
	default:
		return nil, fmt.Errorf("contact lookup: %w", err)
	}

	conv, err := r.store.FindOpenConversation(ctx, team.ID, contact.ID, env.Channel)
	switch {
	case err == nil:
		res.Conversation = conv
	case apperr.IsKind(err, apperr.KindNotFound):
		now := r.now()
		conv = &model.Conversation{
			ID:        uuid.Must(uuid.NewV7()).String(),
			TeamID:    team.ID,
			ContactID: contact.ID,
			Channel:   env.Channel,
			Status:    model.StatusOpen,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := r.store.CreateConversation(ctx, conv); err != nil {
			return res, err
		}
		res.Conversation = conv
		res.ConversationCreated = true
	default:
		return nil, fmt.Errorf("conversation lookup: %w", err)
	}

	return res, nil
}
