package service

import (
	"context"
	"testing"

	"github.com/capitalize-ai/team-inbox/internal/apperr"
	"github.com/capitalize-ai/team-inbox/internal/authz"
	"github.com/capitalize-ai/team-inbox/internal/events"
	"github.com/capitalize-ai/team-inbox/internal/model"
	"github.com/capitalize-ai/team-inbox/internal/store/memory"
	"github.com/capitalize-ai/team-inbox/pkg/logger"
)

type services struct {
	store         *memory.Store
	recorder      *events.Recorder
	teams         *TeamService
	channels      *ChannelService
	conversations *ConversationService
}

func newServices() *services {
	s := memory.New()
	log := logger.NewNop()
	engine := authz.NewEngine(s, log)
	rec := &events.Recorder{}
	return &services{
		store:         s,
		recorder:      rec,
		teams:         NewTeamService(s, engine, log),
		channels:      NewChannelService(s, engine, log),
		conversations: NewConversationService(s, engine, events.NewEmitter(rec, log), log),
	}
}

// seedTeam creates a team owned by "admin" with an editor and a viewer.
func seedTeam(t *testing.T, svc *services) *model.Team {
	t.Helper()
	ctx := context.Background()
	team, err := svc.teams.Create(ctx, "admin", &model.CreateTeamRequest{Name: "Support"})
	if err != nil {
		t.Fatalf("create team: %v", err)
	}
	for user, role := range map[string]model.Role{"editor": model.RoleEditor, "viewer": ""} {
		if _, err := svc.teams.AddMember(ctx, "admin", team.ID, &model.AddMemberRequest{UserID: user, Role: role}); err != nil {
			t.Fatalf("add %s: %v", user, err)
		}
	}
	return team
}

func strPtr(s string) *string { return &s }

func wantKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	if !apperr.IsKind(err, kind) {
		t.Fatalf("expected %s error, got %v", kind, err)
	}
}
