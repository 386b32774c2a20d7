package service

import (
	"context"
	"testing"

	"github.com/capitalize-ai/team-inbox/internal/apperr"
	"github.com/capitalize-ai/team-inbox/internal/model"
)

func TestChannelLifecycle(t *testing.T) {
	svc := newServices()
	ctx := context.Background()
	team := seedTeam(t, svc)

	ch, err := svc.channels.Create(ctx, "admin", team.ID, &model.CreateChannelRequest{
		Type:  model.ChannelWhatsApp,
		Value: " whatsapp:+15551234567 ",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if ch.Value != "+15551234567" {
		t.Errorf("value not canonicalized: %q", ch.Value)
	}

	_, err = svc.channels.Create(ctx, "admin", team.ID, &model.CreateChannelRequest{Type: model.ChannelSMS, Value: "+15551234567"})
	wantKind(t, err, apperr.KindConflict)

	list, err := svc.channels.List(ctx, "viewer", team.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != ch.ID {
		t.Fatalf("unexpected channels %+v", list)
	}

	other, err := svc.teams.Create(ctx, "admin", &model.CreateTeamRequest{Name: "Other"})
	if err != nil {
		t.Fatalf("create team: %v", err)
	}
	wantKind(t, svc.channels.Delete(ctx, "admin", other.ID, ch.ID), apperr.KindNotFound)

	if err := svc.channels.Delete(ctx, "admin", team.ID, ch.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	list, _ = svc.channels.List(ctx, "admin", team.ID)
	if len(list) != 0 {
		t.Fatalf("expected no channels, got %d", len(list))
	}
}

func TestChannelValueTooShort(t *testing.T) {
	svc := newServices()
	team := seedTeam(t, svc)
	_, err := svc.channels.Create(context.Background(), "admin", team.ID, &model.CreateChannelRequest{Type: model.ChannelSMS, Value: " 1 "})
	wantKind(t, err, apperr.KindValidation)
}
