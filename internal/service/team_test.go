package service

import (
	"context"
	"testing"

	"github.com/capitalize-ai/team-inbox/internal/apperr"
	"github.com/capitalize-ai/team-inbox/internal/events"
	"github.com/capitalize-ai/team-inbox/internal/ingest"
	"github.com/capitalize-ai/team-inbox/internal/lock"
	"github.com/capitalize-ai/team-inbox/internal/model"
	"github.com/capitalize-ai/team-inbox/pkg/logger"
)

func TestCreateTeamMakesCreatorAdmin(t *testing.T) {
	svc := newServices()
	ctx := context.Background()

	team, err := svc.teams.Create(ctx, "u1", &model.CreateTeamRequest{Name: "  Support  "})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if team.Name != "Support" {
		t.Errorf("name = %q", team.Name)
	}

	got, err := svc.teams.Get(ctx, "u1", team.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	m := got.Member("u1")
	if m == nil || m.Role != model.RoleAdmin {
		t.Fatalf("creator membership = %+v", m)
	}
}

func TestCreateTeamDuplicateName(t *testing.T) {
	svc := newServices()
	ctx := context.Background()

	if _, err := svc.teams.Create(ctx, "u1", &model.CreateTeamRequest{Name: "Support"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := svc.teams.Create(ctx, "u2", &model.CreateTeamRequest{Name: "Support"})
	wantKind(t, err, apperr.KindConflict)
}

func TestListTeamsEmpty(t *testing.T) {
	svc := newServices()
	teams, err := svc.teams.List(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if teams == nil || len(teams) != 0 {
		t.Fatalf("expected empty list, got %v", teams)
	}
}

func TestUpdateTeam(t *testing.T) {
	svc := newServices()
	ctx := context.Background()
	team := seedTeam(t, svc)
	if _, err := svc.teams.Create(ctx, "other", &model.CreateTeamRequest{Name: "Sales"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err := svc.teams.Update(ctx, "editor", team.ID, &model.UpdateTeamRequest{Name: strPtr("Ops")})
	wantKind(t, err, apperr.KindForbidden)

	_, err = svc.teams.Update(ctx, "admin", team.ID, &model.UpdateTeamRequest{Name: strPtr("Sales")})
	wantKind(t, err, apperr.KindConflict)

	renamed, err := svc.teams.Update(ctx, "admin", team.ID, &model.UpdateTeamRequest{Name: strPtr("Ops")})
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if renamed.Name != "Ops" {
		t.Errorf("name = %q", renamed.Name)
	}

	same, err := svc.teams.Update(ctx, "admin", team.ID, &model.UpdateTeamRequest{Name: strPtr("Ops")})
	if err != nil || same.Name != "Ops" {
		t.Fatalf("renaming to the current name should be a no-op, got %v %v", same, err)
	}
}

func TestDeleteTeamCascades(t *testing.T) {
	svc := newServices()
	ctx := context.Background()
	team := seedTeam(t, svc)

	if _, err := svc.channels.Create(ctx, "admin", team.ID, &model.CreateChannelRequest{Type: model.ChannelSMS, Value: "+15551234567"}); err != nil {
		t.Fatalf("channel: %v", err)
	}

	inbound := ingest.NewService(svc.store, lock.NewLocal(), events.NewEmitter(svc.recorder, logger.NewNop()), logger.NewNop(), ingest.Options{})
	res, err := inbound.Receive(ctx, model.InboundPayload{MessageSid: "SM1", From: "+15559876543", To: "+15551234567", Body: "Hi"}, true)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if _, err := svc.conversations.AddNote(ctx, "editor", res.Conversation.ID, &model.AddNoteRequest{Content: "calling back", Mentions: []string{"viewer"}}); err != nil {
		t.Fatalf("note: %v", err)
	}

	wantKind(t, svc.teams.Delete(ctx, "viewer", team.ID), apperr.KindForbidden)

	if err := svc.teams.Delete(ctx, "admin", team.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err = svc.teams.Get(ctx, "admin", team.ID)
	wantKind(t, err, apperr.KindNotFound)

	// The channel value is free again.
	_, err = svc.store.GetChannelByValue(ctx, "+15551234567")
	wantKind(t, err, apperr.KindNotFound)

	_, err = svc.store.GetContact(ctx, res.Contact.ID)
	wantKind(t, err, apperr.KindNotFound)
	_, err = svc.store.GetConversation(ctx, res.Conversation.ID)
	wantKind(t, err, apperr.KindNotFound)
	_, err = svc.store.FindMessageByProviderID(ctx, "SM1")
	wantKind(t, err, apperr.KindNotFound)

	msgs, err := svc.store.ListMessages(ctx, res.Conversation.ID)
	if err != nil || len(msgs) != 0 {
		t.Fatalf("expected no messages after delete, got %d (%v)", len(msgs), err)
	}
	notes, err := svc.store.ListNotes(ctx, res.Conversation.ID)
	if err != nil || len(notes) != 0 {
		t.Fatalf("expected no notes after delete, got %d (%v)", len(notes), err)
	}
	for _, user := range []string{"admin", "editor", "viewer"} {
		teams, err := svc.store.ListTeamsForUser(ctx, user)
		if err != nil || len(teams) != 0 {
			t.Fatalf("%s still has memberships: %+v (%v)", user, teams, err)
		}
	}
}

func TestMembership(t *testing.T) {
	svc := newServices()
	ctx := context.Background()
	team := seedTeam(t, svc)

	members, err := svc.teams.ListMembers(ctx, "viewer", team.ID)
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 3 {
		t.Fatalf("expected 3 members, got %d", len(members))
	}

	t.Run("default role is viewer", func(t *testing.T) {
		got, err := svc.teams.Get(ctx, "admin", team.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if m := got.Member("viewer"); m == nil || m.Role != model.RoleViewer {
			t.Fatalf("viewer membership = %+v", m)
		}
	})

	t.Run("duplicate member", func(t *testing.T) {
		_, err := svc.teams.AddMember(ctx, "admin", team.ID, &model.AddMemberRequest{UserID: "editor"})
		wantKind(t, err, apperr.KindConflict)
	})

	t.Run("non admin cannot add", func(t *testing.T) {
		_, err := svc.teams.AddMember(ctx, "editor", team.ID, &model.AddMemberRequest{UserID: "x"})
		wantKind(t, err, apperr.KindForbidden)
	})

	t.Run("same role", func(t *testing.T) {
		_, err := svc.teams.UpdateMemberRole(ctx, "admin", team.ID, "editor", &model.UpdateMemberRequest{Role: model.RoleEditor})
		wantKind(t, err, apperr.KindConflict)
	})

	t.Run("update unknown member", func(t *testing.T) {
		_, err := svc.teams.UpdateMemberRole(ctx, "admin", team.ID, "ghost", &model.UpdateMemberRequest{Role: model.RoleEditor})
		wantKind(t, err, apperr.KindNotFound)
	})

	t.Run("promote", func(t *testing.T) {
		m, err := svc.teams.UpdateMemberRole(ctx, "admin", team.ID, "viewer", &model.UpdateMemberRequest{Role: model.RoleEditor})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if m.Role != model.RoleEditor {
			t.Fatalf("role = %s", m.Role)
		}
	})

	t.Run("remove", func(t *testing.T) {
		wantKind(t, svc.teams.RemoveMember(ctx, "viewer", team.ID, "editor"), apperr.KindForbidden)
		wantKind(t, svc.teams.RemoveMember(ctx, "admin", team.ID, "ghost"), apperr.KindNotFound)
		if err := svc.teams.RemoveMember(ctx, "admin", team.ID, "editor"); err != nil {
			t.Fatalf("remove: %v", err)
		}
		_, err := svc.teams.Get(ctx, "editor", team.ID)
		wantKind(t, err, apperr.KindForbidden)
	})
}

func TestViewerForbiddenOnEveryAdminAction(t *testing.T) {
	svc := newServices()
	ctx := context.Background()
	team := seedTeam(t, svc)

	checks := map[string]error{}
	_, checks["team.update"] = svc.teams.Update(ctx, "viewer", team.ID, &model.UpdateTeamRequest{Name: strPtr("New")})
	checks["team.delete"] = svc.teams.Delete(ctx, "viewer", team.ID)
	_, checks["member.add"] = svc.teams.AddMember(ctx, "viewer", team.ID, &model.AddMemberRequest{UserID: "x"})
	_, checks["member.update"] = svc.teams.UpdateMemberRole(ctx, "viewer", team.ID, "editor", &model.UpdateMemberRequest{Role: model.RoleAdmin})
	checks["member.remove"] = svc.teams.RemoveMember(ctx, "viewer", team.ID, "editor")
	_, checks["channel.create"] = svc.channels.Create(ctx, "viewer", team.ID, &model.CreateChannelRequest{Type: model.ChannelSMS, Value: "+1555"})
	checks["channel.delete"] = svc.channels.Delete(ctx, "viewer", team.ID, "any")

	for action, err := range checks {
		if !apperr.IsKind(err, apperr.KindForbidden) {
			t.Errorf("%s: expected forbidden, got %v", action, err)
		}
	}
}
