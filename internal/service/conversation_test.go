package service

import (
	"context"
	"testing"
	"time"

	"github.com/capitalize-ai/team-inbox/internal/apperr"
	"github.com/capitalize-ai/team-inbox/internal/model"
)

func seedContact(t *testing.T, svc *services, teamID, id string) *model.Contact {
	t.Helper()
	c := &model.Contact{ID: id, TeamID: teamID, Phone: "+1555" + id, Name: id, CreatedAt: time.Now().UTC()}
	if err := svc.store.CreateContact(context.Background(), c); err != nil {
		t.Fatalf("create contact: %v", err)
	}
	return c
}

func openConversation(t *testing.T, svc *services, teamID, contactID string) *model.Conversation {
	t.Helper()
	conv, err := svc.conversations.Create(context.Background(), "editor", &model.CreateConversationRequest{
		TeamID:    teamID,
		ContactID: contactID,
		Channel:   model.ChannelSMS,
	})
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	return conv
}

func TestCreateConversation(t *testing.T) {
	svc := newServices()
	ctx := context.Background()
	team := seedTeam(t, svc)
	contact := seedContact(t, svc, team.ID, "c1")

	conv := openConversation(t, svc, team.ID, contact.ID)
	if conv.Status != model.StatusOpen || conv.AssignedToID != nil {
		t.Fatalf("unexpected conversation %+v", conv)
	}

	_, err := svc.conversations.Create(ctx, "editor", &model.CreateConversationRequest{
		TeamID: team.ID, ContactID: contact.ID, Channel: model.ChannelSMS,
	})
	wantKind(t, err, apperr.KindConflict)

	_, err = svc.conversations.Create(ctx, "stranger", &model.CreateConversationRequest{
		TeamID: team.ID, ContactID: contact.ID, Channel: model.ChannelWhatsApp,
	})
	wantKind(t, err, apperr.KindForbidden)

	other, err := svc.teams.Create(ctx, "admin", &model.CreateTeamRequest{Name: "Other"})
	if err != nil {
		t.Fatalf("create team: %v", err)
	}
	foreign := seedContact(t, svc, other.ID, "c2")
	_, err = svc.conversations.Create(ctx, "editor", &model.CreateConversationRequest{
		TeamID: team.ID, ContactID: foreign.ID, Channel: model.ChannelSMS,
	})
	wantKind(t, err, apperr.KindNotFound)

	_, err = svc.conversations.Create(ctx, "editor", &model.CreateConversationRequest{
		TeamID: team.ID, ContactID: contact.ID, Channel: model.ChannelWhatsApp, AssignedToID: strPtr("stranger"),
	})
	wantKind(t, err, apperr.KindValidation)

	if n := len(svc.recorder.OfType(model.EventConversationOpened)); n != 1 {
		t.Errorf("expected 1 conversation.opened event, got %d", n)
	}
}

func TestUpdateConversation(t *testing.T) {
	svc := newServices()
	ctx := context.Background()
	team := seedTeam(t, svc)
	contact := seedContact(t, svc, team.ID, "c1")
	conv := openConversation(t, svc, team.ID, contact.ID)

	pending := model.StatusPending
	updated, err := svc.conversations.Update(ctx, "viewer", conv.ID, &model.UpdateConversationRequest{
		Status:       &pending,
		AssignedToID: strPtr("editor"),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != model.StatusPending || updated.AssignedToID == nil || *updated.AssignedToID != "editor" {
		t.Fatalf("unexpected conversation %+v", updated)
	}

	_, err = svc.conversations.Update(ctx, "editor", conv.ID, &model.UpdateConversationRequest{AssignedToID: strPtr("stranger")})
	wantKind(t, err, apperr.KindValidation)

	bogus := model.ConversationStatus("ARCHIVED")
	_, err = svc.conversations.Update(ctx, "editor", conv.ID, &model.UpdateConversationRequest{Status: &bogus})
	wantKind(t, err, apperr.KindValidation)

	unassigned, err := svc.conversations.Update(ctx, "editor", conv.ID, &model.UpdateConversationRequest{AssignedToID: strPtr("")})
	if err != nil {
		t.Fatalf("unassign: %v", err)
	}
	if unassigned.AssignedToID != nil {
		t.Fatal("expected conversation to be unassigned")
	}

	_, err = svc.conversations.Update(ctx, "stranger", conv.ID, &model.UpdateConversationRequest{Status: &pending})
	wantKind(t, err, apperr.KindForbidden)

	_, err = svc.conversations.Update(ctx, "editor", "missing", &model.UpdateConversationRequest{Status: &pending})
	wantKind(t, err, apperr.KindNotFound)

	if n := len(svc.recorder.OfType(model.EventConversationUpdated)); n != 2 {
		t.Errorf("expected 2 conversation.updated events, got %d", n)
	}
}

func TestReopenWhileAnotherOpenConflicts(t *testing.T) {
	svc := newServices()
	ctx := context.Background()
	team := seedTeam(t, svc)
	contact := seedContact(t, svc, team.ID, "c1")

	first := openConversation(t, svc, team.ID, contact.ID)
	closed := model.StatusClosed
	if _, err := svc.conversations.Update(ctx, "editor", first.ID, &model.UpdateConversationRequest{Status: &closed}); err != nil {
		t.Fatalf("close: %v", err)
	}
	openConversation(t, svc, team.ID, contact.ID)

	open := model.StatusOpen
	_, err := svc.conversations.Update(ctx, "editor", first.ID, &model.UpdateConversationRequest{Status: &open})
	wantKind(t, err, apperr.KindConflict)

	got, err := svc.conversations.Get(ctx, "viewer", first.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.StatusClosed {
		t.Fatalf("failed reopen must not change status, got %s", got.Status)
	}

	list, err := svc.conversations.ListByTeam(ctx, "viewer", team.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(list))
	}
}

func TestNotes(t *testing.T) {
	svc := newServices()
	ctx := context.Background()
	team := seedTeam(t, svc)
	contact := seedContact(t, svc, team.ID, "c1")
	conv := openConversation(t, svc, team.ID, contact.ID)

	first, err := svc.conversations.AddNote(ctx, "viewer", conv.ID, &model.AddNoteRequest{Content: "first"})
	if err != nil {
		t.Fatalf("add note: %v", err)
	}
	second, err := svc.conversations.AddNote(ctx, "editor", conv.ID, &model.AddNoteRequest{
		Content:   "ping @admin",
		IsPrivate: true,
		Mentions:  []string{"admin", "admin", " "},
	})
	if err != nil {
		t.Fatalf("add note: %v", err)
	}
	if len(second.Mentions) != 1 || second.Mentions[0].MentionedID != "admin" {
		t.Errorf("unexpected mentions %+v", second.Mentions)
	}

	_, err = svc.conversations.AddNote(ctx, "editor", conv.ID, &model.AddNoteRequest{Content: "   "})
	wantKind(t, err, apperr.KindValidation)

	_, err = svc.conversations.AddNote(ctx, "stranger", conv.ID, &model.AddNoteRequest{Content: "hi"})
	wantKind(t, err, apperr.KindForbidden)

	notes, err := svc.conversations.ListNotes(ctx, "viewer", conv.ID)
	if err != nil {
		t.Fatalf("list notes: %v", err)
	}
	if len(notes) != 2 || notes[0].ID != second.ID || notes[1].ID != first.ID {
		t.Fatalf("expected newest first, got %+v", notes)
	}
	if n := len(svc.recorder.OfType(model.EventNoteAdded)); n != 2 {
		t.Errorf("expected 2 note.added events, got %d", n)
	}
}

func TestListMessagesOldestFirst(t *testing.T) {
	svc := newServices()
	ctx := context.Background()
	team := seedTeam(t, svc)
	contact := seedContact(t, svc, team.ID, "c1")
	conv := openConversation(t, svc, team.ID, contact.ID)

	base := time.Now().UTC()
	for i, id := range []string{"m2", "m1"} {
		msg := &model.Message{
			ID:             id,
			ConversationID: conv.ID,
			Direction:      model.DirectionInbound,
			Channel:        model.ChannelSMS,
			Body:           id,
			Timestamp:      base.Add(-time.Duration(i) * time.Second),
		}
		if err := svc.store.AppendMessage(ctx, msg); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	msgs, err := svc.conversations.ListMessages(ctx, "viewer", conv.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 2 || msgs[0].ID != "m1" || msgs[1].ID != "m2" {
		t.Fatalf("expected oldest first, got %+v", msgs)
	}

	_, err = svc.conversations.ListMessages(ctx, "stranger", conv.ID)
	wantKind(t, err, apperr.KindForbidden)
}
