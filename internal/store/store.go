// Package store defines the persistence port for the inbox.
//
// Adapters must enforce these uniqueness rules and report violations as
// apperr.KindConflict:
//   - Team.Name
//   - TeamChannel.Value
//   - TeamMember (TeamID, UserID)
//   - Contact (TeamID, Phone)
//   - Conversation (TeamID, ContactID, Channel) while Status is OPEN
//
// Missing rows are reported as apperr.KindNotFound.
package store

import (
	"context"

	"github.com/capitalize-ai/team-inbox/internal/model"
)

// Store is the persistence port used by the core.
type Store interface {
	TeamStore
	ChannelStore
	ContactStore
	ConversationStore
	MessageStore
	NoteStore

	Ping(ctx context.Context) error
}

// TeamStore persists teams and memberships.
type TeamStore interface {
	// CreateTeam writes the team and its initial members atomically.
	CreateTeam(ctx context.Context, team *model.Team) error
	// GetTeam returns the team with its members loaded.
	GetTeam(ctx context.Context, id string) (*model.Team, error)
	GetTeamByName(ctx context.Context, name string) (*model.Team, error)
	ListTeamsForUser(ctx context.Context, userID string) ([]model.Team, error)
	RenameTeam(ctx context.Context, id, name string) (*model.Team, error)
	// DeleteTeam removes the team and everything it owns.
	DeleteTeam(ctx context.Context, id string) error

	AddMember(ctx context.Context, member *model.TeamMember) error
	UpdateMemberRole(ctx context.Context, teamID, userID string, role model.Role) (*model.TeamMember, error)
	RemoveMember(ctx context.Context, teamID, userID string) error
}

// ChannelStore persists the channel registry.
type ChannelStore interface {
	CreateChannel(ctx context.Context, ch *model.TeamChannel) error
	GetChannelByValue(ctx context.Context, value string) (*model.TeamChannel, error)
	// FindChannel is the ingestion routing lookup by exact value and type.
	FindChannel(ctx context.Context, value string, typ model.ChannelType) (*model.TeamChannel, error)
	ListChannels(ctx context.Context, teamID string) ([]model.TeamChannel, error)
	DeleteChannel(ctx context.Context, teamID, channelID string) error
}

// ContactStore persists contacts.
type ContactStore interface {
	FindContact(ctx context.Context, teamID, phone string) (*model.Contact, error)
	GetContact(ctx context.Context, id string) (*model.Contact, error)
	CreateContact(ctx context.Context, c *model.Contact) error
}

// ConversationStore persists conversations.
type ConversationStore interface {
	FindOpenConversation(ctx context.Context, teamID, contactID string, channel model.ChannelType) (*model.Conversation, error)
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	ListConversations(ctx context.Context, teamID string) ([]model.Conversation, error)
	CreateConversation(ctx context.Context, c *model.Conversation) error
	// UpdateConversation writes Status, AssignedToID and UpdatedAt.
	UpdateConversation(ctx context.Context, c *model.Conversation) error
}

// MessageStore persists messages.
type MessageStore interface {
	// AppendMessage inserts msg; it fails with NotFound when the
	// conversation does not exist.
	AppendMessage(ctx context.Context, msg *model.Message) error
	// ListMessages returns a thread oldest first.
	ListMessages(ctx context.Context, conversationID string) ([]model.Message, error)
	FindMessageByProviderID(ctx context.Context, providerMessageID string) (*model.Message, error)
}

// NoteStore persists notes and mentions.
type NoteStore interface {
	CreateNote(ctx context.Context, note *model.Note) error
	// ListNotes returns notes newest first.
	ListNotes(ctx context.Context, conversationID string) ([]model.Note, error)
}
