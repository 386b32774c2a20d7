package model

import (
	"time"
)

// EventType identifies an inbox event.
type EventType string

const (
	EventMessageReceived     EventType = "message.received"
	EventConversationOpened  EventType = "conversation.opened"
	EventConversationUpdated EventType = "conversation.updated"
	EventNoteAdded           EventType = "note.added"
)

// InboxEvent is published after a state change commits.
type InboxEvent struct {
	ID             string         `json:"id"`
	Type           EventType      `json:"type"`
	TeamID         string         `json:"team_id"`
	ConversationID string         `json:"conversation_id"`
	Payload        map[string]any `json:"payload,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}
