package model

import (
	"time"
)

// ConversationStatus is a conversation's lifecycle state.
type ConversationStatus string

const (
	StatusOpen     ConversationStatus = "OPEN"
	StatusPending  ConversationStatus = "PENDING"
	StatusResolved ConversationStatus = "RESOLVED"
	StatusClosed   ConversationStatus = "CLOSED"
)

// Valid reports whether s is a known status.
func (s ConversationStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusPending, StatusResolved, StatusClosed:
		return true
	}
	return false
}

// Conversation is a thread with one contact over one channel.
// At most one OPEN conversation exists per (TeamID, ContactID, Channel).
type Conversation struct {
	ID           string             `json:"id" gorm:"primaryKey"`
	TeamID       string             `json:"team_id" gorm:"not null;index"`
	ContactID    string             `json:"contact_id" gorm:"not null;index"`
	Channel      ChannelType        `json:"channel" gorm:"not null"`
	Status       ConversationStatus `json:"status" gorm:"not null;index"`
	AssignedToID *string            `json:"assigned_to_id,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`

	Messages []Message `json:"-" gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE"`
	Notes    []Note    `json:"-" gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE"`
}

// CreateConversationRequest is the request to open a conversation manually.
type CreateConversationRequest struct {
	TeamID       string      `json:"team_id" validate:"required"`
	ContactID    string      `json:"contact_id" validate:"required"`
	Channel      ChannelType `json:"channel" validate:"required,oneof=SMS WHATSAPP"`
	AssignedToID *string     `json:"assigned_to_id,omitempty"`
}

// UpdateConversationRequest changes status and/or assignee. An empty
// AssignedToID unassigns the conversation.
type UpdateConversationRequest struct {
	Status       *ConversationStatus `json:"status,omitempty" validate:"omitempty,oneof=OPEN PENDING RESOLVED CLOSED"`
	AssignedToID *string             `json:"assigned_to_id,omitempty"`
}
