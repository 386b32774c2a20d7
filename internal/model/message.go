package model

import (
	"time"
)

// Direction of a message relative to the team.
type Direction string

const (
	DirectionInbound  Direction = "INBOUND"
	DirectionOutbound Direction = "OUTBOUND"
)

// Message is an immutable entry in a conversation thread.
type Message struct {
	// Identity
	ID             string `json:"id" gorm:"primaryKey"`
	ConversationID string `json:"conversation_id" gorm:"not null;index:idx_messages_conversation_ts"`

	// Content
	Direction        Direction   `json:"direction" gorm:"not null"`
	Channel          ChannelType `json:"channel" gorm:"not null"`
	Body             string      `json:"body"`
	MediaURL         *string     `json:"media_url,omitempty"`
	MediaContentType *string     `json:"media_content_type,omitempty"`

	// Provider metadata
	ProviderMessageID *string `json:"provider_message_id,omitempty" gorm:"index"`

	Timestamp time.Time `json:"timestamp" gorm:"not null;index:idx_messages_conversation_ts"`
}
