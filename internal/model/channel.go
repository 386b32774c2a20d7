package model

import (
	"time"
)

// ChannelType is the transport a channel or conversation runs over.
type ChannelType string

const (
	ChannelSMS      ChannelType = "SMS"
	ChannelWhatsApp ChannelType = "WHATSAPP"
	ChannelEmail    ChannelType = "EMAIL"
)

// TeamChannel is a provider-facing address owned by a team. Value is unique
// across all teams and is the routing key for inbound messages.
type TeamChannel struct {
	ID        string      `json:"id" gorm:"primaryKey"`
	TeamID    string      `json:"team_id" gorm:"not null;index"`
	Type      ChannelType `json:"type" gorm:"not null"`
	Value     string      `json:"value" gorm:"not null;uniqueIndex"`
	IsPrimary bool        `json:"is_primary"`
	CreatedAt time.Time   `json:"created_at"`
}

// CreateChannelRequest is the request to register a channel.
type CreateChannelRequest struct {
	Type      ChannelType `json:"type" validate:"required,oneof=SMS WHATSAPP EMAIL"`
	Value     string      `json:"value" validate:"required,min=3,max=256"`
	IsPrimary bool        `json:"is_primary,omitempty"`
}
