package model

import (
	"time"
)

// Note is an internal comment on a conversation.
type Note struct {
	ID             string    `json:"id" gorm:"primaryKey"`
	ConversationID string    `json:"conversation_id" gorm:"not null;index"`
	AuthorID       string    `json:"author_id" gorm:"not null"`
	Content        string    `json:"content" gorm:"not null"`
	IsPrivate      bool      `json:"is_private"`
	CreatedAt      time.Time `json:"created_at"`
	Mentions       []Mention `json:"mentions" gorm:"foreignKey:NoteID;constraint:OnDelete:CASCADE"`
}

// Mention references a user from a note.
type Mention struct {
	ID          string `json:"id" gorm:"primaryKey"`
	NoteID      string `json:"note_id" gorm:"not null;index"`
	MentionedID string `json:"mentioned_id" gorm:"not null"`
}

// AddNoteRequest is the request to add a note.
type AddNoteRequest struct {
	Content   string   `json:"content" validate:"required,min=1,max=10000"`
	IsPrivate bool     `json:"is_private"`
	Mentions  []string `json:"mentions,omitempty" validate:"omitempty,dive,required"`
}
