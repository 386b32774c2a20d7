// Package model defines the entities of the team inbox.
package model

import (
	"time"
)

// Role is a team member's role.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleEditor Role = "EDITOR"
	RoleViewer Role = "VIEWER"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleEditor, RoleViewer:
		return true
	}
	return false
}

// Team is the root aggregate. Everything else belongs to exactly one team.
type Team struct {
	ID        string       `json:"id" gorm:"primaryKey"`
	Name      string       `json:"name" gorm:"not null;uniqueIndex"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	Members   []TeamMember `json:"members,omitempty" gorm:"foreignKey:TeamID;constraint:OnDelete:CASCADE"`

	// Owned rows, declared so the schema cascades deletes.
	Channels      []TeamChannel  `json:"-" gorm:"foreignKey:TeamID;constraint:OnDelete:CASCADE"`
	Contacts      []Contact      `json:"-" gorm:"foreignKey:TeamID;constraint:OnDelete:CASCADE"`
	Conversations []Conversation `json:"-" gorm:"foreignKey:TeamID;constraint:OnDelete:CASCADE"`
}

// Member returns the membership record for userID, or nil.
func (t *Team) Member(userID string) *TeamMember {
	for i := range t.Members {
		if t.Members[i].UserID == userID {
			return &t.Members[i]
		}
	}
	return nil
}

// TeamMember links a user to a team with a role.
type TeamMember struct {
	TeamID    string    `json:"team_id" gorm:"primaryKey"`
	UserID    string    `json:"user_id" gorm:"primaryKey"`
	Role      Role      `json:"role" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateTeamRequest is the request to create a team.
type CreateTeamRequest struct {
	Name string `json:"name" validate:"required,min=2,max=128"`
}

// UpdateTeamRequest is the request to rename a team.
type UpdateTeamRequest struct {
	Name *string `json:"name,omitempty" validate:"omitempty,min=2,max=128"`
}

// AddMemberRequest is the request to add a user to a team.
type AddMemberRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Role   Role   `json:"role,omitempty" validate:"omitempty,oneof=ADMIN EDITOR VIEWER"`
}

// UpdateMemberRequest is the request to change a member's role.
type UpdateMemberRequest struct {
	Role Role `json:"role" validate:"required,oneof=ADMIN EDITOR VIEWER"`
}
