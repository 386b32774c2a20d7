package model

import (
	"time"
)

// Contact is an external party, scoped to one team.
type Contact struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	TeamID    string    `json:"team_id" gorm:"not null;uniqueIndex:idx_contacts_team_phone"`
	Phone     string    `json:"phone" gorm:"not null;uniqueIndex:idx_contacts_team_phone"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
