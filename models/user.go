// models/user.go
package models

import (
	"time"
)

type User struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	Username    string  `gorm:"uniqueIndex;not null" json:"username"`
	Email       *string `gorm:"uniqueIndex" json:"email,omitempty"`
	Password    string  `gorm:"not null" json:"-"`
	DisplayName string  `json:"display_name"`
	Avatar      string  `json:"avatar"`
	IsAdmin     bool    `gorm:"default:false" json:"is_admin"`

	// Gamification totals. TotalPoints is only ever moved by the
	// achievement engine, atomically with an achieved transition.
	Level       int `gorm:"default:1" json:"level"`
	TotalPoints int `gorm:"default:0" json:"total_points"`

	Birthday *time.Time `json:"birthday,omitempty"`

	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastActivity *time.Time `json:"last_activity,omitempty"`

	// Relationships
	Profiles []Profile        `gorm:"foreignKey:UserID" json:"profiles,omitempty"`
	Records  []ProgressRecord `gorm:"foreignKey:UserID" json:"records,omitempty"`
}

// Profile is a journal a user keeps moments under (self, child, pet, trip...).
type Profile struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Name      string    `gorm:"not null" json:"name"`
	Kind      string    `gorm:"not null;default:'self'" json:"kind"` // self, child, pet, trip, other
	Avatar    string    `json:"avatar"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}
