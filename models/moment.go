// models/moment.go
package models

import "time"

// Moment is a single timestamped journal entry under a profile.
type Moment struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	UserID    uint   `gorm:"not null;index" json:"user_id"`
	ProfileID uint   `gorm:"not null;index" json:"profile_id"`
	Type      string `gorm:"not null;default:'text'" json:"type"` // text, photo, video, audio
	Text      string `json:"text"`
	MediaURL  string `json:"media_url,omitempty"`
	Location  string `gorm:"index" json:"location,omitempty"`
	Mood      string `json:"mood,omitempty"`

	CapturedAt time.Time `gorm:"not null;index" json:"captured_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	User    User    `gorm:"foreignKey:UserID" json:"-"`
	Profile Profile `gorm:"foreignKey:ProfileID" json:"-"`
}

// SocialInteraction records a share, comment or reaction between users.
type SocialInteraction struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	PeerID    uint      `gorm:"index" json:"peer_id"`
	Kind      string    `gorm:"not null" json:"kind"` // share, comment, reaction
	MomentID  *uint     `json:"moment_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
