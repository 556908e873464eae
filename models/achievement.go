// models/achievement.go
package models

import (
	"time"

	"gorm.io/datatypes"
)

type ConditionType string

const (
	ConditionCount     ConditionType = "count"
	ConditionStreak    ConditionType = "streak"
	ConditionMilestone ConditionType = "milestone"
	ConditionCustom    ConditionType = "custom"
)

// Domain event types fed into the achievement engine.
const (
	EventMomentCreated     = "moment_created"
	EventLocationVisited   = "location_visited"
	EventSocialInteraction = "social_interaction"
	EventProfileUpdated    = "profile_updated"
)

// Tracked-quantity fields for count conditions.
const (
	FieldMoments      = "moments"
	FieldLocations    = "locations"
	FieldInteractions = "interactions"
	FieldProfiles     = "profiles"
	FieldActiveDays   = "active_days"
)

// ConditionSpec is the typed rule a definition is checked against.
// Type and Target are immutable once the definition is published.
type ConditionSpec struct {
	Type   ConditionType     `gorm:"column:condition_type;not null;index" json:"type"`
	Target int               `gorm:"column:condition_target;not null" json:"target"`
	Field  string            `gorm:"column:condition_field;not null" json:"field"`
	Params datatypes.JSONMap `gorm:"column:condition_params" json:"params,omitempty"`
}

// AchievementDefinition is a published goal in the catalog.
type AchievementDefinition struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"not null;uniqueIndex;size:50" json:"name"`
	Description string `gorm:"not null" json:"description"`
	Category    string `gorm:"not null;index" json:"category"` // Moments, Places, Social, Streak, Special
	Difficulty  string `gorm:"not null;default:'bronze'" json:"difficulty"`
	Points      int    `gorm:"not null" json:"points"`
	Icon        string `json:"icon"`

	Condition ConditionSpec `gorm:"embedded" json:"condition"`

	// Outside this window a record cannot transition into achieved.
	WindowStart *time.Time `json:"window_start,omitempty"`
	WindowEnd   *time.Time `json:"window_end,omitempty"`

	IsRepeatable bool `gorm:"default:false" json:"is_repeatable"`
	IsActive     bool `gorm:"default:true;index" json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WithinWindow reports whether a completion at t is allowed.
func (d *AchievementDefinition) WithinWindow(t time.Time) bool {
	if d.WindowStart != nil && t.Before(*d.WindowStart) {
		return false
	}
	if d.WindowEnd != nil && t.After(*d.WindowEnd) {
		return false
	}
	return true
}

// WindowClosed reports whether the active window has passed entirely.
func (d *AchievementDefinition) WindowClosed(t time.Time) bool {
	return d.WindowEnd != nil && t.After(*d.WindowEnd)
}

// TriggerEvent returns the pinned trigger event, if the definition has one.
func (d *AchievementDefinition) TriggerEvent() string {
	if d.Condition.Params == nil {
		return ""
	}
	if ev, ok := d.Condition.Params["event"].(string); ok {
		return ev
	}
	return ""
}

// MatchesEvent reports whether an incoming event type can advance this
// definition. Streak, milestone and custom conditions ride on any activity
// event unless pinned; count conditions follow their tracked field.
func (d *AchievementDefinition) MatchesEvent(eventType string) bool {
	if ev := d.TriggerEvent(); ev != "" {
		return ev == eventType
	}

	switch d.Condition.Type {
	case ConditionStreak, ConditionMilestone, ConditionCustom:
		return IsActivityEvent(eventType)
	case ConditionCount:
		switch d.Condition.Field {
		case FieldMoments:
			return eventType == EventMomentCreated
		case FieldLocations:
			return eventType == EventLocationVisited
		case FieldInteractions:
			return eventType == EventSocialInteraction
		case FieldProfiles:
			return eventType == EventProfileUpdated
		}
	}
	return false
}

// IsActivityEvent reports whether eventType counts as user activity.
func IsActivityEvent(eventType string) bool {
	switch eventType {
	case EventMomentCreated, EventLocationVisited, EventSocialInteraction, EventProfileUpdated:
		return true
	}
	return false
}
