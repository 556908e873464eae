// models/progress.go
package models

import "time"

type ProgressStatus string

const (
	StatusNotStarted ProgressStatus = "not_started"
	StatusInProgress ProgressStatus = "in_progress"
	StatusAchieved   ProgressStatus = "achieved"
	StatusExpired    ProgressStatus = "expired"
)

// AchievementSnapshot is the frozen copy of reward metadata taken at the
// instant a record becomes achieved. It is written exactly once per achieve
// cycle and never touched by later catalog edits.
type AchievementSnapshot struct {
	Name        string `gorm:"column:snapshot_name" json:"name"`
	Description string `gorm:"column:snapshot_description" json:"description"`
	Points      int    `gorm:"column:snapshot_points" json:"points"`
	Difficulty  string `gorm:"column:snapshot_difficulty" json:"difficulty"`
	UserLevel   int    `gorm:"column:snapshot_user_level" json:"user_level"`
	UserPoints  int    `gorm:"column:snapshot_user_points" json:"user_points"`
}

// ProgressRecord tracks one user against one definition.
// Unique per (user_id, definition_id).
type ProgressRecord struct {
	ID           uint `gorm:"primaryKey" json:"id"`
	UserID       uint `gorm:"not null;uniqueIndex:idx_records_user_definition;index:idx_records_user_status" json:"user_id"`
	DefinitionID uint `gorm:"not null;uniqueIndex:idx_records_user_definition;index:idx_records_definition_status" json:"definition_id"`

	Status ProgressStatus `gorm:"not null;default:'not_started';index:idx_records_user_status;index:idx_records_definition_status" json:"status"`

	Current    int     `gorm:"default:0" json:"current"`
	Target     int     `gorm:"not null" json:"target"`
	Percentage float64 `gorm:"default:0" json:"percentage"`

	StartedAt  *time.Time `json:"started_at,omitempty"`
	AchievedAt *time.Time `gorm:"index" json:"achieved_at,omitempty"`
	ExpiredAt  *time.Time `json:"expired_at,omitempty"`

	Snapshot AchievementSnapshot `gorm:"embedded" json:"snapshot"`

	Notified bool `gorm:"default:false;index" json:"notified"`

	// Set when an administrator force-completes the record.
	GrantedBy   *uint  `json:"granted_by,omitempty"`
	GrantReason string `json:"grant_reason,omitempty"`

	// Optimistic concurrency token, incremented on every write.
	Version int64 `gorm:"default:0" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	User       User                  `gorm:"foreignKey:UserID" json:"-"`
	Definition AchievementDefinition `gorm:"foreignKey:DefinitionID" json:"definition,omitempty"`
	History    []ProgressEntry       `gorm:"foreignKey:RecordID" json:"history,omitempty"`
}

// ProgressEntry is one append-only history row. The (record, event type,
// related entity) triple is what makes event processing idempotent.
type ProgressEntry struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	RecordID         uint      `gorm:"not null;index:idx_entries_record_dedupe" json:"record_id"`
	Value            int       `gorm:"not null" json:"value"`
	Timestamp        time.Time `gorm:"not null;index" json:"timestamp"`
	TriggerEventType string    `gorm:"not null;index:idx_entries_record_dedupe" json:"trigger_event_type"`
	RelatedEntityID  string    `gorm:"index:idx_entries_record_dedupe" json:"related_entity_id"`
	CreatedAt        time.Time `json:"created_at"`
}

// ApplyProgress moves the record to newValue at time now, keeping the
// percentage invariant. It does not decide completion; callers transition
// the status separately.
func (r *ProgressRecord) ApplyProgress(newValue int, now time.Time) {
	r.Current = newValue
	r.RecomputePercentage()
	if r.Status == StatusNotStarted && newValue > 0 {
		r.Status = StatusInProgress
		t := now
		r.StartedAt = &t
	}
}

// MarkAchieved freezes the snapshot and completes the record. The caller is
// responsible for crediting def.Points to the user in the same transaction.
func (r *ProgressRecord) MarkAchieved(def *AchievementDefinition, user *User, now time.Time) {
	r.Status = StatusAchieved
	t := now
	r.AchievedAt = &t
	if r.StartedAt == nil {
		r.StartedAt = &t
	}
	r.RecomputePercentage()
	r.Notified = false
	r.Snapshot = AchievementSnapshot{
		Name:        def.Name,
		Description: def.Description,
		Points:      def.Points,
		Difficulty:  def.Difficulty,
		UserLevel:   user.Level,
		UserPoints:  user.TotalPoints,
	}
}

// MarkExpired closes the record after its definition's window has passed.
func (r *ProgressRecord) MarkExpired(now time.Time) {
	r.Status = StatusExpired
	t := now
	r.ExpiredAt = &t
}

// Reset clears an achieved repeatable record back to not_started. History
// rows are deleted by the caller.
func (r *ProgressRecord) Reset() {
	r.Status = StatusNotStarted
	r.Current = 0
	r.Percentage = 0
	r.StartedAt = nil
	r.AchievedAt = nil
	r.ExpiredAt = nil
	r.Notified = false
	r.Snapshot = AchievementSnapshot{}
	r.GrantedBy = nil
	r.GrantReason = ""
}

// RecomputePercentage re-derives the percentage from current/target,
// clamped to [0, 100]. Invoked on every mutation.
func (r *ProgressRecord) RecomputePercentage() {
	if r.Target <= 0 {
		r.Percentage = 0
		return
	}
	pct := float64(r.Current) / float64(r.Target) * 100
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	r.Percentage = pct
}

// Remaining returns how much progress is still needed. Derived, never stored.
func (r *ProgressRecord) Remaining() int {
	if r.Current >= r.Target {
		return 0
	}
	return r.Target - r.Current
}
