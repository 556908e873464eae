// services/processor.go - Achievement event processing pipeline
package services

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"lifelog/models"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// defaultWorkers bounds the per-event fan-out. Sized to the typical number
// of definitions a single event type touches.
const defaultWorkers = 8

// AchievementService turns domain events into progress updates.
type AchievementService struct {
	db       *gorm.DB
	notifier Notifier
	workers  int
}

func NewAchievementService(db *gorm.DB, notifier Notifier) *AchievementService {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &AchievementService{db: db, notifier: notifier, workers: defaultWorkers}
}

// Event is one domain occurrence from the moment / check-in / social flows.
type Event struct {
	Type              string            `json:"event_type"`
	Timestamp         time.Time         `json:"timestamp"`
	RelatedEntityID   string            `json:"related_entity_id"`
	RelatedEntityType string            `json:"related_entity_type"`
	Payload           datatypes.JSONMap `json:"payload,omitempty"`
}

// FailedDefinition reports one definition that could not be processed.
type FailedDefinition struct {
	DefinitionID uint   `json:"definition_id"`
	Reason       string `json:"reason"`
}

// ProcessResult is the aggregate outcome of one event.
type ProcessResult struct {
	UpdatedCount   int                     `json:"updated_count"`
	NewlyCompleted []models.ProgressRecord `json:"newly_completed"`
	Failed         []FailedDefinition      `json:"failed"`
}

type applyOutcome struct {
	updated   bool
	completed bool
	record    models.ProgressRecord
}

// ProcessEvent fans the event out to every eligible progress record for the
// user. A ConditionEvaluationError (or a conflict that survives its retry)
// on one definition lands in the failed list without touching the others;
// a point-crediting failure rolls the whole transition back and is returned
// so the event can be reprocessed.
func (s *AchievementService) ProcessEvent(ctx context.Context, userID uint, event Event) (*ProcessResult, error) {
	if !models.IsActivityEvent(event.Type) {
		return nil, &ValidationError{Msg: "unknown event type: " + event.Type}
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "user", ID: userID}
		}
		return nil, err
	}

	defs, err := s.eligibleDefinitions(userID, event)
	if err != nil {
		return nil, err
	}

	result := &ProcessResult{NewlyCompleted: []models.ProgressRecord{}, Failed: []FailedDefinition{}}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i := range defs {
		def := defs[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcome, err := s.applyWithRetry(&user, &def, event)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				var evalErr *ConditionEvaluationError
				var conflictErr *ConflictError
				switch {
				case errors.As(err, &evalErr), errors.As(err, &conflictErr):
					log.Printf("⚠️ definition %d skipped for user %d: %v", def.ID, userID, err)
					result.Failed = append(result.Failed, FailedDefinition{DefinitionID: def.ID, Reason: err.Error()})
					return nil
				default:
					return err
				}
			}
			if outcome.updated {
				result.UpdatedCount++
			}
			if outcome.completed {
				result.NewlyCompleted = append(result.NewlyCompleted, outcome.record)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Post-commit observer: notification dispatch is fire-and-forget and
	// never blocks the durable transition.
	for _, rec := range result.NewlyCompleted {
		s.dispatchNotification(userID, rec)
	}

	return result, nil
}

// eligibleDefinitions loads active definitions matching the event and lazily
// creates the user's progress records for them.
func (s *AchievementService) eligibleDefinitions(userID uint, event Event) ([]models.AchievementDefinition, error) {
	var all []models.AchievementDefinition
	if err := s.db.Where("is_active = ?", true).Find(&all).Error; err != nil {
		return nil, err
	}

	defs := all[:0]
	for _, def := range all {
		if def.MatchesEvent(event.Type) {
			defs = append(defs, def)
		}
	}

	for _, def := range defs {
		rec := models.ProgressRecord{
			UserID:       userID,
			DefinitionID: def.ID,
			Status:       models.StatusNotStarted,
			Target:       def.Condition.Target,
		}
		err := s.db.Where("user_id = ? AND definition_id = ?", userID, def.ID).
			FirstOrCreate(&rec).Error
		if err != nil {
			return nil, err
		}
	}
	return defs, nil
}

// applyWithRetry retries a conflicted update once before surfacing the
// ConflictError.
func (s *AchievementService) applyWithRetry(user *models.User, def *models.AchievementDefinition, event Event) (applyOutcome, error) {
	outcome, err := s.applyEvent(user, def, event)
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		outcome, err = s.applyEvent(user, def, event)
	}
	return outcome, err
}

// applyEvent runs one (user, definition) update in its own transaction.
// History append, status transition and point credit commit together or
// not at all.
func (s *AchievementService) applyEvent(user *models.User, def *models.AchievementDefinition, event Event) (applyOutcome, error) {
	var outcome applyOutcome

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var rec models.ProgressRecord
		if err := tx.Where("user_id = ? AND definition_id = ?", user.ID, def.ID).First(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Resource: "progress record", ID: def.ID}
			}
			return err
		}

		// Terminal states take no further updates.
		if rec.Status == models.StatusAchieved || rec.Status == models.StatusExpired {
			return nil
		}

		// A closed window expires the record instead of advancing it.
		if def.WindowClosed(event.Timestamp) {
			rec.MarkExpired(event.Timestamp)
			if err := persistRecord(tx, &rec); err != nil {
				return err
			}
			outcome = applyOutcome{updated: true, record: rec}
			return nil
		}

		// Idempotency: the same related entity advances a record at most
		// once per event type.
		if event.RelatedEntityID != "" {
			var dup int64
			err := tx.Model(&models.ProgressEntry{}).
				Where("record_id = ? AND trigger_event_type = ? AND related_entity_id = ?",
					rec.ID, event.Type, event.RelatedEntityID).
				Count(&dup).Error
			if err != nil {
				return err
			}
			if dup > 0 {
				return nil
			}
		}

		snap, err := s.buildActivity(tx, user, def, rec.ID, event)
		if err != nil {
			return err
		}

		eval, err := Evaluate(def.Condition, snap, rec.Current)
		if err != nil {
			return err
		}

		entry := models.ProgressEntry{
			RecordID:         rec.ID,
			Value:            eval.NewValue,
			Timestamp:        event.Timestamp,
			TriggerEventType: event.Type,
			RelatedEntityID:  event.RelatedEntityID,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}

		rec.ApplyProgress(eval.NewValue, event.Timestamp)

		completed := false
		if eval.Complete && def.WithinWindow(event.Timestamp) {
			var current models.User
			if err := tx.First(&current, user.ID).Error; err != nil {
				return err
			}
			rec.MarkAchieved(def, &current, event.Timestamp)

			// Point credit is atomic with the achieved transition: if it
			// fails the transaction rolls back and the event stays
			// eligible for reprocessing.
			err := tx.Model(&models.User{}).Where("id = ?", user.ID).
				UpdateColumn("total_points", gorm.Expr("total_points + ?", def.Points)).Error
			if err != nil {
				return err
			}
			completed = true
		}

		if err := persistRecord(tx, &rec); err != nil {
			return err
		}

		rec.Definition = *def
		outcome = applyOutcome{updated: true, completed: completed, record: rec}
		return nil
	})

	if err != nil {
		return applyOutcome{}, err
	}
	return outcome, nil
}

// buildActivity assembles the facts the evaluator judges the condition
// against. Count conditions read the source tables; streaks recompute from
// the record's own history timestamps.
func (s *AchievementService) buildActivity(tx *gorm.DB, user *models.User, def *models.AchievementDefinition, recordID uint, event Event) (ActivitySnapshot, error) {
	snap := ActivitySnapshot{EventTime: event.Timestamp, Birthday: user.Birthday}

	switch def.Condition.Type {
	case models.ConditionCount:
		var n int64
		var err error
		switch def.Condition.Field {
		case models.FieldMoments:
			err = tx.Model(&models.Moment{}).Where("user_id = ?", user.ID).Count(&n).Error
		case models.FieldLocations:
			err = tx.Model(&models.Moment{}).Where("user_id = ? AND location <> ''", user.ID).
				Distinct("location").Count(&n).Error
		case models.FieldInteractions:
			err = tx.Model(&models.SocialInteraction{}).Where("user_id = ?", user.ID).Count(&n).Error
		case models.FieldProfiles:
			err = tx.Model(&models.Profile{}).Where("user_id = ?", user.ID).Count(&n).Error
		default:
			// Unknown count fields fall back to the record's own unique
			// event history, plus the event being applied.
			err = tx.Model(&models.ProgressEntry{}).Where("record_id = ?", recordID).
				Distinct("related_entity_id").Count(&n).Error
			n++
		}
		if err != nil {
			return snap, err
		}
		snap.FactCount = n

	case models.ConditionStreak:
		var times []time.Time
		err := tx.Model(&models.ProgressEntry{}).Where("record_id = ?", recordID).
			Order("timestamp ASC").Pluck("timestamp", &times).Error
		if err != nil {
			return snap, err
		}
		snap.ActivityDays = times
	}

	return snap, nil
}

// persistRecord writes the record guarded by its optimistic version token.
func persistRecord(tx *gorm.DB, rec *models.ProgressRecord) error {
	updates := map[string]interface{}{
		"status":               rec.Status,
		"current":              rec.Current,
		"target":               rec.Target,
		"percentage":           rec.Percentage,
		"started_at":           rec.StartedAt,
		"achieved_at":          rec.AchievedAt,
		"expired_at":           rec.ExpiredAt,
		"notified":             rec.Notified,
		"granted_by":           rec.GrantedBy,
		"grant_reason":         rec.GrantReason,
		"snapshot_name":        rec.Snapshot.Name,
		"snapshot_description": rec.Snapshot.Description,
		"snapshot_points":      rec.Snapshot.Points,
		"snapshot_difficulty":  rec.Snapshot.Difficulty,
		"snapshot_user_level":  rec.Snapshot.UserLevel,
		"snapshot_user_points": rec.Snapshot.UserPoints,
		"version":              rec.Version + 1,
	}

	res := tx.Model(&models.ProgressRecord{}).
		Where("id = ? AND version = ?", rec.ID, rec.Version).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &ConflictError{Msg: "progress record was modified concurrently"}
	}
	rec.Version++
	return nil
}

// dispatchNotification delivers one achievement notification with a timeout.
// Failures only log; the notified flag stays false for the retry sweep.
func (s *AchievementService) dispatchNotification(userID uint, rec models.ProgressRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	n := Notification{
		ID:            uuid.NewString(),
		Type:          "achievement",
		Title:         rec.Snapshot.Name,
		Body:          rec.Snapshot.Description,
		AchievementID: rec.DefinitionID,
		Points:        rec.Snapshot.Points,
	}
	if err := s.notifier.Notify(ctx, userID, n); err != nil {
		log.Printf("⚠️ notification for record %d failed: %v", rec.ID, err)
		return
	}

	s.db.Model(&models.ProgressRecord{}).Where("id = ?", rec.ID).Update("notified", true)
}

// AchievementFilters narrows GetUserAchievements.
type AchievementFilters struct {
	Status   string
	Category string
}

// GetUserAchievements returns the user's progress records with definitions
// and history preloaded, newest progress first.
func (s *AchievementService) GetUserAchievements(userID uint, f AchievementFilters) ([]models.ProgressRecord, error) {
	q := s.db.Model(&models.ProgressRecord{}).
		Joins("JOIN achievement_definitions ON achievement_definitions.id = progress_records.definition_id").
		Where("progress_records.user_id = ?", userID).
		Preload("Definition").
		Preload("History", func(db *gorm.DB) *gorm.DB {
			return db.Order("timestamp ASC")
		}).
		Order("progress_records.updated_at DESC")

	if f.Status != "" {
		q = q.Where("progress_records.status = ?", f.Status)
	}
	if f.Category != "" {
		q = q.Where("achievement_definitions.category = ?", f.Category)
	}

	var records []models.ProgressRecord
	err := q.Find(&records).Error
	return records, err
}

// GetRecord fetches one record owned by the user, history preloaded.
func (s *AchievementService) GetRecord(userID, recordID uint) (*models.ProgressRecord, error) {
	var rec models.ProgressRecord
	err := s.db.Preload("Definition").
		Preload("History", func(db *gorm.DB) *gorm.DB {
			return db.Order("timestamp ASC")
		}).
		First(&rec, recordID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "progress record", ID: recordID}
		}
		return nil, err
	}
	if rec.UserID != userID {
		return nil, &PermissionError{Msg: "record belongs to another user"}
	}
	return &rec, nil
}

// ResetRecord re-arms an achieved repeatable record for a new cycle.
// Progress, history and snapshot are cleared.
func (s *AchievementService) ResetRecord(userID, definitionID uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var def models.AchievementDefinition
		if err := tx.First(&def, definitionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Resource: "achievement definition", ID: definitionID}
			}
			return err
		}
		if !def.IsRepeatable {
			return &ValidationError{Msg: "achievement is not repeatable"}
		}

		var rec models.ProgressRecord
		if err := tx.Where("user_id = ? AND definition_id = ?", userID, definitionID).First(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Resource: "progress record", ID: definitionID}
			}
			return err
		}
		if rec.Status != models.StatusAchieved {
			return &ValidationError{Msg: "only achieved records can be reset"}
		}

		if err := tx.Where("record_id = ?", rec.ID).Delete(&models.ProgressEntry{}).Error; err != nil {
			return err
		}

		rec.Reset()
		return persistRecord(tx, &rec)
	})
}
