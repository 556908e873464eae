// services/notify_sweep.go - Retry sweep for undelivered notifications
package services

import (
	"context"
	"log"
	"time"

	"lifelog/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotifySweep periodically retries notification dispatch for achieved
// records whose notified flag is still false, and expires records whose
// definition window closed without another event touching them.
type NotifySweep struct {
	db       *gorm.DB
	notifier Notifier
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

var notifySweep *NotifySweep

// InitNotifySweep initializes the singleton sweep service.
func InitNotifySweep(db *gorm.DB, notifier Notifier, interval time.Duration) {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	notifySweep = &NotifySweep{
		db:       db,
		notifier: notifier,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// GetNotifySweep returns the initialized sweep service.
func GetNotifySweep() *NotifySweep {
	return notifySweep
}

// Start runs the sweep loop until Stop is called.
func (s *NotifySweep) Start() {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n, err := s.ExpireOverdue(); err != nil {
					log.Printf("⚠️ expiry sweep failed: %v", err)
				} else if n > 0 {
					log.Printf("🔄 expiry sweep closed %d overdue records", n)
				}
				if n, err := s.SweepOnce(); err != nil {
					log.Printf("⚠️ notification sweep failed: %v", err)
				} else if n > 0 {
					log.Printf("✅ notification sweep redelivered %d", n)
				}
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop shuts the sweep loop down and waits for it to exit.
func (s *NotifySweep) Stop() {
	close(s.stop)
	<-s.done
}

// sweepBatch caps how many records one sweep pass touches.
const sweepBatch = 100

// ExpireOverdue closes not_started and in_progress records whose
// definition's window has already ended. Event processing expires such
// records lazily when an event arrives; the sweep catches the ones no
// event touches.
func (s *NotifySweep) ExpireOverdue() (int64, error) {
	now := time.Now()
	closed := s.db.Model(&models.AchievementDefinition{}).
		Select("id").
		Where("window_end IS NOT NULL AND window_end < ?", now)

	res := s.db.Model(&models.ProgressRecord{}).
		Where("status IN ?", []models.ProgressStatus{models.StatusNotStarted, models.StatusInProgress}).
		Where("definition_id IN (?)", closed).
		Updates(map[string]interface{}{
			"status":     models.StatusExpired,
			"expired_at": now,
			"version":    gorm.Expr("version + 1"),
		})
	return res.RowsAffected, res.Error
}

// SweepOnce redelivers pending notifications and flips the notified flag on
// success. Per-record failures are logged and left for the next pass.
func (s *NotifySweep) SweepOnce() (int, error) {
	var pending []models.ProgressRecord
	err := s.db.Where("status = ? AND notified = ?", models.StatusAchieved, false).
		Order("achieved_at ASC").
		Limit(sweepBatch).
		Find(&pending).Error
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, rec := range pending {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		n := Notification{
			ID:            uuid.NewString(),
			Type:          "achievement",
			Title:         rec.Snapshot.Name,
			Body:          rec.Snapshot.Description,
			AchievementID: rec.DefinitionID,
			Points:        rec.Snapshot.Points,
		}
		err := s.notifier.Notify(ctx, rec.UserID, n)
		cancel()
		if err != nil {
			log.Printf("⚠️ redelivery for record %d failed: %v", rec.ID, err)
			continue
		}
		if err := s.db.Model(&models.ProgressRecord{}).Where("id = ?", rec.ID).Update("notified", true).Error; err != nil {
			return delivered, err
		}
		delivered++
	}
	return delivered, nil
}
