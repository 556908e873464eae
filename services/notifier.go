// services/notifier.go - External notification collaborator contract
package services

import (
	"context"
	"log"
	"time"
)

// Notification is the payload handed to the external notifier when a record
// becomes achieved.
type Notification struct {
	ID            string `json:"id"`
	Type          string `json:"type"` // always "achievement"
	Title         string `json:"title"`
	Body          string `json:"body"`
	AchievementID uint   `json:"achievement_id"`
	Points        int    `json:"points"`
}

// Notifier delivers achievement notifications. Delivery is fire-and-forget:
// a failure leaves the record's notified flag false for the retry sweep.
type Notifier interface {
	Notify(ctx context.Context, userID uint, n Notification) error
}

// notifyTimeout bounds every call to the external notifier.
const notifyTimeout = 5 * time.Second

// LogNotifier is the default collaborator; it just logs deliveries.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, userID uint, n Notification) error {
	log.Printf("🏆 notify user %d: %s (+%d points)", userID, n.Title, n.Points)
	return nil
}
