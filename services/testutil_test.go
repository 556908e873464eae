package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"lifelog/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens an isolated in-memory database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// A single connection serializes transactions against the shared
	// in-memory database.
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Profile{},
		&models.Moment{},
		&models.SocialInteraction{},
		&models.AchievementDefinition{},
		&models.ProgressRecord{},
		&models.ProgressEntry{},
	))

	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func createUser(t *testing.T, db *gorm.DB, username string, admin bool) *models.User {
	t.Helper()
	user := &models.User{
		Username: username,
		Password: "x",
		Level:    1,
		IsAdmin:  admin,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createDefinition(t *testing.T, db *gorm.DB, def models.AchievementDefinition) *models.AchievementDefinition {
	t.Helper()
	if def.Category == "" {
		def.Category = "Moments"
	}
	if def.Difficulty == "" {
		def.Difficulty = "bronze"
	}
	if def.Points == 0 {
		def.Points = 10
	}
	def.IsActive = true
	require.NoError(t, db.Create(&def).Error)
	return &def
}

func createMoment(t *testing.T, db *gorm.DB, userID, profileID uint, location string, at time.Time) *models.Moment {
	t.Helper()
	m := &models.Moment{
		UserID:     userID,
		ProfileID:  profileID,
		Type:       "text",
		Text:       "entry",
		Location:   location,
		CapturedAt: at,
	}
	require.NoError(t, db.Create(m).Error)
	return m
}

func createProfile(t *testing.T, db *gorm.DB, userID uint) *models.Profile {
	t.Helper()
	p := &models.Profile{UserID: userID, Name: "me", Kind: "self"}
	require.NoError(t, db.Create(p).Error)
	return p
}

// stubNotifier records deliveries and can be told to fail.
type stubNotifier struct {
	calls []Notification
	fail  bool
}

func (s *stubNotifier) Notify(_ context.Context, _ uint, n Notification) error {
	if s.fail {
		return fmt.Errorf("notifier unavailable")
	}
	s.calls = append(s.calls, n)
	return nil
}
