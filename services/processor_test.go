package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"lifelog/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func momentEvent(id string, at time.Time) Event {
	return Event{
		Type:              models.EventMomentCreated,
		Timestamp:         at,
		RelatedEntityID:   id,
		RelatedEntityType: "moment",
	}
}

func loadRecord(t *testing.T, svc *AchievementService, userID, defID uint) *models.ProgressRecord {
	t.Helper()
	var rec models.ProgressRecord
	require.NoError(t, svc.db.Where("user_id = ? AND definition_id = ?", userID, defID).
		Preload("History").First(&rec).Error)
	return &rec
}

func TestFirstMomentAchievesImmediately(t *testing.T) {
	db := newTestDB(t)
	notifier := &stubNotifier{}
	svc := NewAchievementService(db, notifier)

	user := createUser(t, db, "ada", false)
	profile := createProfile(t, db, user.ID)
	def := createDefinition(t, db, models.AchievementDefinition{
		Name:      "First Moment",
		Points:    10,
		Condition: models.ConditionSpec{Type: models.ConditionCount, Target: 1, Field: models.FieldMoments},
	})

	now := time.Now().UTC()
	moment := createMoment(t, db, user.ID, profile.ID, "", now)

	result, err := svc.ProcessEvent(context.Background(), user.ID,
		momentEvent(fmt.Sprintf("moment:%d", moment.ID), now))
	require.NoError(t, err)

	assert.Equal(t, 1, result.UpdatedCount)
	require.Len(t, result.NewlyCompleted, 1)
	assert.Empty(t, result.Failed)

	rec := loadRecord(t, svc, user.ID, def.ID)
	assert.Equal(t, models.StatusAchieved, rec.Status)
	assert.Equal(t, 1, rec.Current)
	assert.Equal(t, 100.0, rec.Percentage)
	require.NotNil(t, rec.AchievedAt)
	require.NotNil(t, rec.StartedAt)
	assert.Equal(t, "First Moment", rec.Snapshot.Name)
	assert.Equal(t, 10, rec.Snapshot.Points)

	// Points credited exactly once, notification delivered.
	var fresh models.User
	require.NoError(t, db.First(&fresh, user.ID).Error)
	assert.Equal(t, 10, fresh.TotalPoints)
	assert.True(t, rec.Notified)
	assert.Len(t, notifier.calls, 1)
}

func TestDuplicateEventIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	svc := NewAchievementService(db, &stubNotifier{})

	user := createUser(t, db, "ada", false)
	profile := createProfile(t, db, user.ID)
	def := createDefinition(t, db, models.AchievementDefinition{
		Name:      "Ten Moments",
		Points:    20,
		Condition: models.ConditionSpec{Type: models.ConditionCount, Target: 10, Field: models.FieldMoments},
	})

	now := time.Now().UTC()
	moment := createMoment(t, db, user.ID, profile.ID, "", now)
	event := momentEvent(fmt.Sprintf("moment:%d", moment.ID), now)

	first, err := svc.ProcessEvent(context.Background(), user.ID, event)
	require.NoError(t, err)
	assert.Equal(t, 1, first.UpdatedCount)

	// A retried delivery of the same event must not double-count.
	second, err := svc.ProcessEvent(context.Background(), user.ID, event)
	require.NoError(t, err)
	assert.Equal(t, 0, second.UpdatedCount)

	rec := loadRecord(t, svc, user.ID, def.ID)
	assert.Equal(t, 1, rec.Current)
	assert.Len(t, rec.History, 1)
}

func TestPartialFailureKeepsSiblingsMoving(t *testing.T) {
	db := newTestDB(t)
	svc := NewAchievementService(db, &stubNotifier{})

	user := createUser(t, db, "ada", false)
	profile := createProfile(t, db, user.ID)

	okDef := createDefinition(t, db, models.AchievementDefinition{
		Name:      "Storyteller",
		Condition: models.ConditionSpec{Type: models.ConditionCount, Target: 100, Field: models.FieldMoments},
	})
	nightDef := createDefinition(t, db, models.AchievementDefinition{
		Name:      "Night Owl",
		Category:  "Special",
		Condition: models.ConditionSpec{Type: models.ConditionCustom, Target: 5, Field: "night_owl"},
	})
	badDef := createDefinition(t, db, models.AchievementDefinition{
		Name:      "Mystery",
		Category:  "Special",
		Condition: models.ConditionSpec{Type: models.ConditionCustom, Target: 1, Field: "unheard_of"},
	})

	late := time.Date(2025, 6, 1, 23, 30, 0, 0, time.UTC)
	moment := createMoment(t, db, user.ID, profile.ID, "", late)

	result, err := svc.ProcessEvent(context.Background(), user.ID,
		momentEvent(fmt.Sprintf("moment:%d", moment.ID), late))
	require.NoError(t, err)

	assert.Equal(t, 2, result.UpdatedCount)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, badDef.ID, result.Failed[0].DefinitionID)

	// The failing definition rolled back alone.
	assert.Equal(t, 1, loadRecord(t, svc, user.ID, okDef.ID).Current)
	assert.Equal(t, 1, loadRecord(t, svc, user.ID, nightDef.ID).Current)
	assert.Equal(t, 0, loadRecord(t, svc, user.ID, badDef.ID).Current)
	assert.Empty(t, loadRecord(t, svc, user.ID, badDef.ID).History)
}

func TestStreakResetsAfterGap(t *testing.T) {
	db := newTestDB(t)
	svc := NewAchievementService(db, &stubNotifier{})

	user := createUser(t, db, "ada", false)
	def := createDefinition(t, db, models.AchievementDefinition{
		Name:      "Three Day Streak",
		Category:  "Streak",
		Condition: models.ConditionSpec{Type: models.ConditionStreak, Target: 3, Field: models.FieldActiveDays},
	})

	day1 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, at := range []time.Time{day1, day1.AddDate(0, 0, 1), day1.AddDate(0, 0, 3)} {
		_, err := svc.ProcessEvent(context.Background(), user.ID,
			momentEvent(fmt.Sprintf("moment:%d", i+1), at))
		require.NoError(t, err)
	}

	// Day 1, day 2, then a gap: the run ending at day 4 is length 1.
	rec := loadRecord(t, svc, user.ID, def.ID)
	assert.Equal(t, 1, rec.Current)
	assert.Equal(t, models.StatusInProgress, rec.Status)

	// History timestamps stay non-decreasing.
	require.Len(t, rec.History, 3)
	for i := 1; i < len(rec.History); i++ {
		assert.False(t, rec.History[i].Timestamp.Before(rec.History[i-1].Timestamp))
	}
}

func TestClosedWindowExpiresRecord(t *testing.T) {
	db := newTestDB(t)
	svc := NewAchievementService(db, &stubNotifier{})

	user := createUser(t, db, "ada", false)
	profile := createProfile(t, db, user.ID)

	end := time.Now().UTC().AddDate(0, 0, -1)
	def := createDefinition(t, db, models.AchievementDefinition{
		Name:      "Summer Special",
		Category:  "Special",
		WindowEnd: &end,
		Condition: models.ConditionSpec{Type: models.ConditionCount, Target: 1, Field: models.FieldMoments},
	})

	now := time.Now().UTC()
	moment := createMoment(t, db, user.ID, profile.ID, "", now)

	result, err := svc.ProcessEvent(context.Background(), user.ID,
		momentEvent(fmt.Sprintf("moment:%d", moment.ID), now))
	require.NoError(t, err)
	assert.Empty(t, result.NewlyCompleted)

	rec := loadRecord(t, svc, user.ID, def.ID)
	assert.Equal(t, models.StatusExpired, rec.Status)
	require.NotNil(t, rec.ExpiredAt)
	assert.Nil(t, rec.AchievedAt)

	var fresh models.User
	require.NoError(t, db.First(&fresh, user.ID).Error)
	assert.Equal(t, 0, fresh.TotalPoints)
}

func TestSnapshotSurvivesDefinitionEdits(t *testing.T) {
	db := newTestDB(t)
	svc := NewAchievementService(db, &stubNotifier{})

	admin := createUser(t, db, "root", true)
	user := createUser(t, db, "ada", false)
	profile := createProfile(t, db, user.ID)
	def := createDefinition(t, db, models.AchievementDefinition{
		Name:      "First Moment",
		Points:    10,
		Condition: models.ConditionSpec{Type: models.ConditionCount, Target: 1, Field: models.FieldMoments},
	})

	now := time.Now().UTC()
	moment := createMoment(t, db, user.ID, profile.ID, "", now)
	_, err := svc.ProcessEvent(context.Background(), user.ID,
		momentEvent(fmt.Sprintf("moment:%d", moment.ID), now))
	require.NoError(t, err)

	// Raising the reward later must not rewrite the frozen snapshot.
	newPoints := 999
	_, err = NewCatalogService(db).UpdateDefinition(admin.ID, def.ID, DefinitionUpdate{Points: &newPoints})
	require.NoError(t, err)

	rec := loadRecord(t, svc, user.ID, def.ID)
	assert.Equal(t, 10, rec.Snapshot.Points)

	var fresh models.User
	require.NoError(t, db.First(&fresh, user.ID).Error)
	assert.Equal(t, 10, fresh.TotalPoints)
}

func TestPercentageInvariant(t *testing.T) {
	db := newTestDB(t)
	svc := NewAchievementService(db, &stubNotifier{})

	user := createUser(t, db, "ada", false)
	profile := createProfile(t, db, user.ID)
	def := createDefinition(t, db, models.AchievementDefinition{
		Name:      "Four Moments",
		Condition: models.ConditionSpec{Type: models.ConditionCount, Target: 4, Field: models.FieldMoments},
	})

	now := time.Now().UTC()
	for i := 0; i < 2; i++ {
		moment := createMoment(t, db, user.ID, profile.ID, "", now.Add(time.Duration(i)*time.Minute))
		_, err := svc.ProcessEvent(context.Background(), user.ID,
			momentEvent(fmt.Sprintf("moment:%d", moment.ID), moment.CapturedAt))
		require.NoError(t, err)
	}

	rec := loadRecord(t, svc, user.ID, def.ID)
	assert.Equal(t, 2, rec.Current)
	assert.Equal(t, 50.0, rec.Percentage)
	assert.Equal(t, models.StatusInProgress, rec.Status)
	assert.Equal(t, 2, rec.Remaining())
}

func TestFailedNotificationLeavesFlagForSweep(t *testing.T) {
	db := newTestDB(t)
	notifier := &stubNotifier{fail: true}
	svc := NewAchievementService(db, notifier)

	user := createUser(t, db, "ada", false)
	profile := createProfile(t, db, user.ID)
	def := createDefinition(t, db, models.AchievementDefinition{
		Name:      "First Moment",
		Points:    10,
		Condition: models.ConditionSpec{Type: models.ConditionCount, Target: 1, Field: models.FieldMoments},
	})

	now := time.Now().UTC()
	moment := createMoment(t, db, user.ID, profile.ID, "", now)
	result, err := svc.ProcessEvent(context.Background(), user.ID,
		momentEvent(fmt.Sprintf("moment:%d", moment.ID), now))
	require.NoError(t, err)
	require.Len(t, result.NewlyCompleted, 1)

	// Transition is durable, delivery is not.
	rec := loadRecord(t, svc, user.ID, def.ID)
	assert.Equal(t, models.StatusAchieved, rec.Status)
	assert.False(t, rec.Notified)

	// The sweep redelivers once the notifier recovers.
	recovered := &stubNotifier{}
	InitNotifySweep(db, recovered, time.Minute)
	delivered, err := GetNotifySweep().SweepOnce()
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
	assert.True(t, loadRecord(t, svc, user.ID, def.ID).Notified)
}

func TestStaleVersionConflicts(t *testing.T) {
	db := newTestDB(t)
	svc := NewAchievementService(db, &stubNotifier{})

	user := createUser(t, db, "ada", false)
	def := createDefinition(t, db, models.AchievementDefinition{
		Name:      "Ten Moments",
		Condition: models.ConditionSpec{Type: models.ConditionCount, Target: 10, Field: models.FieldMoments},
	})

	rec := models.ProgressRecord{UserID: user.ID, DefinitionID: def.ID, Target: 10, Status: models.StatusNotStarted}
	require.NoError(t, db.Create(&rec).Error)

	// Another writer bumps the version underneath us.
	require.NoError(t, db.Model(&models.ProgressRecord{}).Where("id = ?", rec.ID).
		Update("version", rec.Version+1).Error)

	err := persistRecord(db, &rec)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)

	_ = svc // keeps the service wired the same way as the other tests
}

func TestResetRepeatableRecord(t *testing.T) {
	db := newTestDB(t)
	svc := NewAchievementService(db, &stubNotifier{})

	admin := createUser(t, db, "root", true)
	user := createUser(t, db, "ada", false)
	def := createDefinition(t, db, models.AchievementDefinition{
		Name:         "Fresh Start",
		Category:     "Special",
		IsRepeatable: true,
		Condition:    models.ConditionSpec{Type: models.ConditionMilestone, Target: 1, Field: "new_year"},
	})

	_, err := NewCatalogService(db).GrantAchievement(admin.ID, user.ID, def.ID, "promo")
	require.NoError(t, err)
	require.Equal(t, models.StatusAchieved, loadRecord(t, svc, user.ID, def.ID).Status)

	require.NoError(t, svc.ResetRecord(user.ID, def.ID))

	rec := loadRecord(t, svc, user.ID, def.ID)
	assert.Equal(t, models.StatusNotStarted, rec.Status)
	assert.Equal(t, 0, rec.Current)
	assert.Equal(t, 0.0, rec.Percentage)
	assert.Nil(t, rec.AchievedAt)
	assert.Empty(t, rec.History)
	assert.Empty(t, rec.Snapshot.Name)
}

func TestResetNonRepeatableRejected(t *testing.T) {
	db := newTestDB(t)
	svc := NewAchievementService(db, &stubNotifier{})

	admin := createUser(t, db, "root", true)
	user := createUser(t, db, "ada", false)
	def := createDefinition(t, db, models.AchievementDefinition{
		Name:      "First Moment",
		Condition: models.ConditionSpec{Type: models.ConditionCount, Target: 1, Field: models.FieldMoments},
	})

	_, err := NewCatalogService(db).GrantAchievement(admin.ID, user.ID, def.ID, "promo")
	require.NoError(t, err)

	err = svc.ResetRecord(user.ID, def.ID)
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestUnknownEventTypeRejected(t *testing.T) {
	db := newTestDB(t)
	svc := NewAchievementService(db, &stubNotifier{})
	user := createUser(t, db, "ada", false)

	_, err := svc.ProcessEvent(context.Background(), user.ID, Event{Type: "mystery_event"})
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestGetUserAchievementsFilters(t *testing.T) {
	db := newTestDB(t)
	svc := NewAchievementService(db, &stubNotifier{})

	admin := createUser(t, db, "root", true)
	user := createUser(t, db, "ada", false)

	momentsDef := createDefinition(t, db, models.AchievementDefinition{
		Name:      "First Moment",
		Condition: models.ConditionSpec{Type: models.ConditionCount, Target: 1, Field: models.FieldMoments},
	})
	placesDef := createDefinition(t, db, models.AchievementDefinition{
		Name:      "Globetrotter",
		Category:  "Places",
		Condition: models.ConditionSpec{Type: models.ConditionCount, Target: 10, Field: models.FieldLocations},
	})

	catalog := NewCatalogService(db)
	_, err := catalog.GrantAchievement(admin.ID, user.ID, momentsDef.ID, "promo")
	require.NoError(t, err)
	_, err = catalog.BackfillDefinition(admin.ID, placesDef.ID)
	require.NoError(t, err)

	all, err := svc.GetUserAchievements(user.ID, AchievementFilters{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	achieved, err := svc.GetUserAchievements(user.ID, AchievementFilters{Status: string(models.StatusAchieved)})
	require.NoError(t, err)
	require.Len(t, achieved, 1)
	assert.Equal(t, momentsDef.ID, achieved[0].DefinitionID)

	places, err := svc.GetUserAchievements(user.ID, AchievementFilters{Category: "Places"})
	require.NoError(t, err)
	require.Len(t, places, 1)
	assert.Equal(t, placesDef.ID, places[0].DefinitionID)
}
