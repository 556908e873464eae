package services

import (
	"testing"
	"time"

	"lifelog/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func achievedRecord(t *testing.T, db *gorm.DB, userID, defID uint, points int, at time.Time) {
	t.Helper()
	rec := models.ProgressRecord{
		UserID:       userID,
		DefinitionID: defID,
		Status:       models.StatusAchieved,
		Current:      1,
		Target:       1,
		Percentage:   100,
		AchievedAt:   &at,
		Snapshot:     models.AchievementSnapshot{Name: "x", Points: points},
	}
	require.NoError(t, db.Create(&rec).Error)
}

func TestGetUserStats(t *testing.T) {
	db := newTestDB(t)
	svc := NewStatsService(db)
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
	streakDef := createDefinition(t, db, models.AchievementDefinition{
		Name:      "Week Streak",
		Category:  "Streak",
		Condition: models.ConditionSpec{Type: models.ConditionStreak, Target: 7, Field: models.FieldActiveDays},
	})
	specialDef := createDefinition(t, db, models.AchievementDefinition{
		Name:      "Summer Special",
		Category:  "Special",
		Condition: models.ConditionSpec{Type: models.ConditionCount, Target: 5, Field: models.FieldMoments},
	})

	now := time.Now().UTC()
	achievedRecord(t, db, user.ID, momentsDef.ID, 10, now)
	require.NoError(t, db.Create(&models.ProgressRecord{
		UserID: user.ID, DefinitionID: placesDef.ID, Target: 10,
		Status: models.StatusInProgress, Current: 4, Percentage: 40,
	}).Error)
	require.NoError(t, db.Create(&models.ProgressRecord{
		UserID: user.ID, DefinitionID: streakDef.ID, Target: 7,
		Status: models.StatusNotStarted,
	}).Error)
	require.NoError(t, db.Create(&models.ProgressRecord{
		UserID: user.ID, DefinitionID: specialDef.ID, Target: 5,
		Status: models.StatusExpired, ExpiredAt: &now,
	}).Error)

	stats, err := svc.GetUserStats(user.ID)
	require.NoError(t, err)

	assert.Equal(t, int64(4), stats.Total)
	assert.Equal(t, int64(1), stats.NotStarted)
	assert.Equal(t, int64(1), stats.InProgress)
	assert.Equal(t, int64(1), stats.Achieved)
	assert.Equal(t, int64(1), stats.Expired)
	assert.Equal(t, int64(10), stats.TotalPoints)
	assert.InDelta(t, 25.0, stats.CompletionRate, 0.001)

	require.Len(t, stats.ByCategory, 4)
	byName := map[string]CategoryStats{}
	for _, c := range stats.ByCategory {
		byName[c.Category] = c
	}
	assert.Equal(t, int64(1), byName["Moments"].Achieved)
	assert.Equal(t, int64(10), byName["Moments"].Points)
	assert.Equal(t, int64(0), byName["Places"].Achieved)
}

func TestGetUserStatsEmptyLedger(t *testing.T) {
	db := newTestDB(t)
	svc := NewStatsService(db)
	user := createUser(t, db, "ada", false)

	stats, err := svc.GetUserStats(user.ID)
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
	assert.Zero(t, stats.CompletionRate)
	assert.Empty(t, stats.ByCategory)
}

func TestLeaderboardRanksByPoints(t *testing.T) {
	db := newTestDB(t)
	svc := NewStatsService(db)

	alice := createUser(t, db, "alice", false)
	bob := createUser(t, db, "bob", false)
	cara := createUser(t, db, "cara", false)

	def1 := createDefinition(t, db, models.AchievementDefinition{
		Name:      "A",
		Condition: models.ConditionSpec{Type: models.ConditionCount, Target: 1, Field: models.FieldMoments},
	})
	def2 := createDefinition(t, db, models.AchievementDefinition{
		Name:      "B",
		Condition: models.ConditionSpec{Type: models.ConditionCount, Target: 1, Field: models.FieldMoments},
	})

	now := time.Now().UTC()
	achievedRecord(t, db, alice.ID, def1.ID, 10, now.Add(-3*time.Hour))
	achievedRecord(t, db, alice.ID, def2.ID, 20, now.Add(-2*time.Hour))
	achievedRecord(t, db, bob.ID, def1.ID, 50, now.Add(-time.Hour))
	achievedRecord(t, db, cara.ID, def2.ID, 5, now)

	entries, err := svc.GetLeaderboard(MetricTotalPoints, PeriodAllTime, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, bob.ID, entries[0].UserID)
	assert.Equal(t, int64(50), entries[0].Points)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, alice.ID, entries[1].UserID)
	assert.Equal(t, int64(30), entries[1].Points)
	assert.Equal(t, cara.ID, entries[2].UserID)
	assert.Equal(t, 3, entries[2].Rank)
}

func TestLeaderboardTieBreaksOnEarliestAchievement(t *testing.T) {
	db := newTestDB(t)
	svc := NewStatsService(db)

	early := createUser(t, db, "early", false)
	late := createUser(t, db, "late", false)

	def := createDefinition(t, db, models.AchievementDefinition{
		Name:      "A",
		Condition: models.ConditionSpec{Type: models.ConditionCount, Target: 1, Field: models.FieldMoments},
	})

	now := time.Now().UTC()
	achievedRecord(t, db, late.ID, def.ID, 10, now)
	achievedRecord(t, db, early.ID, def.ID, 10, now.Add(-time.Hour))

	entries, err := svc.GetLeaderboard(MetricTotalPoints, PeriodAllTime, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, early.ID, entries[0].UserID)
	assert.Equal(t, late.ID, entries[1].UserID)
}

func TestLeaderboardWeekWindowExcludesOldWins(t *testing.T) {
	db := newTestDB(t)
	svc := NewStatsService(db)

	recent := createUser(t, db, "recent", false)
	veteran := createUser(t, db, "veteran", false)

	def1 := createDefinition(t, db, models.AchievementDefinition{
		Name:      "A",
		Condition: models.ConditionSpec{Type: models.ConditionCount, Target: 1, Field: models.FieldMoments},
	})
	def2 := createDefinition(t, db, models.AchievementDefinition{
		Name:      "B",
		Condition: models.ConditionSpec{Type: models.ConditionCount, Target: 1, Field: models.FieldMoments},
	})

	now := time.Now().UTC()
	// The veteran's big haul predates the window.
	achievedRecord(t, db, veteran.ID, def1.ID, 100, now.AddDate(0, 0, -30))
	achievedRecord(t, db, veteran.ID, def2.ID, 100, now.AddDate(0, 0, -20))
	achievedRecord(t, db, recent.ID, def1.ID, 10, now.AddDate(0, 0, -2))

	entries, err := svc.GetLeaderboard(MetricTotalPoints, PeriodWeek, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, recent.ID, entries[0].UserID)
	assert.Equal(t, int64(10), entries[0].Points)
}

func TestLeaderboardAchievementCountMetric(t *testing.T) {
	db := newTestDB(t)
	svc := NewStatsService(db)

	many := createUser(t, db, "many", false)
	big := createUser(t, db, "big", false)

	def1 := createDefinition(t, db, models.AchievementDefinition{
		Name:      "A",
		Condition: models.ConditionSpec{Type: models.ConditionCount, Target: 1, Field: models.FieldMoments},
	})
	def2 := createDefinition(t, db, models.AchievementDefinition{
		Name:      "B",
		Condition: models.ConditionSpec{Type: models.ConditionCount, Target: 1, Field: models.FieldMoments},
	})

	now := time.Now().UTC()
	achievedRecord(t, db, many.ID, def1.ID, 5, now.Add(-2*time.Hour))
	achievedRecord(t, db, many.ID, def2.ID, 5, now.Add(-time.Hour))
	achievedRecord(t, db, big.ID, def1.ID, 100, now)

	entries, err := svc.GetLeaderboard(MetricAchievementCount, PeriodAllTime, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, many.ID, entries[0].UserID)
	assert.Equal(t, int64(2), entries[0].Achievements)
}

func TestLeaderboardRejectsUnknownInputs(t *testing.T) {
	db := newTestDB(t)
	svc := NewStatsService(db)

	var validation *ValidationError
	_, err := svc.GetLeaderboard("karma", PeriodAllTime, 10)
	require.ErrorAs(t, err, &validation)

	_, err = svc.GetLeaderboard(MetricTotalPoints, "fortnight", 10)
	require.ErrorAs(t, err, &validation)
}
