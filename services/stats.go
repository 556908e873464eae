// services/stats.go - Read-only summaries and leaderboards
package services

import (
	"time"

	"lifelog/models"

	"gorm.io/gorm"
)

// StatsService computes derived views over the progress ledger. Everything
// here is read-only and eventually consistent with the ledger.
type StatsService struct {
	db *gorm.DB
}

func NewStatsService(db *gorm.DB) *StatsService {
	return &StatsService{db: db}
}

// CategoryStats is one slice of the per-category breakdown.
type CategoryStats struct {
	Category string `json:"category"`
	Total    int64  `json:"total"`
	Achieved int64  `json:"achieved"`
	Points   int64  `json:"points"`
}

// UserStats is the per-user achievement summary.
type UserStats struct {
	Total          int64           `json:"total"`
	NotStarted     int64           `json:"not_started"`
	InProgress     int64           `json:"in_progress"`
	Achieved       int64           `json:"achieved"`
	Expired        int64           `json:"expired"`
	TotalPoints    int64           `json:"total_points"`
	CompletionRate float64         `json:"completion_rate"`
	ByCategory     []CategoryStats `json:"by_category"`
}

// GetUserStats aggregates the user's ledger: counts per status, summed
// snapshot points for achieved records, completion rate and a per-category
// breakdown.
func (s *StatsService) GetUserStats(userID uint) (*UserStats, error) {
	stats := &UserStats{ByCategory: []CategoryStats{}}

	type statusCount struct {
		Status models.ProgressStatus
		N      int64
	}
	var counts []statusCount
	err := s.db.Model(&models.ProgressRecord{}).
		Select("status, COUNT(*) as n").
		Where("user_id = ?", userID).
		Group("status").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}

	for _, c := range counts {
		stats.Total += c.N
		switch c.Status {
		case models.StatusNotStarted:
			stats.NotStarted = c.N
		case models.StatusInProgress:
			stats.InProgress = c.N
		case models.StatusAchieved:
			stats.Achieved = c.N
		case models.StatusExpired:
			stats.Expired = c.N
		}
	}

	err = s.db.Model(&models.ProgressRecord{}).
		Select("COALESCE(SUM(snapshot_points), 0)").
		Where("user_id = ? AND status = ?", userID, models.StatusAchieved).
		Scan(&stats.TotalPoints).Error
	if err != nil {
		return nil, err
	}

	if stats.Total > 0 {
		stats.CompletionRate = float64(stats.Achieved) / float64(stats.Total) * 100
	}

	err = s.db.Model(&models.ProgressRecord{}).
		Select(`achievement_definitions.category as category,
			COUNT(*) as total,
			SUM(CASE WHEN progress_records.status = ? THEN 1 ELSE 0 END) as achieved,
			COALESCE(SUM(CASE WHEN progress_records.status = ? THEN progress_records.snapshot_points ELSE 0 END), 0) as points`,
			models.StatusAchieved, models.StatusAchieved).
		Joins("JOIN achievement_definitions ON achievement_definitions.id = progress_records.definition_id").
		Where("progress_records.user_id = ?", userID).
		Group("achievement_definitions.category").
		Order("achievement_definitions.category").
		Scan(&stats.ByCategory).Error
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// Leaderboard metrics and periods.
const (
	MetricTotalPoints      = "total_points"
	MetricAchievementCount = "achievement_count"

	PeriodAllTime = "all_time"
	PeriodWeek    = "week"
	PeriodMonth   = "month"
	PeriodYear    = "year"
)

// LeaderboardEntry is one ranked row.
type LeaderboardEntry struct {
	Rank          int        `json:"rank"`
	UserID        uint       `json:"user_id"`
	Username      string     `json:"username"`
	Avatar        string     `json:"avatar"`
	Points        int64      `json:"points"`
	Achievements  int64      `json:"achievements"`
	FirstAchieved *time.Time `json:"first_achieved,omitempty"`
}

// GetLeaderboard ranks users by the metric computed over records whose
// achieved_at falls in the period. Ties break toward the earliest
// achievement.
func (s *StatsService) GetLeaderboard(metric, period string, limit int) ([]LeaderboardEntry, error) {
	switch metric {
	case MetricTotalPoints, MetricAchievementCount:
	case "":
		metric = MetricTotalPoints
	default:
		return nil, &ValidationError{Msg: "unknown leaderboard metric: " + metric}
	}

	since, err := periodStart(period, time.Now())
	if err != nil {
		return nil, err
	}

	if limit <= 0 || limit > 100 {
		limit = 100
	}

	q := s.db.Model(&models.ProgressRecord{}).
		Select(`progress_records.user_id as user_id,
			users.username as username,
			users.avatar as avatar,
			COALESCE(SUM(progress_records.snapshot_points), 0) as points,
			COUNT(*) as achievements,
			MIN(progress_records.achieved_at) as first_achieved`).
		Joins("JOIN users ON users.id = progress_records.user_id").
		Where("progress_records.status = ?", models.StatusAchieved).
		Group("progress_records.user_id, users.username, users.avatar").
		Limit(limit)

	if since != nil {
		q = q.Where("progress_records.achieved_at >= ?", *since)
	}

	if metric == MetricAchievementCount {
		q = q.Order("achievements DESC, first_achieved ASC")
	} else {
		q = q.Order("points DESC, first_achieved ASC")
	}

	var entries []LeaderboardEntry
	if err := q.Scan(&entries).Error; err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

func periodStart(period string, now time.Time) (*time.Time, error) {
	switch period {
	case PeriodAllTime, "":
		return nil, nil
	case PeriodWeek:
		t := now.AddDate(0, 0, -7)
		return &t, nil
	case PeriodMonth:
		t := now.AddDate(0, -1, 0)
		return &t, nil
	case PeriodYear:
		t := now.AddDate(-1, 0, 0)
		return &t, nil
	}
	return nil, &ValidationError{Msg: "unknown leaderboard period: " + period}
}
