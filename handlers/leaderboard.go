// handlers/leaderboard.go
package handlers

import (
	"strconv"

	"lifelog/database"
	"lifelog/services"

	"github.com/gofiber/fiber/v2"
)

// GetLeaderboard returns cross-user rankings.
// GET /api/leaderboard?metric=total_points&period=all_time&limit=100
func GetLeaderboard(c *fiber.Ctx) error {
	metric := c.Query("metric", services.MetricTotalPoints)
	period := c.Query("period", services.PeriodAllTime)
	limit := parseIntDefault(c.Query("limit"), 100)

	entries, err := services.NewStatsService(database.GetDB()).GetLeaderboard(metric, period, limit)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"entries": entries,
		"metric":  metric,
		"period":  period,
		"total":   len(entries),
	})
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}
