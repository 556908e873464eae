// handlers/achievements.go
package handlers

import (
	"time"

	"lifelog/database"
	"lifelog/middleware"
	"lifelog/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type CheckAchievementsRequest struct {
	EventType         string                 `json:"event_type"`
	Timestamp         *time.Time             `json:"timestamp,omitempty"`
	RelatedEntityID   string                 `json:"related_entity_id"`
	RelatedEntityType string                 `json:"related_entity_type"`
	Payload           map[string]interface{} `json:"payload,omitempty"`
}

// CheckAchievements feeds one domain event into the achievement engine.
// POST /api/achievements/check
func CheckAchievements(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": err.Error()})
	}

	var req CheckAchievementsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.EventType == "" {
		return c.Status(400).JSON(fiber.Map{"error": "event_type is required"})
	}

	// Without a caller-supplied entity id each check is its own occurrence;
	// a generated id keeps the history traceable.
	if req.RelatedEntityID == "" {
		req.RelatedEntityID = "check:" + uuid.NewString()
	}

	event := services.Event{
		Type:              req.EventType,
		RelatedEntityID:   req.RelatedEntityID,
		RelatedEntityType: req.RelatedEntityType,
		Payload:           req.Payload,
	}
	if req.Timestamp != nil {
		event.Timestamp = *req.Timestamp
	}

	svc := services.NewAchievementService(database.GetDB(), nil)
	result, err := svc.ProcessEvent(c.Context(), userID, event)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{
		"success":         true,
		"updated_count":   result.UpdatedCount,
		"newly_completed": result.NewlyCompleted,
		"failed":          result.Failed,
	})
}

// GetUserAchievements lists the caller's progress records.
// GET /api/achievements?status=&category=
func GetUserAchievements(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": err.Error()})
	}

	svc := services.NewAchievementService(database.GetDB(), nil)
	records, err := svc.GetUserAchievements(userID, services.AchievementFilters{
		Status:   c.Query("status"),
		Category: c.Query("category"),
	})
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{
		"success":      true,
		"achievements": records,
		"total":        len(records),
	})
}

// GetUserStats returns the caller's achievement summary.
// GET /api/achievements/stats
func GetUserStats(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": err.Error()})
	}

	stats, err := services.NewStatsService(database.GetDB()).GetUserStats(userID)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"stats":   stats,
	})
}

// GetCompletionEstimate projects when a record will complete.
// GET /api/achievements/:id/estimate
func GetCompletionEstimate(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": err.Error()})
	}

	recordID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid record id"})
	}

	svc := services.NewAchievementService(database.GetDB(), nil)
	rec, err := svc.GetRecord(userID, uint(recordID))
	if err != nil {
		return serviceError(c, err)
	}

	projected := services.EstimateCompletion(rec.History, rec.Target, time.Now())

	return c.JSON(fiber.Map{
		"success":             true,
		"record_id":           rec.ID,
		"current":             rec.Current,
		"target":              rec.Target,
		"percentage":          rec.Percentage,
		"remaining":           rec.Remaining(),
		"estimated_completed": projected,
	})
}

// ResetAchievement re-arms a repeatable achieved record.
// POST /api/achievements/:id/reset
func ResetAchievement(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": err.Error()})
	}

	defID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid definition id"})
	}

	svc := services.NewAchievementService(database.GetDB(), nil)
	if err := svc.ResetRecord(userID, uint(defID)); err != nil {
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{"success": true})
}
