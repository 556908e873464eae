// handlers/moments.go
package handlers

import (
	"fmt"
	"log"
	"time"

	"lifelog/database"
	"lifelog/middleware"
	"lifelog/models"
	"lifelog/services"

	"github.com/gofiber/fiber/v2"
)

type CreateMomentRequest struct {
	ProfileID  uint       `json:"profile_id"`
	Type       string     `json:"type"`
	Text       string     `json:"text"`
	MediaURL   string     `json:"media_url"`
	Location   string     `json:"location"`
	Mood       string     `json:"mood"`
	CapturedAt *time.Time `json:"captured_at,omitempty"`
}

var momentTypes = map[string]bool{"text": true, "photo": true, "video": true, "audio": true}

// CreateMoment persists a moment and synchronously feeds the resulting
// domain events into the achievement engine.
// POST /api/moments
func CreateMoment(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": err.Error()})
	}

	var req CreateMomentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Type == "" {
		req.Type = "text"
	}
	if !momentTypes[req.Type] {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid moment type"})
	}

	db := database.GetDB()

	var profile models.Profile
	if err := db.Where("id = ? AND user_id = ?", req.ProfileID, userID).First(&profile).Error; err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "Profile not found"})
	}

	capturedAt := time.Now()
	if req.CapturedAt != nil {
		capturedAt = *req.CapturedAt
	}

	moment := models.Moment{
		UserID:     userID,
		ProfileID:  req.ProfileID,
		Type:       req.Type,
		Text:       req.Text,
		MediaURL:   req.MediaURL,
		Location:   req.Location,
		Mood:       req.Mood,
		CapturedAt: capturedAt,
	}
	if err := db.Create(&moment).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to create moment"})
	}

	// Achievement pass runs after the write; its failures never undo the
	// moment itself.
	svc := services.NewAchievementService(db, nil)
	entityID := fmt.Sprintf("moment:%d", moment.ID)

	result, procErr := svc.ProcessEvent(c.Context(), userID, services.Event{
		Type:              models.EventMomentCreated,
		Timestamp:         capturedAt,
		RelatedEntityID:   entityID,
		RelatedEntityType: "moment",
	})
	if procErr == nil && moment.Location != "" {
		locResult, err := svc.ProcessEvent(c.Context(), userID, services.Event{
			Type:              models.EventLocationVisited,
			Timestamp:         capturedAt,
			RelatedEntityID:   entityID,
			RelatedEntityType: "moment",
		})
		if err == nil {
			result.UpdatedCount += locResult.UpdatedCount
			result.NewlyCompleted = append(result.NewlyCompleted, locResult.NewlyCompleted...)
			result.Failed = append(result.Failed, locResult.Failed...)
		}
	}

	response := fiber.Map{
		"success": true,
		"moment":  moment,
	}
	if procErr != nil {
		log.Printf("⚠️ achievement pass for moment %d failed: %v", moment.ID, procErr)
	} else {
		response["achievements"] = fiber.Map{
			"updated_count":   result.UpdatedCount,
			"newly_completed": result.NewlyCompleted,
			"failed":          result.Failed,
		}
	}
	return c.Status(201).JSON(response)
}

// GetMoments lists the caller's moments, newest first.
// GET /api/moments?profile_id=&limit=&offset=
func GetMoments(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": err.Error()})
	}

	limit := parseIntDefault(c.Query("limit"), 50)
	if limit < 1 || limit > 100 {
		limit = 50
	}
	offset := parseIntDefault(c.Query("offset"), 0)
	if offset < 0 {
		offset = 0
	}

	q := database.GetDB().Where("user_id = ?", userID)
	if pid := parseIntDefault(c.Query("profile_id"), 0); pid > 0 {
		q = q.Where("profile_id = ?", pid)
	}

	var moments []models.Moment
	if err := q.Order("captured_at DESC").Limit(limit).Offset(offset).Find(&moments).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to fetch moments"})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"moments": moments,
		"total":   len(moments),
	})
}
