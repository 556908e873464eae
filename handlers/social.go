// handlers/social.go
package handlers

import (
	"fmt"
	"log"

	"lifelog/database"
	"lifelog/middleware"
	"lifelog/models"
	"lifelog/services"

	"github.com/gofiber/fiber/v2"
)

type InteractionRequest struct {
	PeerID uint   `json:"peer_id"`
	Kind   string `json:"kind"`
}

var interactionKinds = map[string]bool{"share": true, "comment": true, "reaction": true}

// CreateInteraction records a share/comment/reaction on a moment and feeds
// the social_interaction event into the achievement engine.
// POST /api/moments/:id/interactions
func CreateInteraction(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": err.Error()})
	}

	momentID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid moment id"})
	}

	var req InteractionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if !interactionKinds[req.Kind] {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid interaction kind"})
	}

	db := database.GetDB()

	var moment models.Moment
	if err := db.First(&moment, momentID).Error; err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "Moment not found"})
	}

	mid := moment.ID
	interaction := models.SocialInteraction{
		UserID:   userID,
		PeerID:   req.PeerID,
		Kind:     req.Kind,
		MomentID: &mid,
	}
	if err := db.Create(&interaction).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to record interaction"})
	}

	svc := services.NewAchievementService(db, nil)
	result, procErr := svc.ProcessEvent(c.Context(), userID, services.Event{
		Type:              models.EventSocialInteraction,
		RelatedEntityID:   fmt.Sprintf("interaction:%d", interaction.ID),
		RelatedEntityType: "interaction",
	})

	response := fiber.Map{
		"success":     true,
		"interaction": interaction,
	}
	if procErr != nil {
		log.Printf("⚠️ achievement pass for interaction %d failed: %v", interaction.ID, procErr)
	} else {
		response["achievements"] = fiber.Map{
			"updated_count":   result.UpdatedCount,
			"newly_completed": result.NewlyCompleted,
			"failed":          result.Failed,
		}
	}
	return c.Status(201).JSON(response)
}
