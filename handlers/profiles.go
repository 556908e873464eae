// handlers/profiles.go
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

type ProfileRequest struct {
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Avatar string `json:"avatar"`
}

var profileKinds = map[string]bool{"self": true, "child": true, "pet": true, "trip": true, "other": true}

// CreateProfile adds a journal profile for the caller.
// POST /api/profiles
func CreateProfile(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": err.Error()})
	}

	var req ProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Name == "" {
		return c.Status(400).JSON(fiber.Map{"error": "Profile name is required"})
	}
	if req.Kind == "" {
		req.Kind = "self"
	}
	if !profileKinds[req.Kind] {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid profile kind"})
	}

	profile := models.Profile{
		UserID: userID,
		Name:   req.Name,
		Kind:   req.Kind,
		Avatar: req.Avatar,
	}
	if err := database.GetDB().Create(&profile).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to create profile"})
	}

	return c.Status(201).JSON(fiber.Map{
		"success": true,
		"profile": profile,
	})
}

// GetProfiles lists the caller's profiles.
// GET /api/profiles
func GetProfiles(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": err.Error()})
	}

	var profiles []models.Profile
	if err := database.GetDB().Where("user_id = ?", userID).Order("created_at ASC").Find(&profiles).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to fetch profiles"})
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"profiles": profiles,
	})
}

// UpdateProfile edits a profile and emits a profile_updated event.
// PUT /api/profiles/:id
func UpdateProfile(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": err.Error()})
	}

	profileID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid profile id"})
	}

	var req ProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request body"})
	}

	db := database.GetDB()
	var profile models.Profile
	if err := db.Where("id = ? AND user_id = ?", profileID, userID).First(&profile).Error; err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "Profile not found"})
	}

	if req.Name != "" {
		profile.Name = req.Name
	}
	if req.Kind != "" {
		if !profileKinds[req.Kind] {
			return c.Status(400).JSON(fiber.Map{"error": "Invalid profile kind"})
		}
		profile.Kind = req.Kind
	}
	if req.Avatar != "" {
		profile.Avatar = req.Avatar
	}

	if err := db.Save(&profile).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to update profile"})
	}

	// Achievement pass runs after the write; its failures never undo the
	// profile edit.
	svc := services.NewAchievementService(db, nil)
	result, procErr := svc.ProcessEvent(c.Context(), userID, services.Event{
		Type:              models.EventProfileUpdated,
		RelatedEntityID:   fmt.Sprintf("profile:%d:%d", profile.ID, profile.UpdatedAt.UnixNano()),
		RelatedEntityType: "profile",
	})

	response := fiber.Map{
		"success": true,
		"profile": profile,
	}
	if procErr != nil {
		log.Printf("⚠️ achievement pass for profile %d failed: %v", profile.ID, procErr)
	} else {
		response["achievements"] = fiber.Map{
			"updated_count":   result.UpdatedCount,
			"newly_completed": result.NewlyCompleted,
			"failed":          result.Failed,
		}
	}
	return c.JSON(response)
}
