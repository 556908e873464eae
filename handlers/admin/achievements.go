// handlers/admin/achievements.go - Catalog management endpoints
package admin

import (
	"errors"

	"lifelog/database"
	"lifelog/middleware"
	"lifelog/services"

	"github.com/gofiber/fiber/v2"
)

// GetAchievements returns the full catalog.
// GET /api/admin/achievements
func GetAchievements(c *fiber.Ctx) error {
	defs, err := services.NewCatalogService(database.GetDB()).ListDefinitions()
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(fiber.Map{
		"success":      true,
		"achievements": defs,
		"total":        len(defs),
	})
}

// CreateAchievement publishes a new definition.
// POST /api/admin/achievements
func CreateAchievement(c *fiber.Ctx) error {
	actorID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": err.Error()})
	}

	var input services.DefinitionInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request body"})
	}

	def, err := services.NewCatalogService(database.GetDB()).CreateDefinition(actorID, input)
	if err != nil {
		return mapError(c, err)
	}
	return c.Status(201).JSON(fiber.Map{
		"success":     true,
		"achievement": def,
	})
}

// UpdateAchievement edits descriptive metadata of a definition.
// PUT /api/admin/achievements/:id
func UpdateAchievement(c *fiber.Ctx) error {
	actorID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": err.Error()})
	}
	defID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid achievement id"})
	}

	// Rejecting semantic edits up front keeps published conditions
	// immutable.
	var raw map[string]interface{}
	if err := c.BodyParser(&raw); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request body"})
	}
	for _, key := range []string{"type", "target", "field", "condition"} {
		if _, ok := raw[key]; ok {
			return c.Status(400).JSON(fiber.Map{"error": "Condition type and target cannot be changed after publish"})
		}
	}

	var upd services.DefinitionUpdate
	if err := c.BodyParser(&upd); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request body"})
	}

	def, err := services.NewCatalogService(database.GetDB()).UpdateDefinition(actorID, uint(defID), upd)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(fiber.Map{
		"success":     true,
		"achievement": def,
	})
}

// DeleteAchievement retires a definition and cascades over its records.
// DELETE /api/admin/achievements/:id
func DeleteAchievement(c *fiber.Ctx) error {
	actorID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": err.Error()})
	}
	defID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid achievement id"})
	}

	if err := services.NewCatalogService(database.GetDB()).RetireDefinition(actorID, uint(defID)); err != nil {
		return mapError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Achievement retired",
	})
}

type GrantRequest struct {
	UserID uint   `json:"user_id"`
	Reason string `json:"reason"`
}

// GrantAchievement force-completes a user's record.
// POST /api/admin/achievements/:id/grant
func GrantAchievement(c *fiber.Ctx) error {
	actorID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": err.Error()})
	}
	defID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid achievement id"})
	}

	var req GrantRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.UserID == 0 {
		return c.Status(400).JSON(fiber.Map{"error": "user_id is required"})
	}

	rec, err := services.NewCatalogService(database.GetDB()).
		GrantAchievement(actorID, req.UserID, uint(defID), req.Reason)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"record":  rec,
	})
}

// BackfillAchievement creates records for all existing users.
// POST /api/admin/achievements/:id/backfill
func BackfillAchievement(c *fiber.Ctx) error {
	actorID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": err.Error()})
	}
	defID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid achievement id"})
	}

	created, err := services.NewCatalogService(database.GetDB()).BackfillDefinition(actorID, uint(defID))
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"created": created,
	})
}

func mapError(c *fiber.Ctx, err error) error {
	var (
		validation *services.ValidationError
		notFound   *services.NotFoundError
		permission *services.PermissionError
		conflict   *services.ConflictError
	)

	status := 500
	switch {
	case errors.As(err, &validation):
		status = 400
	case errors.As(err, &permission):
		status = 403
	case errors.As(err, &notFound):
		status = 404
	case errors.As(err, &conflict):
		status = 409
	}

	msg := err.Error()
	if status == 500 {
		msg = "Internal server error"
	}
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   msg,
	})
}
