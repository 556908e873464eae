// handlers/errors.go - Service error to HTTP status mapping
package handlers

import (
	"errors"

	"lifelog/services"

	"github.com/gofiber/fiber/v2"
)

// serviceError renders a typed service error with its HTTP status.
func serviceError(c *fiber.Ctx, err error) error {
	var (
		validation *services.ValidationError
		notFound   *services.NotFoundError
		permission *services.PermissionError
		conflict   *services.ConflictError
		evaluation *services.ConditionEvaluationError
	)

	status := 500
	switch {
	case errors.As(err, &validation), errors.As(err, &evaluation):
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
