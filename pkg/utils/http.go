package utils

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/apperr"
)

// WriteError renders an error as the shared {message, statusCode} body.
// Internal errors are not leaked to callers.
func WriteError(c *fiber.Ctx, err error) error {
	status := apperr.HTTPStatus(err)

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}

	return c.Status(status).JSON(fiber.Map{
		"message":    message,
		"statusCode": status,
	})
}
