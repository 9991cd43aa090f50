package serverutils

import (
	"errors"

	"ai-triage-be/internal/dto"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandlerMiddleware maps service errors onto the wire format: every error
// response is {"error": "..."} with an appropriate status. Completion
// failures are a bad gateway (the upstream generation call failed); anything
// unclassified is a 500.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		if err == nil {
			return nil
		}

		var completionErr *dto.CompletionError
		if errors.As(err, &completionErr) {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": "Error generating response: " + completionErr.Error(),
			})
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(fiber.Map{
				"error": fiberErr.Message,
			})
		}

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
}
