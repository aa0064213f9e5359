package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// RequestIDKey is the locals key under which the per-request ID is stored.
const RequestIDKey = "requestID"

// RequestID assigns every request a UUID for log correlation.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(RequestIDKey, uuid.NewString())
		return c.Next()
	}
}
