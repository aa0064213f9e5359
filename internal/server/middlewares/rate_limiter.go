package middleware

import (
	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

// RateLimiter rejects requests beyond the configured rate with 429. One
// limiter covers the whole service; the store behind it is shared anyway.
func RateLimiter(rps float64, burst int) fiber.Handler {
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return func(c *fiber.Ctx) error {
		if !limiter.Allow() {
			return fiber.NewError(fiber.StatusTooManyRequests, "rate limit exceeded")
		}
		return c.Next()
	}
}
