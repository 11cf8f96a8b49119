package middleware

import (
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/postpilothq/postpilot/internal/ratelimit"
)

// RateLimitPolicy throttles a traffic surface with a fixed window per
// client IP.
type RateLimitPolicy struct {
	Name   string
	Window time.Duration
	Limit  int64
}

func RateLimit(policy RateLimitPolicy, store ratelimit.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if store == nil || policy.Limit <= 0 || policy.Window <= 0 {
			return c.Next()
		}

		key := fmt.Sprintf("rl:%s:%s", policy.Name, c.IP())
		allowed, count, err := ratelimit.Allow(c.Context(), store, key, policy.Window, policy.Limit)
		if err != nil {
			// Fail open: a broken counter shouldn't take the API down.
			log.Printf("Rate limit store error: %v", err)
			return c.Next()
		}

		if !allowed {
			log.Printf("Rate limit exceeded for %s on %s (%d/%d)", c.IP(), policy.Name, count, policy.Limit)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "rate limit exceeded",
			})
		}

		return c.Next()
	}
}
