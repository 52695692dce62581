package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/icupa/giomessaging/shared"
)

// Counter is the slice of the redis service the limiter needs.
type Counter interface {
	Increment(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// RateLimit is a fixed-window per-IP limiter. The window key rolls over when
// the redis TTL expires; a redis outage fails open so traffic is not dropped
// on a cache hiccup.
func RateLimit(counter Counter, name string, maxRequests int64, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := fmt.Sprintf("ratelimit:%s:%s", name, c.IP())

		count, err := counter.Increment(c.Context(), key)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Rate limit check failed")
			return c.Next()
		}
		if count == 1 {
			if err := counter.Expire(c.Context(), key, window); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("Failed to set rate limit window")
			}
		}

		if count > maxRequests {
			return shared.ResponseJSON(c, fiber.StatusTooManyRequests, "Too Many Requests", nil)
		}
		return c.Next()
	}
}
