package middleware

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/example/stockroute/internal/apperr"
	"github.com/example/stockroute/internal/logger"
)

// WindowLimiter is satisfied by cache.Client.
type WindowLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// OTPThrottle limits how often one email may ask for a code. The limiter is
// optional and any limiter error lets the request through.
func OTPThrottle(limiter WindowLimiter, limit int, window time.Duration, log *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if limiter == nil || limit <= 0 {
			return c.Next()
		}

		var body struct {
			Email string `json:"email"`
		}
		_ = json.Unmarshal(c.Body(), &body)
		email := strings.ToLower(strings.TrimSpace(body.Email))
		if email == "" {
			return c.Next()
		}

		scope := "otp:" + c.Route().Path + ":" + email
		allowed, _, err := limiter.FixedWindowAllow(c.UserContext(), scope, int64(limit), window)
		if err != nil {
			log.Warn(c.UserContext(), "otp throttle unavailable", err)
			return c.Next()
		}
		if !allowed {
			return apperr.New(apperr.CodeRateLimit, "too many otp requests, try again later")
		}
		return c.Next()
	}
}
