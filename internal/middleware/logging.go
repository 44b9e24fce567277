package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/example/stockroute/internal/logger"
	"github.com/example/stockroute/internal/metrics"
)

// RequestIDKey matches the fiber requestid middleware's default context key.
const RequestIDKey = "requestid"

// RequestLogger attaches request fields to the user context and logs one
// line per request once the handler chain (and the error handler) has run.
func RequestLogger(log *logger.Logger, m *metrics.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		fields := map[string]any{
			"method": c.Method(),
			"path":   c.Path(),
		}
		if rid, ok := c.Locals(RequestIDKey).(string); ok && rid != "" {
			fields["request_id"] = rid
		}
		c.SetUserContext(log.WithFields(c.UserContext(), fields))

		chainErr := c.Next()
		if chainErr != nil {
			if err := c.App().ErrorHandler(c, chainErr); err != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		took := time.Since(start)
		m.ObserveRequest(c.Method(), c.Route().Path, status, took)

		ctx := log.WithFields(c.UserContext(), map[string]any{
			"status":      status,
			"duration_ms": took.Milliseconds(),
		})
		log.Info(ctx, "request.complete")
		return nil
	}
}
