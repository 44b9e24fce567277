package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
)

// SuperuserHeader carries the server configured bypass secret.
const SuperuserHeader = "X-Admin-Id"

const superuserContextKey = "superuser"

// Superuser marks the request when it presents the configured secret. An
// empty secret disables the bypass entirely.
func Superuser(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		presented := c.Get(SuperuserHeader)
		if secret != "" && presented != "" &&
			subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) == 1 {
			c.Locals(superuserContextKey, true)
		}
		return c.Next()
	}
}

// IsSuperuser reports whether Superuser accepted the request's secret.
func IsSuperuser(c *fiber.Ctx) bool {
	ok, _ := c.Locals(superuserContextKey).(bool)
	return ok
}
