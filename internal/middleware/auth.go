package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/example/stockroute/internal/apperr"
	"github.com/example/stockroute/internal/authz"
	"github.com/example/stockroute/internal/utils"
)

const actorContextKey = "currentActor"

// ShopAuth validates shop JWTs and loads the acting identity into context.
func ShopAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := bearerToken(c)
		if err != nil {
			return err
		}

		actor, err := utils.ParseToken(secret, token)
		if err != nil {
			return apperr.New(apperr.CodeUnauthorized, "invalid token")
		}

		c.Locals(actorContextKey, actor)
		return c.Next()
	}
}

// OptionalShopAuth loads the actor when a valid token is present and lets
// the request through either way.
func OptionalShopAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token, err := bearerToken(c); err == nil {
			if actor, err := utils.ParseToken(secret, token); err == nil {
				c.Locals(actorContextKey, actor)
			}
		}
		return c.Next()
	}
}

// CurrentActor extracts the authenticated shop actor from context.
func CurrentActor(c *fiber.Ctx) (authz.Actor, bool) {
	actor, ok := c.Locals(actorContextKey).(authz.Actor)
	return actor, ok
}

// RequireActor is CurrentActor for handlers mounted behind ShopAuth.
func RequireActor(c *fiber.Ctx) (authz.Actor, error) {
	actor, ok := CurrentActor(c)
	if !ok {
		return authz.Actor{}, apperr.New(apperr.CodeUnauthorized, "authentication required")
	}
	return actor, nil
}

func bearerToken(c *fiber.Ctx) (string, error) {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return "", apperr.New(apperr.CodeUnauthorized, "missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", apperr.New(apperr.CodeUnauthorized, "invalid authorization header")
	}
	return strings.TrimSpace(parts[1]), nil
}
