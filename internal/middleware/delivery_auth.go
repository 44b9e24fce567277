package middleware

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/example/stockroute/internal/apperr"
	"github.com/example/stockroute/internal/models"
)

const partnerContextKey = "currentPartner"

// PartnerAuthenticator resolves an opaque session token.
type PartnerAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*models.DeliveryPartner, error)
}

// DeliveryAuth guards delivery partner routes. The token and the partner's
// status are checked against the database on every request.
func DeliveryAuth(auth PartnerAuthenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := bearerToken(c)
		if err != nil {
			return err
		}

		partner, err := auth.Authenticate(c.UserContext(), token)
		if err != nil {
			return err
		}

		c.Locals(partnerContextKey, partner)
		return c.Next()
	}
}

// CurrentPartner returns the partner loaded by DeliveryAuth.
func CurrentPartner(c *fiber.Ctx) (*models.DeliveryPartner, error) {
	partner, ok := c.Locals(partnerContextKey).(*models.DeliveryPartner)
	if !ok || partner == nil {
		return nil, apperr.New(apperr.CodeUnauthorized, "delivery session required")
	}
	return partner, nil
}
