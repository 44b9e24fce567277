package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/example/stockroute/internal/apperr"
	"github.com/example/stockroute/internal/logger"
)

// ErrorHandler renders every error as {"success": false, "error": {...}}.
// Internal failures are logged in full and reach the client only as the
// generic public message.
func ErrorHandler(log *logger.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code, status, message, details := classify(err)

		if status >= fiber.StatusInternalServerError {
			log.Error(c.UserContext(), "request failed", err)
		}

		return c.Status(status).JSON(fiber.Map{
			"success": false,
			"error": fiber.Map{
				"code":    code,
				"message": message,
				"details": details,
			},
		})
	}
}

func classify(err error) (apperr.Code, int, string, any) {
	if typed := apperr.As(err); typed != nil {
		meta := apperr.MetadataFor(typed.Code())
		message := meta.PublicMessage
		if meta.ExposeMessage && typed.Message() != "" {
			message = typed.Message()
		}
		return typed.Code(), meta.HTTPStatus, message, typed.Details()
	}

	var fe *fiber.Error
	if errors.As(err, &fe) {
		return codeForStatus(fe.Code), fe.Code, fe.Message, nil
	}

	meta := apperr.MetadataFor(apperr.CodeInternal)
	return apperr.CodeInternal, meta.HTTPStatus, meta.PublicMessage, nil
}

func codeForStatus(status int) apperr.Code {
	switch status {
	case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity, fiber.StatusRequestEntityTooLarge:
		return apperr.CodeValidation
	case fiber.StatusUnauthorized:
		return apperr.CodeUnauthorized
	case fiber.StatusForbidden:
		return apperr.CodeForbidden
	case fiber.StatusNotFound, fiber.StatusMethodNotAllowed:
		return apperr.CodeNotFound
	case fiber.StatusConflict:
		return apperr.CodeConflict
	case fiber.StatusTooManyRequests:
		return apperr.CodeRateLimit
	}
	if status >= fiber.StatusInternalServerError {
		return apperr.CodeInternal
	}
	return apperr.CodeValidation
}
