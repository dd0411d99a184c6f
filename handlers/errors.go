package handlers

import (
	"errors"

	"content-unlock-service/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// renderError maps engine errors onto responses the front-end can branch on.
// Unexpected failures get a generic "try again" and are logged here.
func renderError(c *fiber.Ctx, log *zap.Logger, err error) error {
	switch {
	case errors.Is(err, services.ErrInsufficientFunds):
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{"error": "insufficient_funds"})
	case errors.Is(err, services.ErrUnknownItem):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown_item"})
	case errors.Is(err, services.ErrAccountNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "account_not_found"})
	case errors.Is(err, services.ErrNotEntitled):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "not_purchased"})
	case errors.Is(err, services.ErrInvalidAmount), errors.Is(err, services.ErrInvalidTransition):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "cause": err.Error()})
	case errors.Is(err, services.ErrStoreUnavailable):
		log.Warn("[API] store unavailable", zap.String("path", c.Path()), zap.Error(err))
		c.Set(fiber.HeaderRetryAfter, "1")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "temporarily_unavailable"})
	default:
		log.Error("[API] request failed", zap.String("path", c.Path()), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "something went wrong, try again"})
	}
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}
