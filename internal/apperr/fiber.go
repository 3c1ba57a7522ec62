package apperr

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// ToFiber maps engine errors onto HTTP responses. Conflicts answer 409 with
// both data payloads so the client can render a merge view.
func ToFiber(c *fiber.Ctx, err error) error {
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":    "version conflict",
			"conflict": conflict,
		})
	}
	var e *Error
	if errors.As(err, &e) {
		switch e.Kind {
		case KindNotFound:
			return fiber.NewError(fiber.StatusNotFound, e.Message)
		case KindValidation, KindIntegrity:
			return fiber.NewError(fiber.StatusUnprocessableEntity, e.Message)
		case KindTransient:
			return fiber.NewError(fiber.StatusServiceUnavailable, "temporarily unavailable, retry")
		}
	}
	return err
}
