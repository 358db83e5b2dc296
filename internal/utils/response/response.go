package response

import (
	"errors"

	errs "paylock/internal/errors"

	"github.com/gofiber/fiber/v2"
)

func Success(c *fiber.Ctx, message string, data interface{}) error {
	return c.JSON(fiber.Map{
		"message": message,
		"data":    data,
	})
}

func Error(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": message,
	})
}

func BadRequest(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusBadRequest, message)
}

func ServerError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusInternalServerError, message)
}

func NotFound(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusNotFound, message)
}

// Domain maps a service error onto the API contract: validation and state
// conflicts are client errors, missing entities are 404, exhausted retries
// and gateway failures are retryable server errors.
func Domain(c *fiber.Ctx, err error) error {
	var dErr *errs.DomainError
	if !errors.As(err, &dErr) {
		return ServerError(c, err.Error())
	}
	switch dErr.Code {
	case errs.CodeValidation:
		return BadRequest(c, dErr.Message)
	case errs.CodeNotFound:
		return NotFound(c, dErr.Message)
	case errs.CodeStateConflict:
		return Error(c, fiber.StatusConflict, dErr.Message)
	case errs.CodeDuplicateEvent:
		return Success(c, dErr.Message, nil)
	default:
		// DEADLOCK_EXHAUSTED, GATEWAY_FAILED: transient, safe to retry.
		return ServerError(c, dErr.Message)
	}
}
