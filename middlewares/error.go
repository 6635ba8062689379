package middlewares

import (
	"errors"

	"feeledger-backend/logger"
	"feeledger-backend/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ErrorHandler centralizes error responses and keeps messages sanitized.
// Engine errors carry their own taxonomy (validation / not found / conflict
// / integrity) and map onto stable HTTP codes here.
func ErrorHandler(c *fiber.Ctx, err error) error {
	// 1) Fiber errors (use their status code + message)
	if fe, ok := err.(*fiber.Error); ok {
		return c.Status(fe.Code).JSON(fiber.Map{"message": fe.Message})
	}

	// 2) Validator errors (422 + per-field info)
	if ve, ok := err.(validator.ValidationErrors); ok {
		out := make(map[string]string, len(ve))
		for _, fe := range ve {
			out[fe.Field()] = fe.Tag()
		}
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"message": "validation failed",
			"errors":  out,
		})
	}

	// 3) Engine errors
	var validation *services.ValidationError
	if errors.As(err, &validation) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"message": validation.Message,
			"field":   validation.Field,
		})
	}
	var notFound *services.NotFoundError
	if errors.As(err, &notFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": notFound.Error()})
	}
	var conflict *services.ConflictError
	if errors.As(err, &conflict) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"message": conflict.Error()})
	}
	var integrity *services.IntegrityError
	if errors.As(err, &integrity) {
		logger.L.Error("integrity failure", zap.String("op", integrity.Op), zap.Error(integrity.Err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "write failed mid-unit and was rolled back; retry the request",
		})
	}

	// 4) Unknown errors (500)
	logger.L.Error("internal error", zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"message": "internal server error",
	})
}
