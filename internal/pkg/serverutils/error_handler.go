package serverutils

import (
	"errors"

	"doc-qa-be/pkg/rag"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandlerMiddleware maps domain errors onto HTTP statuses so
// controllers can return errors as-is.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return ctx.Status(fiberErr.Code).JSON(ErrorResponse(fiberErr.Code, fiberErr.Message))
		}

		code := fiber.StatusInternalServerError
		switch {
		case errors.Is(err, rag.ErrInvalidOptions), errors.Is(err, rag.ErrEmptyDocument):
			code = fiber.StatusBadRequest
		case errors.Is(err, rag.ErrProviderTimeout):
			code = fiber.StatusGatewayTimeout
		case errors.Is(err, rag.ErrProviderUnavailable):
			code = fiber.StatusServiceUnavailable
		case errors.Is(err, rag.ErrIndexSearch):
			code = fiber.StatusBadGateway
		}

		return ctx.Status(code).JSON(ErrorResponse(code, err.Error()))
	}
}
