package transport

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/credit-engine/internal/observability"
	"go.uber.org/zap"
)

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

// ErrorHandler renders handler errors as JSON. Client errors are logged at warn level and
// everything else at error level.
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			code = fiberErr.Code
		}

		requestID, _ := observability.CorrelationIDFromContext(c.UserContext())
		log := observability.WithContextLogger(logger, c.UserContext())
		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", code),
			zap.Error(err),
		}
		if code < fiber.StatusInternalServerError {
			log.Warn("request error", fields...)
		} else {
			log.Error("request error", fields...)
		}

		message := err.Error()
		if code == fiber.StatusInternalServerError && fiberErr == nil {
			message = "internal server error"
		}

		return c.Status(code).JSON(errorResponse{
			Error:     message,
			RequestID: requestID,
		})
	}
}
