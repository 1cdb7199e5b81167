package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/snapcomposer/internal/api/middleware"
	"github.com/maheshrc27/snapcomposer/internal/transfer"
	apperrors "github.com/maheshrc27/snapcomposer/pkg/errors"
	"go.uber.org/zap"
)

func GetAccount(c *fiber.Ctx) string {
	account, _ := c.Locals(middleware.LocalAccount).(string)
	return account
}

func GetLedgerToken(c *fiber.Ctx) string {
	token, _ := c.Locals(middleware.LocalLedgerToken).(string)
	return token
}

func statusFor(err error) int {
	switch apperrors.GetKind(err) {
	case apperrors.ErrValidation:
		return fiber.StatusBadRequest
	case apperrors.ErrConflict:
		return fiber.StatusConflict
	case apperrors.ErrNotFound:
		return fiber.StatusNotFound
	case apperrors.ErrCredentialMissing:
		return fiber.StatusServiceUnavailable
	case apperrors.ErrPublishFailure:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// writeError logs the diagnostic cause and answers with the user message only.
func writeError(c *fiber.Ctx, logger *zap.Logger, err error) error {
	status := statusFor(err)
	fields := []zap.Field{
		zap.String("trace_id", middleware.GetTraceID(c)),
		zap.String("path", c.Path()),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= fiber.StatusInternalServerError {
		logger.Error("Request failed", fields...)
	} else {
		logger.Info("Request rejected", fields...)
	}

	return c.Status(status).JSON(transfer.ErrorResponse{Error: apperrors.GetMessage(err)})
}
