package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/proxybuy/backend/internal/http/dto"
	"github.com/proxybuy/backend/internal/middleware"
	"github.com/proxybuy/backend/internal/repositories"
	"github.com/proxybuy/backend/internal/services"
	"github.com/proxybuy/backend/internal/ton"
	"go.uber.org/zap"
)

// respondError maps the service error taxonomy onto HTTP statuses. Chain
// problems are 502: клиент ничего не сломал, повторить можно позже.
func respondError(c *fiber.Ctx, log *zap.Logger, err error) error {
	reqID, _ := c.Locals(middleware.CtxRequestID).(string)

	var verr *services.ValidationError
	if errors.As(err, &verr) {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: verr.Reason, RequestID: reqID})
	}

	var serr *services.StaleStateError
	if errors.As(err, &serr) {
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: err.Error(), RequestID: reqID})
	}

	if errors.Is(err, repositories.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "not found", RequestID: reqID})
	}

	var uerr *services.EscrowUnderfundedError
	var cerr *ton.ChainError
	if errors.As(err, &uerr) || errors.As(err, &cerr) {
		log.Error("chain operation failed", zap.String("request_id", reqID), zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Error: "on-chain operation failed, retry later", RequestID: reqID})
	}

	log.Error("request failed", zap.String("request_id", reqID), zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error", RequestID: reqID})
}

func badRequest(c *fiber.Ctx, msg string) error {
	reqID, _ := c.Locals(middleware.CtxRequestID).(string)
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: msg, RequestID: reqID})
}
