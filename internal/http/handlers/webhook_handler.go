package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/gofiber/fiber/v2"
	"github.com/proxybuy/backend/internal/config"
	"github.com/proxybuy/backend/internal/http/dto"
	"github.com/proxybuy/backend/internal/services"
	"go.uber.org/zap"
)

type WebhookHandler struct {
	dealService *services.DealService
	cfg         *config.Config
	log         *zap.Logger
}

func NewWebhookHandler(dealService *services.DealService, cfg *config.Config, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{dealService: dealService, cfg: cfg, log: log}
}

// PaymentWebhook ingests the provider callback. Подпись — HMAC-SHA256 от
// сырого тела в X-Signature; без настроенного секрета проверка выключена.
func (h *WebhookHandler) PaymentWebhook(c *fiber.Ctx) error {
	if h.cfg.WebhookSecret != "" && !h.verifySignature(c.Body(), c.Get("X-Signature")) {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: "invalid signature"})
	}

	var req dto.PaymentWebhookRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := dto.Validate(req); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.dealService.RecordPaymentResult(c.Context(), req.ProviderReference, req.Status); err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *WebhookHandler) verifySignature(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(h.cfg.WebhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
