package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/proxybuy/backend/internal/config"
	"github.com/proxybuy/backend/internal/http/dto"
	"github.com/proxybuy/backend/internal/models"
	"github.com/proxybuy/backend/internal/repositories"
	"github.com/proxybuy/backend/internal/services"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type DealHandler struct {
	dealService *services.DealService
	cfg         *config.Config
	log         *zap.Logger
}

func NewDealHandler(dealService *services.DealService, cfg *config.Config, log *zap.Logger) *DealHandler {
	return &DealHandler{dealService: dealService, cfg: cfg, log: log}
}

func (h *DealHandler) CreateDeal(c *fiber.Ctx) error {
	var req dto.CreateDealRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := dto.Validate(req); err != nil {
		return badRequest(c, err.Error())
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		return badRequest(c, "invalid order_id")
	}
	buyerID, err := uuid.Parse(req.BuyerID)
	if err != nil {
		return badRequest(c, "invalid buyer_id")
	}

	deal, err := h.dealService.CreateDeal(c.Context(), services.CreateDealInput{
		OrderID:            orderID,
		BuyerID:            buyerID,
		CustomerTONAddress: req.CustomerTONAddress,
		BuyerTONAddress:    req.BuyerTONAddress,
		DeliveryMode:       req.DeliveryMode,
		ProviderReference:  req.ProviderReference,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: deal})
}

func (h *DealHandler) GetDeal(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid deal id")
	}

	view, err := h.dealService.GetDeal(c.Context(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: view})
}

// GetEscrowInfo отдаёт реквизиты контракта: фронт строит по ним
// ссылку на explorer и проверяет metadata hash.
func (h *DealHandler) GetEscrowInfo(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid deal id")
	}

	view, err := h.dealService.GetDeal(c.Context(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	if view.Onchain == nil {
		return respondError(c, h.log, repositories.ErrNotFound)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.EscrowInfoResponse{
		DealID:          view.Deal.ID.String(),
		ContractAddress: view.Onchain.ContractAddress,
		MetadataHashHex: view.Onchain.MetadataHashHex,
		EscrowTON:       view.Deal.EscrowTon().String(),
		Network:         h.cfg.TONNetwork,
	}})
}

func (h *DealHandler) ConfirmPurchase(c *fiber.Ctx) error {
	dealID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid deal id")
	}

	var req dto.ConfirmPurchaseRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := dto.Validate(req); err != nil {
		return badRequest(c, err.Error())
	}

	buyerID, err := uuid.Parse(req.BuyerID)
	if err != nil {
		return badRequest(c, "invalid buyer_id")
	}
	price, err := decimal.NewFromString(req.ActualPriceRub)
	if err != nil {
		return badRequest(c, "invalid actual_price_rub")
	}

	if err := h.dealService.BuyerConfirmPurchase(c.Context(), dealID, buyerID, price, req.EvidenceRefs); err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *DealHandler) CreateShipment(c *fiber.Ctx) error {
	dealID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid deal id")
	}

	var req dto.CreateShipmentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := dto.Validate(req); err != nil {
		return badRequest(c, err.Error())
	}

	buyerID, err := uuid.Parse(req.BuyerID)
	if err != nil {
		return badRequest(c, "invalid buyer_id")
	}

	in := services.CreateShipmentInput{
		TrackingNumber: req.TrackingNumber,
		Carrier:        req.Carrier,
	}
	if req.ActualShippingCostRub != nil {
		cost, derr := decimal.NewFromString(*req.ActualShippingCostRub)
		if derr != nil {
			return badRequest(c, "invalid actual_shipping_cost_rub")
		}
		in.ActualShippingCostRub = &cost
	}

	if err := h.dealService.BuyerCreateShipment(c.Context(), dealID, buyerID, in); err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *DealHandler) ConfirmDelivery(c *fiber.Ctx) error {
	dealID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid deal id")
	}

	var req dto.ConfirmDeliveryRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := dto.Validate(req); err != nil {
		return badRequest(c, err.Error())
	}

	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		return badRequest(c, "invalid customer_id")
	}

	result, err := h.dealService.CustomerConfirmDelivery(c.Context(), dealID, customerID)
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: result})
}

func (h *DealHandler) OpenDispute(c *fiber.Ctx) error {
	dealID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid deal id")
	}

	var req dto.OpenDisputeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := dto.Validate(req); err != nil {
		return badRequest(c, err.Error())
	}
	if !models.IsValidDisputeReason(req.ReasonCode) {
		return badRequest(c, "unknown reason_code")
	}

	openerID, err := uuid.Parse(req.OpenedByID)
	if err != nil {
		return badRequest(c, "invalid opened_by_id")
	}

	dispute, err := h.dealService.OpenDispute(c.Context(), dealID, openerID, req.ActorType, req.ReasonCode, req.Description)
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: dispute})
}

func (h *DealHandler) ResolveDispute(c *fiber.Ctx) error {
	disputeID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid dispute id")
	}

	var req dto.ResolveDisputeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := dto.Validate(req); err != nil {
		return badRequest(c, err.Error())
	}

	arbiterID, err := uuid.Parse(req.ArbiterID)
	if err != nil {
		return badRequest(c, "invalid arbiter_id")
	}

	if err := h.dealService.ResolveDispute(c.Context(), disputeID, arbiterID, req.Resolution); err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true})
}
