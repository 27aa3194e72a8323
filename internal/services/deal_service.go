package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/proxybuy/backend/internal/config"
	"github.com/proxybuy/backend/internal/events"
	"github.com/proxybuy/backend/internal/models"
	"github.com/proxybuy/backend/internal/money"
	"github.com/proxybuy/backend/internal/repositories"
	"github.com/proxybuy/backend/internal/ton"
	"github.com/shopspring/decimal"
	"github.com/xssnick/tonutils-go/address"
	"go.uber.org/zap"
)

// Contract methods for lifecycle transitions.
const (
	chainMarkPurchased    = "mark_purchased"
	chainMarkShipped      = "mark_shipped"
	chainConfirmDelivery  = "confirm_delivery"
	chainOpenDispute      = "open_dispute"
	chainCancelBeforeBuy  = "cancel_before_purchase"
	chainCancelBeforeShip = "cancel_before_ship"
	chainAutoComplete     = "auto_complete"
	chainResolveDispute   = "resolve_dispute_" // + resolution
)

// EscrowOps is what the lifecycle machine needs from the chain side.
type EscrowOps interface {
	Deploy(ctx context.Context, deal *models.Deal, orderTitle string) (receipt *ton.DeployReceipt, metadataHashHex string, err error)
	EscrowAmountNano(deal *models.Deal) (*big.Int, error)
	Balance(ctx context.Context, addr string) (balanceNano *big.Int, initialized bool, err error)
	TopUp(ctx context.Context, addr string, amountNano *big.Int, memo string) error
	Invoke(ctx context.Context, addr, method string) error
	ContractStatus(ctx context.Context, addr string) (status string, ok bool, err error)
}

// DealService drives the deal state machine. Every guarded transition goes
// through transition(): валидность по таблице переходов, optimistic CC в БД,
// аудит и событие в Redis.
type DealService struct {
	deals     DealStore
	orders    OrderStore
	onchain   OnchainStore
	payments  PaymentStore
	disputes  DisputeStore
	shipments ShipmentStore
	audit     AuditStore

	escrow    EscrowOps
	rates     RateSource
	quoter    ShippingQuoter
	stores    StoreValidator
	contacts  ContactFilter
	publisher events.Publisher
	cfg       *config.Config
	log       *zap.Logger

	now func() time.Time
}

func NewDealService(
	deals DealStore,
	orders OrderStore,
	onchain OnchainStore,
	payments PaymentStore,
	disputes DisputeStore,
	shipments ShipmentStore,
	audit AuditStore,
	escrow EscrowOps,
	rates RateSource,
	quoter ShippingQuoter,
	stores StoreValidator,
	contacts ContactFilter,
	publisher events.Publisher,
	cfg *config.Config,
	log *zap.Logger,
) *DealService {
	return &DealService{
		deals:     deals,
		orders:    orders,
		onchain:   onchain,
		payments:  payments,
		disputes:  disputes,
		shipments: shipments,
		audit:     audit,
		escrow:    escrow,
		rates:     rates,
		quoter:    quoter,
		stores:    stores,
		contacts:  contacts,
		publisher: publisher,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// transition performs one guarded status change. The UPDATE is conditional
// on the expected current status; losing the race returns StaleStateError
// and the caller re-reads.
func (s *DealService) transition(ctx context.Context, deal *models.Deal, to string, actorID *uuid.UUID, actorType string) error {
	from := deal.Status
	if !models.IsValidTransition(from, to) {
		return validationf("transition %s -> %s is not allowed", from, to)
	}

	ok, err := s.deals.UpdateStatusIf(ctx, deal.ID, from, to)
	if err != nil {
		return err
	}
	if !ok {
		return &StaleStateError{DealID: deal.ID, From: from, To: to}
	}
	deal.Status = to

	_ = s.audit.Log(ctx, models.AuditLog{
		ActorID:    actorID,
		ActorType:  actorType,
		Action:     fmt.Sprintf("deal_status_%s_to_%s", from, to),
		EntityType: "deal",
		EntityID:   &deal.ID,
		Meta:       map[string]any{"old_status": from, "new_status": to},
	})
	_ = s.publisher.Publish(ctx, events.DealStream, events.Event{
		Type: events.EventDealStatusChanged,
		Payload: map[string]any{
			"deal_id":    deal.ID.String(),
			"old_status": from,
			"new_status": to,
		},
	})

	return nil
}

// reconcile re-reads the contract status after an on-chain call and, when
// it differs, overwrites the off-chain status unconditionally. Контракт —
// источник истины, как только OnchainDeal существует.
func (s *DealService) reconcile(ctx context.Context, deal *models.Deal, contractAddr string) {
	status, ok, err := s.escrow.ContractStatus(ctx, contractAddr)
	if err != nil {
		s.log.Warn("reconcile: contract status read failed",
			zap.String("deal_id", deal.ID.String()), zap.Error(err))
		return
	}
	if !ok || status == deal.Status {
		return
	}

	s.log.Warn("reconcile: off-chain status overwritten from contract",
		zap.String("deal_id", deal.ID.String()),
		zap.String("off_chain", deal.Status),
		zap.String("on_chain", status))

	if err := s.deals.UpdateStatus(ctx, deal.ID, status); err != nil {
		s.log.Error("reconcile: status overwrite failed",
			zap.String("deal_id", deal.ID.String()), zap.Error(err))
		return
	}
	deal.Status = status
	_ = s.onchain.Touch(ctx, deal.ID)
}

type CreateDealInput struct {
	OrderID            uuid.UUID
	BuyerID            uuid.UUID
	CustomerTONAddress string
	BuyerTONAddress    string
	DeliveryMode       string
	ProviderReference  string
}

// CreateDeal matches a buyer to an open order, snapshots all amounts and
// the exchange rate, claims the order and opens a pending payment. Ничего
// ончейн здесь не происходит — контракт появляется только после оплаты.
func (s *DealService) CreateDeal(ctx context.Context, in CreateDealInput) (*models.Deal, error) {
	if !models.IsValidDeliveryMode(in.DeliveryMode) {
		return nil, validationf("unknown delivery mode %q", in.DeliveryMode)
	}
	if _, err := address.ParseAddr(in.CustomerTONAddress); err != nil {
		return nil, validationf("customer TON address is invalid: %v", err)
	}
	if _, err := address.ParseAddr(in.BuyerTONAddress); err != nil {
		return nil, validationf("buyer TON address is invalid: %v", err)
	}
	if in.ProviderReference == "" {
		return nil, validationf("payment provider reference is required")
	}

	order, err := s.orders.GetByID(ctx, in.OrderID)
	if err != nil {
		return nil, validationf("order not found: %v", err)
	}
	if order.Status != models.OrderStatusOpen {
		return nil, validationf("order is %s, deals are created from open orders only", order.Status)
	}
	if !order.AllowsMode(in.DeliveryMode) {
		return nil, validationf("order does not allow delivery mode %q", in.DeliveryMode)
	}

	verdict, err := s.stores.Validate(ctx, order.StoreURL)
	if err != nil {
		return nil, err
	}
	if verdict != DomainVerified {
		return nil, validationf("store domain is %s, deals require a verified store", verdict)
	}

	shipAddr, err := s.orders.GetShippingAddress(ctx, in.OrderID)
	if err != nil {
		return nil, validationf("order has no shipping address on file")
	}

	shipping := decimal.Zero
	if models.IsMailMode(in.DeliveryMode) {
		shipping, err = s.quoter.Quote(ctx, order.OriginCountry, shipAddr.Country, order.WeightCategory, in.DeliveryMode)
		if err != nil {
			return nil, err
		}
	}

	rate, err := s.rates.Rate(ctx)
	if err != nil {
		return nil, err
	}

	if err := money.CheckNonNegative(order.MaxItemPriceRub, order.BuyerRewardRub, order.ServiceFeeRub, order.InsuranceRub, shipping); err != nil {
		return nil, validationf("order amounts: %v", err)
	}
	total := order.MaxItemPriceRub.Add(order.BuyerRewardRub).
		Add(order.ServiceFeeRub).Add(order.InsuranceRub).Add(shipping)

	toTon := func(rub decimal.Decimal) decimal.Decimal {
		t, _ := money.RubToTon(rub, rate)
		return t
	}

	now := s.now().UTC()
	deal := &models.Deal{
		OrderID:            order.ID,
		CustomerID:         order.CustomerID,
		BuyerID:            in.BuyerID,
		Status:             models.DealStatusNew,
		CustomerTONAddress: in.CustomerTONAddress,
		BuyerTONAddress:    in.BuyerTONAddress,

		ItemPriceMaxRub:   order.MaxItemPriceRub,
		BuyerRewardRub:    order.BuyerRewardRub,
		ServiceFeeRub:     order.ServiceFeeRub,
		InsuranceRub:      order.InsuranceRub,
		ShippingBudgetRub: shipping,
		TotalReservedRub:  money.RoundRub(total),

		RateRubPerTon:     rate,
		ItemPriceMaxTon:   toTon(order.MaxItemPriceRub),
		BuyerRewardTon:    toTon(order.BuyerRewardRub),
		ServiceFeeTon:     toTon(order.ServiceFeeRub),
		InsuranceTon:      toTon(order.InsuranceRub),
		ShippingBudgetTon: toTon(shipping),

		DeliveryMode:       in.DeliveryMode,
		WeightCategory:     order.WeightCategory,
		OriginCountry:      order.OriginCountry,
		DestinationCountry: shipAddr.Country,

		PurchaseDeadline: now.Add(s.cfg.PurchaseDeadline),
		ShipDeadline:     now.Add(s.cfg.ShipDeadline),
		ConfirmDeadline:  now.Add(s.cfg.ConfirmDeadline),
	}

	claimed, err := s.orders.UpdateStatusIf(ctx, order.ID, models.OrderStatusOpen, models.OrderStatusMatched)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, validationf("order was matched by another deal")
	}

	if err := s.deals.Create(ctx, deal); err != nil {
		// возвращаем заказ в пул
		if _, rerr := s.orders.UpdateStatusIf(ctx, order.ID, models.OrderStatusMatched, models.OrderStatusOpen); rerr != nil {
			s.log.Error("order revert failed", zap.String("order_id", order.ID.String()), zap.Error(rerr))
		}
		return nil, err
	}

	payment := &models.Payment{
		DealID:            deal.ID,
		ProviderReference: in.ProviderReference,
		AmountRub:         deal.TotalReservedRub,
		Status:            models.PaymentStatusPending,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, err
	}

	_ = s.audit.Log(ctx, models.AuditLog{
		ActorID:    &in.BuyerID,
		ActorType:  models.ActorTypeBuyer,
		Action:     "deal_created",
		EntityType: "deal",
		EntityID:   &deal.ID,
		Meta: map[string]any{
			"order_id":      order.ID.String(),
			"total_rub":     deal.TotalReservedRub.String(),
			"rate_rub_ton":  rate.String(),
			"delivery_mode": in.DeliveryMode,
		},
	})

	return deal, nil
}

// RecordPaymentResult applies a provider webhook. On SUCCESS the escrow
// contract is deployed, topped up and the deal moves NEW -> FUNDED. Деплой
// и фондирование — раздельные шаги: FUNDED ставится только после перевода.
func (s *DealService) RecordPaymentResult(ctx context.Context, providerRef, status string) error {
	payment, err := s.payments.GetByProviderReference(ctx, providerRef)
	if err != nil {
		return validationf("unknown payment reference %q", providerRef)
	}
	if payment.Status == status {
		return nil // повторная доставка вебхука
	}
	if payment.Status != models.PaymentStatusPending {
		return validationf("payment %s is already %s", payment.ID, payment.Status)
	}

	switch status {
	case models.PaymentStatusSuccess, models.PaymentStatusFailed:
	default:
		return validationf("unsupported payment status %q", status)
	}
	if err := s.payments.UpdateStatus(ctx, payment.ID, status); err != nil {
		return err
	}
	_ = s.publisher.Publish(ctx, events.DealStream, events.Event{
		Type: events.EventPaymentReceived,
		Payload: map[string]any{
			"deal_id": payment.DealID.String(),
			"status":  status,
		},
	})

	if status != models.PaymentStatusSuccess {
		return nil // сделка остаётся NEW и погаснет по таймауту
	}

	deal, err := s.deals.GetByID(ctx, payment.DealID)
	if err != nil {
		return err
	}
	if deal.Status != models.DealStatusNew {
		return nil
	}

	return s.fundDeal(ctx, deal)
}

// fundDeal deploys the contract if needed, transfers the escrow and moves
// the deal to FUNDED. Shared by the webhook path and the sweep retry.
func (s *DealService) fundDeal(ctx context.Context, deal *models.Deal) error {
	oc, err := s.onchain.GetByDealID(ctx, deal.ID)
	if errors.Is(err, repositories.ErrNotFound) {
		order, oerr := s.orders.GetByID(ctx, deal.OrderID)
		if oerr != nil {
			return oerr
		}

		receipt, hashHex, derr := s.escrow.Deploy(ctx, deal, order.Title)
		if derr != nil {
			return derr
		}

		oc = &models.OnchainDeal{
			DealID:          deal.ID,
			ContractAddress: receipt.ContractAddress,
			MetadataHashHex: hashHex,
		}
		if cerr := s.onchain.Create(ctx, oc); cerr != nil {
			if errors.Is(cerr, repositories.ErrAlreadyDeployed) {
				// конкурирующий воркер успел раньше; его путь доведёт сделку
				return nil
			}
			return cerr
		}

		_ = s.audit.Log(ctx, models.AuditLog{
			ActorType:  models.ActorTypeSystem,
			Action:     "escrow_deployed",
			EntityType: "deal",
			EntityID:   &deal.ID,
			Meta:       map[string]any{"contract_address": oc.ContractAddress},
		})
	} else if err != nil {
		return err
	}

	required, err := s.escrow.EscrowAmountNano(deal)
	if err != nil {
		return err
	}
	balance, _, err := s.escrow.Balance(ctx, oc.ContractAddress)
	if err != nil {
		return s.escrowUnderfunded(ctx, deal, oc.ContractAddress, err)
	}
	if missing := new(big.Int).Sub(required, balance); missing.Sign() > 0 {
		memo := fmt.Sprintf("deal:%s", deal.ID)
		if terr := s.escrow.TopUp(ctx, oc.ContractAddress, missing, memo); terr != nil {
			return s.escrowUnderfunded(ctx, deal, oc.ContractAddress, terr)
		}
	}

	if err := s.transition(ctx, deal, models.DealStatusFunded, nil, models.ActorTypeSystem); err != nil {
		return err
	}
	s.reconcile(ctx, deal, oc.ContractAddress)
	return nil
}

func (s *DealService) escrowUnderfunded(ctx context.Context, deal *models.Deal, addr string, cause error) error {
	_ = s.publisher.Publish(ctx, events.DealStream, events.Event{
		Type: events.EventEscrowUnderfunded,
		Payload: map[string]any{
			"deal_id":          deal.ID.String(),
			"contract_address": addr,
			"error":            cause.Error(),
		},
	})
	return &EscrowUnderfundedError{DealID: deal.ID, ContractAddress: addr, Err: cause}
}

// BuyerConfirmPurchase records the actual item price with evidence and
// moves FUNDED -> PURCHASED. Контракт вызывается до офчейн-записи: упал
// вызов — офчейн-статус не трогаем.
func (s *DealService) BuyerConfirmPurchase(ctx context.Context, dealID, buyerID uuid.UUID, actualPrice decimal.Decimal, evidenceRefs []string) error {
	deal, err := s.deals.GetByID(ctx, dealID)
	if err != nil {
		return err
	}
	if deal.BuyerID != buyerID {
		return validationf("only the assigned buyer can confirm purchase")
	}
	if deal.Status != models.DealStatusFunded {
		return validationf("deal is %s, purchase confirmation requires funded", deal.Status)
	}
	if !actualPrice.IsPositive() {
		return validationf("actual price must be positive")
	}
	if actualPrice.GreaterThan(deal.ItemPriceMaxRub) {
		return validationf("actual price %s exceeds the reserved cap %s",
			actualPrice.StringFixed(2), deal.ItemPriceMaxRub.StringFixed(2))
	}
	if len(evidenceRefs) == 0 {
		return validationf("purchase evidence is required")
	}
	if existing, _ := s.shipments.GetConfirmation(ctx, dealID); existing != nil {
		return validationf("purchase is already confirmed for this deal")
	}

	oc, err := s.onchain.GetByDealID(ctx, dealID)
	if err != nil {
		return fmt.Errorf("funded deal has no contract attachment: %w", err)
	}
	if err := s.escrow.Invoke(ctx, oc.ContractAddress, chainMarkPurchased); err != nil {
		return err
	}

	if err := s.deals.SetActualItemPrice(ctx, dealID, money.RoundRub(actualPrice)); err != nil {
		return err
	}
	deal.ActualItemPriceRub = decimal.NewNullDecimal(money.RoundRub(actualPrice))

	if err := s.shipments.CreateConfirmation(ctx, &models.PurchaseConfirmation{
		DealID:       dealID,
		ActualPrice:  money.RoundRub(actualPrice),
		EvidenceRefs: evidenceRefs,
	}); err != nil {
		return err
	}

	if err := s.transition(ctx, deal, models.DealStatusPurchased, &buyerID, models.ActorTypeBuyer); err != nil {
		return err
	}
	s.reconcile(ctx, deal, oc.ContractAddress)
	return nil
}

type CreateShipmentInput struct {
	TrackingNumber        string
	Carrier               string
	ActualShippingCostRub *decimal.Decimal
}

// BuyerCreateShipment moves PURCHASED -> SHIPPED. Mail modes require the
// actual shipping cost within budget; personal handover records no cost.
func (s *DealService) BuyerCreateShipment(ctx context.Context, dealID, buyerID uuid.UUID, in CreateShipmentInput) error {
	deal, err := s.deals.GetByID(ctx, dealID)
	if err != nil {
		return err
	}
	if deal.BuyerID != buyerID {
		return validationf("only the assigned buyer can ship")
	}
	if deal.Status != models.DealStatusPurchased {
		return validationf("deal is %s, shipment requires purchased", deal.Status)
	}

	var cost decimal.NullDecimal
	if models.IsMailMode(deal.DeliveryMode) {
		if in.TrackingNumber == "" {
			return validationf("tracking number is required for mail delivery")
		}
		if in.ActualShippingCostRub == nil {
			return validationf("actual shipping cost is required for mail delivery")
		}
		c := money.RoundRub(*in.ActualShippingCostRub)
		if c.IsNegative() {
			return validationf("shipping cost must not be negative")
		}
		if c.GreaterThan(deal.ShippingBudgetRub) {
			return validationf("shipping cost %s exceeds the budget %s",
				c.StringFixed(2), deal.ShippingBudgetRub.StringFixed(2))
		}
		cost = decimal.NewNullDecimal(c)
	}

	oc, err := s.onchain.GetByDealID(ctx, dealID)
	if err != nil {
		return fmt.Errorf("purchased deal has no contract attachment: %w", err)
	}
	if err := s.escrow.Invoke(ctx, oc.ContractAddress, chainMarkShipped); err != nil {
		return err
	}

	if cost.Valid {
		if err := s.deals.SetActualShippingCost(ctx, dealID, cost.Decimal); err != nil {
			return err
		}
		deal.ActualShippingCostRub = cost
	}
	if err := s.shipments.Create(ctx, &models.Shipment{
		DealID:                dealID,
		TrackingNumber:        in.TrackingNumber,
		Carrier:               in.Carrier,
		ActualShippingCostRub: cost,
		ShippedAt:             s.now().UTC(),
	}); err != nil {
		return err
	}

	if err := s.transition(ctx, deal, models.DealStatusShipped, &buyerID, models.ActorTypeBuyer); err != nil {
		return err
	}
	s.reconcile(ctx, deal, oc.ContractAddress)
	return nil
}

type CompletionResult struct {
	Status          string          `json:"status"`
	BuyerPayoutRub  decimal.Decimal `json:"buyer_payout_rub"`
	RemainderRub    decimal.Decimal `json:"remainder_rub"`
	RemainderPolicy *string         `json:"remainder_policy,omitempty"`
}

// CustomerConfirmDelivery settles the deal: contract releases the payout,
// the remainder is computed off-chain and recorded with the configured
// disposition policy.
func (s *DealService) CustomerConfirmDelivery(ctx context.Context, dealID, customerID uuid.UUID) (*CompletionResult, error) {
	deal, err := s.deals.GetByID(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if deal.CustomerID != customerID {
		return nil, validationf("only the customer can confirm delivery")
	}
	if deal.Status != models.DealStatusShipped {
		return nil, validationf("deal is %s, delivery confirmation requires shipped", deal.Status)
	}
	if !deal.ActualItemPriceRub.Valid {
		return nil, validationf("deal has no confirmed purchase price")
	}
	if models.IsMailMode(deal.DeliveryMode) && !deal.ActualShippingCostRub.Valid {
		return nil, validationf("deal has no recorded shipping cost")
	}

	oc, err := s.onchain.GetByDealID(ctx, dealID)
	if err != nil {
		return nil, fmt.Errorf("shipped deal has no contract attachment: %w", err)
	}
	if err := s.escrow.Invoke(ctx, oc.ContractAddress, chainConfirmDelivery); err != nil {
		return nil, err
	}

	payout, remainder, err := s.recordSettlement(ctx, deal)
	if err != nil {
		return nil, err
	}

	if err := s.transition(ctx, deal, models.DealStatusCompleted, &customerID, models.ActorTypeCustomer); err != nil {
		return nil, err
	}
	s.reconcile(ctx, deal, oc.ContractAddress)

	return &CompletionResult{
		Status:          deal.Status,
		BuyerPayoutRub:  payout,
		RemainderRub:    remainder,
		RemainderPolicy: deal.RemainderPolicy,
	}, nil
}

// recordSettlement fixes the payout and remainder at completion. Runs for
// the customer confirmation and the auto-complete timeout alike — every
// COMPLETED deal carries a recorded remainder.
func (s *DealService) recordSettlement(ctx context.Context, deal *models.Deal) (payout, remainder decimal.Decimal, err error) {
	payout = money.RoundRub(deal.BuyerPayoutRub())
	remainder = money.RoundRub(deal.ComputeRemainderRub(decimal.Zero))

	var policy *string
	if s.cfg.RemainderPolicy != "" {
		p := s.cfg.RemainderPolicy
		policy = &p
	}
	if err = s.deals.SetRemainder(ctx, deal.ID, remainder, policy); err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, err
	}
	deal.RemainderRub = decimal.NewNullDecimal(remainder)
	deal.RemainderPolicy = policy
	return payout, remainder, nil
}

// OpenDispute freezes the deal from any non-terminal status. Contact
// details are stripped from the description before it is stored.
func (s *DealService) OpenDispute(ctx context.Context, dealID, openerID uuid.UUID, actorType string, reasonCode int, description string) (*models.Dispute, error) {
	if !models.IsValidDisputeReason(reasonCode) {
		return nil, validationf("unknown dispute reason code %d", reasonCode)
	}
	if actorType != models.ActorTypeCustomer && actorType != models.ActorTypeBuyer {
		return nil, validationf("disputes are opened by customer or buyer")
	}

	deal, err := s.deals.GetByID(ctx, dealID)
	if err != nil {
		return nil, err
	}
	switch actorType {
	case models.ActorTypeCustomer:
		if deal.CustomerID != openerID {
			return nil, validationf("actor is not a party to this deal")
		}
	case models.ActorTypeBuyer:
		if deal.BuyerID != openerID {
			return nil, validationf("actor is not a party to this deal")
		}
	}
	if models.IsTerminalStatus(deal.Status) {
		return nil, validationf("deal is %s, disputes require an active deal", deal.Status)
	}
	if deal.Status == models.DealStatusDispute {
		return nil, validationf("deal is already in dispute")
	}

	// Контракт замораживается до записи спора; без контракта (NEW) спор
	// чисто офчейновый.
	oc, err := s.onchain.GetByDealID(ctx, dealID)
	if err == nil {
		if ierr := s.escrow.Invoke(ctx, oc.ContractAddress, chainOpenDispute); ierr != nil {
			return nil, ierr
		}
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, err
	}

	dispute := &models.Dispute{
		DealID:      dealID,
		OpenedByID:  openerID,
		ReasonCode:  reasonCode,
		Description: s.contacts.Clean(description),
		Resolution:  models.DisputeResolutionPending,
	}
	if err := s.disputes.Create(ctx, dispute); err != nil {
		if errors.Is(err, repositories.ErrDisputeAlreadyOpen) {
			return nil, validationf("deal already has an open dispute")
		}
		return nil, err
	}

	if err := s.transition(ctx, deal, models.DealStatusDispute, &openerID, actorType); err != nil {
		return nil, err
	}
	if oc != nil {
		s.reconcile(ctx, deal, oc.ContractAddress)
	}

	_ = s.publisher.Publish(ctx, events.DealStream, events.Event{
		Type: events.EventDisputeOpened,
		Payload: map[string]any{
			"deal_id":     dealID.String(),
			"dispute_id":  dispute.ID.String(),
			"reason_code": reasonCode,
		},
	})

	return dispute, nil
}

// ResolveDispute applies an arbiter verdict. SPLIT completes the deal; the
// split amounts themselves are settled by the contract.
func (s *DealService) ResolveDispute(ctx context.Context, disputeID, arbiterID uuid.UUID, resolution string) error {
	target, ok := models.ResolutionToDealStatus[resolution]
	if !ok {
		return validationf("unknown resolution %q", resolution)
	}

	dispute, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		return err
	}
	if dispute.Resolution != models.DisputeResolutionPending {
		return validationf("dispute is already resolved as %s", dispute.Resolution)
	}

	deal, err := s.deals.GetByID(ctx, dispute.DealID)
	if err != nil {
		return err
	}
	if deal.Status != models.DealStatusDispute {
		return validationf("deal is %s, resolution requires dispute", deal.Status)
	}

	// Контракт вызывается до записи вердикта: упавший вызов оставляет спор
	// PENDING и арбитр повторяет резолюцию позже.
	oc, err := s.onchain.GetByDealID(ctx, deal.ID)
	if err == nil {
		if ierr := s.escrow.Invoke(ctx, oc.ContractAddress, chainResolveDispute+resolution); ierr != nil {
			return ierr
		}
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return err
	}

	resolved, err := s.disputes.Resolve(ctx, disputeID, resolution, arbiterID, s.now().UTC())
	if err != nil {
		return err
	}
	if !resolved {
		return &StaleStateError{DealID: deal.ID, From: models.DealStatusDispute, To: target}
	}

	if err := s.transition(ctx, deal, target, &arbiterID, models.ActorTypeArbiter); err != nil {
		return err
	}
	if oc != nil {
		s.reconcile(ctx, deal, oc.ContractAddress)
	}

	_ = s.publisher.Publish(ctx, events.DealStream, events.Event{
		Type: events.EventDisputeResolved,
		Payload: map[string]any{
			"deal_id":    deal.ID.String(),
			"dispute_id": disputeID.String(),
			"resolution": resolution,
		},
	})

	return nil
}

// cancelOnTimeout drives one expired deal to its timeout status. Deals
// without a contract transition directly; deals with one go through the
// chain call first and stay stale when it fails. Auto-completion settles
// the payout the same way a customer confirmation does.
func (s *DealService) cancelOnTimeout(ctx context.Context, deal *models.Deal, target, chainMethod string) error {
	oc, err := s.onchain.GetByDealID(ctx, deal.ID)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return err
	}

	if oc != nil {
		if err := s.escrow.Invoke(ctx, oc.ContractAddress, chainMethod); err != nil {
			return err
		}
	}
	if target == models.DealStatusCompleted {
		if _, _, err := s.recordSettlement(ctx, deal); err != nil {
			return err
		}
	}
	if err := s.transition(ctx, deal, target, nil, models.ActorTypeSystem); err != nil {
		return err
	}
	if oc != nil {
		s.reconcile(ctx, deal, oc.ContractAddress)
	}
	return nil
}

// DealView is the read model for a single deal with its attachments.
type DealView struct {
	Deal         *models.Deal                 `json:"deal"`
	Onchain      *models.OnchainDeal          `json:"onchain,omitempty"`
	Payment      *models.Payment              `json:"payment,omitempty"`
	Confirmation *models.PurchaseConfirmation `json:"purchase_confirmation,omitempty"`
	Shipment     *models.Shipment             `json:"shipment,omitempty"`
	OpenDispute  *models.Dispute              `json:"open_dispute,omitempty"`
}

func (s *DealService) GetDeal(ctx context.Context, id uuid.UUID) (*DealView, error) {
	deal, err := s.deals.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	view := &DealView{Deal: deal}
	if oc, err := s.onchain.GetByDealID(ctx, id); err == nil {
		view.Onchain = oc
	}
	if p, err := s.payments.GetByDealID(ctx, id); err == nil {
		view.Payment = p
	}
	if c, err := s.shipments.GetConfirmation(ctx, id); err == nil {
		view.Confirmation = c
	}
	if sh, err := s.shipments.GetByDealID(ctx, id); err == nil {
		view.Shipment = sh
	}
	if d, err := s.disputes.GetOpenByDealID(ctx, id); err == nil {
		view.OpenDispute = d
	}
	return view, nil
}
