package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Deal statuses
const (
	DealStatusNew                     = "new"
	DealStatusFunded                  = "funded"
	DealStatusPurchased               = "purchased"
	DealStatusShipped                 = "shipped"
	DealStatusCompleted               = "completed"
	DealStatusDispute                 = "dispute"
	DealStatusCancelledRefundCustomer = "cancelled_refund_customer"
	DealStatusCancelledPayBuyer       = "cancelled_pay_buyer"
)

// Delivery modes
const (
	DeliveryModePersonalHandover  = "personal_handover"
	DeliveryModeInternationalMail = "international_mail"
	DeliveryModeDomesticMail      = "domestic_mail"
)

// Weight categories for the shipping pricing oracle
const (
	WeightUpTo1Kg  = "up_to_1kg"
	Weight1To3Kg   = "kg_1_to_3"
	Weight3To10Kg  = "kg_3_to_10"
	WeightOver10Kg = "over_10kg"
)

// Valid state transitions: from -> []to. Disputes may be opened from any
// non-terminal status; terminal statuses never leave.
var ValidDealTransitions = map[string][]string{
	DealStatusNew:       {DealStatusFunded, DealStatusDispute},
	DealStatusFunded:    {DealStatusPurchased, DealStatusCancelledRefundCustomer, DealStatusDispute},
	DealStatusPurchased: {DealStatusShipped, DealStatusCancelledRefundCustomer, DealStatusDispute},
	DealStatusShipped:   {DealStatusCompleted, DealStatusDispute},
	DealStatusDispute:   {DealStatusCompleted, DealStatusCancelledRefundCustomer, DealStatusCancelledPayBuyer},

	DealStatusCompleted:               {},
	DealStatusCancelledRefundCustomer: {},
	DealStatusCancelledPayBuyer:       {},
}

func IsValidTransition(from, to string) bool {
	allowed, ok := ValidDealTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

func IsTerminalStatus(status string) bool {
	allowed, ok := ValidDealTransitions[status]
	return ok && len(allowed) == 0
}

func IsValidDeliveryMode(mode string) bool {
	switch mode {
	case DeliveryModePersonalHandover, DeliveryModeInternationalMail, DeliveryModeDomesticMail:
		return true
	}
	return false
}

// IsMailMode reports whether the mode requires a real shipment with a
// shipping budget and an actual shipping cost.
func IsMailMode(mode string) bool {
	return mode == DeliveryModeInternationalMail || mode == DeliveryModeDomesticMail
}

type Deal struct {
	ID         uuid.UUID `json:"id"`
	OrderID    uuid.UUID `json:"order_id"`
	CustomerID uuid.UUID `json:"customer_id"`
	BuyerID    uuid.UUID `json:"buyer_id"`
	Status     string    `json:"status"`

	// TON-адреса сторон фиксируются при создании — нужны для init-data контракта.
	CustomerTONAddress string `json:"customer_ton_address"`
	BuyerTONAddress    string `json:"buyer_ton_address"`

	// RUB snapshot, 2 знака. Caps and fees are frozen at creation;
	// actuals are filled as the deal progresses.
	ItemPriceMaxRub       decimal.Decimal     `json:"item_price_max_rub"`
	ActualItemPriceRub    decimal.NullDecimal `json:"actual_item_price_rub"`
	BuyerRewardRub        decimal.Decimal     `json:"buyer_reward_rub"`
	ServiceFeeRub         decimal.Decimal     `json:"service_fee_rub"`
	InsuranceRub          decimal.Decimal     `json:"insurance_rub"`
	ShippingBudgetRub     decimal.Decimal     `json:"shipping_budget_rub"`
	ActualShippingCostRub decimal.NullDecimal `json:"actual_shipping_cost_rub"`
	TotalReservedRub      decimal.Decimal     `json:"total_reserved_amount_rub"`
	RemainderRub          decimal.NullDecimal `json:"remainder_rub"`

	// TON mirrors, 9 знаков, derived from the RUB amounts via a single
	// rate snapshot at creation. Never recomputed later.
	RateRubPerTon     decimal.Decimal `json:"rate_rub_per_ton"`
	ItemPriceMaxTon   decimal.Decimal `json:"item_price_max_ton"`
	BuyerRewardTon    decimal.Decimal `json:"buyer_reward_ton"`
	ServiceFeeTon     decimal.Decimal `json:"service_fee_ton"`
	InsuranceTon      decimal.Decimal `json:"insurance_ton"`
	ShippingBudgetTon decimal.Decimal `json:"shipping_budget_ton"`

	DeliveryMode       string `json:"delivery_mode"`
	WeightCategory     string `json:"weight_category"`
	OriginCountry      string `json:"origin_country"`
	DestinationCountry string `json:"destination_country"`

	PurchaseDeadline time.Time `json:"purchase_deadline"`
	ShipDeadline     time.Time `json:"ship_deadline"`
	ConfirmDeadline  time.Time `json:"confirm_deadline"`

	RemainderPolicy *string `json:"remainder_policy,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BuyerPayoutRub: фактическая цена + фактическая доставка + награда байера.
// Actuals must be present before completion; missing values count as zero for
// handover deals where no shipping cost exists.
func (d *Deal) BuyerPayoutRub() decimal.Decimal {
	payout := d.BuyerRewardRub
	if d.ActualItemPriceRub.Valid {
		payout = payout.Add(d.ActualItemPriceRub.Decimal)
	}
	if d.ActualShippingCostRub.Valid {
		payout = payout.Add(d.ActualShippingCostRub.Decimal)
	}
	return payout
}

// ComputeRemainderRub clamps at zero: escrow can run dry on fees but the
// ledger never records a negative remainder.
func (d *Deal) ComputeRemainderRub(blockchainFees decimal.Decimal) decimal.Decimal {
	rem := d.TotalReservedRub.Sub(d.BuyerPayoutRub()).Sub(blockchainFees)
	if rem.IsNegative() {
		return decimal.Zero
	}
	return rem
}

// EscrowTon is what actually gets locked on-chain: item cap + shipping
// budget + buyer reward. Service fee and insurance stay off-chain.
func (d *Deal) EscrowTon() decimal.Decimal {
	return d.ItemPriceMaxTon.Add(d.ShippingBudgetTon).Add(d.BuyerRewardTon)
}

// DeadlinesOrdered checks created < purchase < ship < confirm.
func (d *Deal) DeadlinesOrdered() bool {
	return d.CreatedAt.Before(d.PurchaseDeadline) &&
		d.PurchaseDeadline.Before(d.ShipDeadline) &&
		d.ShipDeadline.Before(d.ConfirmDeadline)
}
