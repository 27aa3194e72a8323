package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Shipment is attached on the purchased -> shipped transition. For mail
// modes the actual shipping cost is mandatory and capped by the budget.
type Shipment struct {
	ID                    uuid.UUID           `json:"id"`
	DealID                uuid.UUID           `json:"deal_id"`
	TrackingNumber        string              `json:"tracking_number"`
	Carrier               string              `json:"carrier"`
	ActualShippingCostRub decimal.NullDecimal `json:"actual_shipping_cost_rub"`
	ShippedAt             time.Time           `json:"shipped_at"`
}

// PurchaseConfirmation — одно подтверждение покупки на сделку, с чеками.
type PurchaseConfirmation struct {
	ID           uuid.UUID       `json:"id"`
	DealID       uuid.UUID       `json:"deal_id"`
	ActualPrice  decimal.Decimal `json:"actual_price_rub"`
	EvidenceRefs []string        `json:"evidence_refs"`
	CreatedAt    time.Time       `json:"created_at"`
}
