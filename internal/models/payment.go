package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment statuses as reported by the provider
const (
	PaymentStatusPending  = "pending"
	PaymentStatusSuccess  = "success"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
)

// Payment — one per deal, записывает результат офчейн-платежа провайдера.
// SUCCESS запускает деплой эскроу-контракта.
type Payment struct {
	ID                uuid.UUID       `json:"id"`
	DealID            uuid.UUID       `json:"deal_id"`
	ProviderReference string          `json:"provider_reference"`
	AmountRub         decimal.Decimal `json:"amount_rub"`
	Status            string          `json:"status"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}
