package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/proxybuy/backend/internal/models"
	"github.com/shopspring/decimal"
)

// Store interfaces are what the state machine actually needs from
// persistence. The pgx repos satisfy them; tests drive the machine with
// in-memory fakes, так что конкурентные сценарии проверяются без БД.

type DealStore interface {
	Create(ctx context.Context, d *models.Deal) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Deal, error)
	UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to string) (bool, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	SetActualItemPrice(ctx context.Context, id uuid.UUID, price decimal.Decimal) error
	SetActualShippingCost(ctx context.Context, id uuid.UUID, cost decimal.Decimal) error
	SetRemainder(ctx context.Context, id uuid.UUID, remainder decimal.Decimal, policy *string) error
	ListDeadlineExpired(ctx context.Context, status, deadlineColumn string, now time.Time, limit int) ([]models.Deal, error)
	ListNewPaid(ctx context.Context, limit int) ([]models.Deal, error)
}

type OrderStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to string) (bool, error)
	GetShippingAddress(ctx context.Context, orderID uuid.UUID) (*models.ShippingAddress, error)
}

type OnchainStore interface {
	Create(ctx context.Context, oc *models.OnchainDeal) error
	GetByDealID(ctx context.Context, dealID uuid.UUID) (*models.OnchainDeal, error)
	Touch(ctx context.Context, dealID uuid.UUID) error
}

type PaymentStore interface {
	Create(ctx context.Context, p *models.Payment) error
	GetByDealID(ctx context.Context, dealID uuid.UUID) (*models.Payment, error)
	GetByProviderReference(ctx context.Context, ref string) (*models.Payment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}

type DisputeStore interface {
	Create(ctx context.Context, d *models.Dispute) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	GetOpenByDealID(ctx context.Context, dealID uuid.UUID) (*models.Dispute, error)
	Resolve(ctx context.Context, id uuid.UUID, resolution string, resolverID uuid.UUID, at time.Time) (bool, error)
}

type ShipmentStore interface {
	Create(ctx context.Context, s *models.Shipment) error
	GetByDealID(ctx context.Context, dealID uuid.UUID) (*models.Shipment, error)
	CreateConfirmation(ctx context.Context, c *models.PurchaseConfirmation) error
	GetConfirmation(ctx context.Context, dealID uuid.UUID) (*models.PurchaseConfirmation, error)
}

type AuditStore interface {
	Log(ctx context.Context, entry models.AuditLog) error
}
