package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/proxybuy/backend/internal/models"
)

type ShipmentRepo struct {
	pool *pgxpool.Pool
}

func NewShipmentRepo(pool *pgxpool.Pool) *ShipmentRepo {
	return &ShipmentRepo{pool: pool}
}

func (r *ShipmentRepo) Create(ctx context.Context, s *models.Shipment) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO shipments (deal_id, tracking_number, carrier, actual_shipping_cost_rub)
		VALUES ($1, $2, $3, $4)
		RETURNING id, shipped_at
	`, s.DealID, s.TrackingNumber, s.Carrier, s.ActualShippingCostRub).Scan(&s.ID, &s.ShippedAt)
}

func (r *ShipmentRepo) GetByDealID(ctx context.Context, dealID uuid.UUID) (*models.Shipment, error) {
	var s models.Shipment
	err := r.pool.QueryRow(ctx, `
		SELECT id, deal_id, tracking_number, carrier, actual_shipping_cost_rub, shipped_at
		FROM shipments WHERE deal_id = $1
	`, dealID).Scan(&s.ID, &s.DealID, &s.TrackingNumber, &s.Carrier, &s.ActualShippingCostRub, &s.ShippedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateConfirmation records the buyer's purchase evidence, one per deal.
func (r *ShipmentRepo) CreateConfirmation(ctx context.Context, c *models.PurchaseConfirmation) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO purchase_confirmations (deal_id, actual_price_rub, evidence_refs)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, c.DealID, c.ActualPrice, c.EvidenceRefs).Scan(&c.ID, &c.CreatedAt)
}

func (r *ShipmentRepo) GetConfirmation(ctx context.Context, dealID uuid.UUID) (*models.PurchaseConfirmation, error) {
	var c models.PurchaseConfirmation
	err := r.pool.QueryRow(ctx, `
		SELECT id, deal_id, actual_price_rub, evidence_refs, created_at
		FROM purchase_confirmations WHERE deal_id = $1
	`, dealID).Scan(&c.ID, &c.DealID, &c.ActualPrice, &c.EvidenceRefs, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
