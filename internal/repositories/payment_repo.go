package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/proxybuy/backend/internal/models"
)

type PaymentRepo struct {
	pool *pgxpool.Pool
}

func NewPaymentRepo(pool *pgxpool.Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

func (r *PaymentRepo) Create(ctx context.Context, p *models.Payment) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO payments (deal_id, provider_reference, amount_rub, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, p.DealID, p.ProviderReference, p.AmountRub, p.Status).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

func (r *PaymentRepo) GetByDealID(ctx context.Context, dealID uuid.UUID) (*models.Payment, error) {
	var p models.Payment
	err := r.pool.QueryRow(ctx, `
		SELECT id, deal_id, provider_reference, amount_rub, status, created_at, updated_at
		FROM payments WHERE deal_id = $1
	`, dealID).Scan(&p.ID, &p.DealID, &p.ProviderReference, &p.AmountRub, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepo) GetByProviderReference(ctx context.Context, ref string) (*models.Payment, error) {
	var p models.Payment
	err := r.pool.QueryRow(ctx, `
		SELECT id, deal_id, provider_reference, amount_rub, status, created_at, updated_at
		FROM payments WHERE provider_reference = $1
	`, ref).Scan(&p.ID, &p.DealID, &p.ProviderReference, &p.AmountRub, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.pool.Exec(ctx, `UPDATE payments SET status = $1, updated_at = now() WHERE id = $2`, status, id)
	return err
}
