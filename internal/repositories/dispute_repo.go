package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/proxybuy/backend/internal/models"
)

// ErrDisputeAlreadyOpen maps the partial unique index on pending disputes.
var ErrDisputeAlreadyOpen = errors.New("deal already has an open dispute")

type DisputeRepo struct {
	pool *pgxpool.Pool
}

func NewDisputeRepo(pool *pgxpool.Pool) *DisputeRepo {
	return &DisputeRepo{pool: pool}
}

func (r *DisputeRepo) Create(ctx context.Context, d *models.Dispute) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO disputes (deal_id, opened_by_id, reason_code, description, resolution)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, d.DealID, d.OpenedByID, d.ReasonCode, d.Description, d.Resolution).Scan(&d.ID, &d.CreatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDisputeAlreadyOpen
	}
	return err
}

func (r *DisputeRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	return r.scanOne(r.pool.QueryRow(ctx, `
		SELECT id, deal_id, opened_by_id, reason_code, description, resolution, resolver_id, resolved_at, created_at
		FROM disputes WHERE id = $1
	`, id))
}

func (r *DisputeRepo) GetOpenByDealID(ctx context.Context, dealID uuid.UUID) (*models.Dispute, error) {
	return r.scanOne(r.pool.QueryRow(ctx, `
		SELECT id, deal_id, opened_by_id, reason_code, description, resolution, resolver_id, resolved_at, created_at
		FROM disputes WHERE deal_id = $1 AND resolution = $2
	`, dealID, models.DisputeResolutionPending))
}

// Resolve is guarded on pending so a second arbitration attempt races out.
func (r *DisputeRepo) Resolve(ctx context.Context, id uuid.UUID, resolution string, resolverID uuid.UUID, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE disputes SET resolution = $1, resolver_id = $2, resolved_at = $3
		WHERE id = $4 AND resolution = $5
	`, resolution, resolverID, at, id, models.DisputeResolutionPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *DisputeRepo) scanOne(row pgx.Row) (*models.Dispute, error) {
	var d models.Dispute
	err := row.Scan(&d.ID, &d.DealID, &d.OpenedByID, &d.ReasonCode, &d.Description,
		&d.Resolution, &d.ResolverID, &d.ResolvedAt, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
