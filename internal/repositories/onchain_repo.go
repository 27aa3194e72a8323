package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/proxybuy/backend/internal/models"
)

// ErrAlreadyDeployed maps the unique deal_id violation: at most one
// contract per deal, ever.
var ErrAlreadyDeployed = errors.New("onchain deal already exists")

var ErrNotFound = pgx.ErrNoRows

type OnchainRepo struct {
	pool *pgxpool.Pool
}

func NewOnchainRepo(pool *pgxpool.Pool) *OnchainRepo {
	return &OnchainRepo{pool: pool}
}

func (r *OnchainRepo) Create(ctx context.Context, oc *models.OnchainDeal) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO onchain_deals (deal_id, contract_address, metadata_hash_hex)
		VALUES ($1, $2, $3)
		RETURNING id, deployed_at, updated_at
	`, oc.DealID, oc.ContractAddress, oc.MetadataHashHex).Scan(&oc.ID, &oc.DeployedAt, &oc.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrAlreadyDeployed
	}
	return err
}

func (r *OnchainRepo) GetByDealID(ctx context.Context, dealID uuid.UUID) (*models.OnchainDeal, error) {
	var oc models.OnchainDeal
	err := r.pool.QueryRow(ctx, `
		SELECT id, deal_id, contract_address, metadata_hash_hex, deployed_at, updated_at
		FROM onchain_deals WHERE deal_id = $1
	`, dealID).Scan(&oc.ID, &oc.DealID, &oc.ContractAddress, &oc.MetadataHashHex, &oc.DeployedAt, &oc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &oc, nil
}

// Touch bumps updated_at on resync; всё остальное неизменяемо после деплоя.
func (r *OnchainRepo) Touch(ctx context.Context, dealID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE onchain_deals SET updated_at = now() WHERE deal_id = $1`, dealID)
	return err
}
