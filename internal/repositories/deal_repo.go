package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/proxybuy/backend/internal/models"
	"github.com/shopspring/decimal"
)

// Deadline columns the sweep is allowed to select on.
const (
	DeadlinePurchase = "purchase_deadline"
	DeadlineShip     = "ship_deadline"
	DeadlineConfirm  = "confirm_deadline"
)

const dealColumns = `
	id, order_id, customer_id, buyer_id, status,
	customer_ton_address, buyer_ton_address,
	item_price_max_rub, actual_item_price_rub, buyer_reward_rub, service_fee_rub,
	insurance_rub, shipping_budget_rub, actual_shipping_cost_rub,
	total_reserved_rub, remainder_rub,
	rate_rub_per_ton, item_price_max_ton, buyer_reward_ton, service_fee_ton,
	insurance_ton, shipping_budget_ton,
	delivery_mode, weight_category, origin_country, destination_country,
	purchase_deadline, ship_deadline, confirm_deadline,
	remainder_policy, created_at, updated_at`

type DealRepo struct {
	pool *pgxpool.Pool
}

func NewDealRepo(pool *pgxpool.Pool) *DealRepo {
	return &DealRepo{pool: pool}
}

func scanDeal(row pgx.Row) (*models.Deal, error) {
	var d models.Deal
	err := row.Scan(
		&d.ID, &d.OrderID, &d.CustomerID, &d.BuyerID, &d.Status,
		&d.CustomerTONAddress, &d.BuyerTONAddress,
		&d.ItemPriceMaxRub, &d.ActualItemPriceRub, &d.BuyerRewardRub, &d.ServiceFeeRub,
		&d.InsuranceRub, &d.ShippingBudgetRub, &d.ActualShippingCostRub,
		&d.TotalReservedRub, &d.RemainderRub,
		&d.RateRubPerTon, &d.ItemPriceMaxTon, &d.BuyerRewardTon, &d.ServiceFeeTon,
		&d.InsuranceTon, &d.ShippingBudgetTon,
		&d.DeliveryMode, &d.WeightCategory, &d.OriginCountry, &d.DestinationCountry,
		&d.PurchaseDeadline, &d.ShipDeadline, &d.ConfirmDeadline,
		&d.RemainderPolicy, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DealRepo) Create(ctx context.Context, d *models.Deal) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO deals (
			order_id, customer_id, buyer_id, status,
			customer_ton_address, buyer_ton_address,
			item_price_max_rub, buyer_reward_rub, service_fee_rub, insurance_rub,
			shipping_budget_rub, total_reserved_rub,
			rate_rub_per_ton, item_price_max_ton, buyer_reward_ton, service_fee_ton,
			insurance_ton, shipping_budget_ton,
			delivery_mode, weight_category, origin_country, destination_country,
			purchase_deadline, ship_deadline, confirm_deadline
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25)
		RETURNING id, created_at, updated_at
	`, d.OrderID, d.CustomerID, d.BuyerID, d.Status,
		d.CustomerTONAddress, d.BuyerTONAddress,
		d.ItemPriceMaxRub, d.BuyerRewardRub, d.ServiceFeeRub, d.InsuranceRub,
		d.ShippingBudgetRub, d.TotalReservedRub,
		d.RateRubPerTon, d.ItemPriceMaxTon, d.BuyerRewardTon, d.ServiceFeeTon,
		d.InsuranceTon, d.ShippingBudgetTon,
		d.DeliveryMode, d.WeightCategory, d.OriginCountry, d.DestinationCountry,
		d.PurchaseDeadline, d.ShipDeadline, d.ConfirmDeadline,
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
}

func (r *DealRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Deal, error) {
	return scanDeal(r.pool.QueryRow(ctx, `SELECT `+dealColumns+` FROM deals WHERE id = $1`, id))
}

// UpdateStatusIf is the optimistic concurrency primitive: the write lands
// only when the status a caller read is still current. false means the
// guard no longer holds.
func (r *DealRepo) UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE deals SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3
	`, to, id, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateStatus overwrites unconditionally — только для reconciliation,
// когда источником истины выступает контракт.
func (r *DealRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.pool.Exec(ctx, `UPDATE deals SET status = $1, updated_at = now() WHERE id = $2`, status, id)
	return err
}

func (r *DealRepo) SetActualItemPrice(ctx context.Context, id uuid.UUID, price decimal.Decimal) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE deals SET actual_item_price_rub = $1, updated_at = now() WHERE id = $2
	`, price, id)
	return err
}

func (r *DealRepo) SetActualShippingCost(ctx context.Context, id uuid.UUID, cost decimal.Decimal) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE deals SET actual_shipping_cost_rub = $1, updated_at = now() WHERE id = $2
	`, cost, id)
	return err
}

func (r *DealRepo) SetRemainder(ctx context.Context, id uuid.UUID, remainder decimal.Decimal, policy *string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE deals SET remainder_rub = $1, remainder_policy = $2, updated_at = now() WHERE id = $3
	`, remainder, policy, id)
	return err
}

// ListDeadlineExpired feeds the timeout sweep. The deadline column is
// whitelisted, not interpolated from caller input.
func (r *DealRepo) ListDeadlineExpired(ctx context.Context, status, deadlineColumn string, now time.Time, limit int) ([]models.Deal, error) {
	switch deadlineColumn {
	case DeadlinePurchase, DeadlineShip, DeadlineConfirm:
	default:
		return nil, fmt.Errorf("unknown deadline column %q", deadlineColumn)
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+dealColumns+` FROM deals
		WHERE status = $1 AND `+deadlineColumn+` < $2
		ORDER BY `+deadlineColumn+` ASC
		LIMIT $3
	`, status, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deals []models.Deal
	for rows.Next() {
		d, err := scanDeal(rows)
		if err != nil {
			return nil, err
		}
		deals = append(deals, *d)
	}
	return deals, rows.Err()
}

// ListNewPaid returns deals stuck in NEW whose payment already landed —
// деплой или эскроу-перевод не дошли, sweep должен довести фондирование.
// Наличие контракта не критерий: упавший деплой тоже сюда попадает.
func (r *DealRepo) ListNewPaid(ctx context.Context, limit int) ([]models.Deal, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+qualifyDealColumns("d")+`
		FROM deals d
		JOIN payments p ON p.deal_id = d.id AND p.status = $1
		WHERE d.status = $2
		ORDER BY d.created_at ASC
		LIMIT $3
	`, models.PaymentStatusSuccess, models.DealStatusNew, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deals []models.Deal
	for rows.Next() {
		d, err := scanDeal(rows)
		if err != nil {
			return nil, err
		}
		deals = append(deals, *d)
	}
	return deals, rows.Err()
}

func qualifyDealColumns(alias string) string {
	return fmt.Sprintf(`
	%[1]s.id, %[1]s.order_id, %[1]s.customer_id, %[1]s.buyer_id, %[1]s.status,
	%[1]s.customer_ton_address, %[1]s.buyer_ton_address,
	%[1]s.item_price_max_rub, %[1]s.actual_item_price_rub, %[1]s.buyer_reward_rub, %[1]s.service_fee_rub,
	%[1]s.insurance_rub, %[1]s.shipping_budget_rub, %[1]s.actual_shipping_cost_rub,
	%[1]s.total_reserved_rub, %[1]s.remainder_rub,
	%[1]s.rate_rub_per_ton, %[1]s.item_price_max_ton, %[1]s.buyer_reward_ton, %[1]s.service_fee_ton,
	%[1]s.insurance_ton, %[1]s.shipping_budget_ton,
	%[1]s.delivery_mode, %[1]s.weight_category, %[1]s.origin_country, %[1]s.destination_country,
	%[1]s.purchase_deadline, %[1]s.ship_deadline, %[1]s.confirm_deadline,
	%[1]s.remainder_policy, %[1]s.created_at, %[1]s.updated_at`, alias)
}
