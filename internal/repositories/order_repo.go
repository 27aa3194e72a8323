package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/proxybuy/backend/internal/models"
)

type OrderRepo struct {
	pool *pgxpool.Pool
}

func NewOrderRepo(pool *pgxpool.Pool) *OrderRepo {
	return &OrderRepo{pool: pool}
}

func (r *OrderRepo) Create(ctx context.Context, o *models.Order) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO orders (customer_id, title, store_url, status, max_item_price_rub,
			buyer_reward_rub, service_fee_rub, insurance_rub,
			allow_personal_handover, allow_delivery_by_mail, weight_category, origin_country)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING id, created_at, updated_at
	`, o.CustomerID, o.Title, o.StoreURL, o.Status, o.MaxItemPriceRub,
		o.BuyerRewardRub, o.ServiceFeeRub, o.InsuranceRub,
		o.AllowPersonalHandover, o.AllowDeliveryByMail, o.WeightCategory, o.OriginCountry,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
}

func (r *OrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var o models.Order
	err := r.pool.QueryRow(ctx, `
		SELECT id, customer_id, title, store_url, status, max_item_price_rub,
		       buyer_reward_rub, service_fee_rub, insurance_rub,
		       allow_personal_handover, allow_delivery_by_mail, weight_category, origin_country,
		       created_at, updated_at
		FROM orders WHERE id = $1
	`, id).Scan(&o.ID, &o.CustomerID, &o.Title, &o.StoreURL, &o.Status, &o.MaxItemPriceRub,
		&o.BuyerRewardRub, &o.ServiceFeeRub, &o.InsuranceRub,
		&o.AllowPersonalHandover, &o.AllowDeliveryByMail, &o.WeightCategory, &o.OriginCountry,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// UpdateStatusIf guards the open -> matched hop the same way deal
// transitions are guarded.
func (r *OrderRepo) UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders SET status = $1, updated_at = now() WHERE id = $2 AND status = $3
	`, to, id, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *OrderRepo) GetShippingAddress(ctx context.Context, orderID uuid.UUID) (*models.ShippingAddress, error) {
	var a models.ShippingAddress
	err := r.pool.QueryRow(ctx, `
		SELECT id, order_id, country, city, street, postal_code, created_at
		FROM shipping_addresses WHERE order_id = $1
	`, orderID).Scan(&a.ID, &a.OrderID, &a.Country, &a.City, &a.Street, &a.PostalCode, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
