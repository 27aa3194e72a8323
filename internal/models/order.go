package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order statuses
const (
	OrderStatusOpen    = "open"
	OrderStatusMatched = "matched"
	OrderStatusClosed  = "closed"
)

// Order is the customer's purchase request a deal is created from.
type Order struct {
	ID         uuid.UUID `json:"id"`
	CustomerID uuid.UUID `json:"customer_id"`
	Title      string    `json:"title"`
	StoreURL   string    `json:"store_url"`
	Status     string    `json:"status"`

	MaxItemPriceRub decimal.Decimal `json:"max_item_price_rub"`
	BuyerRewardRub  decimal.Decimal `json:"buyer_reward_rub"`
	ServiceFeeRub   decimal.Decimal `json:"service_fee_rub"`
	InsuranceRub    decimal.Decimal `json:"insurance_rub"`

	AllowPersonalHandover bool   `json:"allow_personal_handover"`
	AllowDeliveryByMail   bool   `json:"allow_delivery_by_mail"`
	WeightCategory        string `json:"weight_category"`
	OriginCountry         string `json:"origin_country"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AllowsMode maps the order's delivery flags onto a buyer's declared mode.
func (o *Order) AllowsMode(mode string) bool {
	switch mode {
	case DeliveryModePersonalHandover:
		return o.AllowPersonalHandover
	case DeliveryModeInternationalMail, DeliveryModeDomesticMail:
		return o.AllowDeliveryByMail
	}
	return false
}

// ShippingAddress — адрес доставки заказчика, обязателен до создания сделки.
type ShippingAddress struct {
	ID         uuid.UUID `json:"id"`
	OrderID    uuid.UUID `json:"order_id"`
	Country    string    `json:"country"`
	City       string    `json:"city"`
	Street     string    `json:"street"`
	PostalCode string    `json:"postal_code"`
	CreatedAt  time.Time `json:"created_at"`
}
