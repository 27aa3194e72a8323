package dto

import "github.com/go-playground/validator/v10"

var validate = validator.New()

// Validate runs the struct tags; handlers convert failures to 400.
func Validate(s any) error { return validate.Struct(s) }

type CreateDealRequest struct {
	OrderID            string `json:"order_id" validate:"required,uuid"`
	BuyerID            string `json:"buyer_id" validate:"required,uuid"`
	CustomerTONAddress string `json:"customer_ton_address" validate:"required"`
	BuyerTONAddress    string `json:"buyer_ton_address" validate:"required"`
	DeliveryMode       string `json:"delivery_mode" validate:"required,oneof=personal_handover international_mail domestic_mail"`
	ProviderReference  string `json:"provider_reference" validate:"required"`
}

type PaymentWebhookRequest struct {
	ProviderReference string `json:"provider_reference" validate:"required"`
	Status            string `json:"status" validate:"required,oneof=success failed"`
}

type ConfirmPurchaseRequest struct {
	BuyerID        string   `json:"buyer_id" validate:"required,uuid"`
	ActualPriceRub string   `json:"actual_price_rub" validate:"required"`
	EvidenceRefs   []string `json:"evidence_refs" validate:"required,min=1,dive,required"`
}

type CreateShipmentRequest struct {
	BuyerID               string  `json:"buyer_id" validate:"required,uuid"`
	TrackingNumber        string  `json:"tracking_number"`
	Carrier               string  `json:"carrier"`
	ActualShippingCostRub *string `json:"actual_shipping_cost_rub,omitempty"`
}

type ConfirmDeliveryRequest struct {
	CustomerID string `json:"customer_id" validate:"required,uuid"`
}

type OpenDisputeRequest struct {
	OpenedByID  string `json:"opened_by_id" validate:"required,uuid"`
	ActorType   string `json:"actor_type" validate:"required,oneof=customer buyer"`
	ReasonCode  int    `json:"reason_code" validate:"required"`
	Description string `json:"description" validate:"required,max=4000"`
}

type ResolveDisputeRequest struct {
	ArbiterID  string `json:"arbiter_id" validate:"required,uuid"`
	Resolution string `json:"resolution" validate:"required,oneof=refund_customer pay_buyer split"`
}
