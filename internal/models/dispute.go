package models

import (
	"time"

	"github.com/google/uuid"
)

// Dispute reason codes
const (
	DisputeReasonItemNotReceived  = 1
	DisputeReasonItemDamaged      = 2
	DisputeReasonItemDoesNotMatch = 3
	DisputeReasonOther            = 99
)

// Dispute resolutions
const (
	DisputeResolutionPending        = "pending"
	DisputeResolutionRefundCustomer = "refund_customer"
	DisputeResolutionPayBuyer       = "pay_buyer"
	DisputeResolutionSplit          = "split"
)

// ResolutionToDealStatus maps an arbitration outcome onto the deal status.
// SPLIT completes the deal; the split itself is settled by the contract.
var ResolutionToDealStatus = map[string]string{
	DisputeResolutionRefundCustomer: DealStatusCancelledRefundCustomer,
	DisputeResolutionPayBuyer:       DealStatusCancelledPayBuyer,
	DisputeResolutionSplit:          DealStatusCompleted,
}

func IsValidDisputeReason(code int) bool {
	switch code {
	case DisputeReasonItemNotReceived, DisputeReasonItemDamaged, DisputeReasonItemDoesNotMatch, DisputeReasonOther:
		return true
	}
	return false
}

// Dispute — не более одного открытого (resolution=pending) на сделку.
type Dispute struct {
	ID          uuid.UUID  `json:"id"`
	DealID      uuid.UUID  `json:"deal_id"`
	OpenedByID  uuid.UUID  `json:"opened_by_id"`
	ReasonCode  int        `json:"reason_code"`
	Description string     `json:"description"`
	Resolution  string     `json:"resolution"`
	ResolverID  *uuid.UUID `json:"resolver_id,omitempty"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
