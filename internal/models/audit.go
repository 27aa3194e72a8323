package models

import (
	"time"

	"github.com/google/uuid"
)

// Actor types for the audit trail
const (
	ActorTypeCustomer = "customer"
	ActorTypeBuyer    = "buyer"
	ActorTypeArbiter  = "arbiter"
	ActorTypeSystem   = "system"
)

type AuditLog struct {
	ID         uuid.UUID  `json:"id"`
	ActorID    *uuid.UUID `json:"actor_id,omitempty"`
	ActorType  string     `json:"actor_type"`
	Action     string     `json:"action"`
	EntityType string     `json:"entity_type"`
	EntityID   *uuid.UUID `json:"entity_id,omitempty"`
	Meta       any        `json:"meta,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
