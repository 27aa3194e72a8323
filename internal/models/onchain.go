package models

import (
	"time"

	"github.com/google/uuid"
)

// OnchainDeal is the 1:1 attachment created when the escrow contract is
// deployed. The unique deal_id constraint is the double-funding guard.
// Once it exists, the contract is authoritative for the deal status.
type OnchainDeal struct {
	ID              uuid.UUID `json:"id"`
	DealID          uuid.UUID `json:"deal_id"`
	ContractAddress string    `json:"contract_address"`
	MetadataHashHex string    `json:"metadata_hash_hex"`
	DeployedAt      time.Time `json:"deployed_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
