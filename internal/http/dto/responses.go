package dto

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

type EscrowInfoResponse struct {
	DealID          string `json:"deal_id"`
	ContractAddress string `json:"contract_address"`
	MetadataHashHex string `json:"metadata_hash_hex"`
	EscrowTON       string `json:"escrow_ton"`
	Network         string `json:"network"`
}
