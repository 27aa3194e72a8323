package services

import (
	"fmt"

	"github.com/google/uuid"
)

// ValidationError — guard violated, rejected synchronously, deal untouched.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation: " + e.Reason }

func validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// StaleStateError — конкурирующий переход успел раньше; вызывающий должен
// перечитать сделку и решить, повторять ли.
type StaleStateError struct {
	DealID uuid.UUID
	From   string
	To     string
}

func (e *StaleStateError) Error() string {
	return fmt.Sprintf("stale state: deal %s no longer in %s (wanted %s -> %s)", e.DealID, e.From, e.From, e.To)
}

// EscrowUnderfundedError — deploy landed but the escrow top-up did not.
// FUNDED implies a capitalized contract, so the deal stays NEW until the
// sweep retries the transfer. Critical severity, never swallowed.
type EscrowUnderfundedError struct {
	DealID          uuid.UUID
	ContractAddress string
	Err             error
}

func (e *EscrowUnderfundedError) Error() string {
	return fmt.Sprintf("escrow underfunded: deal %s contract %s: %v", e.DealID, e.ContractAddress, e.Err)
}

func (e *EscrowUnderfundedError) Unwrap() error { return e.Err }
