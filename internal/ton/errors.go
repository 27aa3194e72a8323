package ton

import (
	"errors"
	"fmt"
)

// ChainError kinds
const (
	ErrKindRateLimited      = "rate_limited"
	ErrKindNetwork          = "network"
	ErrKindContractRejected = "contract_rejected"
	ErrKindMalformed        = "malformed"
)

var (
	ErrInvalidSeedPhrase = errors.New("seed phrase must contain exactly 24 words")
	ErrInvalidParameters = errors.New("invalid contract parameters")
)

// ChainError tags every transport-level failure with a kind the caller can
// branch on. RateLimited is retried inside the client; the rest propagate.
type ChainError struct {
	Kind string
	Op   string
	Err  error
}

func (e *ChainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("chain %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("chain %s: %s", e.Op, e.Kind)
}

func (e *ChainError) Unwrap() error { return e.Err }

func chainErr(op, kind string, err error) *ChainError {
	return &ChainError{Kind: kind, Op: op, Err: err}
}

// IsRateLimited reports whether err is a rate-limit signal from the API.
func IsRateLimited(err error) bool {
	var ce *ChainError
	return errors.As(err, &ce) && ce.Kind == ErrKindRateLimited
}

// SigningError is fatal: a bad signature or key derivation means corrupted
// seed material, never retry blindly.
type SigningError struct {
	Reason string
	Err    error
}

func (e *SigningError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("signing: %s: %v", e.Reason, e.Err)
	}
	return "signing: " + e.Reason
}

func (e *SigningError) Unwrap() error { return e.Err }
