package money

import (
	"errors"
	"math/big"

	"github.com/shopspring/decimal"
)

// NanoPerTON — 1 TON = 10^9 нанотонов.
const NanoDigits = 9

// RubDigits — копейки, два знака после запятой.
const RubDigits = 2

var ErrInvalidAmount = errors.New("invalid amount: must be non-negative")

// ToNano converts a TON amount to nano-units, rounding down.
// Fails on negative input.
func ToNano(ton decimal.Decimal) (*big.Int, error) {
	if ton.IsNegative() {
		return nil, ErrInvalidAmount
	}
	return ton.Shift(NanoDigits).Truncate(0).BigInt(), nil
}

// FromNano converts nano-units back to a TON amount with 9 fractional digits.
func FromNano(nano *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(nano, -NanoDigits)
}

// RubToTon converts a RUB amount to TON using a RUB-per-TON rate snapshot,
// keeping 9 fractional digits. The rate is captured once at deal creation and
// never re-applied afterwards.
func RubToTon(rub, rate decimal.Decimal) (decimal.Decimal, error) {
	if rub.IsNegative() {
		return decimal.Zero, ErrInvalidAmount
	}
	if !rate.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return rub.DivRound(rate, NanoDigits), nil
}

// RoundRub normalizes a RUB amount to whole kopecks.
func RoundRub(rub decimal.Decimal) decimal.Decimal {
	return rub.Round(RubDigits)
}

// CheckNonNegative rejects negative amounts before they reach the ledger.
func CheckNonNegative(amounts ...decimal.Decimal) error {
	for _, a := range amounts {
		if a.IsNegative() {
			return ErrInvalidAmount
		}
	}
	return nil
}
