package money

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
)

func TestToNano(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"1", 1_000_000_000, false},
		{"0.1", 100_000_000, false},
		{"0.000000001", 1, false},
		{"0", 0, false},
		{"1.9999999999", 1_999_999_999, false}, // round down past 9 digits
		{"-0.5", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			n, err := ToNano(decimal.RequireFromString(tt.in))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ToNano(%s) expected error", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ToNano(%s) unexpected error: %v", tt.in, err)
			}
			if n.Cmp(big.NewInt(tt.want)) != 0 {
				t.Errorf("ToNano(%s) = %s, want %d", tt.in, n.String(), tt.want)
			}
		})
	}
}

func TestFromNanoRoundTrip(t *testing.T) {
	for _, s := range []string{"0", "0.15", "1.234567891", "10000"} {
		d := decimal.RequireFromString(s)
		n, err := ToNano(d)
		if err != nil {
			t.Fatalf("ToNano(%s): %v", s, err)
		}
		back := FromNano(n)
		if !back.Equal(d) {
			t.Errorf("round trip %s -> %s -> %s", s, n.String(), back.String())
		}
	}
}

func TestRubToTon(t *testing.T) {
	rate := decimal.RequireFromString("250") // 250 RUB за 1 TON
	ton, err := RubToTon(decimal.RequireFromString("160.00"), rate)
	if err != nil {
		t.Fatal(err)
	}
	if !ton.Equal(decimal.RequireFromString("0.64")) {
		t.Errorf("160 RUB at 250 = %s TON, want 0.64", ton.String())
	}

	if _, err := RubToTon(decimal.RequireFromString("-1"), rate); err == nil {
		t.Error("negative RUB must be rejected")
	}
	if _, err := RubToTon(decimal.RequireFromString("100"), decimal.Zero); err == nil {
		t.Error("zero rate must be rejected")
	}
}

func TestCheckNonNegative(t *testing.T) {
	if err := CheckNonNegative(decimal.Zero, decimal.RequireFromString("5")); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := CheckNonNegative(decimal.RequireFromString("5"), decimal.RequireFromString("-0.01")); err == nil {
		t.Error("negative amount must be rejected")
	}
}
