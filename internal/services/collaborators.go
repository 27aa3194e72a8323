package services

import (
	"context"
	"regexp"

	"github.com/proxybuy/backend/internal/models"
	"github.com/shopspring/decimal"
)

// Store-domain validation verdicts
const (
	DomainVerified = "verified"
	DomainPending  = "pending"
	DomainRejected = "rejected"
)

// External collaborators. The real pricing tables, exchange feeds and
// domain whitelists live outside the core; the core only consumes these.

type RateSource interface {
	// Rate returns RUB per one TON.
	Rate(ctx context.Context) (decimal.Decimal, error)
}

type ShippingQuoter interface {
	Quote(ctx context.Context, origin, destination, weightCategory, mode string) (decimal.Decimal, error)
}

type StoreValidator interface {
	Validate(ctx context.Context, storeURL string) (string, error)
}

type ContactFilter interface {
	// Clean strips contact details out of free text before it is stored.
	Clean(text string) string
}

// --- Default implementations ---

// StaticRateSource serves the configured snapshot rate.
type StaticRateSource struct {
	RubPerTon decimal.Decimal
}

func (s *StaticRateSource) Rate(_ context.Context) (decimal.Decimal, error) {
	if !s.RubPerTon.IsPositive() {
		return decimal.Zero, validationf("exchange rate is not configured")
	}
	return s.RubPerTon, nil
}

// FlatShippingQuoter prices by weight category with a cross-border markup.
// Реальные тарифные таблицы — внешний оракул; это дефолт для стендов.
type FlatShippingQuoter struct{}

var flatWeightPrices = map[string]string{
	models.WeightUpTo1Kg:  "500.00",
	models.Weight1To3Kg:   "900.00",
	models.Weight3To10Kg:  "1800.00",
	models.WeightOver10Kg: "3500.00",
}

func (q *FlatShippingQuoter) Quote(_ context.Context, origin, destination, weightCategory, mode string) (decimal.Decimal, error) {
	if mode == models.DeliveryModePersonalHandover {
		return decimal.Zero, nil
	}
	base, ok := flatWeightPrices[weightCategory]
	if !ok {
		return decimal.Zero, validationf("unknown weight category %q", weightCategory)
	}
	price := decimal.RequireFromString(base)
	if mode == models.DeliveryModeInternationalMail || origin != destination {
		price = price.Mul(decimal.RequireFromString("1.5"))
	}
	return price.Round(2), nil
}

// AllowAllStoreValidator is the permissive default; production wires the
// whitelist service instead.
type AllowAllStoreValidator struct{}

func (v *AllowAllStoreValidator) Validate(_ context.Context, _ string) (string, error) {
	return DomainVerified, nil
}

// RegexContactFilter masks emails, phone numbers and messenger handles.
type RegexContactFilter struct{}

var contactPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[\w.+-]+@[\w-]+\.[\w.]+`),
	regexp.MustCompile(`\+?\d[\d\s\-()]{8,}\d`),
	regexp.MustCompile(`@[A-Za-z0-9_]{4,}`),
	regexp.MustCompile(`(?i)t\.me/\S+`),
}

func (f *RegexContactFilter) Clean(text string) string {
	for _, re := range contactPatterns {
		text = re.ReplaceAllString(text, "[removed]")
	}
	return text
}
