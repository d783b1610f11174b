// Package discount computes plan amounts after sibling and early-payment discounts.
package discount

import (
	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/clubledger-backend/pkg/errors"
)

// Type names a discount line.
type Type string

const (
	TypeSibling      Type = "sibling"
	TypeEarlyPayment Type = "early_payment"
)

var hundred = decimal.NewFromInt(100)

// Rates carries the percentages configured on a plan.
type Rates struct {
	SiblingPct      decimal.Decimal
	EarlyPaymentPct decimal.Decimal
}

// Flags selects which discounts apply.
type Flags struct {
	HasSiblingDiscount bool `json:"has_sibling_discount"`
	IsEarlyPayment     bool `json:"is_early_payment"`
}

// Applied is one discount line. Amount is the exact, unrounded peso value.
type Applied struct {
	Type       Type            `json:"type"`
	Percentage decimal.Decimal `json:"percentage"`
	Amount     decimal.Decimal `json:"amount"`
}

// Result is the outcome of Calculate.
type Result struct {
	BaseAmount  int64     `json:"base_amount"`
	Discounts   []Applied `json:"discounts"`
	FinalAmount int64     `json:"final_amount"`
}

// Calculate applies the selected discounts to base. Every percentage applies to
// the base amount, never to a previously discounted value; the final amount is
// rounded half-up to whole pesos.
func Calculate(base int64, rates Rates, flags Flags) (Result, error) {
	if base < 0 {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "base amount must be >= 0")
	}
	if err := validatePct("sibling_discount_pct", rates.SiblingPct); err != nil {
		return Result{}, err
	}
	if err := validatePct("early_payment_discount_pct", rates.EarlyPaymentPct); err != nil {
		return Result{}, err
	}

	baseDec := decimal.NewFromInt(base)
	applied := make([]Applied, 0, 2)
	if flags.HasSiblingDiscount && rates.SiblingPct.IsPositive() {
		applied = append(applied, line(TypeSibling, rates.SiblingPct, baseDec))
	}
	if flags.IsEarlyPayment && rates.EarlyPaymentPct.IsPositive() {
		applied = append(applied, line(TypeEarlyPayment, rates.EarlyPaymentPct, baseDec))
	}

	final := baseDec
	for _, d := range applied {
		final = final.Sub(d.Amount)
	}
	if final.IsNegative() {
		final = decimal.Zero
	}

	return Result{
		BaseAmount:  base,
		Discounts:   applied,
		FinalAmount: final.Round(0).IntPart(),
	}, nil
}

// PercentOf returns pct% of amount rounded half-up to whole pesos.
func PercentOf(amount int64, pct decimal.Decimal) int64 {
	return pct.Mul(decimal.NewFromInt(amount)).Div(hundred).Round(0).IntPart()
}

// ValidatePct rejects percentages outside [0, 100].
func ValidatePct(field string, pct decimal.Decimal) error {
	return validatePct(field, pct)
}

func validatePct(field string, pct decimal.Decimal) error {
	if pct.IsNegative() || pct.GreaterThan(hundred) {
		return pkgerrors.New(pkgerrors.CodeValidation, field+" must be between 0 and 100").
			WithDetails(map[string]any{"field": field, "value": pct.String()})
	}
	return nil
}

func line(kind Type, pct, base decimal.Decimal) Applied {
	return Applied{
		Type:       kind,
		Percentage: pct,
		Amount:     pct.Mul(base).Div(hundred),
	}
}
