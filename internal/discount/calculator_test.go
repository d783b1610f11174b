package discount

import (
	"testing"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/clubledger-backend/pkg/errors"
)

func TestCalculate(t *testing.T) {
	rates := Rates{
		SiblingPct:      decimal.NewFromInt(10),
		EarlyPaymentPct: decimal.NewFromInt(5),
	}

	cases := []struct {
		name      string
		base      int64
		rates     Rates
		flags     Flags
		wantLines []int64
		wantFinal int64
	}{
		{
			name:      "both discounts",
			base:      100000,
			rates:     rates,
			flags:     Flags{HasSiblingDiscount: true, IsEarlyPayment: true},
			wantLines: []int64{10000, 5000},
			wantFinal: 85000,
		},
		{
			name:      "sibling only",
			base:      100000,
			rates:     rates,
			flags:     Flags{HasSiblingDiscount: true},
			wantLines: []int64{10000},
			wantFinal: 90000,
		},
		{
			name:      "no flags",
			base:      45000,
			rates:     rates,
			wantLines: nil,
			wantFinal: 45000,
		},
		{
			name:      "flag set but rate zero",
			base:      45000,
			rates:     Rates{},
			flags:     Flags{HasSiblingDiscount: true, IsEarlyPayment: true},
			wantLines: nil,
			wantFinal: 45000,
		},
		{
			name:      "rounds half up",
			base:      33333,
			rates:     Rates{SiblingPct: decimal.RequireFromString("12.5")},
			flags:     Flags{HasSiblingDiscount: true},
			wantLines: []int64{4167},
			wantFinal: 29166,
		},
		{
			name:      "zero base",
			base:      0,
			rates:     rates,
			flags:     Flags{HasSiblingDiscount: true, IsEarlyPayment: true},
			wantLines: []int64{0, 0},
			wantFinal: 0,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := Calculate(tc.base, tc.rates, tc.flags)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(res.Discounts) != len(tc.wantLines) {
				t.Fatalf("expected %d discount lines, got %d", len(tc.wantLines), len(res.Discounts))
			}
			for i, want := range tc.wantLines {
				got := res.Discounts[i].Amount.Round(0).IntPart()
				if got != want {
					t.Fatalf("line %d: expected %d, got %d", i, want, got)
				}
			}
			if res.FinalAmount != tc.wantFinal {
				t.Fatalf("expected final %d, got %d", tc.wantFinal, res.FinalAmount)
			}
		})
	}
}

func TestCalculateOrdersSiblingBeforeEarlyPayment(t *testing.T) {
	res, err := Calculate(1000, Rates{
		SiblingPct:      decimal.NewFromInt(20),
		EarlyPaymentPct: decimal.NewFromInt(10),
	}, Flags{HasSiblingDiscount: true, IsEarlyPayment: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Discounts[0].Type != TypeSibling || res.Discounts[1].Type != TypeEarlyPayment {
		t.Fatalf("unexpected order %v", res.Discounts)
	}
}

func TestCalculateRejectsInvalidInput(t *testing.T) {
	cases := []struct {
		name  string
		base  int64
		rates Rates
	}{
		{name: "negative base", base: -1},
		{name: "pct over 100", base: 10, rates: Rates{SiblingPct: decimal.NewFromInt(101)}},
		{name: "negative pct", base: 10, rates: Rates{EarlyPaymentPct: decimal.NewFromInt(-5)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Calculate(tc.base, tc.rates, Flags{HasSiblingDiscount: true, IsEarlyPayment: true})
			if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestPercentOf(t *testing.T) {
	if got := PercentOf(25990, decimal.NewFromInt(10)); got != 2599 {
		t.Fatalf("expected 2599, got %d", got)
	}
	if got := PercentOf(15, decimal.NewFromInt(10)); got != 2 {
		t.Fatalf("expected half-up 2, got %d", got)
	}
}
