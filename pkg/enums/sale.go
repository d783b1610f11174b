package enums

import "slices"

// SaleState maps to the sales.state column.
type SaleState string

const (
	SaleStateCompleted SaleState = "completed"
	SaleStateCancelled SaleState = "cancelled"
)

var validSaleStates = []SaleState{SaleStateCompleted, SaleStateCancelled}

func (s SaleState) IsValid() bool {
	return slices.Contains(validSaleStates, s)
}

// SalePaymentMethod is how the buyer settles a sale.
type SalePaymentMethod string

const (
	SalePaymentCash         SalePaymentMethod = "cash"
	SalePaymentTransfer     SalePaymentMethod = "transfer"
	SalePaymentCard         SalePaymentMethod = "card"
	SalePaymentFeeDeduction SalePaymentMethod = "fee_deduction"
	SalePaymentCredit       SalePaymentMethod = "credit"
)

var validSalePaymentMethods = []SalePaymentMethod{
	SalePaymentCash,
	SalePaymentTransfer,
	SalePaymentCard,
	SalePaymentFeeDeduction,
	SalePaymentCredit,
}

// IsValid reports whether the value matches a known sale payment method.
func (m SalePaymentMethod) IsValid() bool {
	return slices.Contains(validSalePaymentMethods, m)
}

// ParseSalePaymentMethod converts raw input into SalePaymentMethod.
func ParseSalePaymentMethod(value string) (SalePaymentMethod, error) {
	return parse(validSalePaymentMethods, "sale payment method", value)
}

// ParseSaleState converts raw input into a SaleState.
func ParseSaleState(value string) (SaleState, error) {
	return parse(validSaleStates, "sale state", value)
}
