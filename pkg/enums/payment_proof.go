package enums

import "slices"

// ProofState maps to the payment_proofs.state column.
type ProofState string

const (
	ProofStatePendingReview ProofState = "pending_review"
	ProofStateValidated     ProofState = "validated"
	ProofStateRejected      ProofState = "rejected"
	ProofStateObserved      ProofState = "observed"
)

var validProofStates = []ProofState{
	ProofStatePendingReview,
	ProofStateValidated,
	ProofStateRejected,
	ProofStateObserved,
}

// IsValid reports whether the value matches a known proof state.
func (s ProofState) IsValid() bool {
	return slices.Contains(validProofStates, s)
}

// IsTerminal reports whether the proof can no longer be reviewed.
func (s ProofState) IsTerminal() bool {
	return s == ProofStateValidated || s == ProofStateRejected
}

// IsReviewDecision reports whether the state is a valid review outcome.
func (s ProofState) IsReviewDecision() bool {
	return s == ProofStateValidated || s == ProofStateRejected || s == ProofStateObserved
}

// ParseProofState converts raw input into ProofState.
func ParseProofState(value string) (ProofState, error) {
	return parse(validProofStates, "proof state", value)
}

// PaymentConcept is what a proof pays for.
type PaymentConcept string

const (
	PaymentConceptMonthlyFee    PaymentConcept = "monthly_fee"
	PaymentConceptEnrollmentFee PaymentConcept = "enrollment_fee"
	PaymentConceptUniform       PaymentConcept = "uniform"
	PaymentConceptSpecialEvent  PaymentConcept = "special_event"
	PaymentConceptFine          PaymentConcept = "fine"
	PaymentConceptOther         PaymentConcept = "other"
)

var validPaymentConcepts = []PaymentConcept{
	PaymentConceptMonthlyFee,
	PaymentConceptEnrollmentFee,
	PaymentConceptUniform,
	PaymentConceptSpecialEvent,
	PaymentConceptFine,
	PaymentConceptOther,
}

// IsValid reports whether the value matches a known payment concept.
func (c PaymentConcept) IsValid() bool {
	return slices.Contains(validPaymentConcepts, c)
}

// ParsePaymentConcept converts raw input into PaymentConcept.
func ParsePaymentConcept(value string) (PaymentConcept, error) {
	return parse(validPaymentConcepts, "payment concept", value)
}

// PaymentMethod is how a proof's payment was made.
type PaymentMethod string

const (
	PaymentMethodTransfer PaymentMethod = "transfer"
	PaymentMethodDeposit  PaymentMethod = "deposit"
	PaymentMethodCash     PaymentMethod = "cash"
	PaymentMethodCheck    PaymentMethod = "check"
	PaymentMethodCard     PaymentMethod = "card"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodTransfer,
	PaymentMethodDeposit,
	PaymentMethodCash,
	PaymentMethodCheck,
	PaymentMethodCard,
}

// IsValid reports whether the value matches a known payment method.
func (m PaymentMethod) IsValid() bool {
	return slices.Contains(validPaymentMethods, m)
}

// ParsePaymentMethod converts raw input into PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	return parse(validPaymentMethods, "payment method", value)
}
