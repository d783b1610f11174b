package controllers

import (
	"github.com/angelmondragon/clubledger-backend/internal/enrollments"
	"github.com/angelmondragon/clubledger-backend/internal/inventory"
	"github.com/angelmondragon/clubledger-backend/internal/payments"
	"github.com/angelmondragon/clubledger-backend/internal/plans"
	"github.com/angelmondragon/clubledger-backend/internal/sales"
	"github.com/angelmondragon/clubledger-backend/pkg/enums"
	"github.com/angelmondragon/clubledger-backend/pkg/visibility"
)

// redacted shadows a promoted DTO field; it is always nil so the key drops
// out of the encoded payload.
type redacted *struct{}

// planView hides the money fields of a plan.
type planView struct {
	plans.PlanDTO
	BaseAmount              redacted `json:"base_amount,omitempty"`
	SiblingDiscountPct      redacted `json:"sibling_discount_pct,omitempty"`
	EarlyPaymentDiscountPct redacted `json:"early_payment_discount_pct,omitempty"`
	LateFee                 redacted `json:"late_fee,omitempty"`
	LateInterestPct         redacted `json:"late_interest_pct,omitempty"`
}

func projectPlan(role enums.Role, p plans.PlanDTO) any {
	if !visibility.Sees(role, visibility.InternalNotes) {
		p.Notes = nil
	}
	if !visibility.Sees(role, visibility.PlanMoney) {
		return planView{PlanDTO: p}
	}
	return p
}

func projectPlans(role enums.Role, items []plans.PlanDTO) []any {
	out := make([]any, 0, len(items))
	for _, p := range items {
		out = append(out, projectPlan(role, p))
	}
	return out
}

func projectEnrollment(role enums.Role, e enrollments.EnrollmentDTO) enrollments.EnrollmentDTO {
	if !visibility.Sees(role, visibility.InternalNotes) {
		e.Notes = nil
		e.WithdrawalReason = nil
	}
	if !visibility.Sees(role, visibility.ReviewerIDs) {
		e.ApprovedBy = nil
		e.WithdrawnBy = nil
		docs := make([]enrollments.DocumentDTO, len(e.Documents))
		for i, d := range e.Documents {
			d.ReviewedBy = nil
			docs[i] = d
		}
		e.Documents = docs
	}
	if !visibility.Sees(role, visibility.ContactHealth) {
		e.Address = nil
		e.Phone = nil
		e.Email = nil
		e.EmergencyContact = nil
		e.EmergencyPhone = nil
		e.GuardianPhone = nil
		e.GuardianEmail = nil
		e.HealthNotes = nil
	}
	return e
}

func projectProof(role enums.Role, p payments.ProofDTO) payments.ProofDTO {
	if !visibility.Sees(role, visibility.InternalNotes) {
		p.Notes = nil
	}
	if !visibility.Sees(role, visibility.ReviewerIDs) {
		p.ReviewedBy = nil
	}
	return p
}

func projectProduct(role enums.Role, p inventory.ProductDTO) inventory.ProductDTO {
	if !visibility.Sees(role, visibility.CostPrices) {
		p.CostPrice = nil
		p.Supplier = nil
	}
	return p
}

func projectSale(role enums.Role, s sales.SaleDTO) sales.SaleDTO {
	if !visibility.Sees(role, visibility.InternalNotes) {
		s.Notes = nil
	}
	if !visibility.Sees(role, visibility.ReviewerIDs) {
		s.CancelledBy = nil
	}
	return s
}

// projectAll applies fn to every item of a page slice.
func projectAll[T any](role enums.Role, items []T, fn func(enums.Role, T) T) []T {
	out := make([]T, len(items))
	for i, item := range items {
		out[i] = fn(role, item)
	}
	return out
}
