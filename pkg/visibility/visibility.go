// Package visibility decides which field groups and records each role may see.
package visibility

import (
	"github.com/angelmondragon/clubledger-backend/pkg/auth"
	"github.com/angelmondragon/clubledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/clubledger-backend/pkg/errors"
)

// Field names a group of sensitive fields.
type Field string

const (
	// InternalNotes covers staff notes on enrollments, proofs and sales.
	InternalNotes Field = "internal_notes"
	// CostPrices covers product purchase cost and supplier.
	CostPrices Field = "cost_prices"
	// ReviewerIDs covers the ids of staff who approved, reviewed or cancelled.
	ReviewerIDs Field = "reviewer_ids"
	// PlanMoney covers plan amounts, discounts and late fees.
	PlanMoney Field = "plan_money"
	// ContactHealth covers member contact and health data.
	ContactHealth Field = "contact_health"
)

var policy = map[enums.Role]map[Field]bool{
	enums.RoleDirectiva: {
		InternalNotes: true, CostPrices: true, ReviewerIDs: true, PlanMoney: true, ContactHealth: true,
	},
	enums.RoleTesorera: {
		InternalNotes: true, CostPrices: true, ReviewerIDs: true, PlanMoney: true, ContactHealth: true,
	},
	enums.RoleEntrenador: {
		InternalNotes: true, ContactHealth: true,
	},
	enums.RoleApoderado: {
		PlanMoney: true, ContactHealth: true,
	},
}

// Sees reports whether role may read the field group. Unknown roles see nothing.
func Sees(role enums.Role, field Field) bool {
	return policy[role][field]
}

// EnsureGuardianOf hides records that belong to another guardian. Staff pass.
// The miss is reported as not found so ids of other members do not leak.
func EnsureGuardianOf(actor auth.Actor, guardianNationalID *string) error {
	if actor.Role.IsStaff() {
		return nil
	}
	if actor.Role == enums.RoleApoderado && guardianNationalID != nil && *guardianNationalID == actor.ID {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeNotFound, "record not found")
}

// EnsureOwner hides records created by someone else from non-staff actors.
func EnsureOwner(actor auth.Actor, ownerID string) error {
	if actor.Role.IsStaff() || (ownerID != "" && ownerID == actor.ID) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeNotFound, "record not found")
}
