package visibility

import (
	"testing"

	"github.com/angelmondragon/clubledger-backend/pkg/auth"
	"github.com/angelmondragon/clubledger-backend/pkg/enums"
	"github.com/angelmondragon/clubledger-backend/pkg/errors"
)

func TestSees(t *testing.T) {
	tests := []struct {
		role  enums.Role
		field Field
		want  bool
	}{
		{enums.RoleDirectiva, CostPrices, true},
		{enums.RoleTesorera, ReviewerIDs, true},
		{enums.RoleEntrenador, ContactHealth, true},
		{enums.RoleEntrenador, PlanMoney, false},
		{enums.RoleEntrenador, CostPrices, false},
		{enums.RoleApoderado, InternalNotes, false},
		{enums.RoleApoderado, CostPrices, false},
		{enums.RoleApoderado, ReviewerIDs, false},
		{enums.RoleApoderado, PlanMoney, true},
		{enums.Role("visitor"), ContactHealth, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+string(tt.field), func(t *testing.T) {
			if got := Sees(tt.role, tt.field); got != tt.want {
				t.Fatalf("Sees(%s, %s) = %v, want %v", tt.role, tt.field, got, tt.want)
			}
		})
	}
}

func TestEnsureGuardianOf(t *testing.T) {
	owner := "15666777-8"
	guardian := auth.Actor{ID: owner, Role: enums.RoleApoderado}
	other := auth.Actor{ID: "1-9", Role: enums.RoleApoderado}
	coach := auth.Actor{ID: "2-7", Role: enums.RoleEntrenador}

	if err := EnsureGuardianOf(guardian, &owner); err != nil {
		t.Fatalf("owner should pass: %v", err)
	}
	if err := EnsureGuardianOf(coach, nil); err != nil {
		t.Fatalf("staff should pass: %v", err)
	}
	if err := EnsureGuardianOf(other, &owner); !errors.IsCode(err, errors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := EnsureGuardianOf(guardian, nil); !errors.IsCode(err, errors.CodeNotFound) {
		t.Fatalf("expected not found for unowned record, got %v", err)
	}
}

func TestEnsureOwner(t *testing.T) {
	guardian := auth.Actor{ID: "15666777-8", Role: enums.RoleApoderado}
	if err := EnsureOwner(guardian, guardian.ID); err != nil {
		t.Fatalf("owner should pass: %v", err)
	}
	if err := EnsureOwner(guardian, "other"); !errors.IsCode(err, errors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := EnsureOwner(auth.Actor{ID: "x", Role: enums.RoleTesorera}, "other"); err != nil {
		t.Fatalf("staff should pass: %v", err)
	}
}
