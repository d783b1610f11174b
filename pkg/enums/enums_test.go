package enums

import "testing"

func TestRoleAuthority(t *testing.T) {
	tests := []struct {
		role       Role
		privileged bool
		staff      bool
	}{
		{RoleDirectiva, true, true},
		{RoleTesorera, true, true},
		{RoleEntrenador, false, true},
		{RoleApoderado, false, false},
		{Role("admin"), false, false},
	}
	for _, tt := range tests {
		if got := tt.role.IsPrivileged(); got != tt.privileged {
			t.Fatalf("%s privileged = %v, want %v", tt.role, got, tt.privileged)
		}
		if got := tt.role.IsStaff(); got != tt.staff {
			t.Fatalf("%s staff = %v, want %v", tt.role, got, tt.staff)
		}
	}
}

func TestProofStateClassification(t *testing.T) {
	if !ProofStateValidated.IsTerminal() || !ProofStateRejected.IsTerminal() {
		t.Fatal("validated and rejected are terminal")
	}
	if ProofStateObserved.IsTerminal() || ProofStatePendingReview.IsTerminal() {
		t.Fatal("observed and pending_review are not terminal")
	}
	if ProofStatePendingReview.IsReviewDecision() {
		t.Fatal("pending_review is not a review decision")
	}
}

func TestParseRejectsUnknownValues(t *testing.T) {
	if _, err := ParseEnrollmentState("baja"); err == nil {
		t.Fatal("expected error for unknown enrollment state")
	}
	if _, err := ParseMovementType("transfer"); err == nil {
		t.Fatal("expected error for unknown movement type")
	}
	if got, err := ParseSalePaymentMethod("fee_deduction"); err != nil || got != SalePaymentFeeDeduction {
		t.Fatalf("unexpected parse result %q, %v", got, err)
	}
}

func TestParseErrorNamesKind(t *testing.T) {
	_, err := ParseRole("admin")
	if err == nil || err.Error() != `invalid role "admin"` {
		t.Fatalf("unexpected error %v", err)
	}
	if got, err := ParseSaleState("cancelled"); err != nil || got != SaleStateCancelled {
		t.Fatalf("unexpected parse result %q, %v", got, err)
	}
	if OutboxEventType("member_birthday").IsValid() {
		t.Fatal("unknown event types must not validate")
	}
}
