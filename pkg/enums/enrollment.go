package enums

import "slices"

// EnrollmentState maps to the enrollments.state column.
type EnrollmentState string

const (
	EnrollmentStatePending   EnrollmentState = "pending"
	EnrollmentStateActive    EnrollmentState = "active"
	EnrollmentStateInactive  EnrollmentState = "inactive"
	EnrollmentStateWithdrawn EnrollmentState = "withdrawn"
	EnrollmentStateSuspended EnrollmentState = "suspended"
)

var validEnrollmentStates = []EnrollmentState{
	EnrollmentStatePending,
	EnrollmentStateActive,
	EnrollmentStateInactive,
	EnrollmentStateWithdrawn,
	EnrollmentStateSuspended,
}

// IsValid reports whether the value matches a known enrollment state.
func (s EnrollmentState) IsValid() bool {
	return slices.Contains(validEnrollmentStates, s)
}

// IsTerminal reports whether no further transition may leave the state.
func (s EnrollmentState) IsTerminal() bool {
	return s == EnrollmentStateWithdrawn
}

// ParseEnrollmentState converts raw input into EnrollmentState.
func ParseEnrollmentState(value string) (EnrollmentState, error) {
	return parse(validEnrollmentStates, "enrollment state", value)
}

// GuardianRelation describes how the guardian relates to the member.
type GuardianRelation string

const (
	GuardianRelationFather      GuardianRelation = "father"
	GuardianRelationMother      GuardianRelation = "mother"
	GuardianRelationGrandfather GuardianRelation = "grandfather"
	GuardianRelationGrandmother GuardianRelation = "grandmother"
	GuardianRelationUncle       GuardianRelation = "uncle"
	GuardianRelationAunt        GuardianRelation = "aunt"
	GuardianRelationLegalTutor  GuardianRelation = "legal_tutor"
	GuardianRelationOther       GuardianRelation = "other"
)

var validGuardianRelations = []GuardianRelation{
	GuardianRelationFather,
	GuardianRelationMother,
	GuardianRelationGrandfather,
	GuardianRelationGrandmother,
	GuardianRelationUncle,
	GuardianRelationAunt,
	GuardianRelationLegalTutor,
	GuardianRelationOther,
}

// IsValid reports whether the value matches a known guardian relation.
func (r GuardianRelation) IsValid() bool {
	return slices.Contains(validGuardianRelations, r)
}

// ParseGuardianRelation converts raw input into GuardianRelation.
func ParseGuardianRelation(value string) (GuardianRelation, error) {
	return parse(validGuardianRelations, "guardian relation", value)
}

// DocumentStatus tracks a required intake document.
type DocumentStatus string

const (
	DocumentStatusPending  DocumentStatus = "pending"
	DocumentStatusReceived DocumentStatus = "received"
	DocumentStatusApproved DocumentStatus = "approved"
	DocumentStatusRejected DocumentStatus = "rejected"
)

var validDocumentStatuses = []DocumentStatus{
	DocumentStatusPending,
	DocumentStatusReceived,
	DocumentStatusApproved,
	DocumentStatusRejected,
}

// IsValid reports whether the value matches a known document status.
func (s DocumentStatus) IsValid() bool {
	return slices.Contains(validDocumentStatuses, s)
}

// ParseDocumentStatus converts raw input into DocumentStatus.
func ParseDocumentStatus(value string) (DocumentStatus, error) {
	return parse(validDocumentStatuses, "document status", value)
}
