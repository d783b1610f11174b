package enrollments

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/clubledger-backend/pkg/db/models"
	"github.com/angelmondragon/clubledger-backend/pkg/enums"
)

// Intake documents every new enrollment starts with.
const (
	DocBirthCertificate      = "birth_certificate"
	DocMedicalCertificate    = "medical_certificate"
	DocGuardianAuthorization = "guardian_authorization"
)

var requiredDocuments = []string{DocBirthCertificate, DocMedicalCertificate, DocGuardianAuthorization}

// ListFilter narrows enrollment listings. GuardianNationalID pins the listing
// to one guardian's members.
type ListFilter struct {
	State              *enums.EnrollmentState
	PlanID             *uuid.UUID
	GuardianNationalID string
	Query              string
}

// CreateEnrollmentInput is a validated intake request.
type CreateEnrollmentInput struct {
	NationalID           string
	FirstName            string
	LastName             string
	BirthDate            *time.Time
	Gender               *string
	Address              *string
	Phone                *string
	Email                *string
	EmergencyContact     *string
	EmergencyPhone       *string
	GuardianNationalID   *string
	GuardianName         *string
	GuardianPhone        *string
	GuardianEmail        *string
	GuardianRelation     *enums.GuardianRelation
	HealthNotes          *string
	MedicalAuthorization bool
	PlanID               *uuid.UUID
	Notes                *string
}

// UpdateEnrollmentInput lists the fields callers may change after intake.
type UpdateEnrollmentInput struct {
	FirstName            *string
	LastName             *string
	Address              *string
	Phone                *string
	Email                *string
	EmergencyContact     *string
	EmergencyPhone       *string
	GuardianName         *string
	GuardianPhone        *string
	GuardianEmail        *string
	GuardianRelation     *enums.GuardianRelation
	HealthNotes          *string
	MedicalAuthorization *bool
	PlanID               *uuid.UUID
	Notes                *string
}

func (in UpdateEnrollmentInput) fields() map[string]any {
	out := map[string]any{}
	set := func(col string, v *string) {
		if v != nil {
			out[col] = *v
		}
	}
	set("first_name", in.FirstName)
	set("last_name", in.LastName)
	set("address", in.Address)
	set("phone", in.Phone)
	set("email", in.Email)
	set("emergency_contact", in.EmergencyContact)
	set("emergency_phone", in.EmergencyPhone)
	set("guardian_name", in.GuardianName)
	set("guardian_phone", in.GuardianPhone)
	set("guardian_email", in.GuardianEmail)
	set("health_notes", in.HealthNotes)
	set("notes", in.Notes)
	if in.GuardianRelation != nil {
		out["guardian_relation"] = *in.GuardianRelation
	}
	if in.MedicalAuthorization != nil {
		out["medical_authorization"] = *in.MedicalAuthorization
	}
	if in.PlanID != nil {
		out["plan_id"] = *in.PlanID
	}
	return out
}

type DocumentDTO struct {
	Name       string               `json:"name"`
	Status     enums.DocumentStatus `json:"status"`
	UpdatedAt  *time.Time           `json:"updated_at,omitempty"`
	ReviewedBy *string              `json:"reviewed_by,omitempty"`
}

type EnrollmentDTO struct {
	ID                   uuid.UUID               `json:"id"`
	StudentCode          string                  `json:"student_code"`
	NationalID           string                  `json:"national_id"`
	FirstName            string                  `json:"first_name"`
	LastName             string                  `json:"last_name"`
	BirthDate            *time.Time              `json:"birth_date,omitempty"`
	Gender               *string                 `json:"gender,omitempty"`
	Address              *string                 `json:"address,omitempty"`
	Phone                *string                 `json:"phone,omitempty"`
	Email                *string                 `json:"email,omitempty"`
	EmergencyContact     *string                 `json:"emergency_contact,omitempty"`
	EmergencyPhone       *string                 `json:"emergency_phone,omitempty"`
	GuardianNationalID   *string                 `json:"guardian_national_id,omitempty"`
	GuardianName         *string                 `json:"guardian_name,omitempty"`
	GuardianPhone        *string                 `json:"guardian_phone,omitempty"`
	GuardianEmail        *string                 `json:"guardian_email,omitempty"`
	GuardianRelation     *enums.GuardianRelation `json:"guardian_relation,omitempty"`
	HealthNotes          *string                 `json:"health_notes,omitempty"`
	MedicalAuthorization bool                    `json:"medical_authorization"`
	State                enums.EnrollmentState   `json:"state"`
	PlanID               *uuid.UUID              `json:"plan_id,omitempty"`
	Documents            []DocumentDTO           `json:"documents"`
	Notes                *string                 `json:"notes,omitempty"`
	CreatedBy            string                  `json:"created_by"`
	ApprovedBy           *string                 `json:"approved_by,omitempty"`
	ApprovedByName       *string                 `json:"approved_by_name,omitempty"`
	ApprovedAt           *time.Time              `json:"approved_at,omitempty"`
	WithdrawnBy          *string                 `json:"withdrawn_by,omitempty"`
	WithdrawnAt          *time.Time              `json:"withdrawn_at,omitempty"`
	WithdrawalReason     *string                 `json:"withdrawal_reason,omitempty"`
	StateChangedAt       time.Time               `json:"state_changed_at"`
	CreatedAt            time.Time               `json:"created_at"`
	UpdatedAt            time.Time               `json:"updated_at"`
}

func NewEnrollmentDTO(e models.Enrollment) EnrollmentDTO {
	docs := e.Documents.Data()
	out := make([]DocumentDTO, 0, len(docs))
	for _, d := range docs {
		out = append(out, DocumentDTO(d))
	}
	return EnrollmentDTO{
		ID:                   e.ID,
		StudentCode:          e.StudentCode,
		NationalID:           e.NationalID,
		FirstName:            e.FirstName,
		LastName:             e.LastName,
		BirthDate:            e.BirthDate,
		Gender:               e.Gender,
		Address:              e.Address,
		Phone:                e.Phone,
		Email:                e.Email,
		EmergencyContact:     e.EmergencyContact,
		EmergencyPhone:       e.EmergencyPhone,
		GuardianNationalID:   e.GuardianNationalID,
		GuardianName:         e.GuardianName,
		GuardianPhone:        e.GuardianPhone,
		GuardianEmail:        e.GuardianEmail,
		GuardianRelation:     e.GuardianRelation,
		HealthNotes:          e.HealthNotes,
		MedicalAuthorization: e.MedicalAuthorization,
		State:                e.State,
		PlanID:               e.PlanID,
		Documents:            out,
		Notes:                e.Notes,
		CreatedBy:            e.CreatedBy,
		ApprovedBy:           e.ApprovedBy,
		ApprovedByName:       e.ApprovedByName,
		ApprovedAt:           e.ApprovedAt,
		WithdrawnBy:          e.WithdrawnBy,
		WithdrawnAt:          e.WithdrawnAt,
		WithdrawalReason:     e.WithdrawalReason,
		StateChangedAt:       e.StateChangedAt,
		CreatedAt:            e.CreatedAt,
		UpdatedAt:            e.UpdatedAt,
	}
}
