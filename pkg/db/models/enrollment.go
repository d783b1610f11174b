package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/angelmondragon/clubledger-backend/pkg/enums"
)

// RequiredDocument is one intake document and its review status.
type RequiredDocument struct {
	Name       string               `json:"name"`
	Status     enums.DocumentStatus `json:"status"`
	UpdatedAt  *time.Time           `json:"updated_at,omitempty"`
	ReviewedBy *string              `json:"reviewed_by,omitempty"`
}

// Enrollment is a member registration and its lifecycle state.
type Enrollment struct {
	ID                   uuid.UUID                              `gorm:"column:id;type:uuid;primaryKey"`
	StudentCode          string                                 `gorm:"column:student_code;not null;uniqueIndex:ux_enrollments_student_code"`
	NationalID           string                                 `gorm:"column:national_id;not null;uniqueIndex:ux_enrollments_national_id"`
	FirstName            string                                 `gorm:"column:first_name;not null"`
	LastName             string                                 `gorm:"column:last_name;not null"`
	BirthDate            *time.Time                             `gorm:"column:birth_date"`
	Gender               *string                                `gorm:"column:gender"`
	Address              *string                                `gorm:"column:address"`
	Phone                *string                                `gorm:"column:phone"`
	Email                *string                                `gorm:"column:email"`
	EmergencyContact     *string                                `gorm:"column:emergency_contact"`
	EmergencyPhone       *string                                `gorm:"column:emergency_phone"`
	GuardianNationalID   *string                                `gorm:"column:guardian_national_id;index"`
	GuardianName         *string                                `gorm:"column:guardian_name"`
	GuardianPhone        *string                                `gorm:"column:guardian_phone"`
	GuardianEmail        *string                                `gorm:"column:guardian_email"`
	GuardianRelation     *enums.GuardianRelation                `gorm:"column:guardian_relation;type:varchar(32)"`
	HealthNotes          *string                                `gorm:"column:health_notes"`
	MedicalAuthorization bool                                   `gorm:"column:medical_authorization;not null;default:false"`
	State                enums.EnrollmentState                  `gorm:"column:state;type:varchar(16);not null;default:pending;index"`
	PlanID               *uuid.UUID                             `gorm:"column:plan_id;type:uuid;index"`
	Documents            datatypes.JSONType[[]RequiredDocument] `gorm:"column:documents"`
	Notes                *string                                `gorm:"column:notes"`
	CreatedBy            string                                 `gorm:"column:created_by;not null"`
	ApprovedBy           *string                                `gorm:"column:approved_by"`
	ApprovedByName       *string                                `gorm:"column:approved_by_name"`
	ApprovedAt           *time.Time                             `gorm:"column:approved_at"`
	WithdrawnBy          *string                                `gorm:"column:withdrawn_by"`
	WithdrawnAt          *time.Time                             `gorm:"column:withdrawn_at"`
	WithdrawalReason     *string                                `gorm:"column:withdrawal_reason"`
	StateChangedAt       time.Time                              `gorm:"column:state_changed_at;not null"`
	CreatedAt            time.Time                              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time                              `gorm:"column:updated_at;autoUpdateTime"`
	PaymentProofs        []PaymentProof                         `gorm:"foreignKey:EnrollmentID;constraint:OnDelete:CASCADE"`
}

func (e *Enrollment) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}
