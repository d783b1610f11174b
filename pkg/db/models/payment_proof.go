package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/clubledger-backend/pkg/enums"
)

// PaymentProof is a submitted record evidencing a payment for an enrollment.
type PaymentProof struct {
	ID                uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	EnrollmentID      uuid.UUID            `gorm:"column:enrollment_id;type:uuid;not null;index"`
	PlanID            *uuid.UUID           `gorm:"column:plan_id;type:uuid"`
	Concept           enums.PaymentConcept `gorm:"column:concept;type:varchar(32);not null"`
	Method            enums.PaymentMethod  `gorm:"column:method;type:varchar(32);not null"`
	TransactionNumber *string              `gorm:"column:transaction_number;uniqueIndex:ux_payment_proofs_transaction_number"`
	Amount            int64                `gorm:"column:amount;not null"`
	PaymentDate       time.Time            `gorm:"column:payment_date;not null"`
	DueDate           *time.Time           `gorm:"column:due_date"`
	BillingPeriod     *string              `gorm:"column:billing_period"`
	Bank              *string              `gorm:"column:bank"`
	FilePath          *string              `gorm:"column:file_path"`
	FileName          *string              `gorm:"column:file_name"`
	FileType          *string              `gorm:"column:file_type"`
	FileSize          *int64               `gorm:"column:file_size"`
	Notes             *string              `gorm:"column:notes"`
	State             enums.ProofState     `gorm:"column:state;type:varchar(16);not null;index"`
	SubmittedBy       string               `gorm:"column:submitted_by;not null"`
	SubmittedByRole   enums.Role           `gorm:"column:submitted_by_role;type:varchar(16);not null"`
	ReviewedBy        *string              `gorm:"column:reviewed_by"`
	ReviewedAt        *time.Time           `gorm:"column:reviewed_at"`
	ReviewNote        *string              `gorm:"column:review_note"`
	CreatedAt         time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *PaymentProof) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
