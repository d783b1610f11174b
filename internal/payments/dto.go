package payments

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/clubledger-backend/pkg/db/models"
	"github.com/angelmondragon/clubledger-backend/pkg/enums"
)

// FileInput describes an uploaded receipt. The bytes live in external storage.
type FileInput struct {
	Path string
	Name string
	Type string
	Size int64
}

// SubmitProofInput is a validated proof submission.
type SubmitProofInput struct {
	EnrollmentID      uuid.UUID
	PlanID            *uuid.UUID
	Concept           enums.PaymentConcept
	Method            enums.PaymentMethod
	TransactionNumber *string
	Amount            int64
	PaymentDate       time.Time
	DueDate           *time.Time
	BillingPeriod     *string
	Bank              *string
	File              *FileInput
	Notes             *string
}

// UpdateProofInput carries the editable proof fields. Guardians may only set
// the first group; DueDate and BillingPeriod need a privileged role.
type UpdateProofInput struct {
	Method            *enums.PaymentMethod
	TransactionNumber *string
	Amount            *int64
	PaymentDate       *time.Time
	Concept           *enums.PaymentConcept
	Notes             *string
	File              *FileInput

	DueDate       *time.Time
	BillingPeriod *string
}

func (in UpdateProofInput) privilegedOnly() []string {
	var out []string
	if in.DueDate != nil {
		out = append(out, "due_date")
	}
	if in.BillingPeriod != nil {
		out = append(out, "billing_period")
	}
	return out
}

func (in UpdateProofInput) touchesLockedFields() bool {
	return in.Amount != nil || in.TransactionNumber != nil
}

func (in UpdateProofInput) fields() map[string]any {
	out := map[string]any{}
	if in.Method != nil {
		out["method"] = *in.Method
	}
	if in.TransactionNumber != nil {
		out["transaction_number"] = *in.TransactionNumber
	}
	if in.Amount != nil {
		out["amount"] = *in.Amount
	}
	if in.PaymentDate != nil {
		out["payment_date"] = *in.PaymentDate
	}
	if in.Concept != nil {
		out["concept"] = *in.Concept
	}
	if in.Notes != nil {
		out["notes"] = *in.Notes
	}
	if in.File != nil {
		out["file_path"] = in.File.Path
		out["file_name"] = in.File.Name
		out["file_type"] = in.File.Type
		out["file_size"] = in.File.Size
	}
	if in.DueDate != nil {
		out["due_date"] = *in.DueDate
	}
	if in.BillingPeriod != nil {
		out["billing_period"] = *in.BillingPeriod
	}
	return out
}

// ListFilter narrows proof listings and summaries.
type ListFilter struct {
	EnrollmentID *uuid.UUID
	State        *enums.ProofState
	SubmittedBy  string
	From         *time.Time
	To           *time.Time
}

type ProofDTO struct {
	ID                uuid.UUID            `json:"id"`
	EnrollmentID      uuid.UUID            `json:"enrollment_id"`
	PlanID            *uuid.UUID           `json:"plan_id,omitempty"`
	Concept           enums.PaymentConcept `json:"concept"`
	Method            enums.PaymentMethod  `json:"method"`
	TransactionNumber *string              `json:"transaction_number,omitempty"`
	Amount            int64                `json:"amount"`
	PaymentDate       time.Time            `json:"payment_date"`
	DueDate           *time.Time           `json:"due_date,omitempty"`
	BillingPeriod     *string              `json:"billing_period,omitempty"`
	Bank              *string              `json:"bank,omitempty"`
	FilePath          *string              `json:"file_path,omitempty"`
	FileName          *string              `json:"file_name,omitempty"`
	FileType          *string              `json:"file_type,omitempty"`
	FileSize          *int64               `json:"file_size,omitempty"`
	Notes             *string              `json:"notes,omitempty"`
	State             enums.ProofState     `json:"state"`
	SubmittedBy       string               `json:"submitted_by"`
	SubmittedByRole   enums.Role           `json:"submitted_by_role"`
	ReviewedBy        *string              `json:"reviewed_by,omitempty"`
	ReviewedAt        *time.Time           `json:"reviewed_at,omitempty"`
	ReviewNote        *string              `json:"review_note,omitempty"`
	CreatedAt         time.Time            `json:"created_at"`
	UpdatedAt         time.Time            `json:"updated_at"`
}

func NewProofDTO(p models.PaymentProof) ProofDTO {
	return ProofDTO{
		ID:                p.ID,
		EnrollmentID:      p.EnrollmentID,
		PlanID:            p.PlanID,
		Concept:           p.Concept,
		Method:            p.Method,
		TransactionNumber: p.TransactionNumber,
		Amount:            p.Amount,
		PaymentDate:       p.PaymentDate,
		DueDate:           p.DueDate,
		BillingPeriod:     p.BillingPeriod,
		Bank:              p.Bank,
		FilePath:          p.FilePath,
		FileName:          p.FileName,
		FileType:          p.FileType,
		FileSize:          p.FileSize,
		Notes:             p.Notes,
		State:             p.State,
		SubmittedBy:       p.SubmittedBy,
		SubmittedByRole:   p.SubmittedByRole,
		ReviewedBy:        p.ReviewedBy,
		ReviewedAt:        p.ReviewedAt,
		ReviewNote:        p.ReviewNote,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

// SummaryDTO aggregates proofs for the finance dashboard.
type SummaryDTO struct {
	ByState           []StateTotal  `json:"by_state"`
	ValidatedByMethod []MethodTotal `json:"validated_by_method"`
	TotalCount        int64         `json:"total_count"`
	ValidatedAmount   int64         `json:"validated_amount"`
	PendingAmount     int64         `json:"pending_amount"`
}
