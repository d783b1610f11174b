package payloads

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/clubledger-backend/pkg/enums"
)

// EnrollmentApprovedEvent tells the guardian an enrollment became active.
type EnrollmentApprovedEvent struct {
	EnrollmentID       uuid.UUID `json:"enrollment_id"`
	StudentCode        string    `json:"student_code"`
	StudentName        string    `json:"student_name"`
	GuardianNationalID *string   `json:"guardian_national_id,omitempty"`
	GuardianEmail      *string   `json:"guardian_email,omitempty"`
	ApprovedBy         string    `json:"approved_by"`
}

// ProofReviewedEvent tells the submitter the outcome of a proof review.
type ProofReviewedEvent struct {
	ProofID      uuid.UUID        `json:"proof_id"`
	EnrollmentID uuid.UUID        `json:"enrollment_id"`
	SubmittedBy  string           `json:"submitted_by"`
	Decision     enums.ProofState `json:"decision"`
	Amount       int64            `json:"amount"`
	Note         *string          `json:"note,omitempty"`
}

// SaleCancelledEvent reports a reversed sale to the buyer and finance.
type SaleCancelledEvent struct {
	SaleID    uuid.UUID `json:"sale_id"`
	SaleCode  string    `json:"sale_code"`
	BuyerID   string    `json:"buyer_id"`
	Total     int64     `json:"total"`
	Reason    string    `json:"reason"`
	Cancelled string    `json:"cancelled_by"`
}

// StockLowEvent fires when a movement leaves a product at or below its minimum.
type StockLowEvent struct {
	ProductID   uuid.UUID `json:"product_id"`
	ProductCode string    `json:"product_code"`
	StockOnHand int       `json:"stock_on_hand"`
	MinStock    int       `json:"min_stock"`
}
