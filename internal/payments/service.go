// Package payments runs the payment-proof review workflow.
package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/clubledger-backend/internal/notifications"
	"github.com/angelmondragon/clubledger-backend/pkg/auth"
	"github.com/angelmondragon/clubledger-backend/pkg/db"
	"github.com/angelmondragon/clubledger-backend/pkg/db/models"
	"github.com/angelmondragon/clubledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/clubledger-backend/pkg/errors"
	"github.com/angelmondragon/clubledger-backend/pkg/logger"
	"github.com/angelmondragon/clubledger-backend/pkg/lookup"
	"github.com/angelmondragon/clubledger-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/clubledger-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type enrollmentFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Enrollment, error)
}

type planReferencer interface {
	Reference(ctx context.Context, id uuid.UUID) (*models.Plan, error)
}

// Service exposes the proof workflow.
type Service interface {
	Submit(ctx context.Context, actor auth.Actor, input SubmitProofInput) (*ProofDTO, error)
	Review(ctx context.Context, actor auth.Actor, id uuid.UUID, decision enums.ProofState, note *string) (*ProofDTO, error)
	Update(ctx context.Context, actor auth.Actor, id uuid.UUID, input UpdateProofInput) (*ProofDTO, error)
	Resubmit(ctx context.Context, actor auth.Actor, id uuid.UUID) (*ProofDTO, error)
	Delete(ctx context.Context, actor auth.Actor, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*ProofDTO, error)
	List(ctx context.Context, filter ListFilter, params pagination.Params) (pagination.Page[ProofDTO], error)
	Summary(ctx context.Context, filter ListFilter) (*SummaryDTO, error)
}

// Deps wires the proof service.
type Deps struct {
	DB          txRunner
	Repo        *Repository
	Enrollments enrollmentFinder
	Plans       planReferencer
	Notifier    notifications.Notifier
	Logger      *logger.Logger
	Clock       func() time.Time

	// LookupTimeout bounds enrollment and proof reads; zero means
	// lookup.DefaultTimeout.
	LookupTimeout time.Duration
}

type service struct {
	db          txRunner
	repo        *Repository
	enrollments enrollmentFinder
	plans       planReferencer
	notifier    notifications.Notifier
	logg        *logger.Logger
	now         func() time.Time
	timeout     time.Duration
}

func NewService(deps Deps) (Service, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	if deps.Repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if deps.Enrollments == nil {
		return nil, fmt.Errorf("enrollment finder required")
	}
	if deps.Plans == nil {
		return nil, fmt.Errorf("plan registry required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	svc := &service{
		db:          deps.DB,
		repo:        deps.Repo,
		enrollments: deps.Enrollments,
		plans:       deps.Plans,
		notifier:    deps.Notifier,
		logg:        deps.Logger,
		now:         deps.Clock,
		timeout:     deps.LookupTimeout,
	}
	if svc.notifier == nil {
		svc.notifier = notifications.Nop{}
	}
	if svc.now == nil {
		svc.now = func() time.Time { return time.Now().UTC() }
	}
	return svc, nil
}

// Submit records a proof. Proofs sent by finance staff are validated on entry;
// everyone else's wait for review.
func (s *service) Submit(ctx context.Context, actor auth.Actor, input SubmitProofInput) (*ProofDTO, error) {
	if err := validateSubmit(input); err != nil {
		return nil, err
	}
	enrollment, err := lookup.Do(ctx, s.timeout, "enrollment", func(ctx context.Context) (*models.Enrollment, error) {
		e, err := s.enrollments.FindByID(ctx, input.EnrollmentID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "enrollment not found").
				WithDetails(map[string]any{"enrollment_id": input.EnrollmentID.String()})
		}
		return e, err
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load enrollment")
	}
	if actor.Role == enums.RoleApoderado && !guardianOf(actor, enrollment) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "enrollment belongs to another guardian")
	}
	if input.PlanID != nil {
		if _, err := s.plans.Reference(ctx, *input.PlanID); err != nil {
			return nil, err
		}
	}
	txNumber := trimmed(input.TransactionNumber)
	if txNumber != nil {
		if err := s.ensureTransactionFree(ctx, *txNumber, nil); err != nil {
			return nil, err
		}
	}

	proof := &models.PaymentProof{
		EnrollmentID:      input.EnrollmentID,
		PlanID:            input.PlanID,
		Concept:           input.Concept,
		Method:            input.Method,
		TransactionNumber: txNumber,
		Amount:            input.Amount,
		PaymentDate:       input.PaymentDate,
		DueDate:           input.DueDate,
		BillingPeriod:     input.BillingPeriod,
		Bank:              input.Bank,
		Notes:             input.Notes,
		State:             enums.ProofStatePendingReview,
		SubmittedBy:       actor.ID,
		SubmittedByRole:   actor.Role,
	}
	if input.File != nil {
		proof.FilePath = &input.File.Path
		proof.FileName = &input.File.Name
		proof.FileType = &input.File.Type
		proof.FileSize = &input.File.Size
	}
	if actor.Role.IsPrivileged() {
		now := s.now()
		reviewer := actor.ID
		proof.State = enums.ProofStateValidated
		proof.ReviewedBy = &reviewer
		proof.ReviewedAt = &now
	}

	if err := s.repo.Create(ctx, proof); err != nil {
		if db.IsUniqueViolation(err, "ux_payment_proofs_transaction_number") {
			return nil, duplicateTransaction(*txNumber)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert payment proof")
	}
	logCtx := s.logg.WithAggregate(ctx, string(enums.AggregatePaymentProof), proof.ID.String())
	s.logg.Info(s.logg.WithField(logCtx, "state", string(proof.State)), "payment proof submitted")
	return s.Get(ctx, proof.ID)
}

func validateSubmit(input SubmitProofInput) error {
	if input.EnrollmentID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "enrollment_id is required")
	}
	if !input.Concept.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid concept")
	}
	if !input.Method.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	if input.Amount <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be > 0")
	}
	if input.PaymentDate.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment_date is required")
	}
	return nil
}

func guardianOf(actor auth.Actor, e *models.Enrollment) bool {
	return e.GuardianNationalID != nil && *e.GuardianNationalID == actor.ID
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	out := strings.TrimSpace(*v)
	if out == "" {
		return nil
	}
	return &out
}

func (s *service) ensureTransactionFree(ctx context.Context, number string, except *uuid.UUID) error {
	taken, err := s.repo.TransactionNumberTaken(ctx, number, except)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check transaction number")
	}
	if taken {
		return duplicateTransaction(number)
	}
	return nil
}

func duplicateTransaction(number string) error {
	return pkgerrors.New(pkgerrors.CodeDuplicateTransaction, "transaction number already registered").
		WithDetails(map[string]any{"transaction_number": number})
}

// Review settles a pending proof. Rejections and observations need a note.
func (s *service) Review(ctx context.Context, actor auth.Actor, id uuid.UUID, decision enums.ProofState, note *string) (*ProofDTO, error) {
	if !decision.IsReviewDecision() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "decision must be validated, rejected or observed").
			WithDetails(map[string]any{"decision": string(decision)})
	}
	note = trimmed(note)
	if decision != enums.ProofStateValidated && note == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a note is required when rejecting or observing a proof")
	}

	var reviewed models.PaymentProof
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		proof, err := s.lockProof(ctx, repo, id)
		if err != nil {
			return err
		}
		if proof.State != enums.ProofStatePendingReview {
			return invalidState(proof.State, decision)
		}
		now := s.now()
		ok, err := repo.UpdateFields(ctx, id, enums.ProofStatePendingReview, map[string]any{
			"state":       decision,
			"reviewed_by": actor.ID,
			"reviewed_at": now,
			"review_note": note,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "review payment proof")
		}
		if !ok {
			return invalidState(proof.State, decision)
		}
		reviewed = *proof
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, notifications.Notification{
		Event:       enums.EventProofReviewed,
		Aggregate:   enums.AggregatePaymentProof,
		AggregateID: id,
		Actor:       actor,
		Data: payloads.ProofReviewedEvent{
			ProofID:      id,
			EnrollmentID: reviewed.EnrollmentID,
			SubmittedBy:  reviewed.SubmittedBy,
			Decision:     decision,
			Amount:       reviewed.Amount,
			Note:         note,
		},
	})
	return s.Get(ctx, id)
}

func (s *service) lockProof(ctx context.Context, repo *Repository, id uuid.UUID) (*models.PaymentProof, error) {
	var proof *models.PaymentProof
	err := lookup.Within(ctx, s.timeout, "payment proof", func(ctx context.Context) error {
		var err error
		proof, err = repo.FindForUpdate(ctx, id)
		return err
	})
	if err != nil {
		return nil, mapProofErr(err, id)
	}
	return proof, nil
}

func invalidState(from, to enums.ProofState) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("proof in state %s cannot become %s", from, to)).
		WithDetails(map[string]any{"state": string(from), "target": string(to)})
}

// Update edits a proof. Submitters may edit their own proof while it awaits
// review; finance staff may edit in any state except that a validated proof
// keeps its amount and transaction number.
func (s *service) Update(ctx context.Context, actor auth.Actor, id uuid.UUID, input UpdateProofInput) (*ProofDTO, error) {
	if err := validateUpdate(input); err != nil {
		return nil, err
	}
	privileged := actor.Role.IsPrivileged()
	if fields := input.privilegedOnly(); !privileged && len(fields) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "fields require a finance role").
			WithDetails(map[string]any{"fields": fields})
	}
	input.TransactionNumber = trimmed(input.TransactionNumber)

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		proof, err := s.lockProof(ctx, repo, id)
		if err != nil {
			return err
		}
		switch {
		case privileged:
			if proof.State == enums.ProofStateValidated && input.touchesLockedFields() {
				return lockedRecord(proof, "validated proofs keep their amount and transaction number")
			}
		case proof.SubmittedBy != actor.ID:
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the submitter may edit this proof")
		case proof.State != enums.ProofStatePendingReview:
			return lockedRecord(proof, "proof is no longer editable")
		}

		if input.TransactionNumber != nil {
			taken, err := repo.TransactionNumberTaken(ctx, *input.TransactionNumber, &id)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check transaction number")
			}
			if taken {
				return duplicateTransaction(*input.TransactionNumber)
			}
		}
		fields := input.fields()
		if len(fields) == 0 {
			return nil
		}
		ok, err := repo.UpdateFields(ctx, id, proof.State, fields)
		if err != nil {
			if db.IsUniqueViolation(err, "ux_payment_proofs_transaction_number") {
				return duplicateTransaction(*input.TransactionNumber)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment proof")
		}
		if !ok {
			return lockedRecord(proof, "proof changed state during update")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func validateUpdate(input UpdateProofInput) error {
	if input.Method != nil && !input.Method.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	if input.Concept != nil && !input.Concept.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid concept")
	}
	if input.Amount != nil && *input.Amount <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be > 0")
	}
	if input.PaymentDate != nil && input.PaymentDate.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment_date cannot be empty")
	}
	return nil
}

func lockedRecord(proof *models.PaymentProof, msg string) error {
	return pkgerrors.New(pkgerrors.CodeLockedRecord, msg).
		WithDetails(map[string]any{"proof_id": proof.ID.String(), "state": string(proof.State)})
}

// Resubmit sends an observed proof back to the review queue.
func (s *service) Resubmit(ctx context.Context, actor auth.Actor, id uuid.UUID) (*ProofDTO, error) {
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		proof, err := s.lockProof(ctx, repo, id)
		if err != nil {
			return err
		}
		if !actor.Role.IsPrivileged() && proof.SubmittedBy != actor.ID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the submitter may resubmit this proof")
		}
		if proof.State != enums.ProofStateObserved {
			return invalidState(proof.State, enums.ProofStatePendingReview)
		}
		ok, err := repo.UpdateFields(ctx, id, enums.ProofStateObserved, map[string]any{
			"state":       enums.ProofStatePendingReview,
			"reviewed_by": nil,
			"reviewed_at": nil,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resubmit payment proof")
		}
		if !ok {
			return invalidState(proof.State, enums.ProofStatePendingReview)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Delete removes a proof for good. Only the club board may do it.
func (s *service) Delete(ctx context.Context, actor auth.Actor, id uuid.UUID) error {
	if actor.Role != enums.RoleDirectiva {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only the board may delete payment proofs")
	}
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete payment proof")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "payment proof not found").
			WithDetails(map[string]any{"proof_id": id.String()})
	}
	logCtx := s.logg.WithAggregate(s.logg.WithUserID(ctx, actor.ID), string(enums.AggregatePaymentProof), id.String())
	s.logg.Warn(logCtx, "payment proof deleted")
	return nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*ProofDTO, error) {
	proof, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapProofErr(err, id)
	}
	dto := NewProofDTO(*proof)
	return &dto, nil
}

func (s *service) List(ctx context.Context, filter ListFilter, params pagination.Params) (pagination.Page[ProofDTO], error) {
	if filter.State != nil && !filter.State.IsValid() {
		return pagination.Page[ProofDTO]{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid state filter")
	}
	page, err := s.repo.List(ctx, filter, params)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return pagination.Page[ProofDTO]{}, err
		}
		return pagination.Page[ProofDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payment proofs")
	}
	return pagination.Map(page, NewProofDTO), nil
}

func (s *service) Summary(ctx context.Context, filter ListFilter) (*SummaryDTO, error) {
	byState, err := s.repo.TotalsByState(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "summarize proofs by state")
	}
	byMethod, err := s.repo.ValidatedByMethod(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "summarize proofs by method")
	}
	out := &SummaryDTO{ByState: byState, ValidatedByMethod: byMethod}
	if out.ByState == nil {
		out.ByState = []StateTotal{}
	}
	if out.ValidatedByMethod == nil {
		out.ValidatedByMethod = []MethodTotal{}
	}
	for _, row := range byState {
		out.TotalCount += row.Count
		switch row.State {
		case enums.ProofStateValidated:
			out.ValidatedAmount += row.Amount
		case enums.ProofStatePendingReview:
			out.PendingAmount += row.Amount
		}
	}
	return out, nil
}

func mapProofErr(err error, id uuid.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "payment proof not found").
			WithDetails(map[string]any{"proof_id": id.String()})
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment proof")
}
