package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/clubledger-backend/api/responses"
	"github.com/angelmondragon/clubledger-backend/api/validators"
	"github.com/angelmondragon/clubledger-backend/internal/payments"
	"github.com/angelmondragon/clubledger-backend/pkg/auth"
	"github.com/angelmondragon/clubledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/clubledger-backend/pkg/errors"
	"github.com/angelmondragon/clubledger-backend/pkg/logger"
	"github.com/angelmondragon/clubledger-backend/pkg/pagination"
	"github.com/angelmondragon/clubledger-backend/pkg/visibility"
)

type fileRequest struct {
	Path string `json:"path" validate:"required"`
	Name string `json:"name" validate:"required"`
	Type string `json:"type" validate:"required"`
	Size int64  `json:"size" validate:"min=0"`
}

func (f *fileRequest) toInput() *payments.FileInput {
	if f == nil {
		return nil
	}
	return &payments.FileInput{Path: f.Path, Name: f.Name, Type: f.Type, Size: f.Size}
}

type submitProofRequest struct {
	EnrollmentID      uuid.UUID    `json:"enrollment_id" validate:"required"`
	PlanID            *uuid.UUID   `json:"plan_id,omitempty"`
	Concept           string       `json:"concept" validate:"required"`
	Method            string       `json:"method" validate:"required"`
	TransactionNumber *string      `json:"transaction_number,omitempty"`
	Amount            int64        `json:"amount" validate:"gt=0"`
	PaymentDate       string       `json:"payment_date" validate:"required"`
	DueDate           *string      `json:"due_date,omitempty"`
	BillingPeriod     *string      `json:"billing_period,omitempty"`
	Bank              *string      `json:"bank,omitempty"`
	File              *fileRequest `json:"file,omitempty"`
	Notes             *string      `json:"notes,omitempty"`
}

func (p submitProofRequest) toInput() (payments.SubmitProofInput, error) {
	concept, err := enums.ParsePaymentConcept(strings.TrimSpace(p.Concept))
	if err != nil {
		return payments.SubmitProofInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid concept")
	}
	method, err := enums.ParsePaymentMethod(strings.TrimSpace(p.Method))
	if err != nil {
		return payments.SubmitProofInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method")
	}
	paid, err := parseDate("payment_date", &p.PaymentDate)
	if err != nil {
		return payments.SubmitProofInput{}, err
	}
	if paid == nil {
		return payments.SubmitProofInput{}, pkgerrors.New(pkgerrors.CodeValidation, "payment date is required").
			WithDetails(map[string]any{"field": "payment_date"})
	}
	due, err := parseDate("due_date", p.DueDate)
	if err != nil {
		return payments.SubmitProofInput{}, err
	}
	return payments.SubmitProofInput{
		EnrollmentID:      p.EnrollmentID,
		PlanID:            p.PlanID,
		Concept:           concept,
		Method:            method,
		TransactionNumber: p.TransactionNumber,
		Amount:            p.Amount,
		PaymentDate:       *paid,
		DueDate:           due,
		BillingPeriod:     trimmed(p.BillingPeriod),
		Bank:              trimmed(p.Bank),
		File:              p.File.toInput(),
		Notes:             trimmed(p.Notes),
	}, nil
}

type updateProofRequest struct {
	Method            *string      `json:"method,omitempty"`
	TransactionNumber *string      `json:"transaction_number,omitempty"`
	Amount            *int64       `json:"amount,omitempty" validate:"omitempty,gt=0"`
	PaymentDate       *string      `json:"payment_date,omitempty"`
	Concept           *string      `json:"concept,omitempty"`
	Notes             *string      `json:"notes,omitempty"`
	File              *fileRequest `json:"file,omitempty"`
	DueDate           *string      `json:"due_date,omitempty"`
	BillingPeriod     *string      `json:"billing_period,omitempty"`
}

func (p updateProofRequest) toInput() (payments.UpdateProofInput, error) {
	in := payments.UpdateProofInput{
		TransactionNumber: p.TransactionNumber,
		Amount:            p.Amount,
		Notes:             trimmed(p.Notes),
		File:              p.File.toInput(),
		BillingPeriod:     trimmed(p.BillingPeriod),
	}
	if p.Method != nil {
		m, err := enums.ParsePaymentMethod(strings.TrimSpace(*p.Method))
		if err != nil {
			return in, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method")
		}
		in.Method = &m
	}
	if p.Concept != nil {
		c, err := enums.ParsePaymentConcept(strings.TrimSpace(*p.Concept))
		if err != nil {
			return in, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid concept")
		}
		in.Concept = &c
	}
	var err error
	if in.PaymentDate, err = parseDate("payment_date", p.PaymentDate); err != nil {
		return in, err
	}
	if in.DueDate, err = parseDate("due_date", p.DueDate); err != nil {
		return in, err
	}
	return in, nil
}

type reviewRequest struct {
	Decision string  `json:"decision" validate:"required"`
	Note     *string `json:"note,omitempty" validate:"omitempty,max=1000"`
}

// proofFilter reads the shared list/summary filters. Guardians are pinned to
// the proofs they submitted.
func proofFilter(r *http.Request, actor auth.Actor) (payments.ListFilter, error) {
	var filter payments.ListFilter
	var err error
	if filter.EnrollmentID, err = validators.ParseQueryUUID(r, "enrollment_id"); err != nil {
		return filter, err
	}
	if filter.State, err = validators.ParseQueryEnum(r, "state", enums.ParseProofState); err != nil {
		return filter, err
	}
	if filter.From, err = validators.ParseQueryDate(r, "from"); err != nil {
		return filter, err
	}
	if filter.To, err = validators.ParseQueryDate(r, "to"); err != nil {
		return filter, err
	}
	if !actor.Role.IsStaff() {
		filter.SubmittedBy = actor.ID
	}
	return filter, nil
}

func ProofList(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "payment")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter, err := proofFilter(r, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.List(r.Context(), filter, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, pagination.Page[payments.ProofDTO]{
			Items:      projectAll(actor.Role, page.Items, projectProof),
			NextCursor: page.NextCursor,
		})
	}
}

func ProofSummary(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "payment")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		filter, err := proofFilter(r, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		summary, err := svc.Summary(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

func ProofGet(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "payment")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.ParseUUIDParam(r, "proofId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		proof, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := visibility.EnsureOwner(actor, proof.SubmittedBy); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, projectProof(actor.Role, *proof))
	}
}

func ProofSubmit(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "payment")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		var payload submitProofRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		proof, err := svc.Submit(r.Context(), actor, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, projectProof(actor.Role, *proof))
	}
}

func ProofUpdate(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "payment")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.ParseUUIDParam(r, "proofId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload updateProofRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		proof, err := svc.Update(r.Context(), actor, id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, projectProof(actor.Role, *proof))
	}
}

func ProofReview(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "payment")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.ParseUUIDParam(r, "proofId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload reviewRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		decision, err := enums.ParseProofState(strings.TrimSpace(payload.Decision))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid decision"))
			return
		}
		proof, err := svc.Review(r.Context(), actor, id, decision, trimmed(payload.Note))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, projectProof(actor.Role, *proof))
	}
}

func ProofResubmit(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "payment")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.ParseUUIDParam(r, "proofId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		proof, err := svc.Resubmit(r.Context(), actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, projectProof(actor.Role, *proof))
	}
}

func ProofDelete(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "payment")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.ParseUUIDParam(r, "proofId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), actor, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"id": id, "deleted": true})
	}
}
