package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/clubledger-backend/api/responses"
	"github.com/angelmondragon/clubledger-backend/api/validators"
	"github.com/angelmondragon/clubledger-backend/internal/enrollments"
	"github.com/angelmondragon/clubledger-backend/pkg/auth"
	"github.com/angelmondragon/clubledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/clubledger-backend/pkg/errors"
	"github.com/angelmondragon/clubledger-backend/pkg/logger"
	"github.com/angelmondragon/clubledger-backend/pkg/pagination"
	"github.com/angelmondragon/clubledger-backend/pkg/visibility"
)

type createEnrollmentRequest struct {
	NationalID           string     `json:"national_id" validate:"required,national_id"`
	FirstName            string     `json:"first_name" validate:"required,max=80"`
	LastName             string     `json:"last_name" validate:"required,max=80"`
	BirthDate            *string    `json:"birth_date,omitempty"`
	Gender               *string    `json:"gender,omitempty"`
	Address              *string    `json:"address,omitempty"`
	Phone                *string    `json:"phone,omitempty"`
	Email                *string    `json:"email,omitempty" validate:"omitempty,email"`
	EmergencyContact     *string    `json:"emergency_contact,omitempty"`
	EmergencyPhone       *string    `json:"emergency_phone,omitempty"`
	GuardianNationalID   *string    `json:"guardian_national_id,omitempty" validate:"omitempty,national_id"`
	GuardianName         *string    `json:"guardian_name,omitempty"`
	GuardianPhone        *string    `json:"guardian_phone,omitempty"`
	GuardianEmail        *string    `json:"guardian_email,omitempty" validate:"omitempty,email"`
	GuardianRelation     *string    `json:"guardian_relation,omitempty"`
	HealthNotes          *string    `json:"health_notes,omitempty"`
	MedicalAuthorization bool       `json:"medical_authorization"`
	PlanID               *uuid.UUID `json:"plan_id,omitempty"`
	Notes                *string    `json:"notes,omitempty"`
}

func (p createEnrollmentRequest) toInput(actor auth.Actor) (enrollments.CreateEnrollmentInput, error) {
	birth, err := parseDate("birth_date", p.BirthDate)
	if err != nil {
		return enrollments.CreateEnrollmentInput{}, err
	}
	relation, err := parseRelation(p.GuardianRelation)
	if err != nil {
		return enrollments.CreateEnrollmentInput{}, err
	}
	guardianID := trimmed(p.GuardianNationalID)
	if actor.Role == enums.RoleApoderado {
		// Guardians always register under their own identity.
		own := actor.ID
		guardianID = &own
	}
	return enrollments.CreateEnrollmentInput{
		NationalID:           p.NationalID,
		FirstName:            strings.TrimSpace(p.FirstName),
		LastName:             strings.TrimSpace(p.LastName),
		BirthDate:            birth,
		Gender:               trimmed(p.Gender),
		Address:              trimmed(p.Address),
		Phone:                trimmed(p.Phone),
		Email:                trimmed(p.Email),
		EmergencyContact:     trimmed(p.EmergencyContact),
		EmergencyPhone:       trimmed(p.EmergencyPhone),
		GuardianNationalID:   guardianID,
		GuardianName:         trimmed(p.GuardianName),
		GuardianPhone:        trimmed(p.GuardianPhone),
		GuardianEmail:        trimmed(p.GuardianEmail),
		GuardianRelation:     relation,
		HealthNotes:          trimmed(p.HealthNotes),
		MedicalAuthorization: p.MedicalAuthorization,
		PlanID:               p.PlanID,
		Notes:                trimmed(p.Notes),
	}, nil
}

type updateEnrollmentRequest struct {
	FirstName            *string    `json:"first_name,omitempty" validate:"omitempty,max=80"`
	LastName             *string    `json:"last_name,omitempty" validate:"omitempty,max=80"`
	Address              *string    `json:"address,omitempty"`
	Phone                *string    `json:"phone,omitempty"`
	Email                *string    `json:"email,omitempty" validate:"omitempty,email"`
	EmergencyContact     *string    `json:"emergency_contact,omitempty"`
	EmergencyPhone       *string    `json:"emergency_phone,omitempty"`
	GuardianName         *string    `json:"guardian_name,omitempty"`
	GuardianPhone        *string    `json:"guardian_phone,omitempty"`
	GuardianEmail        *string    `json:"guardian_email,omitempty" validate:"omitempty,email"`
	GuardianRelation     *string    `json:"guardian_relation,omitempty"`
	HealthNotes          *string    `json:"health_notes,omitempty"`
	MedicalAuthorization *bool      `json:"medical_authorization,omitempty"`
	PlanID               *uuid.UUID `json:"plan_id,omitempty"`
	Notes                *string    `json:"notes,omitempty"`
}

func (p updateEnrollmentRequest) toInput() (enrollments.UpdateEnrollmentInput, error) {
	relation, err := parseRelation(p.GuardianRelation)
	if err != nil {
		return enrollments.UpdateEnrollmentInput{}, err
	}
	return enrollments.UpdateEnrollmentInput{
		FirstName:            trimmed(p.FirstName),
		LastName:             trimmed(p.LastName),
		Address:              trimmed(p.Address),
		Phone:                trimmed(p.Phone),
		Email:                trimmed(p.Email),
		EmergencyContact:     trimmed(p.EmergencyContact),
		EmergencyPhone:       trimmed(p.EmergencyPhone),
		GuardianName:         trimmed(p.GuardianName),
		GuardianPhone:        trimmed(p.GuardianPhone),
		GuardianEmail:        trimmed(p.GuardianEmail),
		GuardianRelation:     relation,
		HealthNotes:          trimmed(p.HealthNotes),
		MedicalAuthorization: p.MedicalAuthorization,
		PlanID:               p.PlanID,
		Notes:                trimmed(p.Notes),
	}, nil
}

type withdrawRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type documentRequest struct {
	Status string `json:"status" validate:"required"`
}

func parseRelation(raw *string) (*enums.GuardianRelation, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	rel, err := enums.ParseGuardianRelation(strings.TrimSpace(*raw))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid guardian relation")
	}
	return &rel, nil
}

// EnrollmentList lists enrollments. Guardians only ever see their own children.
func EnrollmentList(svc enrollments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "enrollment")
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
		state, err := validators.ParseQueryEnum(r, "state", enums.ParseEnrollmentState)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		planID, err := validators.ParseQueryUUID(r, "plan_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter := enrollments.ListFilter{State: state, PlanID: planID, Query: validators.SearchTerm(r)}
		if !actor.Role.IsStaff() {
			filter.GuardianNationalID = actor.ID
		}
		page, err := svc.List(r.Context(), filter, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, pagination.Page[enrollments.EnrollmentDTO]{
			Items:      projectAll(actor.Role, page.Items, projectEnrollment),
			NextCursor: page.NextCursor,
		})
	}
}

func EnrollmentGet(svc enrollments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "enrollment")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.ParseUUIDParam(r, "enrollmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		e, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := visibility.EnsureGuardianOf(actor, e.GuardianNationalID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, projectEnrollment(actor.Role, *e))
	}
}

func EnrollmentCreate(svc enrollments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "enrollment")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		var payload createEnrollmentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput(actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		e, err := svc.Create(r.Context(), actor, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, projectEnrollment(actor.Role, *e))
	}
}

func EnrollmentUpdate(svc enrollments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "enrollment")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.ParseUUIDParam(r, "enrollmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload updateEnrollmentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		e, err := svc.Update(r.Context(), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, projectEnrollment(actor.Role, *e))
	}
}

type enrollmentTransition func(svc enrollments.Service, r *http.Request, actor auth.Actor, id uuid.UUID) (*enrollments.EnrollmentDTO, error)

// enrollmentAction wraps the shared id/actor plumbing of state transitions.
func enrollmentAction(svc enrollments.Service, logg *logger.Logger, do enrollmentTransition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "enrollment")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.ParseUUIDParam(r, "enrollmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		e, err := do(svc, r, actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, projectEnrollment(actor.Role, *e))
	}
}

func EnrollmentApprove(svc enrollments.Service, logg *logger.Logger) http.HandlerFunc {
	return enrollmentAction(svc, logg, func(svc enrollments.Service, r *http.Request, actor auth.Actor, id uuid.UUID) (*enrollments.EnrollmentDTO, error) {
		return svc.Approve(r.Context(), actor, id)
	})
}

func EnrollmentSuspend(svc enrollments.Service, logg *logger.Logger) http.HandlerFunc {
	return enrollmentAction(svc, logg, func(svc enrollments.Service, r *http.Request, actor auth.Actor, id uuid.UUID) (*enrollments.EnrollmentDTO, error) {
		return svc.Suspend(r.Context(), actor, id)
	})
}

func EnrollmentDeactivate(svc enrollments.Service, logg *logger.Logger) http.HandlerFunc {
	return enrollmentAction(svc, logg, func(svc enrollments.Service, r *http.Request, actor auth.Actor, id uuid.UUID) (*enrollments.EnrollmentDTO, error) {
		return svc.Deactivate(r.Context(), actor, id)
	})
}

func EnrollmentWithdraw(svc enrollments.Service, logg *logger.Logger) http.HandlerFunc {
	return enrollmentAction(svc, logg, func(svc enrollments.Service, r *http.Request, actor auth.Actor, id uuid.UUID) (*enrollments.EnrollmentDTO, error) {
		var payload withdrawRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.Withdraw(r.Context(), actor, id, payload.Reason)
	})
}

// EnrollmentDocument sets the review status of one required document.
func EnrollmentDocument(svc enrollments.Service, logg *logger.Logger) http.HandlerFunc {
	return enrollmentAction(svc, logg, func(svc enrollments.Service, r *http.Request, actor auth.Actor, id uuid.UUID) (*enrollments.EnrollmentDTO, error) {
		var payload documentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		status, err := enums.ParseDocumentStatus(strings.TrimSpace(payload.Status))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid document status")
		}
		return svc.UpdateDocument(r.Context(), actor, id, chi.URLParam(r, "document"), status)
	})
}
