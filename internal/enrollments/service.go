// Package enrollments runs the member enrollment lifecycle:
// pending -> active -> inactive | suspended | withdrawn.
package enrollments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/angelmondragon/clubledger-backend/internal/notifications"
	"github.com/angelmondragon/clubledger-backend/internal/users"
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

const defaultCodeAttempts = 10

// allowedFrom lists, per target state, the states a transition may start from.
var allowedFrom = map[enums.EnrollmentState][]enums.EnrollmentState{
	enums.EnrollmentStateActive:    {enums.EnrollmentStatePending},
	enums.EnrollmentStateSuspended: {enums.EnrollmentStateActive},
	enums.EnrollmentStateInactive:  {enums.EnrollmentStateActive, enums.EnrollmentStateSuspended},
	enums.EnrollmentStateWithdrawn: {
		enums.EnrollmentStatePending,
		enums.EnrollmentStateActive,
		enums.EnrollmentStateInactive,
		enums.EnrollmentStateSuspended,
	},
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type planReferencer interface {
	Reference(ctx context.Context, id uuid.UUID) (*models.Plan, error)
}

// Service exposes the enrollment state machine.
type Service interface {
	Create(ctx context.Context, actor auth.Actor, input CreateEnrollmentInput) (*EnrollmentDTO, error)
	Approve(ctx context.Context, actor auth.Actor, id uuid.UUID) (*EnrollmentDTO, error)
	Withdraw(ctx context.Context, actor auth.Actor, id uuid.UUID, reason string) (*EnrollmentDTO, error)
	Suspend(ctx context.Context, actor auth.Actor, id uuid.UUID) (*EnrollmentDTO, error)
	Deactivate(ctx context.Context, actor auth.Actor, id uuid.UUID) (*EnrollmentDTO, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateEnrollmentInput) (*EnrollmentDTO, error)
	UpdateDocument(ctx context.Context, actor auth.Actor, id uuid.UUID, name string, status enums.DocumentStatus) (*EnrollmentDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*EnrollmentDTO, error)
	List(ctx context.Context, filter ListFilter, params pagination.Params) (pagination.Page[EnrollmentDTO], error)
}

// Deps wires the enrollment service.
type Deps struct {
	DB           txRunner
	Repo         *Repository
	Plans        planReferencer
	Directory    users.Directory
	Notifier     notifications.Notifier
	Logger       *logger.Logger
	CodeAttempts int
	Codes        CodeSource
	Clock        func() time.Time

	// LookupTimeout bounds row reads inside transitions; zero means
	// lookup.DefaultTimeout.
	LookupTimeout time.Duration
}

type service struct {
	db        txRunner
	repo      *Repository
	plans     planReferencer
	directory users.Directory
	notifier  notifications.Notifier
	logg      *logger.Logger
	attempts  int
	codes     CodeSource
	now       func() time.Time
	timeout   time.Duration
}

func NewService(deps Deps) (Service, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	if deps.Repo == nil {
		return nil, fmt.Errorf("enrollments repository required")
	}
	if deps.Plans == nil {
		return nil, fmt.Errorf("plan registry required")
	}
	if deps.Directory == nil {
		return nil, fmt.Errorf("user directory required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	svc := &service{
		db:        deps.DB,
		repo:      deps.Repo,
		plans:     deps.Plans,
		directory: deps.Directory,
		notifier:  deps.Notifier,
		logg:      deps.Logger,
		attempts:  deps.CodeAttempts,
		codes:     deps.Codes,
		now:       deps.Clock,
		timeout:   deps.LookupTimeout,
	}
	if svc.notifier == nil {
		svc.notifier = notifications.Nop{}
	}
	if svc.attempts <= 0 {
		svc.attempts = defaultCodeAttempts
	}
	if svc.codes == nil {
		svc.codes = RandomCodes
	}
	if svc.now == nil {
		svc.now = func() time.Time { return time.Now().UTC() }
	}
	return svc, nil
}

func (s *service) Create(ctx context.Context, actor auth.Actor, input CreateEnrollmentInput) (*EnrollmentDTO, error) {
	nationalID := users.NormalizeNationalID(input.NationalID)
	if nationalID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "national_id is required")
	}
	firstName := strings.TrimSpace(input.FirstName)
	lastName := strings.TrimSpace(input.LastName)
	if firstName == "" || lastName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "first_name and last_name are required")
	}
	if input.GuardianRelation != nil && !input.GuardianRelation.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid guardian relation")
	}
	if input.PlanID != nil {
		if _, err := s.plans.Reference(ctx, *input.PlanID); err != nil {
			return nil, err
		}
	}

	exists, err := s.repo.NationalIDExists(ctx, nationalID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check national id")
	}
	if exists {
		return nil, duplicateNationalID(nationalID)
	}

	now := s.now()
	code, err := s.nextStudentCode(ctx, now.Year())
	if err != nil {
		return nil, err
	}

	var guardianID *string
	if input.GuardianNationalID != nil {
		normalized := users.NormalizeNationalID(*input.GuardianNationalID)
		guardianID = &normalized
	}
	docs := make([]models.RequiredDocument, 0, len(requiredDocuments))
	for _, name := range requiredDocuments {
		docs = append(docs, models.RequiredDocument{Name: name, Status: enums.DocumentStatusPending})
	}

	enrollment := &models.Enrollment{
		StudentCode:          code,
		NationalID:           nationalID,
		FirstName:            firstName,
		LastName:             lastName,
		BirthDate:            input.BirthDate,
		Gender:               input.Gender,
		Address:              input.Address,
		Phone:                input.Phone,
		Email:                input.Email,
		EmergencyContact:     input.EmergencyContact,
		EmergencyPhone:       input.EmergencyPhone,
		GuardianNationalID:   guardianID,
		GuardianName:         input.GuardianName,
		GuardianPhone:        input.GuardianPhone,
		GuardianEmail:        input.GuardianEmail,
		GuardianRelation:     input.GuardianRelation,
		HealthNotes:          input.HealthNotes,
		MedicalAuthorization: input.MedicalAuthorization,
		State:                enums.EnrollmentStatePending,
		PlanID:               input.PlanID,
		Documents:            datatypes.NewJSONType(docs),
		Notes:                input.Notes,
		CreatedBy:            actor.ID,
		StateChangedAt:       now,
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		switch {
		case db.IsUniqueViolation(err, "ux_enrollments_national_id"):
			return nil, duplicateNationalID(nationalID)
		case db.IsUniqueViolation(err, "ux_enrollments_student_code"):
			return nil, pkgerrors.New(pkgerrors.CodeCodeGeneration, "student code collided").
				WithDetails(map[string]any{"student_code": code})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert enrollment")
	}

	logCtx := s.logg.WithAggregate(ctx, string(enums.AggregateEnrollment), enrollment.ID.String())
	s.logg.Info(logCtx, "enrollment created")
	return s.Get(ctx, enrollment.ID)
}

func duplicateNationalID(nationalID string) error {
	return pkgerrors.New(pkgerrors.CodeDuplicateKey, "an enrollment already exists for this national id").
		WithDetails(map[string]any{"national_id": nationalID})
}

func (s *service) nextStudentCode(ctx context.Context, year int) (string, error) {
	for attempt := 0; attempt < s.attempts; attempt++ {
		code := s.codes(year)
		taken, err := s.repo.StudentCodeExists(ctx, code)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check student code")
		}
		if !taken {
			return code, nil
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeCodeGeneration, "could not allocate a student code").
		WithDetails(map[string]any{"attempts": s.attempts})
}

// Approve moves a pending enrollment to active and records who approved it.
func (s *service) Approve(ctx context.Context, actor auth.Actor, id uuid.UUID) (*EnrollmentDTO, error) {
	var approverName *string
	name, err := s.directory.DisplayName(ctx, actor.ID)
	switch {
	case err == nil:
		approverName = &name
	case pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
		s.logg.Warn(s.logg.WithUserID(ctx, actor.ID), "approver missing from user directory")
	default:
		return nil, err
	}

	var enrollment *models.Enrollment
	err = s.transition(ctx, id, enums.EnrollmentStateActive, func(e *models.Enrollment, now time.Time) map[string]any {
		enrollment = e
		return map[string]any{
			"approved_by":      actor.ID,
			"approved_by_name": approverName,
			"approved_at":      now,
		}
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, notifications.Notification{
		Event:       enums.EventEnrollmentApproved,
		Aggregate:   enums.AggregateEnrollment,
		AggregateID: id,
		Actor:       actor,
		Data: payloads.EnrollmentApprovedEvent{
			EnrollmentID:       id,
			StudentCode:        enrollment.StudentCode,
			StudentName:        enrollment.FirstName + " " + enrollment.LastName,
			GuardianNationalID: enrollment.GuardianNationalID,
			GuardianEmail:      enrollment.GuardianEmail,
			ApprovedBy:         actor.ID,
		},
	})
	return s.Get(ctx, id)
}

// Withdraw is terminal. Payment proofs are left as they are.
func (s *service) Withdraw(ctx context.Context, actor auth.Actor, id uuid.UUID, reason string) (*EnrollmentDTO, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "withdrawal reason is required")
	}
	err := s.transition(ctx, id, enums.EnrollmentStateWithdrawn, func(_ *models.Enrollment, now time.Time) map[string]any {
		return map[string]any{
			"withdrawn_by":      actor.ID,
			"withdrawn_at":      now,
			"withdrawal_reason": reason,
		}
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *service) Suspend(ctx context.Context, _ auth.Actor, id uuid.UUID) (*EnrollmentDTO, error) {
	if err := s.transition(ctx, id, enums.EnrollmentStateSuspended, nil); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *service) Deactivate(ctx context.Context, _ auth.Actor, id uuid.UUID) (*EnrollmentDTO, error) {
	if err := s.transition(ctx, id, enums.EnrollmentStateInactive, nil); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// transition locks the row, checks the move against allowedFrom and writes the
// new state plus any extra columns returned by extra.
func (s *service) transition(ctx context.Context, id uuid.UUID, target enums.EnrollmentState, extra func(*models.Enrollment, time.Time) map[string]any) error {
	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := s.lockEnrollment(ctx, repo, id)
		if err != nil {
			return err
		}
		if !canTransition(current.State, target) {
			return invalidState(current.State, target)
		}
		if target == enums.EnrollmentStateActive && current.PlanID != nil {
			if err := s.requireActivePlan(ctx, repo, *current.PlanID); err != nil {
				return err
			}
		}

		now := s.now()
		fields := map[string]any{"state": target, "state_changed_at": now}
		if extra != nil {
			for k, v := range extra(current, now) {
				fields[k] = v
			}
		}
		ok, err := repo.UpdateFields(ctx, id, current.State, fields)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update enrollment state")
		}
		if !ok {
			return invalidState(current.State, target)
		}
		return nil
	})
}

func (s *service) lockEnrollment(ctx context.Context, repo *Repository, id uuid.UUID) (*models.Enrollment, error) {
	var e *models.Enrollment
	err := lookup.Within(ctx, s.timeout, "enrollment", func(ctx context.Context) error {
		var err error
		e, err = repo.FindForUpdate(ctx, id)
		return err
	})
	if err != nil {
		return nil, mapEnrollmentErr(err, id)
	}
	return e, nil
}

// requireActivePlan locks the plan row for the rest of the transaction, so the
// plan cannot be deactivated while an enrollment becomes active on it.
func (s *service) requireActivePlan(ctx context.Context, repo *Repository, planID uuid.UUID) error {
	var plan *models.Plan
	err := lookup.Within(ctx, s.timeout, "plan", func(ctx context.Context) error {
		var err error
		plan, err = repo.LockPlan(ctx, planID)
		return err
	})
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !plan.Active):
		return pkgerrors.New(pkgerrors.CodeNotFound, "plan not found or inactive").
			WithDetails(map[string]any{"plan_id": planID.String()})
	case err != nil && pkgerrors.As(err) != nil:
		return err
	case err != nil:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load plan")
	}
	return nil
}

func canTransition(from, to enums.EnrollmentState) bool {
	for _, allowed := range allowedFrom[to] {
		if allowed == from {
			return true
		}
	}
	return false
}

func invalidState(from, to enums.EnrollmentState) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("enrollment cannot move from %s to %s", from, to)).
		WithDetails(map[string]any{"state": string(from), "target": string(to)})
}

// Update applies whitelisted fields. Withdrawn enrollments are read-only.
func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateEnrollmentInput) (*EnrollmentDTO, error) {
	for _, name := range []*string{input.FirstName, input.LastName} {
		if name != nil && strings.TrimSpace(*name) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "names cannot be empty")
		}
	}
	if input.GuardianRelation != nil && !input.GuardianRelation.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid guardian relation")
	}
	fields := input.fields()

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := s.lockEnrollment(ctx, repo, id)
		if err != nil {
			return err
		}
		if current.State.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "withdrawn enrollments cannot be edited").
				WithDetails(map[string]any{"state": string(current.State)})
		}
		if input.PlanID != nil {
			if err := s.requireActivePlan(ctx, repo, *input.PlanID); err != nil {
				return err
			}
		}
		if len(fields) == 0 {
			return nil
		}
		if _, err := repo.UpdateFields(ctx, id, current.State, fields); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update enrollment")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// UpdateDocument records the review status of one intake document.
func (s *service) UpdateDocument(ctx context.Context, actor auth.Actor, id uuid.UUID, name string, status enums.DocumentStatus) (*EnrollmentDTO, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid document status")
	}
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := s.lockEnrollment(ctx, repo, id)
		if err != nil {
			return err
		}
		if current.State.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "withdrawn enrollments cannot be edited")
		}

		docs := current.Documents.Data()
		idx := -1
		for i := range docs {
			if docs[i].Name == name {
				idx = i
				break
			}
		}
		if idx < 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "document not found").
				WithDetails(map[string]any{"document": name})
		}
		now := s.now()
		reviewer := actor.ID
		docs[idx].Status = status
		docs[idx].UpdatedAt = &now
		docs[idx].ReviewedBy = &reviewer

		if _, err := repo.UpdateFields(ctx, id, current.State, map[string]any{
			"documents": datatypes.NewJSONType(docs),
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update documents")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*EnrollmentDTO, error) {
	e, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapEnrollmentErr(err, id)
	}
	dto := NewEnrollmentDTO(*e)
	return &dto, nil
}

func (s *service) List(ctx context.Context, filter ListFilter, params pagination.Params) (pagination.Page[EnrollmentDTO], error) {
	if filter.State != nil && !filter.State.IsValid() {
		return pagination.Page[EnrollmentDTO]{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid state filter")
	}
	if filter.GuardianNationalID != "" {
		filter.GuardianNationalID = users.NormalizeNationalID(filter.GuardianNationalID)
	}
	page, err := s.repo.List(ctx, filter, params)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return pagination.Page[EnrollmentDTO]{}, err
		}
		return pagination.Page[EnrollmentDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list enrollments")
	}
	return pagination.Map(page, NewEnrollmentDTO), nil
}

func mapEnrollmentErr(err error, id uuid.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "enrollment not found").
			WithDetails(map[string]any{"enrollment_id": id.String()})
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load enrollment")
}
