// Package plans manages the payment-plan registry and the amounts derived from it.
package plans

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/clubledger-backend/internal/discount"
	"github.com/angelmondragon/clubledger-backend/pkg/auth"
	"github.com/angelmondragon/clubledger-backend/pkg/db"
	"github.com/angelmondragon/clubledger-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/clubledger-backend/pkg/errors"
	"github.com/angelmondragon/clubledger-backend/pkg/lookup"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes plan registry operations.
type Service interface {
	Create(ctx context.Context, actor auth.Actor, input CreatePlanInput) (*PlanDTO, error)
	Update(ctx context.Context, id uuid.UUID, input UpdatePlanInput) (*PlanDTO, error)
	Deactivate(ctx context.Context, id uuid.UUID) (*PlanDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*PlanDTO, error)
	List(ctx context.Context, filter ListFilter) ([]PlanDTO, error)
	// Reference resolves a plan used as a foreign reference; inactive plans
	// count as missing.
	Reference(ctx context.Context, id uuid.UUID) (*models.Plan, error)
	CalculateAmount(ctx context.Context, id uuid.UUID, flags discount.Flags) (*discount.Result, error)
}

type service struct {
	db      txRunner
	repo    *Repository
	timeout time.Duration
	now     func() time.Time
}

// NewService builds the registry. lookupTimeout bounds plan reads; zero means
// lookup.DefaultTimeout.
func NewService(dbClient txRunner, repo *Repository, lookupTimeout time.Duration) (Service, error) {
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if repo == nil {
		return nil, fmt.Errorf("plans repository required")
	}
	return &service{
		db:      dbClient,
		repo:    repo,
		timeout: lookupTimeout,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Create(ctx context.Context, actor auth.Actor, input CreatePlanInput) (*PlanDTO, error) {
	if err := validateCreate(input); err != nil {
		return nil, err
	}
	includes, err := toJSON(input.Includes)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid includes")
	}
	restrictions, err := toJSON(input.Restrictions)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid restrictions")
	}

	validFrom := s.now()
	if input.ValidFrom != nil {
		validFrom = input.ValidFrom.UTC()
	}
	if input.ValidUntil != nil && input.ValidUntil.Before(validFrom) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "valid_until must be after valid_from")
	}
	graceDays := defaultGraceDays
	if input.GraceDays != nil {
		graceDays = *input.GraceDays
	}

	plan := &models.Plan{
		Name:                    strings.TrimSpace(input.Name),
		Description:             input.Description,
		Category:                input.Category,
		Modality:                input.Modality,
		BaseAmount:              input.BaseAmount,
		SiblingDiscountPct:      input.SiblingDiscountPct,
		EarlyPaymentDiscountPct: input.EarlyPaymentDiscountPct,
		Includes:                includes,
		Restrictions:            restrictions,
		ValidFrom:               validFrom,
		ValidUntil:              input.ValidUntil,
		Active:                  true,
		GraceDays:               graceDays,
		LateFee:                 input.LateFee,
		LateInterestPct:         input.LateInterestPct,
		Notes:                   input.Notes,
		SortOrder:               input.SortOrder,
		CreatedBy:               actor.ID,
	}
	if err := s.repo.Create(ctx, plan); err != nil {
		return nil, mapWriteErr(err, plan.Name)
	}
	return s.Get(ctx, plan.ID)
}

func validateCreate(input CreatePlanInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if !input.Category.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid category").
			WithDetails(map[string]any{"category": string(input.Category)})
	}
	if !input.Modality.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid modality").
			WithDetails(map[string]any{"modality": string(input.Modality)})
	}
	return validateAmounts(&input.BaseAmount, &input.SiblingDiscountPct, &input.EarlyPaymentDiscountPct,
		input.GraceDays, &input.LateFee, &input.LateInterestPct)
}

func validateAmounts(base *int64, sibling, early *decimal.Decimal, graceDays *int, lateFee *int64, lateInterest *decimal.Decimal) error {
	if base != nil && *base < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "base_amount must be >= 0")
	}
	pcts := []struct {
		field string
		value *decimal.Decimal
	}{
		{"sibling_discount_pct", sibling},
		{"early_payment_discount_pct", early},
		{"late_interest_pct", lateInterest},
	}
	for _, p := range pcts {
		if p.value == nil {
			continue
		}
		if err := discount.ValidatePct(p.field, *p.value); err != nil {
			return err
		}
	}
	if graceDays != nil && *graceDays < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "grace_days must be >= 0")
	}
	if lateFee != nil && *lateFee < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "late_fee must be >= 0")
	}
	return nil
}

// Update applies whitelisted changes. Amounts already recorded elsewhere keep the
// values they were captured with. Turning a plan inactive goes through the same
// guard as Deactivate.
func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdatePlanInput) (*PlanDTO, error) {
	if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
	}
	if input.Category != nil && !input.Category.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid category")
	}
	if input.Modality != nil && !input.Modality.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid modality")
	}
	if err := validateAmounts(input.BaseAmount, input.SiblingDiscountPct, input.EarlyPaymentDiscountPct,
		input.GraceDays, input.LateFee, input.LateInterestPct); err != nil {
		return nil, err
	}
	if input.Name != nil {
		trimmed := strings.TrimSpace(*input.Name)
		input.Name = &trimmed
	}
	fields, err := input.fields()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid plan payload")
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := s.lockPlan(ctx, repo, id)
		if err != nil {
			return err
		}
		if input.ValidUntil != nil && input.ValidUntil.Before(current.ValidFrom) {
			return pkgerrors.New(pkgerrors.CodeValidation, "valid_until must be after valid_from")
		}
		if input.Active != nil && !*input.Active && current.Active {
			if err := s.ensureUnreferenced(ctx, repo, id); err != nil {
				return err
			}
			if _, ok := fields["valid_until"]; !ok {
				fields["valid_until"] = s.now()
			}
		}
		if err := repo.UpdateFields(ctx, id, fields); err != nil {
			name := current.Name
			if input.Name != nil {
				name = *input.Name
			}
			return mapWriteErr(err, name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Deactivate retires the plan and closes its validity window. It fails while an
// active enrollment still points at it.
func (s *service) Deactivate(ctx context.Context, id uuid.UUID) (*PlanDTO, error) {
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := s.lockPlan(ctx, repo, id); err != nil {
			return err
		}
		if err := s.ensureUnreferenced(ctx, repo, id); err != nil {
			return err
		}
		if err := repo.UpdateFields(ctx, id, map[string]any{
			"active":      false,
			"valid_until": s.now(),
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate plan")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *service) lockPlan(ctx context.Context, repo *Repository, id uuid.UUID) (*models.Plan, error) {
	var plan *models.Plan
	err := lookup.Within(ctx, s.timeout, "plan", func(ctx context.Context) error {
		var err error
		plan, err = repo.FindForUpdate(ctx, id)
		return err
	})
	if err != nil {
		return nil, mapPlanErr(err, id)
	}
	return plan, nil
}

func (s *service) ensureUnreferenced(ctx context.Context, repo *Repository, id uuid.UUID) error {
	n, err := repo.CountActiveEnrollments(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count active enrollments")
	}
	if n > 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "plan is referenced by active enrollments").
			WithDetails(map[string]any{"plan_id": id.String(), "active_enrollments": n})
	}
	return nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*PlanDTO, error) {
	plan, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapPlanErr(err, id)
	}
	dto := NewPlanDTO(*plan)
	return &dto, nil
}

func (s *service) List(ctx context.Context, filter ListFilter) ([]PlanDTO, error) {
	if filter.Category != nil && !filter.Category.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid category")
	}
	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list plans")
	}
	out := make([]PlanDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, NewPlanDTO(row))
	}
	return out, nil
}

func (s *service) Reference(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	return lookup.Do(ctx, s.timeout, "plan", func(ctx context.Context) (*models.Plan, error) {
		plan, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return nil, mapPlanErr(err, id)
		}
		if !plan.Active {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "plan not found or inactive").
				WithDetails(map[string]any{"plan_id": id.String()})
		}
		return plan, nil
	})
}

// CalculateAmount prices the plan with the requested discounts. A missing or
// inactive plan is a validation failure of the request.
func (s *service) CalculateAmount(ctx context.Context, id uuid.UUID, flags discount.Flags) (*discount.Result, error) {
	plan, err := s.Reference(ctx, id)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan not found or inactive").
				WithDetails(map[string]any{"plan_id": id.String()})
		}
		return nil, err
	}
	result, err := discount.Calculate(plan.BaseAmount, discount.Rates{
		SiblingPct:      plan.SiblingDiscountPct,
		EarlyPaymentPct: plan.EarlyPaymentDiscountPct,
	}, flags)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func mapPlanErr(err error, id uuid.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "plan not found").
			WithDetails(map[string]any{"plan_id": id.String()})
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load plan")
}

func mapWriteErr(err error, name string) error {
	if db.IsUniqueViolation(err, "ux_plans_name") {
		return pkgerrors.New(pkgerrors.CodeDuplicateName, "plan name already exists").
			WithDetails(map[string]any{"name": name})
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write plan")
}
