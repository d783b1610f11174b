package controllers

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/clubledger-backend/api/responses"
	"github.com/angelmondragon/clubledger-backend/api/validators"
	"github.com/angelmondragon/clubledger-backend/internal/discount"
	"github.com/angelmondragon/clubledger-backend/internal/plans"
	"github.com/angelmondragon/clubledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/clubledger-backend/pkg/errors"
	"github.com/angelmondragon/clubledger-backend/pkg/logger"
	"github.com/angelmondragon/clubledger-backend/pkg/pagination"
	"github.com/angelmondragon/clubledger-backend/pkg/visibility"
)

type createPlanRequest struct {
	Name                    string           `json:"name" validate:"required,max=120"`
	Description             *string          `json:"description,omitempty"`
	Category                string           `json:"category" validate:"required"`
	Modality                string           `json:"modality" validate:"required"`
	BaseAmount              int64            `json:"base_amount" validate:"min=0"`
	SiblingDiscountPct      *decimal.Decimal `json:"sibling_discount_pct,omitempty"`
	EarlyPaymentDiscountPct *decimal.Decimal `json:"early_payment_discount_pct,omitempty"`
	Includes                []string         `json:"includes,omitempty"`
	Restrictions            []string         `json:"restrictions,omitempty"`
	ValidFrom               *string          `json:"valid_from,omitempty"`
	ValidUntil              *string          `json:"valid_until,omitempty"`
	GraceDays               *int             `json:"grace_days,omitempty" validate:"omitempty,min=0"`
	LateFee                 int64            `json:"late_fee" validate:"min=0"`
	LateInterestPct         *decimal.Decimal `json:"late_interest_pct,omitempty"`
	Notes                   *string          `json:"notes,omitempty"`
	SortOrder               int              `json:"sort_order"`
}

func (p createPlanRequest) toInput() (plans.CreatePlanInput, error) {
	category, err := enums.ParsePlanCategory(strings.TrimSpace(p.Category))
	if err != nil {
		return plans.CreatePlanInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category")
	}
	modality, err := enums.ParseBillingModality(strings.TrimSpace(p.Modality))
	if err != nil {
		return plans.CreatePlanInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid modality")
	}
	from, err := parseDate("valid_from", p.ValidFrom)
	if err != nil {
		return plans.CreatePlanInput{}, err
	}
	until, err := parseDate("valid_until", p.ValidUntil)
	if err != nil {
		return plans.CreatePlanInput{}, err
	}
	return plans.CreatePlanInput{
		Name:                    strings.TrimSpace(p.Name),
		Description:             trimmed(p.Description),
		Category:                category,
		Modality:                modality,
		BaseAmount:              p.BaseAmount,
		SiblingDiscountPct:      decimalOrZero(p.SiblingDiscountPct),
		EarlyPaymentDiscountPct: decimalOrZero(p.EarlyPaymentDiscountPct),
		Includes:                p.Includes,
		Restrictions:            p.Restrictions,
		ValidFrom:               from,
		ValidUntil:              until,
		GraceDays:               p.GraceDays,
		LateFee:                 p.LateFee,
		LateInterestPct:         decimalOrZero(p.LateInterestPct),
		Notes:                   trimmed(p.Notes),
		SortOrder:               p.SortOrder,
	}, nil
}

type updatePlanRequest struct {
	Name                    *string          `json:"name,omitempty" validate:"omitempty,max=120"`
	Description             *string          `json:"description,omitempty"`
	Category                *string          `json:"category,omitempty"`
	Modality                *string          `json:"modality,omitempty"`
	BaseAmount              *int64           `json:"base_amount,omitempty" validate:"omitempty,min=0"`
	SiblingDiscountPct      *decimal.Decimal `json:"sibling_discount_pct,omitempty"`
	EarlyPaymentDiscountPct *decimal.Decimal `json:"early_payment_discount_pct,omitempty"`
	Includes                *[]string        `json:"includes,omitempty"`
	Restrictions            *[]string        `json:"restrictions,omitempty"`
	ValidUntil              *string          `json:"valid_until,omitempty"`
	Active                  *bool            `json:"active,omitempty"`
	GraceDays               *int             `json:"grace_days,omitempty" validate:"omitempty,min=0"`
	LateFee                 *int64           `json:"late_fee,omitempty" validate:"omitempty,min=0"`
	LateInterestPct         *decimal.Decimal `json:"late_interest_pct,omitempty"`
	Notes                   *string          `json:"notes,omitempty"`
	SortOrder               *int             `json:"sort_order,omitempty"`
}

func (p updatePlanRequest) toInput() (plans.UpdatePlanInput, error) {
	in := plans.UpdatePlanInput{
		Name:                    trimmed(p.Name),
		Description:             trimmed(p.Description),
		BaseAmount:              p.BaseAmount,
		SiblingDiscountPct:      p.SiblingDiscountPct,
		EarlyPaymentDiscountPct: p.EarlyPaymentDiscountPct,
		Includes:                p.Includes,
		Restrictions:            p.Restrictions,
		Active:                  p.Active,
		GraceDays:               p.GraceDays,
		LateFee:                 p.LateFee,
		LateInterestPct:         p.LateInterestPct,
		Notes:                   trimmed(p.Notes),
		SortOrder:               p.SortOrder,
	}
	if p.Category != nil {
		c, err := enums.ParsePlanCategory(strings.TrimSpace(*p.Category))
		if err != nil {
			return in, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category")
		}
		in.Category = &c
	}
	if p.Modality != nil {
		m, err := enums.ParseBillingModality(strings.TrimSpace(*p.Modality))
		if err != nil {
			return in, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid modality")
		}
		in.Modality = &m
	}
	until, err := parseDate("valid_until", p.ValidUntil)
	if err != nil {
		return in, err
	}
	in.ValidUntil = until
	return in, nil
}

func decimalOrZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

// PlanList returns plans; only staff may ask for inactive ones.
func PlanList(svc plans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "plan")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		category, err := validators.ParseQueryEnum(r, "category", enums.ParsePlanCategory)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter := plans.ListFilter{
			ActiveOnly: !actor.Role.IsStaff() || !validators.ParseQueryBool(r, "include_inactive"),
			Category:   category,
		}
		items, err := svc.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, pagination.Page[any]{Items: projectPlans(actor.Role, items)})
	}
}

func PlanGet(svc plans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "plan")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.ParseUUIDParam(r, "planId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		plan, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, projectPlan(actor.Role, *plan))
	}
}

func PlanCreate(svc plans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "plan")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		var payload createPlanRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		plan, err := svc.Create(r.Context(), actor, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, plan)
	}
}

func PlanUpdate(svc plans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "plan")
			return
		}
		id, err := validators.ParseUUIDParam(r, "planId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload updatePlanRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		plan, err := svc.Update(r.Context(), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, plan)
	}
}

func PlanDeactivate(svc plans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "plan")
			return
		}
		id, err := validators.ParseUUIDParam(r, "planId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		plan, err := svc.Deactivate(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, plan)
	}
}

// PlanCalculate prices a plan for the given discount flags. Roles that cannot
// see plan money are refused.
func PlanCalculate(svc plans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "plan")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		if !visibility.Sees(actor.Role, visibility.PlanMoney) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "plan amounts are not visible to this role"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "planId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var flags discount.Flags
		if err := validators.DecodeJSONBody(r, &flags); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.CalculateAmount(r.Context(), id, flags)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
