package plans

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/angelmondragon/clubledger-backend/pkg/db/models"
	"github.com/angelmondragon/clubledger-backend/pkg/enums"
)

const defaultGraceDays = 5

// ListFilter narrows plan listings.
type ListFilter struct {
	ActiveOnly bool
	Category   *enums.PlanCategory
}

// CreatePlanInput is a validated plan definition.
type CreatePlanInput struct {
	Name                    string
	Description             *string
	Category                enums.PlanCategory
	Modality                enums.BillingModality
	BaseAmount              int64
	SiblingDiscountPct      decimal.Decimal
	EarlyPaymentDiscountPct decimal.Decimal
	Includes                []string
	Restrictions            []string
	ValidFrom               *time.Time
	ValidUntil              *time.Time
	GraceDays               *int
	LateFee                 int64
	LateInterestPct         decimal.Decimal
	Notes                   *string
	SortOrder               int
}

// UpdatePlanInput lists the plan fields callers may change. Nil means untouched.
type UpdatePlanInput struct {
	Name                    *string
	Description             *string
	Category                *enums.PlanCategory
	Modality                *enums.BillingModality
	BaseAmount              *int64
	SiblingDiscountPct      *decimal.Decimal
	EarlyPaymentDiscountPct *decimal.Decimal
	Includes                *[]string
	Restrictions            *[]string
	ValidUntil              *time.Time
	Active                  *bool
	GraceDays               *int
	LateFee                 *int64
	LateInterestPct         *decimal.Decimal
	Notes                   *string
	SortOrder               *int
}

func (in UpdatePlanInput) fields() (map[string]any, error) {
	out := map[string]any{}
	if in.Name != nil {
		out["name"] = *in.Name
	}
	if in.Description != nil {
		out["description"] = *in.Description
	}
	if in.Category != nil {
		out["category"] = *in.Category
	}
	if in.Modality != nil {
		out["modality"] = *in.Modality
	}
	if in.BaseAmount != nil {
		out["base_amount"] = *in.BaseAmount
	}
	if in.SiblingDiscountPct != nil {
		out["sibling_discount_pct"] = *in.SiblingDiscountPct
	}
	if in.EarlyPaymentDiscountPct != nil {
		out["early_payment_discount_pct"] = *in.EarlyPaymentDiscountPct
	}
	if in.Includes != nil {
		raw, err := toJSON(*in.Includes)
		if err != nil {
			return nil, err
		}
		out["includes"] = raw
	}
	if in.Restrictions != nil {
		raw, err := toJSON(*in.Restrictions)
		if err != nil {
			return nil, err
		}
		out["restrictions"] = raw
	}
	if in.ValidUntil != nil {
		out["valid_until"] = *in.ValidUntil
	}
	if in.Active != nil {
		out["active"] = *in.Active
	}
	if in.GraceDays != nil {
		out["grace_days"] = *in.GraceDays
	}
	if in.LateFee != nil {
		out["late_fee"] = *in.LateFee
	}
	if in.LateInterestPct != nil {
		out["late_interest_pct"] = *in.LateInterestPct
	}
	if in.Notes != nil {
		out["notes"] = *in.Notes
	}
	if in.SortOrder != nil {
		out["sort_order"] = *in.SortOrder
	}
	return out, nil
}

func toJSON(values []string) (datatypes.JSON, error) {
	if values == nil {
		values = []string{}
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func fromJSON(raw datatypes.JSON) []string {
	out := []string{}
	if len(raw) == 0 {
		return out
	}
	_ = json.Unmarshal(raw, &out)
	return out
}

type PlanDTO struct {
	ID                      uuid.UUID             `json:"id"`
	Name                    string                `json:"name"`
	Description             *string               `json:"description,omitempty"`
	Category                enums.PlanCategory    `json:"category"`
	Modality                enums.BillingModality `json:"modality"`
	BaseAmount              int64                 `json:"base_amount"`
	SiblingDiscountPct      decimal.Decimal       `json:"sibling_discount_pct"`
	EarlyPaymentDiscountPct decimal.Decimal       `json:"early_payment_discount_pct"`
	Includes                []string              `json:"includes"`
	Restrictions            []string              `json:"restrictions"`
	ValidFrom               time.Time             `json:"valid_from"`
	ValidUntil              *time.Time            `json:"valid_until,omitempty"`
	Active                  bool                  `json:"active"`
	GraceDays               int                   `json:"grace_days"`
	LateFee                 int64                 `json:"late_fee"`
	LateInterestPct         decimal.Decimal       `json:"late_interest_pct"`
	Notes                   *string               `json:"notes,omitempty"`
	SortOrder               int                   `json:"sort_order"`
	CreatedBy               string                `json:"created_by"`
	CreatedAt               time.Time             `json:"created_at"`
	UpdatedAt               time.Time             `json:"updated_at"`
}

func NewPlanDTO(p models.Plan) PlanDTO {
	return PlanDTO{
		ID:                      p.ID,
		Name:                    p.Name,
		Description:             p.Description,
		Category:                p.Category,
		Modality:                p.Modality,
		BaseAmount:              p.BaseAmount,
		SiblingDiscountPct:      p.SiblingDiscountPct,
		EarlyPaymentDiscountPct: p.EarlyPaymentDiscountPct,
		Includes:                fromJSON(p.Includes),
		Restrictions:            fromJSON(p.Restrictions),
		ValidFrom:               p.ValidFrom,
		ValidUntil:              p.ValidUntil,
		Active:                  p.Active,
		GraceDays:               p.GraceDays,
		LateFee:                 p.LateFee,
		LateInterestPct:         p.LateInterestPct,
		Notes:                   p.Notes,
		SortOrder:               p.SortOrder,
		CreatedBy:               p.CreatedBy,
		CreatedAt:               p.CreatedAt,
		UpdatedAt:               p.UpdatedAt,
	}
}
