package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/angelmondragon/clubledger-backend/pkg/enums"
)

// Plan is a payment-plan template referenced by enrollments and proofs.
type Plan struct {
	ID                      uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	Name                    string                `gorm:"column:name;not null;uniqueIndex:ux_plans_name"`
	Description             *string               `gorm:"column:description"`
	Category                enums.PlanCategory    `gorm:"column:category;type:varchar(32);not null"`
	Modality                enums.BillingModality `gorm:"column:modality;type:varchar(32);not null"`
	BaseAmount              int64                 `gorm:"column:base_amount;not null"`
	SiblingDiscountPct      decimal.Decimal       `gorm:"column:sibling_discount_pct;type:numeric(5,2);not null;default:0"`
	EarlyPaymentDiscountPct decimal.Decimal       `gorm:"column:early_payment_discount_pct;type:numeric(5,2);not null;default:0"`
	Includes                datatypes.JSON        `gorm:"column:includes"`
	Restrictions            datatypes.JSON        `gorm:"column:restrictions"`
	ValidFrom               time.Time             `gorm:"column:valid_from;not null"`
	ValidUntil              *time.Time            `gorm:"column:valid_until"`
	Active                  bool                  `gorm:"column:active;not null;default:true"`
	GraceDays               int                   `gorm:"column:grace_days;not null;default:5"`
	LateFee                 int64                 `gorm:"column:late_fee;not null;default:0"`
	LateInterestPct         decimal.Decimal       `gorm:"column:late_interest_pct;type:numeric(5,2);not null;default:0"`
	Notes                   *string               `gorm:"column:notes"`
	SortOrder               int                   `gorm:"column:sort_order;not null;default:0"`
	CreatedBy               string                `gorm:"column:created_by;not null"`
	CreatedAt               time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt               time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Plan) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
