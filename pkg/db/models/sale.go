package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/clubledger-backend/pkg/enums"
)

// Sale is an immutable purchase record; only its state and cancellation
// fields change after creation.
type Sale struct {
	ID                 uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	Code               string                  `gorm:"column:code;not null;uniqueIndex:ux_sales_code"`
	BuyerID            string                  `gorm:"column:buyer_id;not null;index"`
	BuyerName          *string                 `gorm:"column:buyer_name"`
	PaymentMethod      enums.SalePaymentMethod `gorm:"column:payment_method;type:varchar(32);not null"`
	MemberPricing      bool                    `gorm:"column:member_pricing;not null;default:false"`
	Subtotal           int64                   `gorm:"column:subtotal;not null"`
	DiscountPct        decimal.Decimal         `gorm:"column:discount_pct;type:numeric(5,2);not null;default:0"`
	Discount           int64                   `gorm:"column:discount;not null"`
	Total              int64                   `gorm:"column:total;not null"`
	State              enums.SaleState         `gorm:"column:state;type:varchar(16);not null;index"`
	Notes              *string                 `gorm:"column:notes"`
	SoldBy             string                  `gorm:"column:sold_by;not null"`
	CancelledBy        *string                 `gorm:"column:cancelled_by"`
	CancelledAt        *time.Time              `gorm:"column:cancelled_at"`
	CancellationReason *string                 `gorm:"column:cancellation_reason"`
	CreatedAt          time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time               `gorm:"column:updated_at;autoUpdateTime"`
	Items              []SaleItem              `gorm:"foreignKey:SaleID;constraint:OnDelete:CASCADE"`
}

func (s *Sale) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

// SaleItem is the price/quantity snapshot of one product within a sale.
type SaleItem struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	SaleID      uuid.UUID `gorm:"column:sale_id;type:uuid;not null;index"`
	ProductID   uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	ProductCode string    `gorm:"column:product_code;not null"`
	ProductName string    `gorm:"column:product_name;not null"`
	Quantity    int       `gorm:"column:quantity;not null"`
	UnitPrice   int64     `gorm:"column:unit_price;not null"`
	LineTotal   int64     `gorm:"column:line_total;not null"`
}

func (i *SaleItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
