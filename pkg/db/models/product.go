package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/clubledger-backend/pkg/enums"
)

// Product is a sellable item. StockOnHand only changes through stock movements;
// Version increments on every stock write.
type Product struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	Code        string                `gorm:"column:code;not null;uniqueIndex:ux_products_code"`
	Name        string                `gorm:"column:name;not null"`
	Description *string               `gorm:"column:description"`
	Category    enums.ProductCategory `gorm:"column:category;type:varchar(32);not null"`
	Size        *string               `gorm:"column:size"`
	Color       *string               `gorm:"column:color"`
	SalePrice   int64                 `gorm:"column:sale_price;not null"`
	MemberPrice *int64                `gorm:"column:member_price"`
	CostPrice   *int64                `gorm:"column:cost_price"`
	StockOnHand int                   `gorm:"column:stock_on_hand;not null;default:0;check:chk_products_stock_non_negative,stock_on_hand >= 0"`
	MinStock    int                   `gorm:"column:min_stock;not null;default:0"`
	MaxStock    *int                  `gorm:"column:max_stock"`
	Supplier    *string               `gorm:"column:supplier"`
	Active      bool                  `gorm:"column:active;not null;default:true"`
	Version     int64                 `gorm:"column:version;not null;default:0"`
	CreatedBy   string                `gorm:"column:created_by;not null"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// UnitPrice returns the member price when requested and available.
func (p Product) UnitPrice(memberPricing bool) int64 {
	if memberPricing && p.MemberPrice != nil {
		return *p.MemberPrice
	}
	return p.SalePrice
}
