package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/clubledger-backend/pkg/enums"
)

// StockMovement is an append-only audit entry for one stock change.
type StockMovement struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	ProductID     uuid.UUID          `gorm:"column:product_id;type:uuid;not null;index"`
	Type          enums.MovementType `gorm:"column:type;type:varchar(16);not null"`
	Quantity      int                `gorm:"column:quantity;not null"`
	PreviousStock int                `gorm:"column:previous_stock;not null"`
	NewStock      int                `gorm:"column:new_stock;not null"`
	Reason        string             `gorm:"column:reason;not null"`
	ActorID       string             `gorm:"column:actor_id;not null"`
	ActorName     *string            `gorm:"column:actor_name"`
	SaleID        *uuid.UUID         `gorm:"column:sale_id;type:uuid;index"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
}

func (m *StockMovement) BeforeCreate(*gorm.DB) error {
	ensureID(&m.ID)
	return nil
}
