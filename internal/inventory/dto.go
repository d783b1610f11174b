package inventory

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/clubledger-backend/pkg/db/models"
	"github.com/angelmondragon/clubledger-backend/pkg/enums"
)

// ProductDTO is the full product representation. Per-role trimming happens
// at the API boundary.
type ProductDTO struct {
	ID          uuid.UUID             `json:"id"`
	Code        string                `json:"code"`
	Name        string                `json:"name"`
	Description *string               `json:"description,omitempty"`
	Category    enums.ProductCategory `json:"category"`
	Size        *string               `json:"size,omitempty"`
	Color       *string               `json:"color,omitempty"`
	SalePrice   int64                 `json:"sale_price"`
	MemberPrice *int64                `json:"member_price,omitempty"`
	CostPrice   *int64                `json:"cost_price,omitempty"`
	StockOnHand int                   `json:"stock_on_hand"`
	MinStock    int                   `json:"min_stock"`
	MaxStock    *int                  `json:"max_stock,omitempty"`
	Supplier    *string               `json:"supplier,omitempty"`
	Active      bool                  `json:"active"`
	LowStock    bool                  `json:"low_stock"`
	CreatedBy   string                `json:"created_by"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

func NewProductDTO(p models.Product) ProductDTO {
	return ProductDTO{
		ID:          p.ID,
		Code:        p.Code,
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		Size:        p.Size,
		Color:       p.Color,
		SalePrice:   p.SalePrice,
		MemberPrice: p.MemberPrice,
		CostPrice:   p.CostPrice,
		StockOnHand: p.StockOnHand,
		MinStock:    p.MinStock,
		MaxStock:    p.MaxStock,
		Supplier:    p.Supplier,
		Active:      p.Active,
		LowStock:    p.StockOnHand <= p.MinStock,
		CreatedBy:   p.CreatedBy,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// MovementDTO is one entry of a product's stock log.
type MovementDTO struct {
	ID            uuid.UUID          `json:"id"`
	ProductID     uuid.UUID          `json:"product_id"`
	Type          enums.MovementType `json:"type"`
	Quantity      int                `json:"quantity"`
	PreviousStock int                `json:"previous_stock"`
	NewStock      int                `json:"new_stock"`
	Reason        string             `json:"reason"`
	ActorID       string             `json:"actor_id"`
	ActorName     *string            `json:"actor_name,omitempty"`
	SaleID        *uuid.UUID         `json:"sale_id,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
}

func NewMovementDTO(m models.StockMovement) MovementDTO {
	return MovementDTO{
		ID:            m.ID,
		ProductID:     m.ProductID,
		Type:          m.Type,
		Quantity:      m.Quantity,
		PreviousStock: m.PreviousStock,
		NewStock:      m.NewStock,
		Reason:        m.Reason,
		ActorID:       m.ActorID,
		ActorName:     m.ActorName,
		SaleID:        m.SaleID,
		CreatedAt:     m.CreatedAt,
	}
}

// MovementInput requests one manual stock movement.
type MovementInput struct {
	ProductID uuid.UUID
	Type      enums.MovementType
	Quantity  int
	Reason    string
}

// CreateProductInput carries a new catalog entry. InitialStock is recorded
// as an inbound movement.
type CreateProductInput struct {
	Code         string
	Name         string
	Description  *string
	Category     enums.ProductCategory
	Size         *string
	Color        *string
	SalePrice    int64
	MemberPrice  *int64
	CostPrice    *int64
	InitialStock int
	MinStock     int
	MaxStock     *int
	Supplier     *string
}

// UpdateProductInput lists the editable catalog fields. Stock only moves
// through the ledger.
type UpdateProductInput struct {
	Name        *string
	Description *string
	Category    *enums.ProductCategory
	Size        *string
	Color       *string
	SalePrice   *int64
	MemberPrice *int64
	CostPrice   *int64
	MinStock    *int
	MaxStock    *int
	Supplier    *string
	Active      *bool
}

func (in UpdateProductInput) fields() map[string]any {
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
	if in.Size != nil {
		out["size"] = *in.Size
	}
	if in.Color != nil {
		out["color"] = *in.Color
	}
	if in.SalePrice != nil {
		out["sale_price"] = *in.SalePrice
	}
	if in.MemberPrice != nil {
		out["member_price"] = *in.MemberPrice
	}
	if in.CostPrice != nil {
		out["cost_price"] = *in.CostPrice
	}
	if in.MinStock != nil {
		out["min_stock"] = *in.MinStock
	}
	if in.MaxStock != nil {
		out["max_stock"] = *in.MaxStock
	}
	if in.Supplier != nil {
		out["supplier"] = *in.Supplier
	}
	if in.Active != nil {
		out["active"] = *in.Active
	}
	return out
}
