package sales

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/clubledger-backend/pkg/db/models"
	"github.com/angelmondragon/clubledger-backend/pkg/enums"
)

// LineInput asks for quantity units of one product.
type LineInput struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

// QuoteInput prices a basket without touching stock.
type QuoteInput struct {
	Items         []LineInput
	MemberPricing bool
	DiscountPct   decimal.Decimal
}

// CreateSaleInput is a validated sale request.
type CreateSaleInput struct {
	BuyerID       string
	BuyerName     *string
	PaymentMethod enums.SalePaymentMethod
	MemberPricing bool
	DiscountPct   decimal.Decimal
	Notes         *string
	Items         []LineInput
}

// ListFilter narrows sale listings. BuyerID pins the listing to one buyer.
type ListFilter struct {
	BuyerID       string
	State         *enums.SaleState
	PaymentMethod *enums.SalePaymentMethod
	From          *time.Time
	To            *time.Time
}

type SaleItemDTO struct {
	ProductID   uuid.UUID `json:"product_id"`
	ProductCode string    `json:"product_code"`
	ProductName string    `json:"product_name"`
	Quantity    int       `json:"quantity"`
	UnitPrice   int64     `json:"unit_price"`
	LineTotal   int64     `json:"line_total"`
}

// QuoteDTO carries computed totals.
type QuoteDTO struct {
	Items       []SaleItemDTO   `json:"items"`
	Subtotal    int64           `json:"subtotal"`
	DiscountPct decimal.Decimal `json:"discount_pct"`
	Discount    int64           `json:"discount"`
	Total       int64           `json:"total"`
}

type SaleDTO struct {
	ID                 uuid.UUID               `json:"id"`
	Code               string                  `json:"code"`
	BuyerID            string                  `json:"buyer_id"`
	BuyerName          *string                 `json:"buyer_name,omitempty"`
	PaymentMethod      enums.SalePaymentMethod `json:"payment_method"`
	MemberPricing      bool                    `json:"member_pricing"`
	Items              []SaleItemDTO           `json:"items"`
	Subtotal           int64                   `json:"subtotal"`
	DiscountPct        decimal.Decimal         `json:"discount_pct"`
	Discount           int64                   `json:"discount"`
	Total              int64                   `json:"total"`
	State              enums.SaleState         `json:"state"`
	Notes              *string                 `json:"notes,omitempty"`
	SoldBy             string                  `json:"sold_by"`
	CancelledBy        *string                 `json:"cancelled_by,omitempty"`
	CancelledAt        *time.Time              `json:"cancelled_at,omitempty"`
	CancellationReason *string                 `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time               `json:"created_at"`
}

func newItemDTO(item models.SaleItem) SaleItemDTO {
	return SaleItemDTO{
		ProductID:   item.ProductID,
		ProductCode: item.ProductCode,
		ProductName: item.ProductName,
		Quantity:    item.Quantity,
		UnitPrice:   item.UnitPrice,
		LineTotal:   item.LineTotal,
	}
}

func NewSaleDTO(s models.Sale) SaleDTO {
	items := make([]SaleItemDTO, 0, len(s.Items))
	for _, item := range s.Items {
		items = append(items, newItemDTO(item))
	}
	return SaleDTO{
		ID:                 s.ID,
		Code:               s.Code,
		BuyerID:            s.BuyerID,
		BuyerName:          s.BuyerName,
		PaymentMethod:      s.PaymentMethod,
		MemberPricing:      s.MemberPricing,
		Items:              items,
		Subtotal:           s.Subtotal,
		DiscountPct:        s.DiscountPct,
		Discount:           s.Discount,
		Total:              s.Total,
		State:              s.State,
		Notes:              s.Notes,
		SoldBy:             s.SoldBy,
		CancelledBy:        s.CancelledBy,
		CancelledAt:        s.CancelledAt,
		CancellationReason: s.CancellationReason,
		CreatedAt:          s.CreatedAt,
	}
}
