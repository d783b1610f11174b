package sales

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/clubledger-backend/pkg/db/models"
	"github.com/angelmondragon/clubledger-backend/pkg/enums"
	"github.com/angelmondragon/clubledger-backend/pkg/pagination"
)

// Repository persists sales and their line items.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts the sale together with its items.
func (r *Repository) Create(ctx context.Context, sale *models.Sale) error {
	return r.db.WithContext(ctx).Create(sale).Error
}

func (r *Repository) CodeExists(ctx context.Context, code string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Sale{}).Where("code = ?", code).Count(&n).Error
	return n > 0, err
}

// CountWithCodePrefix counts sales whose code starts with prefix.
func (r *Repository) CountWithCodePrefix(ctx context.Context, prefix string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Sale{}).Where("code LIKE ?", prefix+"%").Count(&n).Error
	return n, err
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Sale, error) {
	var sale models.Sale
	if err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("product_code") }).
		Where("id = ?", id).
		First(&sale).Error; err != nil {
		return nil, err
	}
	return &sale, nil
}

// FindForUpdate loads the sale row locked for the rest of the transaction.
func (r *Repository) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Sale, error) {
	var sale models.Sale
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&sale).Error; err != nil {
		return nil, err
	}
	return &sale, nil
}

func (r *Repository) ListItems(ctx context.Context, saleID uuid.UUID) ([]models.SaleItem, error) {
	var items []models.SaleItem
	err := r.db.WithContext(ctx).Where("sale_id = ?", saleID).Order("product_code").Find(&items).Error
	return items, err
}

// MarkCancelled flips a completed sale to cancelled. It reports false when the
// sale was no longer completed.
func (r *Repository) MarkCancelled(ctx context.Context, sale *models.Sale) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Where("id = ? AND state = ?", sale.ID, enums.SaleStateCompleted).
		Updates(map[string]any{
			"state":               sale.State,
			"cancelled_by":        sale.CancelledBy,
			"cancelled_at":        sale.CancelledAt,
			"cancellation_reason": sale.CancellationReason,
		})
	return res.RowsAffected == 1, res.Error
}

func (r *Repository) List(ctx context.Context, filter ListFilter, params pagination.Params) (pagination.Page[models.Sale], error) {
	scope, err := pagination.Scope(params)
	if err != nil {
		return pagination.Page[models.Sale]{}, err
	}
	qb := r.db.WithContext(ctx).Model(&models.Sale{}).Preload("Items")
	if filter.BuyerID != "" {
		qb = qb.Where("buyer_id = ?", filter.BuyerID)
	}
	if filter.State != nil {
		qb = qb.Where("state = ?", *filter.State)
	}
	if filter.PaymentMethod != nil {
		qb = qb.Where("payment_method = ?", *filter.PaymentMethod)
	}
	if filter.From != nil {
		qb = qb.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		qb = qb.Where("created_at <= ?", *filter.To)
	}

	var rows []models.Sale
	if err := qb.Scopes(scope).Find(&rows).Error; err != nil {
		return pagination.Page[models.Sale]{}, err
	}
	return pagination.Trim(rows, params, func(s models.Sale) pagination.Cursor {
		return pagination.Cursor{CreatedAt: s.CreatedAt, ID: s.ID}
	}), nil
}
