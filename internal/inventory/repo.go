package inventory

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/clubledger-backend/pkg/db/models"
	"github.com/angelmondragon/clubledger-backend/pkg/enums"
	"github.com/angelmondragon/clubledger-backend/pkg/pagination"
)

// Repository persists products and their stock movement log.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an inventory repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository that issues queries on tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByIDs reads products without locking them.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	var products []models.Product
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error
	return products, err
}

// LockForUpdate loads the products with SELECT ... FOR UPDATE, ordered by id.
func (r *Repository) LockForUpdate(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	var products []models.Product
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id").
		Find(&products).Error
	return products, err
}

func (r *Repository) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

// UpdateFields writes catalog columns. Stock and version are never part of it.
func (r *Repository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	delete(fields, "stock_on_hand")
	delete(fields, "version")
	if len(fields) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CompareAndSetStock writes the new stock only when the row still carries the
// expected version. It reports whether the row was updated.
func (r *Repository) CompareAndSetStock(ctx context.Context, id uuid.UUID, expectedVersion int64, stock int, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		UpdateColumns(map[string]any{
			"stock_on_hand": stock,
			"version":       gorm.Expr("version + 1"),
			"updated_at":    now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *Repository) InsertMovement(ctx context.Context, movement *models.StockMovement) error {
	return r.db.WithContext(ctx).Create(movement).Error
}

// ProductFilter narrows catalog listings.
type ProductFilter struct {
	Category   *enums.ProductCategory
	ActiveOnly bool
	Query      string
}

func (r *Repository) List(ctx context.Context, filter ProductFilter, params pagination.Params) (pagination.Page[models.Product], error) {
	scope, err := pagination.Scope(params)
	if err != nil {
		return pagination.Page[models.Product]{}, err
	}
	qb := r.db.WithContext(ctx).Model(&models.Product{})
	if filter.Category != nil {
		qb = qb.Where("category = ?", *filter.Category)
	}
	if filter.ActiveOnly {
		qb = qb.Where("active = ?", true)
	}
	if search := strings.TrimSpace(filter.Query); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		qb = qb.Where("(LOWER(name) LIKE ? OR LOWER(code) LIKE ?)", pattern, pattern)
	}

	var rows []models.Product
	if err := qb.Scopes(scope).Find(&rows).Error; err != nil {
		return pagination.Page[models.Product]{}, err
	}
	return pagination.Trim(rows, params, func(p models.Product) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	}), nil
}

// ListLowStock returns active products at or below their minimum stock.
func (r *Repository) ListLowStock(ctx context.Context) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Where("active = ? AND stock_on_hand <= min_stock", true).
		Order("stock_on_hand ASC").
		Order("code ASC").
		Find(&rows).Error
	return rows, err
}

// CategoryCount is one row of the category summary.
type CategoryCount struct {
	Category enums.ProductCategory `json:"category"`
	Products int64                 `json:"products"`
}

func (r *Repository) CountByCategory(ctx context.Context) ([]CategoryCount, error) {
	var rows []CategoryCount
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Select("category, COUNT(*) AS products").
		Where("active = ?", true).
		Group("category").
		Order("category").
		Scan(&rows).Error
	return rows, err
}

func (r *Repository) ListMovements(ctx context.Context, productID uuid.UUID, params pagination.Params) (pagination.Page[models.StockMovement], error) {
	scope, err := pagination.Scope(params)
	if err != nil {
		return pagination.Page[models.StockMovement]{}, err
	}
	var rows []models.StockMovement
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Scopes(scope).
		Find(&rows).Error; err != nil {
		return pagination.Page[models.StockMovement]{}, err
	}
	return pagination.Trim(rows, params, func(m models.StockMovement) pagination.Cursor {
		return pagination.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
	}), nil
}
