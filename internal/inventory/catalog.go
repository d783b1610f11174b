package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/clubledger-backend/pkg/auth"
	"github.com/angelmondragon/clubledger-backend/pkg/db"
	"github.com/angelmondragon/clubledger-backend/pkg/db/models"
	"github.com/angelmondragon/clubledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/clubledger-backend/pkg/errors"
	"github.com/angelmondragon/clubledger-backend/pkg/metrics"
	"github.com/angelmondragon/clubledger-backend/pkg/pagination"
)

const initialStockReason = "initial stock"

// Catalog exposes product management on top of the ledger.
type Catalog interface {
	Create(ctx context.Context, actor auth.Actor, input CreateProductInput) (*ProductDTO, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	Deactivate(ctx context.Context, id uuid.UUID) (*ProductDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*ProductDTO, error)
	List(ctx context.Context, filter ProductFilter, params pagination.Params) (pagination.Page[ProductDTO], error)
	Categories(ctx context.Context) ([]CategoryCount, error)
	LowStock(ctx context.Context) ([]ProductDTO, error)
	Movements(ctx context.Context, productID uuid.UUID, params pagination.Params) (pagination.Page[MovementDTO], error)
}

type catalog struct {
	db      txRunner
	repo    *Repository
	metrics *metrics.EngineMetrics
}

func NewCatalog(dbClient txRunner, repo *Repository, m *metrics.EngineMetrics) (Catalog, error) {
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	return &catalog{db: dbClient, repo: repo, metrics: m}, nil
}

// Create inserts the product and, when InitialStock is positive, the inbound
// movement that accounts for it.
func (c *catalog) Create(ctx context.Context, actor auth.Actor, input CreateProductInput) (*ProductDTO, error) {
	if err := validateCreate(input); err != nil {
		return nil, err
	}

	product := &models.Product{
		Code:        strings.ToUpper(strings.TrimSpace(input.Code)),
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		Category:    input.Category,
		Size:        input.Size,
		Color:       input.Color,
		SalePrice:   input.SalePrice,
		MemberPrice: input.MemberPrice,
		CostPrice:   input.CostPrice,
		StockOnHand: input.InitialStock,
		MinStock:    input.MinStock,
		MaxStock:    input.MaxStock,
		Supplier:    input.Supplier,
		Active:      true,
		CreatedBy:   actor.ID,
	}

	err := c.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := c.repo.WithTx(tx)
		if err := repo.Create(ctx, product); err != nil {
			if db.IsUniqueViolation(err, "ux_products_code") {
				return pkgerrors.New(pkgerrors.CodeDuplicateKey, "product code already exists").
					WithDetails(map[string]any{"code": product.Code})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert product")
		}
		if input.InitialStock == 0 {
			return nil
		}
		movement := &models.StockMovement{
			ProductID:     product.ID,
			Type:          enums.MovementTypeInbound,
			Quantity:      input.InitialStock,
			PreviousStock: 0,
			NewStock:      input.InitialStock,
			Reason:        initialStockReason,
			ActorID:       actor.ID,
		}
		if err := repo.InsertMovement(ctx, movement); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert initial movement")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if input.InitialStock > 0 {
		c.metrics.IncMovement(string(enums.MovementTypeInbound))
	}
	return c.Get(ctx, product.ID)
}

func validateCreate(input CreateProductInput) error {
	if strings.TrimSpace(input.Code) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "code is required")
	}
	if strings.TrimSpace(input.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if !input.Category.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid category").
			WithDetails(map[string]any{"category": string(input.Category)})
	}
	if input.InitialStock < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "initial stock cannot be negative")
	}
	return validatePricing(&input.SalePrice, input.MemberPrice, input.CostPrice, &input.MinStock, input.MaxStock)
}

func validatePricing(sale, member, cost *int64, minStock, maxStock *int) error {
	for name, v := range map[string]*int64{"sale_price": sale, "member_price": member, "cost_price": cost} {
		if v != nil && *v < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, name+" cannot be negative")
		}
	}
	if minStock != nil && *minStock < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "min_stock cannot be negative")
	}
	if minStock != nil && maxStock != nil && *maxStock < *minStock {
		return pkgerrors.New(pkgerrors.CodeValidation, "max_stock must be >= min_stock")
	}
	return nil
}

func (c *catalog) Update(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	if input.Category != nil && !input.Category.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid category")
	}
	if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
	}
	if err := validatePricing(input.SalePrice, input.MemberPrice, input.CostPrice, input.MinStock, input.MaxStock); err != nil {
		return nil, err
	}
	if err := c.repo.UpdateFields(ctx, id, input.fields()); err != nil {
		return nil, mapProductErr(err, id)
	}
	return c.Get(ctx, id)
}

func (c *catalog) Deactivate(ctx context.Context, id uuid.UUID) (*ProductDTO, error) {
	if err := c.repo.UpdateFields(ctx, id, map[string]any{"active": false}); err != nil {
		return nil, mapProductErr(err, id)
	}
	return c.Get(ctx, id)
}

func (c *catalog) Get(ctx context.Context, id uuid.UUID) (*ProductDTO, error) {
	product, err := c.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapProductErr(err, id)
	}
	dto := NewProductDTO(*product)
	return &dto, nil
}

func (c *catalog) List(ctx context.Context, filter ProductFilter, params pagination.Params) (pagination.Page[ProductDTO], error) {
	page, err := c.repo.List(ctx, filter, params)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return pagination.Page[ProductDTO]{}, err
		}
		return pagination.Page[ProductDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	return pagination.Map(page, NewProductDTO), nil
}

func (c *catalog) Categories(ctx context.Context) ([]CategoryCount, error) {
	counts, err := c.repo.CountByCategory(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count categories")
	}
	return counts, nil
}

func (c *catalog) LowStock(ctx context.Context) ([]ProductDTO, error) {
	rows, err := c.repo.ListLowStock(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list low stock")
	}
	out := make([]ProductDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, NewProductDTO(row))
	}
	return out, nil
}

func (c *catalog) Movements(ctx context.Context, productID uuid.UUID, params pagination.Params) (pagination.Page[MovementDTO], error) {
	if _, err := c.repo.FindByID(ctx, productID); err != nil {
		return pagination.Page[MovementDTO]{}, mapProductErr(err, productID)
	}
	page, err := c.repo.ListMovements(ctx, productID, params)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return pagination.Page[MovementDTO]{}, err
		}
		return pagination.Page[MovementDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list movements")
	}
	return pagination.Map(page, NewMovementDTO), nil
}

func mapProductErr(err error, id uuid.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
			WithDetails(map[string]any{"product_id": id.String()})
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
}
