package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/clubledger-backend/pkg/db/dbtest"
	"github.com/angelmondragon/clubledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/clubledger-backend/pkg/errors"
	"github.com/angelmondragon/clubledger-backend/pkg/pagination"
)

func int64Ptr(v int64) *int64 { return &v }
func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func newTestCatalog(t *testing.T) (Catalog, *ledgerFixture) {
	t.Helper()
	client := dbtest.Open(t)
	fx := newLedgerFixture(t, client, 0)
	c, err := NewCatalog(client, fx.repo, nil)
	require.NoError(t, err)
	return c, fx
}

func TestCatalogCreateRecordsInitialStock(t *testing.T) {
	c, _ := newTestCatalog(t)
	ctx := context.Background()

	created, err := c.Create(ctx, treasurer, CreateProductInput{
		Code:         " pol-m ",
		Name:         "Polera entrenamiento",
		Category:     enums.ProductCategoryShirt,
		SalePrice:    15000,
		MemberPrice:  int64Ptr(12000),
		CostPrice:    int64Ptr(8000),
		InitialStock: 12,
		MinStock:     3,
	})
	require.NoError(t, err)
	assert.Equal(t, "POL-M", created.Code)
	assert.Equal(t, 12, created.StockOnHand)
	assert.False(t, created.LowStock)

	page, err := c.Movements(ctx, created.ID, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, enums.MovementTypeInbound, page.Items[0].Type)
	assert.Equal(t, 0, page.Items[0].PreviousStock)
	assert.Equal(t, 12, page.Items[0].NewStock)
	assert.Equal(t, initialStockReason, page.Items[0].Reason)

	_, err = c.Create(ctx, treasurer, CreateProductInput{
		Code: "POL-M", Name: "Duplicate", Category: enums.ProductCategoryShirt, SalePrice: 1,
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDuplicateKey), "got %v", err)
}

func TestCatalogCreateValidation(t *testing.T) {
	c, _ := newTestCatalog(t)
	base := CreateProductInput{Code: "X", Name: "X", Category: enums.ProductCategoryOther, SalePrice: 100}

	tests := []struct {
		name   string
		mutate func(*CreateProductInput)
	}{
		{"missing code", func(in *CreateProductInput) { in.Code = "" }},
		{"missing name", func(in *CreateProductInput) { in.Name = " " }},
		{"bad category", func(in *CreateProductInput) { in.Category = "food" }},
		{"negative price", func(in *CreateProductInput) { in.SalePrice = -1 }},
		{"negative cost", func(in *CreateProductInput) { in.CostPrice = int64Ptr(-5) }},
		{"negative initial stock", func(in *CreateProductInput) { in.InitialStock = -1 }},
		{"max below min", func(in *CreateProductInput) { in.MinStock = 5; in.MaxStock = intPtr(2) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base
			tt.mutate(&in)
			_, err := c.Create(context.Background(), treasurer, in)
			if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCatalogUpdateNeverTouchesStock(t *testing.T) {
	c, fx := newTestCatalog(t)
	p := seedProduct(t, fx.client, "SHORT-S", 4, 1)

	updated, err := c.Update(context.Background(), p.ID, UpdateProductInput{
		Name:      strPtr("Short oficial"),
		SalePrice: int64Ptr(9900),
		MinStock:  intPtr(5),
	})
	require.NoError(t, err)
	assert.Equal(t, "Short oficial", updated.Name)
	assert.EqualValues(t, 9900, updated.SalePrice)
	assert.Equal(t, 4, updated.StockOnHand)
	assert.True(t, updated.LowStock)

	_, err = c.Update(context.Background(), uuid.New(), UpdateProductInput{Name: strPtr("ghost")})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)
}

func TestCatalogReadModels(t *testing.T) {
	c, fx := newTestCatalog(t)
	ctx := context.Background()
	low := seedProduct(t, fx.client, "LOW", 1, 2)
	seedProduct(t, fx.client, "OK", 10, 2)
	retired := seedProduct(t, fx.client, "OLD", 0, 2)

	_, err := c.Deactivate(ctx, retired.ID)
	require.NoError(t, err)

	lows, err := c.LowStock(ctx)
	require.NoError(t, err)
	require.Len(t, lows, 1)
	assert.Equal(t, low.ID, lows[0].ID)

	cats, err := c.Categories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, enums.ProductCategoryShirt, cats[0].Category)
	assert.EqualValues(t, 2, cats[0].Products)

	page, err := c.List(ctx, ProductFilter{ActiveOnly: true, Query: "lo"}, pagination.Params{Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "LOW", page.Items[0].Code)

	all, err := c.List(ctx, ProductFilter{}, pagination.Params{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, all.Items, 2)
	assert.NotEmpty(t, all.NextCursor)

	_, err = c.Movements(ctx, uuid.New(), pagination.Params{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
