package sales

import (
	"context"
	"io"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/clubledger-backend/internal/inventory"
	"github.com/angelmondragon/clubledger-backend/internal/notifications"
	"github.com/angelmondragon/clubledger-backend/internal/users"
	"github.com/angelmondragon/clubledger-backend/pkg/auth"
	"github.com/angelmondragon/clubledger-backend/pkg/db"
	"github.com/angelmondragon/clubledger-backend/pkg/db/dbtest"
	"github.com/angelmondragon/clubledger-backend/pkg/db/models"
	"github.com/angelmondragon/clubledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/clubledger-backend/pkg/errors"
	"github.com/angelmondragon/clubledger-backend/pkg/logger"
	"github.com/angelmondragon/clubledger-backend/pkg/pagination"
)

var (
	seller    = auth.Actor{ID: "15111222-3", Role: enums.RoleTesorera}
	buyerID   = "20333444-5"
	codeShape = regexp.MustCompile(`^V\d{8}-\d{6}$`)
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notifications.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n notifications.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

type fixedSequence struct{ n int64 }

func (f fixedSequence) Next(context.Context, *Repository, string) (int64, error) { return f.n, nil }

type fixture struct {
	client   *db.Client
	svc      Service
	repo     *Repository
	notifier *recordingNotifier
}

func newFixture(t *testing.T, seq Sequence, attempts int) *fixture {
	t.Helper()
	client := dbtest.Open(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	userRepo := users.NewRepository(client.DB())
	_, err := userRepo.Create(context.Background(), users.CreateUserDTO{
		NationalID: buyerID,
		FullName:   "Camila Rojas",
		Role:       enums.RoleApoderado,
	})
	require.NoError(t, err)
	directory, err := users.NewDirectory(userRepo, time.Second)
	require.NoError(t, err)

	invRepo := inventory.NewRepository(client.DB())
	notifier := &recordingNotifier{}
	ledger, err := inventory.NewLedger(inventory.LedgerDeps{
		DB:             client,
		Repo:           invRepo,
		Locker:         inventory.NewLocalLocker(2*time.Second, nil),
		Logger:         logg,
		VersionRetries: 2,
		LookupTimeout:  time.Second,
	})
	require.NoError(t, err)

	repo := NewRepository(client.DB())
	if seq == nil {
		seq = NewTableSequence()
	}
	svc, err := NewService(Deps{
		Repo:          repo,
		Products:      invRepo,
		Ledger:        ledger,
		Directory:     directory,
		Sequence:      seq,
		Notifier:      notifier,
		Logger:        logg,
		CodeAttempts:  attempts,
		LookupTimeout: time.Second,
	})
	require.NoError(t, err)
	return &fixture{client: client, svc: svc, repo: repo, notifier: notifier}
}

func (f *fixture) product(t *testing.T, code string, price int64, member *int64, stock int) *models.Product {
	t.Helper()
	p := &models.Product{
		Code:        code,
		Name:        "Product " + code,
		Category:    enums.ProductCategoryMerchandising,
		SalePrice:   price,
		MemberPrice: member,
		StockOnHand: stock,
		Active:      true,
		CreatedBy:   seller.ID,
	}
	require.NoError(t, f.client.DB().Create(p).Error)
	return p
}

func (f *fixture) stock(t *testing.T, p *models.Product) int {
	t.Helper()
	var fresh models.Product
	require.NoError(t, f.client.DB().Where("id = ?", p.ID).First(&fresh).Error)
	return fresh.StockOnHand
}

func (f *fixture) countRows(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.client.DB().Model(model).Count(&n).Error)
	return n
}

func int64Ptr(v int64) *int64 { return &v }

func TestCreateSaleDebitsStockAndSnapshotsPrices(t *testing.T) {
	f := newFixture(t, nil, 5)
	a := f.product(t, "A", 10000, int64Ptr(8000), 5)
	b := f.product(t, "B", 3000, nil, 2)

	sale, err := f.svc.CreateSale(context.Background(), seller, CreateSaleInput{
		BuyerID:       "20.333.444-5",
		PaymentMethod: enums.SalePaymentCash,
		MemberPricing: true,
		DiscountPct:   decimal.NewFromInt(10),
		Items: []LineInput{
			{ProductID: a.ID, Quantity: 1},
			{ProductID: b.ID, Quantity: 1},
			{ProductID: a.ID, Quantity: 1},
		},
	})
	require.NoError(t, err)

	assert.Regexp(t, codeShape, sale.Code)
	assert.Equal(t, buyerID, sale.BuyerID)
	require.NotNil(t, sale.BuyerName)
	assert.Equal(t, "Camila Rojas", *sale.BuyerName)
	assert.Equal(t, enums.SaleStateCompleted, sale.State)
	require.Len(t, sale.Items, 2)

	var lineSum int64
	for _, item := range sale.Items {
		lineSum += item.LineTotal
		switch item.ProductID {
		case a.ID:
			assert.Equal(t, 2, item.Quantity)
			assert.EqualValues(t, 8000, item.UnitPrice)
		case b.ID:
			assert.EqualValues(t, 3000, item.UnitPrice)
		}
	}
	assert.EqualValues(t, 19000, sale.Subtotal)
	assert.Equal(t, lineSum, sale.Subtotal)
	assert.EqualValues(t, 1900, sale.Discount)
	assert.EqualValues(t, 17100, sale.Total)
	assert.Equal(t, sale.Subtotal-sale.Discount, sale.Total)

	assert.Equal(t, 3, f.stock(t, a))
	assert.Equal(t, 1, f.stock(t, b))

	var movements []models.StockMovement
	require.NoError(t, f.client.DB().Where("sale_id = ?", sale.ID).Find(&movements).Error)
	require.Len(t, movements, 2)
	for _, m := range movements {
		assert.Equal(t, enums.MovementTypeOutbound, m.Type)
		assert.Equal(t, seller.ID, m.ActorID)
	}

	// Price changes after the sale do not rewrite the snapshot.
	require.NoError(t, f.client.DB().Model(&models.Product{}).Where("id = ?", a.ID).Update("member_price", 1).Error)
	again, err := f.svc.Get(context.Background(), sale.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 17100, again.Total)
}

func TestCreateSalePrecheckFailureChangesNothing(t *testing.T) {
	f := newFixture(t, nil, 5)
	a := f.product(t, "A", 1000, nil, 5)
	b := f.product(t, "B", 1000, nil, 1)

	_, err := f.svc.CreateSale(context.Background(), seller, CreateSaleInput{
		BuyerID:       buyerID,
		PaymentMethod: enums.SalePaymentTransfer,
		Items: []LineInput{
			{ProductID: a.ID, Quantity: 2},
			{ProductID: b.ID, Quantity: 3},
		},
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock), "got %v", err)
	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "B", details["product_code"])

	assert.Equal(t, 5, f.stock(t, a))
	assert.Equal(t, 1, f.stock(t, b))
	assert.EqualValues(t, 0, f.countRows(t, &models.Sale{}))
	assert.EqualValues(t, 0, f.countRows(t, &models.StockMovement{}))
}

func TestCreateSaleRejectsMissingOrInactiveProducts(t *testing.T) {
	f := newFixture(t, nil, 5)
	retired := f.product(t, "OLD", 1000, nil, 5)
	require.NoError(t, f.client.DB().Model(&models.Product{}).Where("id = ?", retired.ID).Update("active", false).Error)

	for _, id := range []uuid.UUID{retired.ID, uuid.New()} {
		_, err := f.svc.CreateSale(context.Background(), seller, CreateSaleInput{
			BuyerID:       buyerID,
			PaymentMethod: enums.SalePaymentCash,
			Items:         []LineInput{{ProductID: id, Quantity: 1}},
		})
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)
	}
	assert.Equal(t, 5, f.stock(t, retired))
}

func TestCreateSaleValidation(t *testing.T) {
	f := newFixture(t, nil, 5)
	p := f.product(t, "A", 1000, nil, 5)
	ok := CreateSaleInput{BuyerID: buyerID, PaymentMethod: enums.SalePaymentCash, Items: []LineInput{{ProductID: p.ID, Quantity: 1}}}

	_, err := f.svc.CreateSale(context.Background(), seller, CreateSaleInput{
		BuyerID:       buyerID,
		PaymentMethod: enums.SalePaymentCash,
		Items:         []LineInput{{ProductID: uuid.Nil, Quantity: 1}, {ProductID: p.ID, Quantity: 0}},
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	details := pkgerrors.As(err).Details().(map[string]any)
	assert.Len(t, details["items"], 2)

	bad := ok
	bad.PaymentMethod = "barter"
	_, err = f.svc.CreateSale(context.Background(), seller, bad)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	bad = ok
	bad.DiscountPct = decimal.NewFromInt(101)
	_, err = f.svc.CreateSale(context.Background(), seller, bad)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	bad = ok
	bad.BuyerID = "99999999-9"
	_, err = f.svc.CreateSale(context.Background(), seller, bad)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)
	assert.Equal(t, 5, f.stock(t, p))
}

func TestCancelSaleRestoresStockOnce(t *testing.T) {
	f := newFixture(t, nil, 5)
	a := f.product(t, "A", 2500, nil, 4)
	b := f.product(t, "B", 1500, nil, 3)
	ctx := context.Background()

	sale, err := f.svc.CreateSale(ctx, seller, CreateSaleInput{
		BuyerID:       buyerID,
		PaymentMethod: enums.SalePaymentCard,
		Items:         []LineInput{{ProductID: a.ID, Quantity: 3}, {ProductID: b.ID, Quantity: 2}},
	})
	require.NoError(t, err)
	require.Equal(t, 1, f.stock(t, a))

	_, err = f.svc.CancelSale(ctx, seller, sale.ID, " ")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	cancelled, err := f.svc.CancelSale(ctx, seller, sale.ID, "wrong size")
	require.NoError(t, err)
	assert.Equal(t, enums.SaleStateCancelled, cancelled.State)
	require.NotNil(t, cancelled.CancelledBy)
	assert.Equal(t, seller.ID, *cancelled.CancelledBy)
	assert.Equal(t, 4, f.stock(t, a))
	assert.Equal(t, 3, f.stock(t, b))

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, enums.EventSaleCancelled, f.notifier.sent[0].Event)

	_, err = f.svc.CancelSale(ctx, seller, sale.ID, "again")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "got %v", err)
	assert.Equal(t, 4, f.stock(t, a))
	assert.EqualValues(t, 4, f.countRows(t, &models.StockMovement{}))

	_, err = f.svc.CancelSale(ctx, seller, uuid.New(), "ghost")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestConcurrentSalesOfLastUnitExactlyOneSucceeds(t *testing.T) {
	f := newFixture(t, nil, 5)
	p := f.product(t, "LAST", 5000, nil, 1)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.CreateSale(context.Background(), seller, CreateSaleInput{
				BuyerID:       buyerID,
				PaymentMethod: enums.SalePaymentCash,
				Items:         []LineInput{{ProductID: p.ID, Quantity: 1}},
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock), "got %v", err)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 0, f.stock(t, p))
	assert.EqualValues(t, 1, f.countRows(t, &models.Sale{}))
}

func TestQuoteDoesNotTouchStock(t *testing.T) {
	f := newFixture(t, nil, 5)
	p := f.product(t, "Q", 3333, nil, 1)

	quote, err := f.svc.Quote(context.Background(), QuoteInput{
		Items:       []LineInput{{ProductID: p.ID, Quantity: 3}},
		DiscountPct: decimal.RequireFromString("12.5"),
	})
	require.NoError(t, err)
	assert.EqualValues(t, 9999, quote.Subtotal)
	assert.EqualValues(t, 1250, quote.Discount)
	assert.EqualValues(t, 8749, quote.Total)
	assert.Equal(t, 1, f.stock(t, p))
	assert.EqualValues(t, 0, f.countRows(t, &models.Sale{}))
}

func TestSaleCodeGenerationIsBounded(t *testing.T) {
	f := newFixture(t, fixedSequence{n: 1}, 3)
	p := f.product(t, "C", 1000, nil, 10)
	day := codeDay(time.Now().UTC())
	for i := int64(1); i <= 3; i++ {
		require.NoError(t, f.client.DB().Create(&models.Sale{
			Code:          formatCode(day, i),
			BuyerID:       buyerID,
			PaymentMethod: enums.SalePaymentCash,
			State:         enums.SaleStateCompleted,
			SoldBy:        seller.ID,
		}).Error)
	}

	input := CreateSaleInput{BuyerID: buyerID, PaymentMethod: enums.SalePaymentCash, Items: []LineInput{{ProductID: p.ID, Quantity: 1}}}
	_, err := f.svc.CreateSale(context.Background(), seller, input)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeCodeGeneration), "got %v", err)
	assert.Equal(t, 10, f.stock(t, p))

	require.NoError(t, f.client.DB().Where("code = ?", formatCode(day, 2)).Delete(&models.Sale{}).Error)
	sale, err := f.svc.CreateSale(context.Background(), seller, input)
	require.NoError(t, err)
	assert.Equal(t, formatCode(day, 2), sale.Code)
}

func TestListFiltersByBuyer(t *testing.T) {
	f := newFixture(t, nil, 5)
	p := f.product(t, "L", 1000, nil, 10)
	for i := 0; i < 3; i++ {
		_, err := f.svc.CreateSale(context.Background(), seller, CreateSaleInput{
			BuyerID: buyerID, PaymentMethod: enums.SalePaymentCash,
			Items: []LineInput{{ProductID: p.ID, Quantity: 1}},
		})
		require.NoError(t, err)
	}

	page, err := f.svc.List(context.Background(), ListFilter{BuyerID: "20.333.444-5"}, pagination.Params{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.NotEmpty(t, page.NextCursor)

	other, err := f.svc.List(context.Background(), ListFilter{BuyerID: "1-9"}, pagination.Params{})
	require.NoError(t, err)
	assert.Empty(t, other.Items)
}

func TestFormatCode(t *testing.T) {
	day := codeDay(time.Date(2026, 3, 9, 15, 0, 0, 0, time.UTC))
	assert.Equal(t, "V20260309-000042", formatCode(day, 42))
	assert.Equal(t, "V20260309-000001", formatCode(day, 1_000_001))
}

func TestFailedDebitRollsBackInsertedSale(t *testing.T) {
	f := newFixture(t, nil, 5)
	a := f.product(t, "A", 1000, nil, 5)
	b := f.product(t, "B", 1000, nil, 5)

	// Once the sale row is written, bump B's version so its debit loses the
	// compare-and-set after A has already been debited.
	err := f.client.DB().Callback().Create().After("gorm:create").Register("test:bump_version", func(tx *gorm.DB) {
		if tx.Error != nil || tx.Statement.Table != "sales" {
			return
		}
		_ = tx.AddError(tx.Session(&gorm.Session{NewDB: true}).
			Exec("UPDATE products SET version = version + 1 WHERE id = ?", b.ID).Error)
	})
	require.NoError(t, err)

	_, err = f.svc.CreateSale(context.Background(), seller, CreateSaleInput{
		BuyerID:       buyerID,
		PaymentMethod: enums.SalePaymentCash,
		Items: []LineInput{
			{ProductID: a.ID, Quantity: 2},
			{ProductID: b.ID, Quantity: 1},
		},
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConcurrentModification), "got %v", err)

	assert.Zero(t, f.countRows(t, &models.Sale{}))
	assert.Zero(t, f.countRows(t, &models.SaleItem{}))
	assert.Zero(t, f.countRows(t, &models.StockMovement{}))
	assert.Equal(t, 5, f.stock(t, a))
	assert.Equal(t, 5, f.stock(t, b))
	assert.Empty(t, f.notifier.sent)
}

func TestSlowStoreSurfacesTimeout(t *testing.T) {
	f := newFixture(t, nil, 5)
	p := f.product(t, "A", 1000, nil, 3)
	sale, err := f.svc.CreateSale(context.Background(), seller, CreateSaleInput{
		BuyerID:       buyerID,
		PaymentMethod: enums.SalePaymentCash,
		Items:         []LineInput{{ProductID: p.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	dbtest.DelayQueries(t, f.client, 10*time.Second)
	start := time.Now()

	_, err = f.svc.Quote(context.Background(), QuoteInput{Items: []LineInput{{ProductID: p.ID, Quantity: 1}}})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeTimeout), "got %v", err)

	_, err = f.svc.CreateSale(context.Background(), seller, CreateSaleInput{
		BuyerID:       buyerID,
		PaymentMethod: enums.SalePaymentCash,
		Items:         []LineInput{{ProductID: p.ID, Quantity: 1}},
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeTimeout), "got %v", err)

	_, err = f.svc.CancelSale(context.Background(), seller, sale.ID, "wrong size")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeTimeout), "got %v", err)

	assert.Less(t, time.Since(start), 8*time.Second)
}
