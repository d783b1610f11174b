package inventory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/clubledger-backend/pkg/db/dbtest"
	"github.com/angelmondragon/clubledger-backend/pkg/db/models"
	"github.com/angelmondragon/clubledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/clubledger-backend/pkg/errors"
)

func TestNextStock(t *testing.T) {
	p := &models.Product{ID: uuid.New(), Code: "P1", StockOnHand: 4}
	tests := []struct {
		name string
		kind enums.MovementType
		qty  int
		want int
		code pkgerrors.Code
	}{
		{name: "inbound adds", kind: enums.MovementTypeInbound, qty: 3, want: 7},
		{name: "inbound zero", kind: enums.MovementTypeInbound, qty: 0, code: pkgerrors.CodeValidation},
		{name: "outbound subtracts", kind: enums.MovementTypeOutbound, qty: 4, want: 0},
		{name: "outbound beyond stock", kind: enums.MovementTypeOutbound, qty: 5, code: pkgerrors.CodeInsufficientStock},
		{name: "adjustment sets", kind: enums.MovementTypeAdjustment, qty: 9, want: 9},
		{name: "adjustment to zero", kind: enums.MovementTypeAdjustment, qty: 0, want: 0},
		{name: "negative adjustment", kind: enums.MovementTypeAdjustment, qty: -1, code: pkgerrors.CodeValidation},
		{name: "unknown type", kind: enums.MovementType("transfer"), qty: 1, code: pkgerrors.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := nextStock(p, tt.kind, tt.qty)
			if tt.code != "" {
				if !pkgerrors.IsCode(err, tt.code) {
					t.Fatalf("expected %s, got %v", tt.code, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestApplyMovementWritesLogEntry(t *testing.T) {
	client := dbtest.Open(t)
	fx := newLedgerFixture(t, client, 2)
	p := seedProduct(t, client, "SHIRT-M", 0, 0)
	ctx := context.Background()

	mv, err := fx.ledger.ApplyMovement(ctx, treasurer, MovementInput{
		ProductID: p.ID, Type: enums.MovementTypeInbound, Quantity: 5, Reason: "supplier delivery",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, mv.PreviousStock)
	assert.Equal(t, 5, mv.NewStock)
	assert.Equal(t, treasurer.ID, mv.ActorID)

	fresh := reloadProduct(t, client, p)
	assert.Equal(t, 5, fresh.StockOnHand)
	assert.Equal(t, p.Version+1, fresh.Version)

	_, err = fx.ledger.ApplyMovement(ctx, treasurer, MovementInput{
		ProductID: p.ID, Type: enums.MovementTypeOutbound, Quantity: 6, Reason: "damaged",
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock), "got %v", err)
	assert.Equal(t, 5, reloadProduct(t, client, p).StockOnHand)
	assert.EqualValues(t, 1, countMovements(t, client, p))
	assert.EqualValues(t, 1, counterTotal(t, fx.registry, "clubledger_stock_conflicts_total"))

	_, err = fx.ledger.ApplyMovement(ctx, treasurer, MovementInput{
		ProductID: p.ID, Type: enums.MovementTypeAdjustment, Quantity: -2, Reason: "count",
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)

	mv, err = fx.ledger.ApplyMovement(ctx, treasurer, MovementInput{
		ProductID: p.ID, Type: enums.MovementTypeAdjustment, Quantity: 2, Reason: "stocktake",
	})
	require.NoError(t, err)
	assert.Equal(t, 5, mv.PreviousStock)
	assert.Equal(t, 2, mv.NewStock)
	assert.EqualValues(t, 2, counterTotal(t, fx.registry, "clubledger_stock_movements_total"))
}

func TestApplyMovementRequiresReasonAndProduct(t *testing.T) {
	client := dbtest.Open(t)
	fx := newLedgerFixture(t, client, 0)
	p := seedProduct(t, client, "CAP", 1, 0)

	_, err := fx.ledger.ApplyMovement(context.Background(), treasurer, MovementInput{
		ProductID: p.ID, Type: enums.MovementTypeInbound, Quantity: 1, Reason: "  ",
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = fx.ledger.ApplyMovement(context.Background(), treasurer, MovementInput{
		ProductID: uuid.New(), Type: enums.MovementTypeInbound, Quantity: 1, Reason: "restock",
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)
}

func TestConcurrentOutboundOnLastUnitExactlyOneWins(t *testing.T) {
	client := dbtest.Open(t)
	fx := newLedgerFixture(t, client, 2)
	p := seedProduct(t, client, "KEYCHAIN", 1, 0)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = fx.ledger.ApplyMovement(context.Background(), treasurer, MovementInput{
				ProductID: p.ID, Type: enums.MovementTypeOutbound, Quantity: 1, Reason: "counter sale",
			})
		}(i)
	}
	wg.Wait()

	succeeded, refused := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock):
			refused++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, refused)
	assert.Equal(t, 0, reloadProduct(t, client, p).StockOnHand)
}

func TestRunRetriesAfterVersionConflict(t *testing.T) {
	client := dbtest.Open(t)
	fx := newLedgerFixture(t, client, 2)
	p := seedProduct(t, client, "SOCKS", 3, 0)

	attempts := 0
	applied, err := fx.ledger.Run(context.Background(), treasurer, []uuid.UUID{p.ID}, func(ctx context.Context, st *StockTx) error {
		attempts++
		if attempts == 1 {
			if err := st.Tx().Exec("UPDATE products SET version = version + 1 WHERE id = ?", p.ID).Error; err != nil {
				return err
			}
		}
		_, err := st.Apply(ctx, Change{ProductID: p.ID, Type: enums.MovementTypeOutbound, Quantity: 1, Reason: "retry"})
		return err
	})
	require.NoError(t, err)
	require.Len(t, applied, 1)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, 2, reloadProduct(t, client, p).StockOnHand)
	assert.EqualValues(t, 1, counterTotal(t, fx.registry, "clubledger_stock_version_retries_total"))
}

func TestRunGivesUpWithConcurrentModification(t *testing.T) {
	client := dbtest.Open(t)
	fx := newLedgerFixture(t, client, 1)
	p := seedProduct(t, client, "HOODIE", 3, 0)

	attempts := 0
	_, err := fx.ledger.Run(context.Background(), treasurer, []uuid.UUID{p.ID}, func(ctx context.Context, st *StockTx) error {
		attempts++
		if err := st.Tx().Exec("UPDATE products SET version = version + 1 WHERE id = ?", p.ID).Error; err != nil {
			return err
		}
		_, err := st.Apply(ctx, Change{ProductID: p.ID, Type: enums.MovementTypeOutbound, Quantity: 1, Reason: "always stale"})
		return err
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConcurrentModification), "got %v", err)
	assert.Equal(t, 2, attempts)

	fresh := reloadProduct(t, client, p)
	assert.Equal(t, 3, fresh.StockOnHand)
	assert.Equal(t, p.Version, fresh.Version)
	assert.EqualValues(t, 0, countMovements(t, client, p))
}

func TestLowStockNotifiesOnceWhenThresholdCrossed(t *testing.T) {
	client := dbtest.Open(t)
	fx := newLedgerFixture(t, client, 0)
	p := seedProduct(t, client, "BALL", 3, 2)
	ctx := context.Background()

	out := MovementInput{ProductID: p.ID, Type: enums.MovementTypeOutbound, Quantity: 1, Reason: "training"}
	_, err := fx.ledger.ApplyMovement(ctx, treasurer, out)
	require.NoError(t, err)
	require.Equal(t, 1, fx.notifier.count())
	assert.Equal(t, enums.EventStockLow, fx.notifier.sent[0].Event)

	_, err = fx.ledger.ApplyMovement(ctx, treasurer, out)
	require.NoError(t, err)
	assert.Equal(t, 1, fx.notifier.count())
}

func TestRunRejectsEmptyProductSet(t *testing.T) {
	client := dbtest.Open(t)
	fx := newLedgerFixture(t, client, 0)
	_, err := fx.ledger.Run(context.Background(), treasurer, nil, func(context.Context, *StockTx) error { return nil })
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestRunTimesOutWhenProductsCannotBeLoaded(t *testing.T) {
	client := dbtest.Open(t)
	fx := newLedgerFixture(t, client, 2)
	p := seedProduct(t, client, "BALL-5", 3, 0)
	dbtest.DelayQueries(t, client, 10*time.Second)

	start := time.Now()
	_, err := fx.ledger.ApplyMovement(context.Background(), treasurer, MovementInput{
		ProductID: p.ID, Type: enums.MovementTypeOutbound, Quantity: 1, Reason: "club event",
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeTimeout), "got %v", err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Zero(t, fx.notifier.count())
}
