package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/clubledger-backend/internal/notifications"
	"github.com/angelmondragon/clubledger-backend/pkg/auth"
	"github.com/angelmondragon/clubledger-backend/pkg/db/models"
	"github.com/angelmondragon/clubledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/clubledger-backend/pkg/errors"
	"github.com/angelmondragon/clubledger-backend/pkg/logger"
	"github.com/angelmondragon/clubledger-backend/pkg/lookup"
	"github.com/angelmondragon/clubledger-backend/pkg/metrics"
	"github.com/angelmondragon/clubledger-backend/pkg/outbox/payloads"
)

var errVersionConflict = errors.New("product version changed")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// LedgerDeps wires the ledger.
type LedgerDeps struct {
	DB             txRunner
	Repo           *Repository
	Locker         Locker
	Notifier       notifications.Notifier
	Metrics        *metrics.EngineMetrics
	Logger         *logger.Logger
	VersionRetries int
	Clock          func() time.Time

	// LookupTimeout bounds loading the locked products; zero means
	// lookup.DefaultTimeout.
	LookupTimeout time.Duration
}

// Ledger is the only writer of product stock.
type Ledger struct {
	db       txRunner
	repo     *Repository
	locker   Locker
	notifier notifications.Notifier
	metrics  *metrics.EngineMetrics
	logg     *logger.Logger
	retries  int
	now      func() time.Time
	timeout  time.Duration
}

func NewLedger(deps LedgerDeps) (*Ledger, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	if deps.Repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if deps.Locker == nil {
		return nil, fmt.Errorf("product locker required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if deps.VersionRetries < 0 {
		return nil, fmt.Errorf("version retries must be >= 0")
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.Nop{}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Ledger{
		db:       deps.DB,
		repo:     deps.Repo,
		locker:   deps.Locker,
		notifier: notifier,
		metrics:  deps.Metrics,
		logg:     deps.Logger,
		retries:  deps.VersionRetries,
		now:      clock,
		timeout:  deps.LookupTimeout,
	}, nil
}

// StockTx is the set of locked products visible to one ledger transaction.
type StockTx struct {
	tx       *gorm.DB
	repo     *Repository
	products map[uuid.UUID]*models.Product
	actor    auth.Actor
	now      time.Time
	metrics  *metrics.EngineMetrics
	applied  []models.StockMovement
}

// Tx exposes the transaction so callers can persist their aggregate atomically
// with the stock movements.
func (s *StockTx) Tx() *gorm.DB { return s.tx }

// Now is the timestamp shared by every write of the transaction.
func (s *StockTx) Now() time.Time { return s.now }

// Product returns the locked row, or NOT_FOUND when it does not exist.
func (s *StockTx) Product(id uuid.UUID) (*models.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
			WithDetails(map[string]any{"product_id": id.String()})
	}
	return p, nil
}

// Require fails with INSUFFICIENT_STOCK when the product cannot cover qty.
func (s *StockTx) Require(id uuid.UUID, qty int) error {
	p, err := s.Product(id)
	if err != nil {
		return err
	}
	if qty > p.StockOnHand {
		s.metrics.IncStockConflict(metrics.ConflictInsufficientStock)
		return insufficientStock(p, qty)
	}
	return nil
}

// Change is one stock mutation inside a StockTx.
type Change struct {
	ProductID uuid.UUID
	Type      enums.MovementType
	Quantity  int
	Reason    string
	SaleID    *uuid.UUID
}

// Apply writes the new stock under the version guard and appends the log entry.
func (s *StockTx) Apply(ctx context.Context, change Change) (*models.StockMovement, error) {
	product, err := s.Product(change.ProductID)
	if err != nil {
		return nil, err
	}
	next, err := nextStock(product, change.Type, change.Quantity)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock) {
			s.metrics.IncStockConflict(metrics.ConflictInsufficientStock)
		}
		return nil, err
	}

	ok, err := s.repo.CompareAndSetStock(ctx, product.ID, product.Version, next, s.now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errVersionConflict
	}

	movement := models.StockMovement{
		ProductID:     product.ID,
		Type:          change.Type,
		Quantity:      change.Quantity,
		PreviousStock: product.StockOnHand,
		NewStock:      next,
		Reason:        change.Reason,
		ActorID:       s.actor.ID,
		SaleID:        change.SaleID,
		CreatedAt:     s.now,
	}
	if err := s.repo.InsertMovement(ctx, &movement); err != nil {
		return nil, err
	}

	product.StockOnHand = next
	product.Version++
	s.applied = append(s.applied, movement)
	return &movement, nil
}

// nextStock computes the post-movement stock. It never returns a negative value.
func nextStock(p *models.Product, kind enums.MovementType, qty int) (int, error) {
	switch kind {
	case enums.MovementTypeInbound:
		if qty <= 0 {
			return 0, pkgerrors.New(pkgerrors.CodeValidation, "inbound quantity must be positive")
		}
		return p.StockOnHand + qty, nil
	case enums.MovementTypeOutbound:
		if qty <= 0 {
			return 0, pkgerrors.New(pkgerrors.CodeValidation, "outbound quantity must be positive")
		}
		if qty > p.StockOnHand {
			return 0, insufficientStock(p, qty)
		}
		return p.StockOnHand - qty, nil
	case enums.MovementTypeAdjustment:
		if qty < 0 {
			return 0, pkgerrors.New(pkgerrors.CodeValidation, "adjusted stock cannot be negative")
		}
		return qty, nil
	default:
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "invalid movement type").
			WithDetails(map[string]any{"type": string(kind)})
	}
}

func insufficientStock(p *models.Product, requested int) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
		WithDetails(map[string]any{
			"product_id":   p.ID.String(),
			"product_code": p.Code,
			"requested":    requested,
			"available":    p.StockOnHand,
		})
}

// Run locks the products, loads them FOR UPDATE inside a transaction and hands
// them to fn. A version conflict rolls the transaction back and runs fn again
// against fresh rows; once retries are exhausted the caller gets
// CONCURRENT_MODIFICATION. Committed movements are returned.
func (l *Ledger) Run(ctx context.Context, actor auth.Actor, productIDs []uuid.UUID, fn func(ctx context.Context, st *StockTx) error) ([]models.StockMovement, error) {
	ids := lockOrder(productIDs)
	if len(ids) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one product is required")
	}

	release, err := l.locker.Acquire(ctx, ids)
	if err != nil {
		return nil, err
	}
	defer release()

	for attempt := 0; ; attempt++ {
		var st *StockTx
		err := l.db.WithTx(ctx, func(tx *gorm.DB) error {
			repo := l.repo.WithTx(tx)
			var rows []models.Product
			err := lookup.Within(ctx, l.timeout, "product", func(ctx context.Context) error {
				var err error
				rows, err = repo.LockForUpdate(ctx, ids)
				return err
			})
			if err != nil {
				if pkgerrors.As(err) != nil {
					return err
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock products")
			}
			st = &StockTx{
				tx:       tx,
				repo:     repo,
				products: make(map[uuid.UUID]*models.Product, len(rows)),
				actor:    actor,
				now:      l.now().UTC(),
				metrics:  l.metrics,
			}
			for i := range rows {
				st.products[rows[i].ID] = &rows[i]
			}
			return fn(ctx, st)
		})
		if errors.Is(err, errVersionConflict) {
			if attempt >= l.retries {
				l.metrics.IncStockConflict(metrics.ConflictConcurrentUpdate)
				return nil, pkgerrors.New(pkgerrors.CodeConcurrentModification, "product was modified concurrently").
					WithDetails(map[string]any{"attempts": attempt + 1})
			}
			l.metrics.IncVersionRetry()
			l.logg.Warn(l.logg.WithField(ctx, "attempt", attempt+1), "stock version conflict, retrying")
			continue
		}
		if err != nil {
			if pkgerrors.As(err) != nil || errors.Is(err, context.Canceled) {
				return nil, err
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply stock movements")
		}

		l.afterCommit(ctx, actor, st)
		return st.applied, nil
	}
}

func (l *Ledger) afterCommit(ctx context.Context, actor auth.Actor, st *StockTx) {
	for _, m := range st.applied {
		l.metrics.IncMovement(string(m.Type))
		p := st.products[m.ProductID]
		if p == nil || m.NewStock > p.MinStock || m.PreviousStock <= p.MinStock {
			continue
		}
		l.notifier.Notify(ctx, notifications.Notification{
			Event:       enums.EventStockLow,
			Aggregate:   enums.AggregateProduct,
			AggregateID: p.ID,
			Actor:       actor,
			Data: payloads.StockLowEvent{
				ProductID:   p.ID,
				ProductCode: p.Code,
				StockOnHand: m.NewStock,
				MinStock:    p.MinStock,
			},
		})
	}
}

// ApplyMovement records one manual inbound, outbound or adjustment movement.
func (l *Ledger) ApplyMovement(ctx context.Context, actor auth.Actor, input MovementInput) (*MovementDTO, error) {
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product_id is required")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid movement type").
			WithDetails(map[string]any{"type": string(input.Type)})
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason is required")
	}

	applied, err := l.Run(ctx, actor, []uuid.UUID{input.ProductID}, func(ctx context.Context, st *StockTx) error {
		_, err := st.Apply(ctx, Change{
			ProductID: input.ProductID,
			Type:      input.Type,
			Quantity:  input.Quantity,
			Reason:    reason,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	dto := NewMovementDTO(applied[0])
	return &dto, nil
}
