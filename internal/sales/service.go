package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/clubledger-backend/internal/discount"
	"github.com/angelmondragon/clubledger-backend/internal/inventory"
	"github.com/angelmondragon/clubledger-backend/internal/notifications"
	"github.com/angelmondragon/clubledger-backend/internal/users"
	"github.com/angelmondragon/clubledger-backend/pkg/auth"
	"github.com/angelmondragon/clubledger-backend/pkg/db"
	"github.com/angelmondragon/clubledger-backend/pkg/db/models"
	"github.com/angelmondragon/clubledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/clubledger-backend/pkg/errors"
	"github.com/angelmondragon/clubledger-backend/pkg/logger"
	"github.com/angelmondragon/clubledger-backend/pkg/lookup"
	"github.com/angelmondragon/clubledger-backend/pkg/metrics"
	"github.com/angelmondragon/clubledger-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/clubledger-backend/pkg/pagination"
)

// Service exposes the sale transaction.
type Service interface {
	Quote(ctx context.Context, input QuoteInput) (*QuoteDTO, error)
	CreateSale(ctx context.Context, actor auth.Actor, input CreateSaleInput) (*SaleDTO, error)
	CancelSale(ctx context.Context, actor auth.Actor, saleID uuid.UUID, reason string) (*SaleDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*SaleDTO, error)
	List(ctx context.Context, filter ListFilter, params pagination.Params) (pagination.Page[SaleDTO], error)
}

type productReader interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

type stockRunner interface {
	Run(ctx context.Context, actor auth.Actor, productIDs []uuid.UUID, fn func(ctx context.Context, st *inventory.StockTx) error) ([]models.StockMovement, error)
}

// Deps wires the sale service.
type Deps struct {
	Repo         *Repository
	Products     productReader
	Ledger       stockRunner
	Directory    users.Directory
	Sequence     Sequence
	Notifier     notifications.Notifier
	Metrics      *metrics.EngineMetrics
	Logger       *logger.Logger
	CodeAttempts int

	// LookupTimeout bounds product and sale reads; zero means
	// lookup.DefaultTimeout.
	LookupTimeout time.Duration
}

type service struct {
	repo      *Repository
	products  productReader
	ledger    stockRunner
	directory users.Directory
	sequence  Sequence
	notifier  notifications.Notifier
	metrics   *metrics.EngineMetrics
	logg      *logger.Logger
	attempts  int
	timeout   time.Duration
}

func NewService(deps Deps) (Service, error) {
	if deps.Repo == nil {
		return nil, fmt.Errorf("sales repository required")
	}
	if deps.Products == nil {
		return nil, fmt.Errorf("product reader required")
	}
	if deps.Ledger == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if deps.Directory == nil {
		return nil, fmt.Errorf("user directory required")
	}
	if deps.Sequence == nil {
		return nil, fmt.Errorf("sale code sequence required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if deps.CodeAttempts <= 0 {
		return nil, fmt.Errorf("code attempts must be positive")
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.Nop{}
	}
	return &service{
		repo:      deps.Repo,
		products:  deps.Products,
		ledger:    deps.Ledger,
		directory: deps.Directory,
		sequence:  deps.Sequence,
		notifier:  notifier,
		metrics:   deps.Metrics,
		logg:      deps.Logger,
		attempts:  deps.CodeAttempts,
		timeout:   deps.LookupTimeout,
	}, nil
}

// mergeLines validates the basket and folds repeated products into one line,
// keeping first-seen order.
func mergeLines(items []LineInput) ([]LineInput, error) {
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}
	var errs error
	merged := make([]LineInput, 0, len(items))
	index := make(map[uuid.UUID]int, len(items))
	for i, item := range items {
		if item.ProductID == uuid.Nil {
			errs = multierr.Append(errs, fmt.Errorf("items[%d]: product_id is required", i))
			continue
		}
		if item.Quantity <= 0 {
			errs = multierr.Append(errs, fmt.Errorf("items[%d]: quantity must be positive", i))
			continue
		}
		if at, ok := index[item.ProductID]; ok {
			merged[at].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, item)
	}
	if errs != nil {
		problems := make([]string, 0)
		for _, e := range multierr.Errors(errs) {
			problems = append(problems, e.Error())
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, errs, "invalid sale items").
			WithDetails(map[string]any{"items": problems})
	}
	return merged, nil
}

func productIDs(lines []LineInput) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	return ids
}

type totals struct {
	items    []models.SaleItem
	subtotal int64
	discount int64
	total    int64
}

// price snapshots the current prices; resolve must return only known products.
func price(lines []LineInput, resolve func(uuid.UUID) (*models.Product, error), memberPricing bool, pct decimal.Decimal) (totals, error) {
	var out totals
	for _, line := range lines {
		p, err := resolve(line.ProductID)
		if err != nil {
			return totals{}, err
		}
		unit := p.UnitPrice(memberPricing)
		lineTotal := unit * int64(line.Quantity)
		out.items = append(out.items, models.SaleItem{
			ProductID:   p.ID,
			ProductCode: p.Code,
			ProductName: p.Name,
			Quantity:    line.Quantity,
			UnitPrice:   unit,
			LineTotal:   lineTotal,
		})
		out.subtotal += lineTotal
	}
	out.discount = discount.PercentOf(out.subtotal, pct)
	out.total = out.subtotal - out.discount
	return out, nil
}

func activeProduct(p *models.Product, id uuid.UUID) (*models.Product, error) {
	if p == nil || !p.Active {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found or inactive").
			WithDetails(map[string]any{"product_id": id.String()})
	}
	return p, nil
}

func (s *service) Quote(ctx context.Context, input QuoteInput) (*QuoteDTO, error) {
	lines, err := mergeLines(input.Items)
	if err != nil {
		return nil, err
	}
	if err := discount.ValidatePct("discount_pct", input.DiscountPct); err != nil {
		return nil, err
	}
	rows, err := lookup.Do(ctx, s.timeout, "product", func(ctx context.Context) ([]models.Product, error) {
		return s.products.FindByIDs(ctx, productIDs(lines))
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	byID := make(map[uuid.UUID]*models.Product, len(rows))
	for i := range rows {
		byID[rows[i].ID] = &rows[i]
	}
	t, err := price(lines, func(id uuid.UUID) (*models.Product, error) {
		return activeProduct(byID[id], id)
	}, input.MemberPricing, input.DiscountPct)
	if err != nil {
		return nil, err
	}

	quote := &QuoteDTO{
		Items:       make([]SaleItemDTO, 0, len(t.items)),
		Subtotal:    t.subtotal,
		DiscountPct: input.DiscountPct,
		Discount:    t.discount,
		Total:       t.total,
	}
	for _, item := range t.items {
		quote.Items = append(quote.Items, newItemDTO(item))
	}
	return quote, nil
}

func (s *service) validateSale(input CreateSaleInput) ([]LineInput, error) {
	if strings.TrimSpace(input.BuyerID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer_id is required")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method").
			WithDetails(map[string]any{"payment_method": string(input.PaymentMethod)})
	}
	if err := discount.ValidatePct("discount_pct", input.DiscountPct); err != nil {
		return nil, err
	}
	return mergeLines(input.Items)
}

// CreateSale checks every line before mutating anything, then persists the
// sale and one outbound movement per line in the same transaction.
func (s *service) CreateSale(ctx context.Context, actor auth.Actor, input CreateSaleInput) (*SaleDTO, error) {
	lines, err := s.validateSale(input)
	if err != nil {
		return nil, err
	}

	buyerID := users.NormalizeNationalID(input.BuyerID)
	buyerName := input.BuyerName
	name, err := s.directory.DisplayName(ctx, buyerID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "buyer not found").
				WithDetails(map[string]any{"buyer_id": buyerID})
		}
		return nil, err
	}
	if buyerName == nil {
		buyerName = &name
	}

	var sale *models.Sale
	_, err = s.ledger.Run(ctx, actor, productIDs(lines), func(ctx context.Context, st *inventory.StockTx) error {
		resolve := func(id uuid.UUID) (*models.Product, error) {
			p, err := st.Product(id)
			if err != nil {
				return nil, err
			}
			return activeProduct(p, id)
		}
		for _, line := range lines {
			if _, err := resolve(line.ProductID); err != nil {
				return err
			}
		}
		for _, line := range lines {
			if err := st.Require(line.ProductID, line.Quantity); err != nil {
				return err
			}
		}

		t, err := price(lines, resolve, input.MemberPricing, input.DiscountPct)
		if err != nil {
			return err
		}
		repo := s.repo.WithTx(st.Tx())
		code, err := s.nextCode(ctx, repo, st.Now())
		if err != nil {
			return err
		}

		sale = &models.Sale{
			Code:          code,
			BuyerID:       buyerID,
			BuyerName:     buyerName,
			PaymentMethod: input.PaymentMethod,
			MemberPricing: input.MemberPricing,
			Subtotal:      t.subtotal,
			DiscountPct:   input.DiscountPct,
			Discount:      t.discount,
			Total:         t.total,
			State:         enums.SaleStateCompleted,
			Notes:         input.Notes,
			SoldBy:        actor.ID,
			Items:         t.items,
		}
		if err := repo.Create(ctx, sale); err != nil {
			if db.IsUniqueViolation(err, "ux_sales_code") {
				return pkgerrors.New(pkgerrors.CodeCodeGeneration, "sale code collided").
					WithDetails(map[string]any{"code": code})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert sale")
		}

		for _, item := range sale.Items {
			if _, err := st.Apply(ctx, inventory.Change{
				ProductID: item.ProductID,
				Type:      enums.MovementTypeOutbound,
				Quantity:  item.Quantity,
				Reason:    "sale " + code,
				SaleID:    &sale.ID,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncSaleCreated()
	s.logg.Info(s.logg.WithAggregate(ctx, "sale", sale.ID.String()), "sale created")
	return s.Get(ctx, sale.ID)
}

// nextCode draws sequence numbers until one is free or the attempts run out.
func (s *service) nextCode(ctx context.Context, repo *Repository, now time.Time) (string, error) {
	day := codeDay(now)
	for attempt := 0; attempt < s.attempts; attempt++ {
		n, err := s.sequence.Next(ctx, repo, day)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "next sale number")
		}
		// The offset moves the table sequence past a number that is already taken.
		code := formatCode(day, n+int64(attempt))
		taken, err := repo.CodeExists(ctx, code)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check sale code")
		}
		if !taken {
			return code, nil
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeCodeGeneration, "could not generate a unique sale code").
		WithDetails(map[string]any{"attempts": s.attempts})
}

// CancelSale restocks exactly the quantities the sale debited.
func (s *service) CancelSale(ctx context.Context, actor auth.Actor, saleID uuid.UUID, reason string) (*SaleDTO, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cancellation reason is required")
	}

	current, err := lookup.Do(ctx, s.timeout, "sale", func(ctx context.Context) (*models.Sale, error) {
		return s.repo.FindByID(ctx, saleID)
	})
	if err != nil {
		return nil, mapSaleErr(err, saleID)
	}
	if current.State != enums.SaleStateCompleted {
		return nil, stateConflict(current)
	}
	ids := make([]uuid.UUID, 0, len(current.Items))
	for _, item := range current.Items {
		ids = append(ids, item.ProductID)
	}

	var cancelled *models.Sale
	_, err = s.ledger.Run(ctx, actor, ids, func(ctx context.Context, st *inventory.StockTx) error {
		repo := s.repo.WithTx(st.Tx())
		var sale *models.Sale
		err := lookup.Within(ctx, s.timeout, "sale", func(ctx context.Context) error {
			var err error
			sale, err = repo.FindForUpdate(ctx, saleID)
			return err
		})
		if err != nil {
			return mapSaleErr(err, saleID)
		}
		if sale.State != enums.SaleStateCompleted {
			return stateConflict(sale)
		}
		items, err := repo.ListItems(ctx, saleID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sale items")
		}

		now := st.Now()
		sale.State = enums.SaleStateCancelled
		sale.CancelledBy = &actor.ID
		sale.CancelledAt = &now
		sale.CancellationReason = &reason
		ok, err := repo.MarkCancelled(ctx, sale)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel sale")
		}
		if !ok {
			return stateConflict(sale)
		}

		for _, item := range items {
			if _, err := st.Apply(ctx, inventory.Change{
				ProductID: item.ProductID,
				Type:      enums.MovementTypeInbound,
				Quantity:  item.Quantity,
				Reason:    "cancel sale " + sale.Code,
				SaleID:    &sale.ID,
			}); err != nil {
				return err
			}
		}
		cancelled = sale
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncSaleCancelled()
	s.notifier.Notify(ctx, notifications.Notification{
		Event:       enums.EventSaleCancelled,
		Aggregate:   enums.AggregateSale,
		AggregateID: cancelled.ID,
		Actor:       actor,
		Data: payloads.SaleCancelledEvent{
			SaleID:    cancelled.ID,
			SaleCode:  cancelled.Code,
			BuyerID:   cancelled.BuyerID,
			Total:     cancelled.Total,
			Reason:    reason,
			Cancelled: actor.ID,
		},
	})
	return s.Get(ctx, saleID)
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*SaleDTO, error) {
	sale, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapSaleErr(err, id)
	}
	dto := NewSaleDTO(*sale)
	return &dto, nil
}

func (s *service) List(ctx context.Context, filter ListFilter, params pagination.Params) (pagination.Page[SaleDTO], error) {
	if filter.BuyerID != "" {
		filter.BuyerID = users.NormalizeNationalID(filter.BuyerID)
	}
	page, err := s.repo.List(ctx, filter, params)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return pagination.Page[SaleDTO]{}, err
		}
		return pagination.Page[SaleDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list sales")
	}
	return pagination.Map(page, NewSaleDTO), nil
}

func stateConflict(sale *models.Sale) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "sale is not completed").
		WithDetails(map[string]any{"sale_id": sale.ID.String(), "state": string(sale.State)})
}

func mapSaleErr(err error, id uuid.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "sale not found").
			WithDetails(map[string]any{"sale_id": id.String()})
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sale")
}
