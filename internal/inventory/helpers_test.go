package inventory

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/clubledger-backend/internal/notifications"
	"github.com/angelmondragon/clubledger-backend/pkg/auth"
	"github.com/angelmondragon/clubledger-backend/pkg/db"
	"github.com/angelmondragon/clubledger-backend/pkg/db/models"
	"github.com/angelmondragon/clubledger-backend/pkg/enums"
	"github.com/angelmondragon/clubledger-backend/pkg/logger"
	"github.com/angelmondragon/clubledger-backend/pkg/metrics"
)

var treasurer = auth.Actor{ID: "11111111-1", Role: enums.RoleTesorera}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notifications.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n notifications.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

type ledgerFixture struct {
	client   *db.Client
	repo     *Repository
	ledger   *Ledger
	notifier *recordingNotifier
	registry *prometheus.Registry
}

func newLedgerFixture(t *testing.T, client *db.Client, retries int) *ledgerFixture {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.NewEngineMetrics(reg)
	notifier := &recordingNotifier{}
	repo := NewRepository(client.DB())
	ledger, err := NewLedger(LedgerDeps{
		DB:             client,
		Repo:           repo,
		Locker:         NewLocalLocker(2*time.Second, m),
		Notifier:       notifier,
		Metrics:        m,
		Logger:         logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		VersionRetries: retries,
		LookupTimeout:  time.Second,
	})
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	return &ledgerFixture{client: client, repo: repo, ledger: ledger, notifier: notifier, registry: reg}
}

func seedProduct(t *testing.T, client *db.Client, code string, stock, minStock int) *models.Product {
	t.Helper()
	p := &models.Product{
		Code:        code,
		Name:        "Item " + code,
		Category:    enums.ProductCategoryShirt,
		SalePrice:   12000,
		StockOnHand: stock,
		MinStock:    minStock,
		Active:      true,
		CreatedBy:   treasurer.ID,
	}
	if err := client.DB().Create(p).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return p
}

func reloadProduct(t *testing.T, client *db.Client, p *models.Product) models.Product {
	t.Helper()
	var fresh models.Product
	if err := client.DB().Where("id = ?", p.ID).First(&fresh).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	return fresh
}

func countMovements(t *testing.T, client *db.Client, p *models.Product) int64 {
	t.Helper()
	var n int64
	if err := client.DB().Model(&models.StockMovement{}).Where("product_id = ?", p.ID).Count(&n).Error; err != nil {
		t.Fatalf("count movements: %v", err)
	}
	return n
}

func counterTotal(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var total float64
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
	}
	return total
}
