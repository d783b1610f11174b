package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Conflict reasons recorded by IncStockConflict.
const (
	ConflictInsufficientStock = "insufficient_stock"
	ConflictConcurrentUpdate  = "concurrent_modification"
	ConflictLockTimeout       = "lock_timeout"
)

// EngineMetrics records ledger and sale activity. A nil receiver is a no-op so
// services can run without a registry in tests.
type EngineMetrics struct {
	salesCreated        prometheus.Counter
	salesCancelled      prometheus.Counter
	movements           *prometheus.CounterVec
	stockConflicts      *prometheus.CounterVec
	versionRetries      prometheus.Counter
	lockWait            *prometheus.HistogramVec
	notificationFailure *prometheus.CounterVec
}

// NewEngineMetrics creates the engine collectors and registers them on reg.
// With a nil reg the collectors still count but are never exported.
func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	f := promauto.With(reg)
	return &EngineMetrics{
		salesCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "clubledger_sales_created_total",
			Help: "Sales committed.",
		}),
		salesCancelled: f.NewCounter(prometheus.CounterOpts{
			Name: "clubledger_sales_cancelled_total",
			Help: "Sales cancelled and restocked.",
		}),
		movements: f.NewCounterVec(prometheus.CounterOpts{
			Name: "clubledger_stock_movements_total",
			Help: "Stock movements applied, by type.",
		}, []string{"type"}),
		stockConflicts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "clubledger_stock_conflicts_total",
			Help: "Stock mutations refused, by reason.",
		}, []string{"reason"}),
		versionRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "clubledger_stock_version_retries_total",
			Help: "Pre-checks repeated after an optimistic version conflict.",
		}),
		lockWait: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "clubledger_lock_wait_seconds",
			Help:    "Time spent waiting for product locks.",
			Buckets: prometheus.ExponentialBucketsRange(0.001, 5, 10),
		}, []string{"backend"}),
		notificationFailure: f.NewCounterVec(prometheus.CounterOpts{
			Name: "clubledger_notification_failures_total",
			Help: "Notifications that could not be recorded, by event.",
		}, []string{"event"}),
	}
}

func (m *EngineMetrics) IncSaleCreated() {
	if m == nil || m.salesCreated == nil {
		return
	}
	m.salesCreated.Inc()
}

func (m *EngineMetrics) IncSaleCancelled() {
	if m == nil || m.salesCancelled == nil {
		return
	}
	m.salesCancelled.Inc()
}

// IncMovement counts one applied movement of the given type.
func (m *EngineMetrics) IncMovement(movementType string) {
	if m == nil || m.movements == nil {
		return
	}
	m.movements.WithLabelValues(normalizeLabel(movementType)).Inc()
}

// IncStockConflict counts a refused mutation; see the Conflict* constants.
func (m *EngineMetrics) IncStockConflict(reason string) {
	if m == nil || m.stockConflicts == nil {
		return
	}
	m.stockConflicts.WithLabelValues(normalizeLabel(reason)).Inc()
}

func (m *EngineMetrics) IncVersionRetry() {
	if m == nil || m.versionRetries == nil {
		return
	}
	m.versionRetries.Inc()
}

// ObserveLockWait records how long a caller waited for a lock backend.
func (m *EngineMetrics) ObserveLockWait(backend string, wait time.Duration) {
	if m == nil || m.lockWait == nil {
		return
	}
	m.lockWait.WithLabelValues(normalizeLabel(backend)).Observe(wait.Seconds())
}

func (m *EngineMetrics) IncNotificationFailure(event string) {
	if m == nil || m.notificationFailure == nil {
		return
	}
	m.notificationFailure.WithLabelValues(normalizeLabel(event)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
