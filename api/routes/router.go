package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/clubledger-backend/api/controllers"
	"github.com/angelmondragon/clubledger-backend/api/middleware"
	"github.com/angelmondragon/clubledger-backend/internal/enrollments"
	"github.com/angelmondragon/clubledger-backend/internal/inventory"
	"github.com/angelmondragon/clubledger-backend/internal/payments"
	"github.com/angelmondragon/clubledger-backend/internal/plans"
	"github.com/angelmondragon/clubledger-backend/internal/sales"
	"github.com/angelmondragon/clubledger-backend/pkg/config"
	"github.com/angelmondragon/clubledger-backend/pkg/logger"
)

// RateLimiter is the fixed-window counter backing the API request budget.
type RateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// Deps carries everything the HTTP surface needs. Optional backends may be nil.
type Deps struct {
	Health  map[string]controllers.Pinger
	Limiter RateLimiter
	Metrics prometheus.Gatherer

	Plans       plans.Service
	Enrollments enrollments.Service
	Payments    payments.Service
	Catalog     inventory.Catalog
	Ledger      controllers.MovementApplier
	Sales       sales.Service
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.HTTP.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Health))
	})

	if cfg.Metrics.Enabled && deps.Metrics != nil {
		r.Method(http.MethodGet, cfg.Metrics.Path, promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RateLimit(deps.Limiter, cfg.HTTP.RateLimit, cfg.HTTP.RateLimitWindow, logg))

		finance := middleware.RequireAnyRole(logg, middleware.Finance...)
		board := middleware.RequireAnyRole(logg, middleware.Board...)
		staff := middleware.RequireAnyRole(logg, middleware.Staff...)
		withdrawers := middleware.RequireAnyRole(logg, middleware.Withdrawers...)

		r.Route("/plans", func(r chi.Router) {
			r.Get("/", controllers.PlanList(deps.Plans, logg))
			r.With(finance).Post("/", controllers.PlanCreate(deps.Plans, logg))
			r.Get("/{planId}", controllers.PlanGet(deps.Plans, logg))
			r.With(finance).Patch("/{planId}", controllers.PlanUpdate(deps.Plans, logg))
			r.With(board).Post("/{planId}/deactivate", controllers.PlanDeactivate(deps.Plans, logg))
			r.Post("/{planId}/calculate", controllers.PlanCalculate(deps.Plans, logg))
		})

		r.Route("/enrollments", func(r chi.Router) {
			r.Get("/", controllers.EnrollmentList(deps.Enrollments, logg))
			r.Post("/", controllers.EnrollmentCreate(deps.Enrollments, logg))
			r.Get("/{enrollmentId}", controllers.EnrollmentGet(deps.Enrollments, logg))
			r.With(staff).Patch("/{enrollmentId}", controllers.EnrollmentUpdate(deps.Enrollments, logg))
			r.With(board).Post("/{enrollmentId}/approve", controllers.EnrollmentApprove(deps.Enrollments, logg))
			r.With(withdrawers).Post("/{enrollmentId}/withdraw", controllers.EnrollmentWithdraw(deps.Enrollments, logg))
			r.With(board).Post("/{enrollmentId}/suspend", controllers.EnrollmentSuspend(deps.Enrollments, logg))
			r.With(board).Post("/{enrollmentId}/deactivate", controllers.EnrollmentDeactivate(deps.Enrollments, logg))
			r.With(staff).Put("/{enrollmentId}/documents/{document}", controllers.EnrollmentDocument(deps.Enrollments, logg))
		})

		r.Route("/payments", func(r chi.Router) {
			r.Get("/", controllers.ProofList(deps.Payments, logg))
			r.Post("/", controllers.ProofSubmit(deps.Payments, logg))
			r.With(finance).Get("/summary", controllers.ProofSummary(deps.Payments, logg))
			r.Get("/{proofId}", controllers.ProofGet(deps.Payments, logg))
			r.Patch("/{proofId}", controllers.ProofUpdate(deps.Payments, logg))
			r.With(finance).Post("/{proofId}/review", controllers.ProofReview(deps.Payments, logg))
			r.Post("/{proofId}/resubmit", controllers.ProofResubmit(deps.Payments, logg))
			r.With(board).Delete("/{proofId}", controllers.ProofDelete(deps.Payments, logg))
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductList(deps.Catalog, logg))
			r.Get("/categories", controllers.ProductCategories(deps.Catalog, logg))
			r.With(staff).Get("/low-stock", controllers.ProductLowStock(deps.Catalog, logg))
			r.With(finance).Post("/", controllers.ProductCreate(deps.Catalog, logg))
			r.Get("/{productId}", controllers.ProductGet(deps.Catalog, logg))
			r.With(finance).Patch("/{productId}", controllers.ProductUpdate(deps.Catalog, logg))
			r.With(board).Post("/{productId}/deactivate", controllers.ProductDeactivate(deps.Catalog, logg))
			r.With(staff).Get("/{productId}/movements", controllers.ProductMovements(deps.Catalog, logg))
			r.With(finance).Post("/{productId}/movements", controllers.ProductApplyMovement(deps.Ledger, logg))
		})

		r.Route("/sales", func(r chi.Router) {
			r.Get("/", controllers.SaleList(deps.Sales, logg))
			r.With(staff).Post("/", controllers.SaleCreate(deps.Sales, logg))
			r.With(staff).Post("/quote", controllers.SaleQuote(deps.Sales, logg))
			r.Get("/{saleId}", controllers.SaleGet(deps.Sales, logg))
			r.With(finance).Post("/{saleId}/cancel", controllers.SaleCancel(deps.Sales, logg))
		})
	})

	return r
}
