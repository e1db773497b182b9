package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robertarktes/eventhub/internal/domain"
	"github.com/robertarktes/eventhub/internal/idempotency"
	"github.com/robertarktes/eventhub/internal/observability"
)

type RouterDeps struct {
	Tokens      TokenVerifier
	Limiter     Limiter
	Limits      RateLimits
	Idempotency *idempotency.Idempotency
	Logger      observability.Logger
}

func SetupRouter(h *Handlers, deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.RealIP)
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(TracingMiddleware)
	r.Use(MetricsMiddleware(deps.Logger))

	r.Get("/v1/health", h.Healthz)
	r.Get("/v1/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(deps.Tokens))
		if deps.Limiter != nil {
			r.Use(RateLimitMiddleware(deps.Limiter, deps.Limits, deps.Logger))
		}

		r.Get("/v1/events", h.ListEvents)
		r.Get("/v1/events/{id}", h.GetEvent)

		r.Group(func(r chi.Router) {
			r.Use(RequireAuth)
			if deps.Idempotency != nil {
				r.Use(IdempotencyMiddleware(deps.Idempotency, h.maxProofBytes+1<<20, deps.Logger))
			}

			r.Route("/v1/transactions", func(r chi.Router) {
				r.Post("/", h.CreateTransaction)
				r.Get("/", h.ListTransactions)
				r.Get("/{id}", h.GetTransaction)
				r.Patch("/{id}", h.UpdateTransaction)
				r.Post("/{id}/payment-proof", h.UploadPaymentProof)
				r.Get("/{id}/payment-proof", h.DownloadPaymentProof)
			})
			r.Get("/v1/coupons/{code}", h.LookupCoupon)

			r.Route("/v1/admin", func(r chi.Router) {
				r.Use(RequireRole(domain.RoleAdmin))
				r.Get("/transactions", h.AdminListTransactions)
				r.Patch("/transactions/{id}/approve", h.ReviewTransaction)
				r.Get("/transactions/{id}/history", h.TransactionHistory)
				r.Patch("/events/{id}/approval", h.SetEventApproval)
				r.Post("/coupons", h.CreateCoupon)
			})

			r.Route("/v1/organizer", func(r chi.Router) {
				r.Use(RequireRole(domain.RoleOrganizer, domain.RoleAdmin))
				r.Get("/events", h.OrganizerEvents)
				r.Post("/events", h.CreateEvent)
				r.Post("/events/{id}/publish", h.PublishEvent)
				r.Get("/stats", h.OrganizerStats)
				r.Get("/transactions", h.OrganizerTransactions)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}
