package http

import (
	"context"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/robertarktes/eventhub/internal/auth"
	"github.com/robertarktes/eventhub/internal/catalog"
	"github.com/robertarktes/eventhub/internal/domain"
	"github.com/robertarktes/eventhub/internal/lifecycle"
	"github.com/robertarktes/eventhub/internal/observability"
	"golang.org/x/sync/errgroup"
)

// TransactionService is implemented by *lifecycle.Service.
type TransactionService interface {
	Create(ctx context.Context, id auth.Identity, req lifecycle.CreateRequest) (*domain.Transaction, error)
	SubmitProof(ctx context.Context, id auth.Identity, txID uuid.UUID, up lifecycle.ProofUpload) (*domain.Transaction, error)
	OpenProof(ctx context.Context, id auth.Identity, txID uuid.UUID) (io.ReadCloser, string, error)
	Review(ctx context.Context, id auth.Identity, txID uuid.UUID, d lifecycle.ReviewDecision) (*domain.Transaction, error)
	UpdateBuyerStatus(ctx context.Context, id auth.Identity, txID uuid.UUID, status string) (*domain.Transaction, error)
	Get(ctx context.Context, id auth.Identity, txID uuid.UUID) (*domain.Transaction, error)
	ListOwn(ctx context.Context, id auth.Identity, status *domain.Status, page, limit int) (lifecycle.Page, error)
	ListAll(ctx context.Context, id auth.Identity, status *domain.Status, page, limit int) (lifecycle.Page, error)
	OrganizerTransactions(ctx context.Context, id auth.Identity, status *domain.Status, page, limit int) (lifecycle.Page, error)
	OrganizerStats(ctx context.Context, id auth.Identity) (domain.OrganizerStats, error)
	EventsFor(ctx context.Context, txs []domain.Transaction) (map[uuid.UUID]*domain.Event, error)
	History(ctx context.Context, id auth.Identity, txID uuid.UUID) ([]domain.AuditEntry, error)
}

// CatalogService is implemented by *catalog.Service.
type CatalogService interface {
	ListPublic(ctx context.Context, q catalog.ListQuery) (domain.EventPage, error)
	ListOwn(ctx context.Context, id auth.Identity, page, limit int) (domain.EventPage, error)
	Get(ctx context.Context, viewer *auth.Identity, id uuid.UUID) (*domain.Event, error)
	CreateEvent(ctx context.Context, id auth.Identity, in catalog.EventInput) (*domain.Event, error)
	Publish(ctx context.Context, id auth.Identity, eventID uuid.UUID) (*domain.Event, error)
	SetApproval(ctx context.Context, id auth.Identity, eventID uuid.UUID, status domain.ApprovalStatus) (*domain.Event, error)
	CreateCoupon(ctx context.Context, id auth.Identity, in catalog.CouponInput) (*domain.Coupon, error)
	LookupCoupon(ctx context.Context, code string) (*domain.Coupon, error)
}

// Pinger is a dependency checked by /v1/readyz.
type Pinger interface {
	Ping(ctx context.Context) error
}

type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type Handlers struct {
	txs           TransactionService
	catalog       CatalogService
	checks        map[string]Pinger
	logger        observability.Logger
	maxProofBytes int64
	now           func() time.Time
}

func NewHandlers(txs TransactionService, catalog CatalogService, checks map[string]Pinger, logger observability.Logger, maxProofBytes int64) *Handlers {
	return &Handlers{
		txs:           txs,
		catalog:       catalog,
		checks:        checks,
		logger:        logger,
		maxProofBytes: maxProofBytes,
		now:           time.Now,
	}
}

func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, h.logger, err)
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"message":   "EventHub API is running",
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

// Readyz pings every dependency concurrently with a short timeout.
func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	results := make([]string, len(names))

	var g errgroup.Group
	for i, name := range names {
		check := h.checks[name]
		g.Go(func() error {
			if err := check.Ping(ctx); err != nil {
				results[i] = err.Error()
				return err
			}
			results[i] = "ok"
			return nil
		})
	}
	err := g.Wait()

	checks := make(map[string]string, len(names))
	for i, name := range names {
		checks[name] = results[i]
	}
	status, code := "ok", http.StatusOK
	if err != nil {
		status, code = "unavailable", http.StatusServiceUnavailable
		h.logger.WithError(err).Warn("readiness check failed")
	}
	writeJSON(w, code, map[string]interface{}{"status": status, "checks": checks})
}

func identity(r *http.Request) auth.Identity {
	id, _ := auth.FromContext(r.Context())
	return id
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, domain.Validationf("invalid id %q", chi.URLParam(r, "id"))
	}
	return id, nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.Validationf("%s must be an integer", name)
	}
	return n, nil
}

func queryPage(r *http.Request) (int, int, error) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		return 0, 0, err
	}
	limit, err := queryInt(r, "limit", 10)
	if err != nil {
		return 0, 0, err
	}
	return page, limit, nil
}

func queryStatus(r *http.Request) (*domain.Status, error) {
	raw := r.URL.Query().Get("status")
	if raw == "" {
		return nil, nil
	}
	st, ok := domain.ParseStatus(raw)
	if !ok {
		return nil, domain.Validationf("unknown status %q", raw)
	}
	return &st, nil
}
