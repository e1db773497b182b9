package lifecycle

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/eventhub/internal/auth"
	"github.com/robertarktes/eventhub/internal/domain"
	"github.com/robertarktes/eventhub/internal/observability"
)

type Options struct {
	PaymentWindow   time.Duration
	ReviewWindow    time.Duration
	EnforceDeadline bool
	MaxProofBytes   int64
}

func DefaultOptions() Options {
	return Options{
		PaymentWindow: 2 * time.Hour,
		ReviewWindow:  72 * time.Hour,
		MaxProofBytes: 5 << 20,
	}
}

type Service struct {
	store   Store
	catalog Catalog
	proofs  ProofStore
	audit   Auditor
	logger  observability.Logger
	opts    Options
	now     func() time.Time
}

func NewService(store Store, catalog Catalog, proofs ProofStore, audit Auditor, logger observability.Logger, opts Options) *Service {
	def := DefaultOptions()
	if opts.PaymentWindow <= 0 {
		opts.PaymentWindow = def.PaymentWindow
	}
	if opts.ReviewWindow <= 0 {
		opts.ReviewWindow = def.ReviewWindow
	}
	if opts.MaxProofBytes <= 0 {
		opts.MaxProofBytes = def.MaxProofBytes
	}
	return &Service{
		store:   store,
		catalog: catalog,
		proofs:  proofs,
		audit:   audit,
		logger:  logger,
		opts:    opts,
		now:     time.Now,
	}
}

// WithClock replaces the time source. Tests only.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) Options() Options {
	return s.opts
}

// transition runs a conditional status update plus its outbox record in one DB transaction.
func (s *Service) transition(ctx context.Context, u StatusUpdate, eventType string, extra func(tx Tx) error) (*domain.Transaction, error) {
	ctx, span := observability.StartSpan(ctx, "lifecycle."+eventType)
	defer span.End()

	var updated *domain.Transaction
	err := s.store.InTx(ctx, func(tx Tx) error {
		t, err := tx.UpdateStatus(ctx, u)
		if err != nil {
			return err
		}
		if extra != nil {
			if err := extra(tx); err != nil {
				return err
			}
		}
		msg, err := domain.NewLifecycleMessage(eventType, *t, u.At)
		if err != nil {
			return errors.Wrap(err, "encode outbox payload")
		}
		if err := tx.InsertOutbox(ctx, msg); err != nil {
			return err
		}
		updated = t
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	observability.StatusTransitions.WithLabelValues(string(u.From), string(u.To)).Inc()
	return updated, nil
}

// record writes an audit entry. Audit failures are logged and swallowed.
func (s *Service) record(ctx context.Context, action string, actor uuid.UUID, t *domain.Transaction, data map[string]interface{}) {
	if s.audit == nil {
		return
	}
	entry := domain.AuditEntry{
		Action:        action,
		ActorID:       actor,
		TransactionID: t.ID,
		Data:          data,
		At:            s.now().UTC(),
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		observability.LoggerFrom(ctx, s.logger).WithError(err).WithField("transaction_id", t.ID).Warn("audit write failed")
	}
}

// ownedTransaction hides transactions of other buyers behind ErrNotFound.
func (s *Service) ownedTransaction(ctx context.Context, id auth.Identity, txID uuid.UUID) (*domain.Transaction, error) {
	t, err := s.store.GetTransaction(ctx, txID)
	if err != nil {
		return nil, err
	}
	if !t.OwnedBy(id.ID) {
		return nil, domain.NotFoundf("transaction %s not found", txID)
	}
	return t, nil
}

func pageBounds(page, limit int) (int, int, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	offset, err := domain.PageOffset(page, limit)
	return page, limit, offset, err
}
