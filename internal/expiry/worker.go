package expiry

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/eventhub/internal/domain"
	"github.com/robertarktes/eventhub/internal/observability"
)

// Lifecycle is the part of lifecycle.Service the worker drives.
type Lifecycle interface {
	ExpiredPayments(ctx context.Context, limit int) ([]domain.Transaction, error)
	Expire(ctx context.Context, t domain.Transaction) (*domain.Transaction, error)
	CountOverdueReviews(ctx context.Context) (int, error)
}

type Worker struct {
	svc        Lifecycle
	logger     observability.Logger
	enforce    bool
	batchSize  int
	maxRetries int
	backoff    time.Duration
}

func NewWorker(svc Lifecycle, logger observability.Logger, enforce bool) *Worker {
	return &Worker{
		svc:        svc,
		logger:     logger,
		enforce:    enforce,
		batchSize:  100,
		maxRetries: 3,
		backoff:    time.Second,
	}
}

func (w *Worker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick expires overdue payments when enforcement is on and always refreshes
// the overdue-review gauge.
func (w *Worker) Tick(ctx context.Context) {
	if w.enforce {
		txs, err := w.svc.ExpiredPayments(ctx, w.batchSize)
		if err != nil {
			w.logger.WithError(err).Error("failed to list expired payments")
		}
		for _, t := range txs {
			if err := w.expireWithRetry(ctx, t); err != nil {
				w.logger.WithError(err).WithField("transaction_id", t.ID).Error("failed to expire transaction after retries")
			}
		}
	}

	overdue, err := w.svc.CountOverdueReviews(ctx)
	if err != nil {
		w.logger.WithError(err).Error("failed to count overdue reviews")
		return
	}
	observability.OverdueReviews.Set(float64(overdue))
	if overdue > 0 {
		w.logger.WithField("count", overdue).Warn("transactions past their review deadline")
	}
}

func (w *Worker) expireWithRetry(ctx context.Context, t domain.Transaction) error {
	var err error
	for i := 0; i < w.maxRetries; i++ {
		_, err = w.svc.Expire(ctx, t)
		if err == nil {
			w.logger.WithField("transaction_id", t.ID).Info("transaction expired")
			return nil
		}
		// The buyer uploaded proof or cancelled in the meantime.
		if errors.Is(err, domain.ErrInvalidState) || errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		backoff := time.Duration(1<<i) * w.backoff
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return errors.Wrapf(err, "failed after %d retries", w.maxRetries)
}
