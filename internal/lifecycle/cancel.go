package lifecycle

import (
	"context"

	"github.com/google/uuid"
	"github.com/robertarktes/eventhub/internal/auth"
	"github.com/robertarktes/eventhub/internal/domain"
	"github.com/robertarktes/eventhub/internal/observability"
)

// UpdateBuyerStatus is the buyer-side status change. Buyers may only cancel.
func (s *Service) UpdateBuyerStatus(ctx context.Context, id auth.Identity, txID uuid.UUID, status string) (*domain.Transaction, error) {
	if st, ok := domain.ParseStatus(status); !ok || st != domain.StatusCancelled {
		return nil, domain.Validationf("invalid status %q: buyers may only set CANCELLED", status)
	}
	return s.Cancel(ctx, id, txID)
}

func (s *Service) Cancel(ctx context.Context, id auth.Identity, txID uuid.UUID) (*domain.Transaction, error) {
	t, err := s.ownedTransaction(ctx, id, txID)
	if err != nil {
		return nil, err
	}
	if err := t.Status.CheckTransition(domain.StatusCancelled); err != nil {
		return nil, err
	}

	updated, err := s.cancel(ctx, t, domain.EventTransactionCancelled)
	if err != nil {
		return nil, err
	}
	observability.LoggerFrom(ctx, s.logger).WithField("transaction_id", t.ID).Info("transaction cancelled by buyer")
	s.record(ctx, "transaction.cancel", id.ID, updated, nil)
	return updated, nil
}

// Expire cancels a WAITING_PAYMENT transaction whose payment deadline passed.
// A transaction that moved on in the meantime yields ErrInvalidState.
func (s *Service) Expire(ctx context.Context, t domain.Transaction) (*domain.Transaction, error) {
	if !s.opts.EnforceDeadline {
		return nil, domain.InvalidStatef("payment deadline enforcement is disabled")
	}
	now := s.now().UTC()
	if now.Before(t.PaymentDeadline) {
		return nil, domain.InvalidStatef("transaction %s is still within its payment window", t.ID)
	}
	updated, err := s.cancel(ctx, &t, domain.EventTransactionExpired)
	if err != nil {
		return nil, err
	}
	observability.ExpiredPayments.Inc()
	s.record(ctx, "transaction.expire", uuid.Nil, updated, map[string]interface{}{
		"payment_deadline": t.PaymentDeadline,
	})
	return updated, nil
}

func (s *Service) cancel(ctx context.Context, t *domain.Transaction, eventType string) (*domain.Transaction, error) {
	now := s.now().UTC()
	var release func(tx Tx) error
	if t.CouponID != nil {
		couponID := *t.CouponID
		release = func(tx Tx) error {
			return tx.ReleaseCoupon(ctx, couponID)
		}
	}
	return s.transition(ctx, StatusUpdate{
		ID:          t.ID,
		From:        domain.StatusWaitingPayment,
		To:          domain.StatusCancelled,
		At:          now,
		CancelledAt: &now,
	}, eventType, release)
}

// ExpiredPayments lists WAITING_PAYMENT transactions past their deadline.
func (s *Service) ExpiredPayments(ctx context.Context, limit int) ([]domain.Transaction, error) {
	return s.store.ExpiredPayments(ctx, s.now().UTC(), limit)
}

func (s *Service) CountOverdueReviews(ctx context.Context) (int, error) {
	return s.store.CountOverdueReviews(ctx, s.now().UTC())
}
