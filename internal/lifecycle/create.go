package lifecycle

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/eventhub/internal/auth"
	"github.com/robertarktes/eventhub/internal/domain"
	"github.com/robertarktes/eventhub/internal/observability"
	"github.com/shopspring/decimal"
)

type CreateRequest struct {
	EventID        uuid.UUID
	Tickets        []domain.TicketSelection
	CouponID       *uuid.UUID
	OriginalAmount *decimal.Decimal
	TotalAmount    *decimal.Decimal
}

func (s *Service) Create(ctx context.Context, id auth.Identity, req CreateRequest) (*domain.Transaction, error) {
	ctx, span := observability.StartSpan(ctx, "lifecycle.create")
	defer span.End()

	event, err := s.catalog.GetEvent(ctx, req.EventID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NotFoundf("event %s not found", req.EventID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "load event")
	}
	if !event.Purchasable() {
		return nil, domain.NotFoundf("event %s is not available", req.EventID)
	}

	now := s.now().UTC()
	var created domain.Transaction
	err = s.store.InTx(ctx, func(tx Tx) error {
		var coupon *domain.Coupon
		if req.CouponID != nil {
			c, err := tx.LockCoupon(ctx, *req.CouponID)
			if errors.Is(err, domain.ErrNotFound) {
				return domain.Validationf("coupon %s does not exist", *req.CouponID)
			}
			if err != nil {
				return err
			}
			if err := c.CheckRedeemable(now); err != nil {
				return err
			}
			coupon = c
		}

		t, err := domain.NewTransaction(domain.NewTransactionParams{
			UserID:     id.ID,
			BuyerEmail: id.Email,
			BuyerName:  id.Name,
			Event:      *event,
			Selections: req.Tickets,
			Coupon:     coupon,
		}, now, s.opts.PaymentWindow)
		if err != nil {
			return err
		}
		if err := t.CheckClientAmounts(req.OriginalAmount, req.TotalAmount); err != nil {
			return err
		}

		reserved, err := tx.ReservedQuantities(ctx, event.ID)
		if err != nil {
			return err
		}
		if err := domain.CheckAvailability(*event, t.Items, reserved); err != nil {
			return err
		}

		if coupon != nil {
			if err := tx.RedeemCoupon(ctx, coupon.ID); err != nil {
				return err
			}
		}
		if err := tx.InsertTransaction(ctx, t); err != nil {
			return err
		}
		msg, err := domain.NewLifecycleMessage(domain.EventTransactionCreated, t, now)
		if err != nil {
			return errors.Wrap(err, "encode outbox payload")
		}
		if err := tx.InsertOutbox(ctx, msg); err != nil {
			return err
		}
		created = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.LoggerFrom(ctx, s.logger).WithFields(map[string]interface{}{
		"transaction_id": created.ID,
		"event_id":       created.EventID,
		"total_amount":   created.TotalAmount.StringFixed(2),
	}).Info("transaction created")
	s.record(ctx, "transaction.create", id.ID, &created, map[string]interface{}{
		"total_amount": created.TotalAmount.StringFixed(2),
		"coupon_id":    req.CouponID,
	})
	return &created, nil
}
