package lifecycle

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/robertarktes/eventhub/internal/auth"
	"github.com/robertarktes/eventhub/internal/domain"
	"github.com/robertarktes/eventhub/internal/observability"
)

type ReviewDecision struct {
	Status          string
	RejectionReason string
}

// Review confirms or rejects a PENDING transaction. Reviewing a transaction in
// any other status, terminal ones included, is an InvalidState error.
func (s *Service) Review(ctx context.Context, id auth.Identity, txID uuid.UUID, d ReviewDecision) (*domain.Transaction, error) {
	if !id.IsAdmin() {
		return nil, domain.Forbiddenf("admin access required")
	}
	to, ok := domain.ParseStatus(d.Status)
	if !ok || (to != domain.StatusConfirmed && to != domain.StatusRejected) {
		return nil, domain.Validationf("invalid status %q: must be CONFIRMED or REJECTED", d.Status)
	}
	reason := strings.TrimSpace(d.RejectionReason)
	if to == domain.StatusRejected && reason == "" {
		return nil, domain.Validationf("rejection reason is required")
	}

	t, err := s.store.GetTransaction(ctx, txID)
	if err != nil {
		return nil, err
	}
	if err := t.Status.CheckTransition(to); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	reviewer := id.ID
	queued := domain.NotificationQueued
	u := StatusUpdate{
		ID:                 t.ID,
		From:               domain.StatusPending,
		To:                 to,
		At:                 now,
		ReviewedBy:         &reviewer,
		ReviewedAt:         &now,
		NotificationStatus: &queued,
	}
	eventType := domain.EventTransactionRejected
	if to == domain.StatusConfirmed {
		ticket := domain.GenerateTicketID(t.ID, now)
		u.TicketID = &ticket
		u.ConfirmedAt = &now
		eventType = domain.EventTransactionConfirmed
	} else {
		u.RejectionReason = &reason
	}

	updated, err := s.transition(ctx, u, eventType, nil)
	if err != nil {
		return nil, err
	}

	observability.LoggerFrom(ctx, s.logger).WithFields(map[string]interface{}{
		"transaction_id": updated.ID,
		"status":         updated.Status,
		"reviewer":       reviewer,
	}).Info("transaction reviewed")
	data := map[string]interface{}{"status": string(to)}
	if updated.TicketID != nil {
		data["ticket_id"] = *updated.TicketID
	}
	if to == domain.StatusRejected {
		data["reason"] = reason
	}
	s.record(ctx, "transaction.review", reviewer, updated, data)
	return updated, nil
}
