package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EventTransactionCreated        = "transaction.created"
	EventTransactionProofSubmitted = "transaction.proof_submitted"
	EventTransactionConfirmed      = "transaction.confirmed"
	EventTransactionRejected       = "transaction.rejected"
	EventTransactionCancelled      = "transaction.cancelled"
	EventTransactionExpired        = "transaction.expired"
)

const AggregateTransaction = "transaction"

// LifecycleEvent is the payload published for every transaction state change.
type LifecycleEvent struct {
	Type          string    `json:"type"`
	TransactionID uuid.UUID `json:"transaction_id"`
	EventID       uuid.UUID `json:"event_id"`
	UserID        uuid.UUID `json:"user_id"`
	Status        Status    `json:"status"`
	TicketID      string    `json:"ticket_id,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// OutboxMessage is written in the same database transaction as the state change it describes.
type OutboxMessage struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   uuid.UUID
	EventType     string
	Payload       []byte
	DedupeKey     string
}

func NewLifecycleMessage(eventType string, t Transaction, at time.Time) (OutboxMessage, error) {
	ev := LifecycleEvent{
		Type:          eventType,
		TransactionID: t.ID,
		EventID:       t.EventID,
		UserID:        t.UserID,
		Status:        t.Status,
		OccurredAt:    at.UTC(),
	}
	if t.TicketID != nil {
		ev.TicketID = *t.TicketID
	}
	if t.RejectionReason != nil {
		ev.Reason = *t.RejectionReason
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return OutboxMessage{}, err
	}
	return OutboxMessage{
		ID:            uuid.New(),
		AggregateType: AggregateTransaction,
		AggregateID:   t.ID,
		EventType:     eventType,
		Payload:       payload,
		DedupeKey:     eventType + ":" + t.ID.String(),
	}, nil
}
