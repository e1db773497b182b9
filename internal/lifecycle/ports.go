package lifecycle

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/eventhub/internal/domain"
)

// Store owns transaction rows. Mutations happen inside InTx so the status
// change, the coupon counter and the outbox record commit together.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
	GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, f domain.TransactionFilter) ([]domain.Transaction, int64, error)
	OrganizerStats(ctx context.Context, eventIDs []uuid.UUID) (domain.OrganizerStats, error)
	ExpiredPayments(ctx context.Context, now time.Time, limit int) ([]domain.Transaction, error)
	CountOverdueReviews(ctx context.Context, now time.Time) (int, error)
}

type Tx interface {
	LockCoupon(ctx context.Context, id uuid.UUID) (*domain.Coupon, error)
	// RedeemCoupon increments used_count only while it is below max_uses.
	RedeemCoupon(ctx context.Context, id uuid.UUID) error
	ReleaseCoupon(ctx context.Context, id uuid.UUID) error
	ReservedQuantities(ctx context.Context, eventID uuid.UUID) (map[uuid.UUID]int, error)
	InsertTransaction(ctx context.Context, t domain.Transaction) error
	// UpdateStatus applies u only if the row is still in u.From. A lost race
	// yields ErrInvalidState, a missing row ErrNotFound.
	UpdateStatus(ctx context.Context, u StatusUpdate) (*domain.Transaction, error)
	InsertOutbox(ctx context.Context, msg domain.OutboxMessage) error
}

// StatusUpdate moves one transaction From -> To. Nil fields are left untouched.
type StatusUpdate struct {
	ID   uuid.UUID
	From domain.Status
	To   domain.Status
	At   time.Time

	PaymentProof       *string
	ProofUploadedAt    *time.Time
	ReviewDeadline     *time.Time
	ConfirmedAt        *time.Time
	ReviewedBy         *uuid.UUID
	ReviewedAt         *time.Time
	RejectionReason    *string
	CancelledAt        *time.Time
	TicketID           *string
	NotificationStatus *domain.NotificationStatus
}

type Catalog interface {
	GetEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error)
	EventIDsByOrganizer(ctx context.Context, organizerID uuid.UUID) ([]uuid.UUID, error)
}

type Proof struct {
	TransactionID uuid.UUID
	Filename      string
	ContentType   string
	Data          []byte
}

type ProofStore interface {
	Save(ctx context.Context, p Proof) (string, error)
	Open(ctx context.Context, ref string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, ref string) error
}

type Auditor interface {
	Record(ctx context.Context, entry domain.AuditEntry) error
	ForTransaction(ctx context.Context, id uuid.UUID) ([]domain.AuditEntry, error)
}
