package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleCustomer  Role = "CUSTOMER"
	RoleOrganizer Role = "ORGANIZER"
	RoleAdmin     Role = "ADMIN"
)

type Transaction struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	BuyerEmail     string
	BuyerName      string
	EventID        uuid.UUID
	CouponID       *uuid.UUID
	OriginalAmount decimal.Decimal
	DiscountAmount decimal.Decimal
	TotalAmount    decimal.Decimal
	Status         Status
	Items          []TransactionItem

	PaymentDeadline        time.Time
	ReviewDeadline         *time.Time
	PaymentProof           *string
	PaymentProofUploadedAt *time.Time
	ConfirmedAt            *time.Time
	ReviewedBy             *uuid.UUID
	ReviewedAt             *time.Time
	RejectionReason        *string
	CancelledAt            *time.Time
	TicketID               *string
	TicketSentAt           *time.Time
	NotificationStatus     NotificationStatus

	CreatedAt time.Time
	UpdatedAt time.Time
}

type TransactionItem struct {
	TicketTypeID   uuid.UUID
	TicketTypeName string
	Quantity       int
	UnitPrice      decimal.Decimal
}

func (i TransactionItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// PaymentSecondsRemaining feeds client countdowns; it never enforces anything.
func (t Transaction) PaymentSecondsRemaining(now time.Time) int64 {
	if t.Status != StatusWaitingPayment || !now.Before(t.PaymentDeadline) {
		return 0
	}
	return int64(t.PaymentDeadline.Sub(now) / time.Second)
}

func (t Transaction) OwnedBy(userID uuid.UUID) bool {
	return t.UserID == userID
}

type TicketSelection struct {
	TicketTypeID uuid.UUID
	Quantity     int
}

type TransactionFilter struct {
	UserID   *uuid.UUID
	EventIDs []uuid.UUID
	Status   *Status
	Limit    int
	Offset   int
}

type OrganizerStats struct {
	EventsCount         int
	TotalRevenue        decimal.Decimal
	TicketsSold         int
	ConfirmedCount      int
	PendingTransactions int
}

type AuditEntry struct {
	Action        string
	ActorID       uuid.UUID
	TransactionID uuid.UUID
	Data          map[string]interface{}
	At            time.Time
}
