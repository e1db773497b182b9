package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING_APPROVAL"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

type Event struct {
	ID          uuid.UUID
	OrganizerID uuid.UUID
	Title       string
	Description string
	Category    string
	Location    string
	StartsAt    time.Time
	Published   bool
	Approval    ApprovalStatus
	TicketTypes []TicketType
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type TicketType struct {
	ID       uuid.UUID
	Name     string
	Price    decimal.Decimal
	Quantity int
}

// Purchasable reports whether buyers may open transactions against the event.
func (e Event) Purchasable() bool {
	return e.Published && e.Approval == ApprovalApproved
}

func (e Event) TicketType(id uuid.UUID) (TicketType, bool) {
	for _, tt := range e.TicketTypes {
		if tt.ID == id {
			return tt, true
		}
	}
	return TicketType{}, false
}

type EventFilter struct {
	OrganizerID *uuid.UUID
	Category    string
	Search      string
	OnlyPublic  bool
	NewestFirst bool
	Page        int
	Limit       int
}

type EventPage struct {
	Events []Event
	Page   int
	Limit  int
	Total  int64
}

func (p EventPage) Pages() int64 {
	if p.Limit <= 0 {
		return 0
	}
	return (p.Total + int64(p.Limit) - 1) / int64(p.Limit)
}
