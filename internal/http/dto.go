package http

import (
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/eventhub/internal/domain"
	"github.com/shopspring/decimal"
)

type ticketSelectionRequest struct {
	TicketTypeID uuid.UUID `json:"ticket_type_id" validate:"required"`
	Quantity     int       `json:"quantity" validate:"required,min=1"`
}

type createTransactionRequest struct {
	EventID        uuid.UUID                `json:"event_id" validate:"required"`
	Tickets        []ticketSelectionRequest `json:"tickets" validate:"required,min=1,dive"`
	CouponID       *uuid.UUID               `json:"coupon_id"`
	OriginalAmount *decimal.Decimal         `json:"original_amount"`
	TotalAmount    *decimal.Decimal         `json:"total_amount"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type reviewRequest struct {
	Status          string `json:"status" validate:"required,oneof=CONFIRMED REJECTED"`
	RejectionReason string `json:"rejection_reason" validate:"max=1000"`
}

type ticketTypeRequest struct {
	Name     string          `json:"name" validate:"required,max=100"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity" validate:"required,min=1"`
}

type createEventRequest struct {
	Title       string              `json:"title" validate:"required,max=200"`
	Description string              `json:"description" validate:"max=5000"`
	Category    string              `json:"category" validate:"max=100"`
	Location    string              `json:"location" validate:"max=300"`
	StartsAt    time.Time           `json:"starts_at" validate:"required"`
	TicketTypes []ticketTypeRequest `json:"ticket_types" validate:"required,min=1,dive"`
}

type approvalRequest struct {
	Approval string `json:"approval" validate:"required,oneof=APPROVED REJECTED"`
}

type createCouponRequest struct {
	Code          string          `json:"code" validate:"required,min=3,max=32,alphanum"`
	DiscountType  string          `json:"discount_type" validate:"required,oneof=PERCENTAGE FIXED percentage fixed"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	ExpiresAt     *time.Time      `json:"expires_at"`
	MaxUses       *int            `json:"max_uses" validate:"omitempty,min=1"`
}

type pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

func newPagination(page, limit int, total int64) pagination {
	p := pagination{Page: page, Limit: limit, Total: total}
	if limit > 0 {
		p.Pages = (total + int64(limit) - 1) / int64(limit)
	}
	return p
}

type ticketTypeView struct {
	ID       uuid.UUID       `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

type eventView struct {
	ID          uuid.UUID        `json:"id"`
	OrganizerID uuid.UUID        `json:"organizer_id"`
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	Category    string           `json:"category,omitempty"`
	Location    string           `json:"location,omitempty"`
	StartsAt    time.Time        `json:"starts_at"`
	Published   bool             `json:"published"`
	Approval    string           `json:"approval"`
	TicketTypes []ticketTypeView `json:"ticket_types"`
}

func toEventView(e *domain.Event) *eventView {
	if e == nil {
		return nil
	}
	v := &eventView{
		ID:          e.ID,
		OrganizerID: e.OrganizerID,
		Title:       e.Title,
		Description: e.Description,
		Category:    e.Category,
		Location:    e.Location,
		StartsAt:    e.StartsAt,
		Published:   e.Published,
		Approval:    string(e.Approval),
		TicketTypes: make([]ticketTypeView, 0, len(e.TicketTypes)),
	}
	for _, tt := range e.TicketTypes {
		v.TicketTypes = append(v.TicketTypes, ticketTypeView{ID: tt.ID, Name: tt.Name, Price: tt.Price, Quantity: tt.Quantity})
	}
	return v
}

type itemView struct {
	TicketTypeID   uuid.UUID       `json:"ticket_type_id"`
	TicketTypeName string          `json:"ticket_type_name"`
	Quantity       int             `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	Subtotal       decimal.Decimal `json:"subtotal"`
}

type transactionView struct {
	ID                      uuid.UUID       `json:"id"`
	UserID                  uuid.UUID       `json:"user_id"`
	EventID                 uuid.UUID       `json:"event_id"`
	CouponID                *uuid.UUID      `json:"coupon_id,omitempty"`
	Status                  string          `json:"status"`
	OriginalAmount          decimal.Decimal `json:"original_amount"`
	DiscountAmount          decimal.Decimal `json:"discount_amount"`
	TotalAmount             decimal.Decimal `json:"total_amount"`
	Items                   []itemView      `json:"items"`
	PaymentDeadline         time.Time       `json:"payment_deadline"`
	PaymentSecondsRemaining int64           `json:"payment_seconds_remaining"`
	ReviewDeadline          *time.Time      `json:"review_deadline,omitempty"`
	HasPaymentProof         bool            `json:"has_payment_proof"`
	PaymentProofUploadedAt  *time.Time      `json:"payment_proof_uploaded_at,omitempty"`
	ConfirmedAt             *time.Time      `json:"confirmed_at,omitempty"`
	ReviewedAt              *time.Time      `json:"reviewed_at,omitempty"`
	RejectionReason         *string         `json:"rejection_reason,omitempty"`
	CancelledAt             *time.Time      `json:"cancelled_at,omitempty"`
	TicketID                *string         `json:"ticket_id,omitempty"`
	TicketSentAt            *time.Time      `json:"ticket_sent_at,omitempty"`
	NotificationStatus      string          `json:"notification_status"`
	CreatedAt               time.Time       `json:"created_at"`
	UpdatedAt               time.Time       `json:"updated_at"`
	Event                   *eventView      `json:"event,omitempty"`
}

func toTransactionView(t *domain.Transaction, event *domain.Event, now time.Time) transactionView {
	v := transactionView{
		ID:                      t.ID,
		UserID:                  t.UserID,
		EventID:                 t.EventID,
		CouponID:                t.CouponID,
		Status:                  string(t.Status),
		OriginalAmount:          t.OriginalAmount,
		DiscountAmount:          t.DiscountAmount,
		TotalAmount:             t.TotalAmount,
		Items:                   make([]itemView, 0, len(t.Items)),
		PaymentDeadline:         t.PaymentDeadline,
		PaymentSecondsRemaining: t.PaymentSecondsRemaining(now),
		ReviewDeadline:          t.ReviewDeadline,
		HasPaymentProof:         t.PaymentProof != nil,
		PaymentProofUploadedAt:  t.PaymentProofUploadedAt,
		ConfirmedAt:             t.ConfirmedAt,
		ReviewedAt:              t.ReviewedAt,
		RejectionReason:         t.RejectionReason,
		CancelledAt:             t.CancelledAt,
		TicketID:                t.TicketID,
		TicketSentAt:            t.TicketSentAt,
		NotificationStatus:      string(t.NotificationStatus),
		CreatedAt:               t.CreatedAt,
		UpdatedAt:               t.UpdatedAt,
		Event:                   toEventView(event),
	}
	for _, it := range t.Items {
		v.Items = append(v.Items, itemView{
			TicketTypeID:   it.TicketTypeID,
			TicketTypeName: it.TicketTypeName,
			Quantity:       it.Quantity,
			UnitPrice:      it.UnitPrice,
			Subtotal:       it.Subtotal(),
		})
	}
	return v
}

type couponView struct {
	ID            uuid.UUID       `json:"id"`
	Code          string          `json:"code"`
	DiscountType  string          `json:"discount_type"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	IsActive      bool            `json:"is_active"`
	ExpiresAt     *time.Time      `json:"expires_at,omitempty"`
	MaxUses       *int            `json:"max_uses,omitempty"`
	UsedCount     int             `json:"used_count"`
}

func toCouponView(c *domain.Coupon) couponView {
	return couponView{
		ID:            c.ID,
		Code:          c.Code,
		DiscountType:  string(c.DiscountType),
		DiscountValue: c.DiscountValue,
		IsActive:      c.IsActive,
		ExpiresAt:     c.ExpiresAt,
		MaxUses:       c.MaxUses,
		UsedCount:     c.UsedCount,
	}
}

type auditView struct {
	Action  string                 `json:"action"`
	ActorID uuid.UUID              `json:"actor_id"`
	Data    map[string]interface{} `json:"data,omitempty"`
	At      time.Time              `json:"at"`
}

type statsView struct {
	EventsCount         int             `json:"events_count"`
	TotalRevenue        decimal.Decimal `json:"total_revenue"`
	TicketsSold         int             `json:"tickets_sold"`
	ConfirmedCount      int             `json:"confirmed_count"`
	PendingTransactions int             `json:"pending_transactions"`
}
