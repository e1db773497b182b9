package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type NewTransactionParams struct {
	UserID     uuid.UUID
	BuyerEmail string
	BuyerName  string
	Event      Event
	Selections []TicketSelection
	Coupon     *Coupon
}

// NewTransaction prices the selections at the event's current ticket prices and
// opens the transaction in WAITING_PAYMENT.
func NewTransaction(p NewTransactionParams, now time.Time, paymentWindow time.Duration) (Transaction, error) {
	if len(p.Selections) == 0 {
		return Transaction{}, Validationf("at least one ticket selection is required")
	}

	seen := make(map[uuid.UUID]bool, len(p.Selections))
	items := make([]TransactionItem, 0, len(p.Selections))
	original := decimal.Zero
	for _, sel := range p.Selections {
		if sel.Quantity <= 0 {
			return Transaction{}, Validationf("quantity for ticket type %s must be positive", sel.TicketTypeID)
		}
		if seen[sel.TicketTypeID] {
			return Transaction{}, Validationf("ticket type %s selected more than once", sel.TicketTypeID)
		}
		seen[sel.TicketTypeID] = true

		tt, ok := p.Event.TicketType(sel.TicketTypeID)
		if !ok {
			return Transaction{}, Validationf("ticket type %s does not belong to event %s", sel.TicketTypeID, p.Event.ID)
		}
		item := TransactionItem{
			TicketTypeID:   tt.ID,
			TicketTypeName: tt.Name,
			Quantity:       sel.Quantity,
			UnitPrice:      tt.Price,
		}
		items = append(items, item)
		original = original.Add(item.Subtotal())
	}

	discount := decimal.Zero
	var couponID *uuid.UUID
	if p.Coupon != nil {
		discount = p.Coupon.Discount(original)
		id := p.Coupon.ID
		couponID = &id
	}

	return Transaction{
		ID:                 uuid.New(),
		UserID:             p.UserID,
		BuyerEmail:         p.BuyerEmail,
		BuyerName:          p.BuyerName,
		EventID:            p.Event.ID,
		CouponID:           couponID,
		OriginalAmount:     original,
		DiscountAmount:     discount,
		TotalAmount:        original.Sub(discount),
		Status:             StatusWaitingPayment,
		Items:              items,
		PaymentDeadline:    now.Add(paymentWindow),
		NotificationStatus: NotificationNone,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// CheckClientAmounts rejects client-computed totals that disagree with the server.
// Nil values are not checked.
func (t Transaction) CheckClientAmounts(original, total *decimal.Decimal) error {
	if original != nil && !original.Equal(t.OriginalAmount) {
		return Validationf("original amount %s does not match computed %s", original, t.OriginalAmount)
	}
	if total != nil && !total.Equal(t.TotalAmount) {
		return Validationf("total amount %s does not match computed %s", total, t.TotalAmount)
	}
	return nil
}

// GenerateTicketID builds TIX-<last 8 hex of id>-<last 6 digits of unix millis>.
func GenerateTicketID(transactionID uuid.UUID, now time.Time) string {
	hex := strings.ReplaceAll(transactionID.String(), "-", "")
	millis := fmt.Sprintf("%06d", now.UnixMilli())
	return fmt.Sprintf("TIX-%s-%s", strings.ToUpper(hex[len(hex)-8:]), millis[len(millis)-6:])
}
