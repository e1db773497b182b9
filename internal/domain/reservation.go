package domain

import "github.com/google/uuid"

// CheckAvailability compares requested quantities against what remains after
// quantities already held by live transactions.
func CheckAvailability(event Event, items []TransactionItem, reserved map[uuid.UUID]int) error {
	for _, item := range items {
		tt, ok := event.TicketType(item.TicketTypeID)
		if !ok {
			return Validationf("ticket type %s does not belong to event %s", item.TicketTypeID, event.ID)
		}
		remaining := tt.Quantity - reserved[item.TicketTypeID]
		if item.Quantity > remaining {
			if remaining < 0 {
				remaining = 0
			}
			return Validationf("only %d tickets left for %s", remaining, tt.Name)
		}
	}
	return nil
}

// ReservingStatuses hold inventory; CANCELLED and REJECTED release it.
var ReservingStatuses = []Status{StatusWaitingPayment, StatusPending, StatusConfirmed}
