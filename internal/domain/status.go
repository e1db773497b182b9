package domain

type Status string

const (
	StatusWaitingPayment Status = "WAITING_PAYMENT"
	StatusPending        Status = "PENDING"
	StatusConfirmed      Status = "CONFIRMED"
	StatusRejected       Status = "REJECTED"
	StatusCancelled      Status = "CANCELLED"
)

var transitions = map[Status][]Status{
	StatusWaitingPayment: {StatusPending, StatusCancelled},
	StatusPending:        {StatusConfirmed, StatusRejected},
}

func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusWaitingPayment, StatusPending, StatusConfirmed, StatusRejected, StatusCancelled:
		return st, true
	}
	return "", false
}

func (s Status) Terminal() bool {
	return s == StatusConfirmed || s == StatusRejected || s == StatusCancelled
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CheckTransition returns an ErrInvalidState error when s may not move to next.
func (s Status) CheckTransition(next Status) error {
	if s.CanTransitionTo(next) {
		return nil
	}
	return InvalidStatef("transaction is %s and cannot move to %s", s, next)
}

type NotificationStatus string

const (
	NotificationNone   NotificationStatus = "NONE"
	NotificationQueued NotificationStatus = "QUEUED"
	NotificationSent   NotificationStatus = "SENT"
	NotificationFailed NotificationStatus = "FAILED"
)
