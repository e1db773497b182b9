package notify

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/eventhub/internal/domain"
	"github.com/robertarktes/eventhub/internal/observability"
)

type Transactions interface {
	GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	RecordNotification(ctx context.Context, id uuid.UUID, expected domain.Status, status domain.NotificationStatus, sentAt *time.Time) (bool, error)
}

type Events interface {
	GetEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error)
}

type Auditor interface {
	Record(ctx context.Context, entry domain.AuditEntry) error
}

type Dispatcher struct {
	txs    Transactions
	events Events
	mailer Mailer
	signer *TicketSigner
	audit  Auditor
	logger observability.Logger
	now    func() time.Time
}

func NewDispatcher(txs Transactions, events Events, mailer Mailer, signer *TicketSigner, audit Auditor, logger observability.Logger) *Dispatcher {
	return &Dispatcher{
		txs:    txs,
		events: events,
		mailer: mailer,
		signer: signer,
		audit:  audit,
		logger: logger,
		now:    time.Now,
	}
}

// Bindings are the routing keys the notifier queue subscribes to.
func Bindings() []string {
	return []string{
		domain.EventTransactionProofSubmitted,
		domain.EventTransactionConfirmed,
		domain.EventTransactionRejected,
	}
}

func kindFor(eventType string) (Kind, bool) {
	switch eventType {
	case domain.EventTransactionProofSubmitted:
		return KindPaymentReceived, true
	case domain.EventTransactionConfirmed:
		return KindTicket, true
	case domain.EventTransactionRejected:
		return KindRejected, true
	}
	return "", false
}

// Handle sends the email for one lifecycle event. Stale and already-delivered
// events are skipped without error; delivery failures are returned.
func (d *Dispatcher) Handle(ctx context.Context, ev domain.LifecycleEvent) error {
	kind, ok := kindFor(ev.Type)
	if !ok {
		return nil
	}
	ctx, span := observability.StartSpan(ctx, "notify."+string(kind))
	defer span.End()

	log := d.logger.WithFields(map[string]interface{}{
		"transaction_id": ev.TransactionID,
		"event":          ev.Type,
	})

	t, err := d.txs.GetTransaction(ctx, ev.TransactionID)
	if errors.Is(err, domain.ErrNotFound) {
		log.Warn("notification for unknown transaction dropped")
		return nil
	}
	if err != nil {
		return err
	}
	if t.Status != ev.Status {
		log.WithField("status", t.Status).Debug("stale notification skipped")
		return nil
	}
	if delivered(kind, t) {
		log.Debug("notification already delivered")
		return nil
	}
	if t.BuyerEmail == "" {
		d.MarkFailed(ctx, ev, errors.New("transaction has no buyer email"))
		return nil
	}

	event, err := d.events.GetEvent(ctx, t.EventID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	msg, err := d.compose(kind, t, event)
	if err != nil {
		return err
	}
	if err := d.mailer.Send(ctx, msg); err != nil {
		observability.NotificationsTotal.WithLabelValues(string(kind), "error").Inc()
		return err
	}

	now := d.now().UTC()
	var sentAt *time.Time
	if kind == KindTicket {
		sentAt = &now
	}
	applied, err := d.txs.RecordNotification(ctx, t.ID, ev.Status, domain.NotificationSent, sentAt)
	switch {
	case err != nil:
		log.WithError(err).Error("email sent but status not recorded")
	case !applied:
		log.Info("transaction moved on before delivery was recorded")
	}
	observability.NotificationsTotal.WithLabelValues(string(kind), "sent").Inc()
	d.record(ctx, "notification.sent", t.ID, map[string]interface{}{"kind": string(kind), "to": t.BuyerEmail})
	log.Info("notification sent")
	return nil
}

// delivered reports whether the email for kind already went out. Ticket
// deliveries are tracked by ticket_sent_at; other kinds rely on the status
// only being marked SENT while the transaction is in the event's status.
func delivered(kind Kind, t *domain.Transaction) bool {
	if kind == KindTicket {
		return t.TicketSentAt != nil
	}
	return t.NotificationStatus == domain.NotificationSent
}

// MarkFailed records a delivery that will not be retried.
func (d *Dispatcher) MarkFailed(ctx context.Context, ev domain.LifecycleEvent, cause error) {
	kind, _ := kindFor(ev.Type)
	log := d.logger.WithError(cause).WithField("transaction_id", ev.TransactionID)
	applied, err := d.txs.RecordNotification(ctx, ev.TransactionID, ev.Status, domain.NotificationFailed, nil)
	switch {
	case err != nil:
		log.WithField("record_error", err.Error()).Error("failed to record notification failure")
	case !applied:
		log.Info("transaction moved on, failure not recorded on it")
	}
	observability.NotificationsTotal.WithLabelValues(string(kind), "failed").Inc()
	d.record(ctx, "notification.failed", ev.TransactionID, map[string]interface{}{"kind": string(kind), "error": cause.Error()})
	log.Error("notification failed")
}

func (d *Dispatcher) compose(kind Kind, t *domain.Transaction, event *domain.Event) (Message, error) {
	v := View{
		BuyerName:     t.BuyerName,
		EventTitle:    "your event",
		TransactionID: t.ID.String(),
		TotalAmount:   t.TotalAmount.StringFixed(2),
	}
	if v.BuyerName == "" {
		v.BuyerName = t.BuyerEmail
	}
	if event != nil {
		v.EventTitle = event.Title
		v.EventLocation = event.Location
		if !event.StartsAt.IsZero() {
			v.EventDate = event.StartsAt.Format("Monday, 2 January 2006 15:04 MST")
		}
	}
	if t.TicketID != nil {
		v.TicketID = *t.TicketID
	}
	if t.RejectionReason != nil {
		v.Reason = *t.RejectionReason
	}
	for _, it := range t.Items {
		v.Items = append(v.Items, ViewItem{Name: it.TicketTypeName, Quantity: it.Quantity, Subtotal: it.Subtotal().StringFixed(2)})
	}

	r, err := Render(kind, v)
	if err != nil {
		return Message{}, err
	}
	msg := Message{
		To:      t.BuyerEmail,
		ToName:  t.BuyerName,
		Subject: r.Subject,
		Text:    r.Text,
		HTML:    r.HTML,
	}
	if kind == KindTicket && t.TicketID != nil {
		png, err := d.signer.QRCode(d.signer.Sign(*t.TicketID, t.ID.String(), t.EventID.String()))
		if err != nil {
			return Message{}, err
		}
		msg.Attachments = append(msg.Attachments, Attachment{Name: *t.TicketID + ".png", ContentType: "image/png", Data: png})
	}
	return msg, nil
}

func (d *Dispatcher) record(ctx context.Context, action string, txID uuid.UUID, data map[string]interface{}) {
	if d.audit == nil {
		return
	}
	if err := d.audit.Record(ctx, domain.AuditEntry{Action: action, TransactionID: txID, Data: data, At: d.now().UTC()}); err != nil {
		d.logger.WithError(err).Warn("audit write failed")
	}
}
