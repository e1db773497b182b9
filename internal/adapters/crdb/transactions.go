package crdb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/robertarktes/eventhub/internal/domain"
	"github.com/robertarktes/eventhub/internal/lifecycle"
	"github.com/shopspring/decimal"
)

const transactionColumns = `id, user_id, buyer_email, buyer_name, event_id, coupon_id,
	original_amount, discount_amount, total_amount, status,
	payment_deadline, review_deadline, payment_proof, payment_proof_uploaded_at,
	confirmed_at, reviewed_by, reviewed_at, rejection_reason, cancelled_at,
	ticket_id, ticket_sent_at, notification_status, created_at, updated_at`

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	var status, notification string
	err := row.Scan(
		&t.ID, &t.UserID, &t.BuyerEmail, &t.BuyerName, &t.EventID, &t.CouponID,
		&t.OriginalAmount, &t.DiscountAmount, &t.TotalAmount, &status,
		&t.PaymentDeadline, &t.ReviewDeadline, &t.PaymentProof, &t.PaymentProofUploadedAt,
		&t.ConfirmedAt, &t.ReviewedBy, &t.ReviewedAt, &t.RejectionReason, &t.CancelledAt,
		&t.TicketID, &t.TicketSentAt, &notification, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Status = domain.Status(status)
	t.NotificationStatus = domain.NotificationStatus(notification)
	return &t, nil
}

func (r *Repository) GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	return getTransaction(ctx, r.pool, id)
}

func getTransaction(ctx context.Context, q querier, id uuid.UUID) (*domain.Transaction, error) {
	t, err := scanTransaction(q.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFoundf("transaction %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	items, err := loadItems(ctx, q, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	t.Items = items[id]
	return t, nil
}

func loadItems(ctx context.Context, q querier, ids []uuid.UUID) (map[uuid.UUID][]domain.TransactionItem, error) {
	out := make(map[uuid.UUID][]domain.TransactionItem, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := q.Query(ctx, `
		SELECT transaction_id, ticket_type_id, ticket_type_name, quantity, unit_price
		FROM transaction_tickets WHERE transaction_id = ANY($1::UUID[])
		ORDER BY transaction_id, ticket_type_name
	`, uuidStrings(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var txID uuid.UUID
		var item domain.TransactionItem
		if err := rows.Scan(&txID, &item.TicketTypeID, &item.TicketTypeName, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, err
		}
		out[txID] = append(out[txID], item)
	}
	return out, rows.Err()
}

// ListTransactions returns one page, newest first, with line items, plus the total match count.
func (r *Repository) ListTransactions(ctx context.Context, f domain.TransactionFilter) ([]domain.Transaction, int64, error) {
	var where []string
	var args []any
	if f.UserID != nil {
		args = append(args, *f.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if len(f.EventIDs) > 0 {
		args = append(args, uuidStrings(f.EventIDs))
		where = append(where, fmt.Sprintf("event_id = ANY($%d::UUID[])", len(args)))
	}
	if f.Status != nil {
		args = append(args, string(*f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM transactions`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 10
	}
	args = append(args, limit, f.Offset)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM transactions%s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		transactionColumns, clause, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var txs []domain.Transaction
	var ids []uuid.UUID
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		txs = append(txs, *t)
		ids = append(ids, t.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	rows.Close()

	items, err := loadItems(ctx, r.pool, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range txs {
		txs[i].Items = items[txs[i].ID]
	}
	return txs, total, nil
}

func (r *Repository) OrganizerStats(ctx context.Context, eventIDs []uuid.UUID) (domain.OrganizerStats, error) {
	stats := domain.OrganizerStats{EventsCount: len(eventIDs)}
	var confirmed, pending int64
	err := r.pool.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(total_amount) FILTER (WHERE status = 'CONFIRMED'), 0),
			count(*) FILTER (WHERE status = 'CONFIRMED'),
			count(*) FILTER (WHERE status = 'PENDING')
		FROM transactions WHERE event_id = ANY($1::UUID[])
	`, uuidStrings(eventIDs)).Scan(&stats.TotalRevenue, &confirmed, &pending)
	if err != nil {
		return stats, err
	}

	var sold decimal.Decimal
	err = r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(i.quantity), 0)
		FROM transaction_tickets i JOIN transactions t ON t.id = i.transaction_id
		WHERE t.status = 'CONFIRMED' AND t.event_id = ANY($1::UUID[])
	`, uuidStrings(eventIDs)).Scan(&sold)
	if err != nil {
		return stats, err
	}

	stats.ConfirmedCount = int(confirmed)
	stats.PendingTransactions = int(pending)
	stats.TicketsSold = int(sold.IntPart())
	return stats, nil
}

// ExpiredPayments lists WAITING_PAYMENT rows past their deadline, without line items.
func (r *Repository) ExpiredPayments(ctx context.Context, now time.Time, limit int) ([]domain.Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions WHERE status = 'WAITING_PAYMENT' AND payment_deadline <= $1
		ORDER BY payment_deadline LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, *t)
	}
	return txs, rows.Err()
}

func (r *Repository) CountOverdueReviews(ctx context.Context, now time.Time) (int, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM transactions WHERE status = 'PENDING' AND review_deadline < $1
	`, now).Scan(&n)
	return int(n), err
}

// RecordNotification stores the outcome of an email attempt while the
// transaction is still in expected. It reports false when the transaction has
// moved on, so a late result never overwrites the state of a newer email.
// sentAt is only written for ticket deliveries.
func (r *Repository) RecordNotification(ctx context.Context, id uuid.UUID, expected domain.Status, status domain.NotificationStatus, sentAt *time.Time) (bool, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE transactions
		SET notification_status = $3, ticket_sent_at = COALESCE($4, ticket_sent_at), updated_at = now()
		WHERE id = $1 AND status = $2
	`, id, string(expected), string(status), sentAt)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

// txQueries implements lifecycle.Tx on an open SERIALIZABLE transaction.
type txQueries struct {
	repo *Repository
	tx   pgx.Tx
}

var _ lifecycle.Tx = (*txQueries)(nil)

func (q *txQueries) LockCoupon(ctx context.Context, id uuid.UUID) (*domain.Coupon, error) {
	c, err := scanCoupon(q.tx.QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFoundf("coupon %s not found", id)
	}
	return c, err
}

func (q *txQueries) RedeemCoupon(ctx context.Context, id uuid.UUID) error {
	result, err := q.tx.Exec(ctx, `
		UPDATE coupons SET used_count = used_count + 1
		WHERE id = $1 AND (max_uses IS NULL OR used_count < max_uses)
	`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.Validationf("coupon %s usage limit exceeded", id)
	}
	return nil
}

func (q *txQueries) ReleaseCoupon(ctx context.Context, id uuid.UUID) error {
	_, err := q.tx.Exec(ctx, `UPDATE coupons SET used_count = used_count - 1 WHERE id = $1 AND used_count > 0`, id)
	return err
}

func (q *txQueries) ReservedQuantities(ctx context.Context, eventID uuid.UUID) (map[uuid.UUID]int, error) {
	rows, err := q.tx.Query(ctx, `
		SELECT i.ticket_type_id, SUM(i.quantity)::INT8
		FROM transaction_tickets i JOIN transactions t ON t.id = i.transaction_id
		WHERE t.event_id = $1 AND t.status = ANY($2::TEXT[])
		GROUP BY i.ticket_type_id
	`, eventID, statusStrings(domain.ReservingStatuses))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[uuid.UUID]int)
	for rows.Next() {
		var id uuid.UUID
		var qty int64
		if err := rows.Scan(&id, &qty); err != nil {
			return nil, err
		}
		out[id] = int(qty)
	}
	return out, rows.Err()
}

func (q *txQueries) InsertTransaction(ctx context.Context, t domain.Transaction) error {
	_, err := q.tx.Exec(ctx, `
		INSERT INTO transactions (id, user_id, buyer_email, buyer_name, event_id, coupon_id,
			original_amount, discount_amount, total_amount, status, payment_deadline,
			notification_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, t.ID, t.UserID, t.BuyerEmail, t.BuyerName, t.EventID, t.CouponID,
		t.OriginalAmount, t.DiscountAmount, t.TotalAmount, string(t.Status), t.PaymentDeadline,
		string(t.NotificationStatus), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, item := range t.Items {
		batch.Queue(`
			INSERT INTO transaction_tickets (transaction_id, ticket_type_id, ticket_type_name, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5)
		`, t.ID, item.TicketTypeID, item.TicketTypeName, item.Quantity, item.UnitPrice)
	}
	return q.tx.SendBatch(ctx, batch).Close()
}

func (q *txQueries) UpdateStatus(ctx context.Context, u lifecycle.StatusUpdate) (*domain.Transaction, error) {
	var notification *string
	if u.NotificationStatus != nil {
		s := string(*u.NotificationStatus)
		notification = &s
	}
	t, err := scanTransaction(q.tx.QueryRow(ctx, `
		UPDATE transactions SET
			status = $3,
			updated_at = $4,
			payment_proof = COALESCE($5, payment_proof),
			payment_proof_uploaded_at = COALESCE($6, payment_proof_uploaded_at),
			review_deadline = COALESCE($7, review_deadline),
			confirmed_at = COALESCE($8, confirmed_at),
			reviewed_by = COALESCE($9, reviewed_by),
			reviewed_at = COALESCE($10, reviewed_at),
			rejection_reason = COALESCE($11, rejection_reason),
			cancelled_at = COALESCE($12, cancelled_at),
			ticket_id = COALESCE($13, ticket_id),
			notification_status = COALESCE($14, notification_status)
		WHERE id = $1 AND status = $2
		RETURNING `+transactionColumns,
		u.ID, string(u.From), string(u.To), u.At,
		u.PaymentProof, u.ProofUploadedAt, u.ReviewDeadline, u.ConfirmedAt,
		u.ReviewedBy, u.ReviewedAt, u.RejectionReason, u.CancelledAt,
		u.TicketID, notification,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		var current string
		err := q.tx.QueryRow(ctx, `SELECT status FROM transactions WHERE id = $1`, u.ID).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFoundf("transaction %s not found", u.ID)
		}
		if err != nil {
			return nil, err
		}
		return nil, domain.InvalidStatef("transaction is %s and cannot move to %s", current, u.To)
	}
	if err != nil {
		return nil, err
	}

	items, err := loadItems(ctx, q.tx, []uuid.UUID{t.ID})
	if err != nil {
		return nil, err
	}
	t.Items = items[t.ID]
	return t, nil
}

func (q *txQueries) InsertOutbox(ctx context.Context, msg domain.OutboxMessage) error {
	return q.repo.InsertOutbox(ctx, q.tx, OutboxRecord{
		ID:            msg.ID,
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		EventType:     msg.EventType,
		Payload:       msg.Payload,
		DedupeKey:     msg.DedupeKey,
	})
}
