package lifecycle

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/eventhub/internal/domain"
	"github.com/shopspring/decimal"
)

type memState struct {
	txs     map[uuid.UUID]domain.Transaction
	coupons map[uuid.UUID]domain.Coupon
	outbox  []domain.OutboxMessage
}

func (s memState) clone() memState {
	c := memState{
		txs:     make(map[uuid.UUID]domain.Transaction, len(s.txs)),
		coupons: make(map[uuid.UUID]domain.Coupon, len(s.coupons)),
		outbox:  append([]domain.OutboxMessage(nil), s.outbox...),
	}
	for k, v := range s.txs {
		c.txs[k] = v
	}
	for k, v := range s.coupons {
		c.coupons[k] = v
	}
	return c
}

// memStore serializes InTx calls and commits a copy of the state only when fn succeeds.
type memStore struct {
	mu       sync.Mutex
	state    memState
	beforeTx func(s *memState)
}

func newMemStore() *memStore {
	return &memStore{state: memState{
		txs:     map[uuid.UUID]domain.Transaction{},
		coupons: map[uuid.UUID]domain.Coupon{},
	}}
}

func (m *memStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.beforeTx != nil {
		m.beforeTx(&m.state)
		m.beforeTx = nil
	}
	work := m.state.clone()
	if err := fn(&memTx{s: &work}); err != nil {
		return err
	}
	m.state = work
	return nil
}

func (m *memStore) GetTransaction(_ context.Context, id uuid.UUID) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.state.txs[id]
	if !ok {
		return nil, domain.NotFoundf("transaction %s not found", id)
	}
	return &t, nil
}

func (m *memStore) ListTransactions(_ context.Context, f domain.TransactionFilter) ([]domain.Transaction, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Transaction
	for _, t := range m.state.txs {
		if f.UserID != nil && t.UserID != *f.UserID {
			continue
		}
		if f.Status != nil && t.Status != *f.Status {
			continue
		}
		if len(f.EventIDs) > 0 && !containsID(f.EventIDs, t.EventID) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := int64(len(out))
	if f.Offset >= len(out) {
		return nil, total, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, total, nil
}

func (m *memStore) OrganizerStats(_ context.Context, eventIDs []uuid.UUID) (domain.OrganizerStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := domain.OrganizerStats{TotalRevenue: decimal.Zero}
	for _, t := range m.state.txs {
		if !containsID(eventIDs, t.EventID) {
			continue
		}
		switch t.Status {
		case domain.StatusConfirmed:
			stats.ConfirmedCount++
			stats.TotalRevenue = stats.TotalRevenue.Add(t.TotalAmount)
			for _, it := range t.Items {
				stats.TicketsSold += it.Quantity
			}
		case domain.StatusPending:
			stats.PendingTransactions++
		}
	}
	return stats, nil
}

func (m *memStore) ExpiredPayments(_ context.Context, now time.Time, limit int) ([]domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Transaction
	for _, t := range m.state.txs {
		if t.Status == domain.StatusWaitingPayment && !t.PaymentDeadline.After(now) {
			out = append(out, t)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) CountOverdueReviews(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.state.txs {
		if t.Status == domain.StatusPending && t.ReviewDeadline != nil && t.ReviewDeadline.Before(now) {
			n++
		}
	}
	return n, nil
}

func (m *memStore) tx(id uuid.UUID) domain.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.txs[id]
}

func (m *memStore) coupon(id uuid.UUID) domain.Coupon {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.coupons[id]
}

func (m *memStore) putCoupon(c domain.Coupon) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.coupons[c.ID] = c
}

func (m *memStore) outboxTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var types []string
	for _, msg := range m.state.outbox {
		types = append(types, msg.EventType)
	}
	return types
}

type memTx struct {
	s *memState
}

func (t *memTx) LockCoupon(_ context.Context, id uuid.UUID) (*domain.Coupon, error) {
	c, ok := t.s.coupons[id]
	if !ok {
		return nil, domain.NotFoundf("coupon %s not found", id)
	}
	return &c, nil
}

func (t *memTx) RedeemCoupon(_ context.Context, id uuid.UUID) error {
	c := t.s.coupons[id]
	if c.MaxUses != nil && c.UsedCount >= *c.MaxUses {
		return domain.Validationf("coupon %s usage limit exceeded", c.Code)
	}
	c.UsedCount++
	t.s.coupons[id] = c
	return nil
}

func (t *memTx) ReleaseCoupon(_ context.Context, id uuid.UUID) error {
	c := t.s.coupons[id]
	if c.UsedCount > 0 {
		c.UsedCount--
	}
	t.s.coupons[id] = c
	return nil
}

func (t *memTx) ReservedQuantities(_ context.Context, eventID uuid.UUID) (map[uuid.UUID]int, error) {
	out := map[uuid.UUID]int{}
	for _, tr := range t.s.txs {
		if tr.EventID != eventID || !containsStatus(domain.ReservingStatuses, tr.Status) {
			continue
		}
		for _, it := range tr.Items {
			out[it.TicketTypeID] += it.Quantity
		}
	}
	return out, nil
}

func (t *memTx) InsertTransaction(_ context.Context, tr domain.Transaction) error {
	t.s.txs[tr.ID] = tr
	return nil
}

func (t *memTx) UpdateStatus(_ context.Context, u StatusUpdate) (*domain.Transaction, error) {
	tr, ok := t.s.txs[u.ID]
	if !ok {
		return nil, domain.NotFoundf("transaction %s not found", u.ID)
	}
	if tr.Status != u.From {
		return nil, domain.InvalidStatef("transaction is %s, expected %s", tr.Status, u.From)
	}
	tr.Status = u.To
	tr.UpdatedAt = u.At
	if u.PaymentProof != nil {
		tr.PaymentProof = u.PaymentProof
	}
	if u.ProofUploadedAt != nil {
		tr.PaymentProofUploadedAt = u.ProofUploadedAt
	}
	if u.ReviewDeadline != nil {
		tr.ReviewDeadline = u.ReviewDeadline
	}
	if u.ConfirmedAt != nil {
		tr.ConfirmedAt = u.ConfirmedAt
	}
	if u.ReviewedBy != nil {
		tr.ReviewedBy = u.ReviewedBy
	}
	if u.ReviewedAt != nil {
		tr.ReviewedAt = u.ReviewedAt
	}
	if u.RejectionReason != nil {
		tr.RejectionReason = u.RejectionReason
	}
	if u.CancelledAt != nil {
		tr.CancelledAt = u.CancelledAt
	}
	if u.TicketID != nil {
		tr.TicketID = u.TicketID
	}
	if u.NotificationStatus != nil {
		tr.NotificationStatus = *u.NotificationStatus
	}
	t.s.txs[u.ID] = tr
	return &tr, nil
}

func (t *memTx) InsertOutbox(_ context.Context, msg domain.OutboxMessage) error {
	t.s.outbox = append(t.s.outbox, msg)
	return nil
}

type memCatalog struct {
	events map[uuid.UUID]domain.Event
}

func (c *memCatalog) GetEvent(_ context.Context, id uuid.UUID) (*domain.Event, error) {
	ev, ok := c.events[id]
	if !ok {
		return nil, domain.NotFoundf("event %s not found", id)
	}
	return &ev, nil
}

func (c *memCatalog) EventIDsByOrganizer(_ context.Context, organizerID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, ev := range c.events {
		if ev.OrganizerID == organizerID {
			ids = append(ids, ev.ID)
		}
	}
	return ids, nil
}

type memProofs struct {
	mu    sync.Mutex
	files map[string][]byte
}

func (p *memProofs) Save(_ context.Context, pr Proof) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ref := uuid.NewString()
	p.files[ref] = pr.Data
	return ref, nil
}

func (p *memProofs) Open(_ context.Context, ref string) (io.ReadCloser, string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	data, ok := p.files[ref]
	if !ok {
		return nil, "", domain.NotFoundf("proof %s not found", ref)
	}
	return io.NopCloser(bytes.NewReader(data)), "image/jpeg", nil
}

func (p *memProofs) Delete(_ context.Context, ref string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.files, ref)
	return nil
}

func (p *memProofs) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.files)
}

type memAudit struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func (a *memAudit) Record(_ context.Context, e domain.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
	return nil
}

func (a *memAudit) ForTransaction(_ context.Context, id uuid.UUID) ([]domain.AuditEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []domain.AuditEntry
	for _, e := range a.entries {
		if e.TransactionID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

func (a *memAudit) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []string
	for _, e := range a.entries {
		out = append(out, e.Action)
	}
	return out
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func containsStatus(list []domain.Status, s domain.Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
