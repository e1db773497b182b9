package lifecycle

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/eventhub/internal/auth"
	"github.com/robertarktes/eventhub/internal/domain"
	"golang.org/x/sync/errgroup"
)

type Page struct {
	Transactions []domain.Transaction
	Page         int
	Limit        int
	Total        int64
}

// Get returns a transaction to its owner or to an admin.
func (s *Service) Get(ctx context.Context, id auth.Identity, txID uuid.UUID) (*domain.Transaction, error) {
	if id.IsAdmin() {
		return s.store.GetTransaction(ctx, txID)
	}
	return s.ownedTransaction(ctx, id, txID)
}

// History is the audit trail of a transaction, oldest first. Admins only.
func (s *Service) History(ctx context.Context, id auth.Identity, txID uuid.UUID) ([]domain.AuditEntry, error) {
	if !id.IsAdmin() {
		return nil, domain.Forbiddenf("admin access required")
	}
	if _, err := s.store.GetTransaction(ctx, txID); err != nil {
		return nil, err
	}
	if s.audit == nil {
		return nil, nil
	}
	entries, err := s.audit.ForTransaction(ctx, txID)
	if err != nil {
		return nil, errors.Wrapf(err, "load audit trail for %s", txID)
	}
	return entries, nil
}

func (s *Service) ListOwn(ctx context.Context, id auth.Identity, status *domain.Status, page, limit int) (Page, error) {
	userID := id.ID
	return s.list(ctx, domain.TransactionFilter{UserID: &userID, Status: status}, page, limit)
}

func (s *Service) ListAll(ctx context.Context, id auth.Identity, status *domain.Status, page, limit int) (Page, error) {
	if !id.IsAdmin() {
		return Page{}, domain.Forbiddenf("admin access required")
	}
	return s.list(ctx, domain.TransactionFilter{Status: status}, page, limit)
}

func (s *Service) OrganizerTransactions(ctx context.Context, id auth.Identity, status *domain.Status, page, limit int) (Page, error) {
	eventIDs, err := s.organizerEvents(ctx, id)
	if err != nil {
		return Page{}, err
	}
	if len(eventIDs) == 0 {
		page, limit, _, err := pageBounds(page, limit)
		if err != nil {
			return Page{}, err
		}
		return Page{Page: page, Limit: limit}, nil
	}
	return s.list(ctx, domain.TransactionFilter{EventIDs: eventIDs, Status: status}, page, limit)
}

func (s *Service) OrganizerStats(ctx context.Context, id auth.Identity) (domain.OrganizerStats, error) {
	eventIDs, err := s.organizerEvents(ctx, id)
	if err != nil {
		return domain.OrganizerStats{}, err
	}
	if len(eventIDs) == 0 {
		return domain.OrganizerStats{}, nil
	}
	stats, err := s.store.OrganizerStats(ctx, eventIDs)
	if err != nil {
		return domain.OrganizerStats{}, err
	}
	stats.EventsCount = len(eventIDs)
	return stats, nil
}

// EventsFor loads the events referenced by txs concurrently. Events that no
// longer exist are left out of the map.
func (s *Service) EventsFor(ctx context.Context, txs []domain.Transaction) (map[uuid.UUID]*domain.Event, error) {
	ids := make(map[uuid.UUID]struct{})
	for _, t := range txs {
		ids[t.EventID] = struct{}{}
	}

	var mu sync.Mutex
	events := make(map[uuid.UUID]*domain.Event, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for id := range ids {
		id := id
		g.Go(func() error {
			ev, err := s.catalog.GetEvent(gctx, id)
			if errors.Is(err, domain.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			mu.Lock()
			events[id] = ev
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *Service) organizerEvents(ctx context.Context, id auth.Identity) ([]uuid.UUID, error) {
	if !id.IsOrganizer() && !id.IsAdmin() {
		return nil, domain.Forbiddenf("organizer access required")
	}
	return s.catalog.EventIDsByOrganizer(ctx, id.ID)
}

func (s *Service) list(ctx context.Context, f domain.TransactionFilter, page, limit int) (Page, error) {
	page, limit, offset, err := pageBounds(page, limit)
	if err != nil {
		return Page{}, err
	}
	f.Limit = limit
	f.Offset = offset
	txs, total, err := s.store.ListTransactions(ctx, f)
	if err != nil {
		return Page{}, err
	}
	return Page{Transactions: txs, Page: page, Limit: limit, Total: total}, nil
}
