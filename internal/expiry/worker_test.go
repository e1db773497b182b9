package expiry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/robertarktes/eventhub/internal/domain"
	"github.com/robertarktes/eventhub/internal/observability"
	"github.com/stretchr/testify/assert"
)

type fakeLifecycle struct {
	expired  []domain.Transaction
	results  map[uuid.UUID][]error
	calls    map[uuid.UUID]int
	overdue  int
	listCall int
}

func (f *fakeLifecycle) ExpiredPayments(context.Context, int) ([]domain.Transaction, error) {
	f.listCall++
	return f.expired, nil
}

func (f *fakeLifecycle) Expire(_ context.Context, t domain.Transaction) (*domain.Transaction, error) {
	i := f.calls[t.ID]
	f.calls[t.ID]++
	if errs := f.results[t.ID]; i < len(errs) && errs[i] != nil {
		return nil, errs[i]
	}
	t.Status = domain.StatusCancelled
	return &t, nil
}

func (f *fakeLifecycle) CountOverdueReviews(context.Context) (int, error) {
	return f.overdue, nil
}

func newFake(txs ...domain.Transaction) *fakeLifecycle {
	return &fakeLifecycle{expired: txs, results: map[uuid.UUID][]error{}, calls: map[uuid.UUID]int{}}
}

func TestWorker_ExpiresWithRetry(t *testing.T) {
	flaky := domain.Transaction{ID: uuid.New()}
	raced := domain.Transaction{ID: uuid.New()}
	fake := newFake(flaky, raced)
	fake.results[flaky.ID] = []error{errors.New("db down"), nil}
	fake.results[raced.ID] = []error{domain.InvalidStatef("transaction is PENDING")}
	fake.overdue = 2

	w := NewWorker(fake, observability.NopLogger(), true)
	w.backoff = time.Millisecond
	w.Tick(context.Background())

	assert.Equal(t, 2, fake.calls[flaky.ID])
	assert.Equal(t, 1, fake.calls[raced.ID])
	assert.Equal(t, float64(2), testutil.ToFloat64(observability.OverdueReviews))
}

func TestWorker_GivesUpAfterMaxRetries(t *testing.T) {
	broken := domain.Transaction{ID: uuid.New()}
	fake := newFake(broken)
	fake.results[broken.ID] = []error{errors.New("a"), errors.New("b"), errors.New("c"), nil}

	w := NewWorker(fake, observability.NopLogger(), true)
	w.backoff = time.Millisecond
	err := w.expireWithRetry(context.Background(), broken)

	assert.Error(t, err)
	assert.Equal(t, 3, fake.calls[broken.ID])
}

func TestWorker_NoExpiryWithoutEnforcement(t *testing.T) {
	fake := newFake(domain.Transaction{ID: uuid.New()})
	fake.overdue = 0

	NewWorker(fake, observability.NopLogger(), false).Tick(context.Background())

	assert.Zero(t, fake.listCall)
	assert.Equal(t, float64(0), testutil.ToFloat64(observability.OverdueReviews))
}
