package crdb_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robertarktes/eventhub/internal/adapters/crdb"
	"github.com/robertarktes/eventhub/internal/domain"
	"github.com/robertarktes/eventhub/internal/lifecycle"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startCockroach(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("cockroach container skipped in -short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "cockroachdb/cockroach:v24.1.1",
			Cmd:          []string{"start-single-node", "--insecure"},
			ExposedPorts: []string{"26257/tcp", "8080/tcp"},
			WaitingFor:   wait.ForHTTP("/health?ready=1").WithPort("8080"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "26257")
	require.NoError(t, err)

	admin, err := pgxpool.New(ctx, fmt.Sprintf("postgresql://root@%s:%s/defaultdb?sslmode=disable", host, port.Port()))
	require.NoError(t, err)
	_, err = admin.Exec(ctx, `CREATE DATABASE IF NOT EXISTS eventhub`)
	require.NoError(t, err)
	admin.Close()

	pool, err := pgxpool.New(ctx, fmt.Sprintf("postgresql://root@%s:%s/eventhub?sslmode=disable", host, port.Port()))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, crdb.Migrate(ctx, pool))
	require.NoError(t, crdb.Migrate(ctx, pool), "migrations must be re-runnable")
	return pool
}

func newTransaction(t *testing.T, couponID *uuid.UUID) domain.Transaction {
	t.Helper()
	ev := domain.Event{
		ID: uuid.New(),
		TicketTypes: []domain.TicketType{
			{ID: uuid.New(), Name: "General", Price: decimal.NewFromInt(100000), Quantity: 10},
			{ID: uuid.New(), Name: "VIP", Price: decimal.NewFromInt(150000), Quantity: 2},
		},
	}
	var coupon *domain.Coupon
	if couponID != nil {
		coupon = &domain.Coupon{ID: *couponID, DiscountType: domain.DiscountFixed, DiscountValue: decimal.NewFromInt(50000)}
	}
	tx, err := domain.NewTransaction(domain.NewTransactionParams{
		UserID:     uuid.New(),
		BuyerEmail: "buyer@example.com",
		Event:      ev,
		Selections: []domain.TicketSelection{
			{TicketTypeID: ev.TicketTypes[0].ID, Quantity: 1},
			{TicketTypeID: ev.TicketTypes[1].ID, Quantity: 1},
		},
		Coupon: coupon,
	}, time.Now().UTC().Truncate(time.Microsecond), 2*time.Hour)
	require.NoError(t, err)
	return tx
}

func insert(t *testing.T, repo *crdb.Repository, tr domain.Transaction) {
	t.Helper()
	err := repo.InTx(context.Background(), func(tx lifecycle.Tx) error {
		if err := tx.InsertTransaction(context.Background(), tr); err != nil {
			return err
		}
		msg, err := domain.NewLifecycleMessage(domain.EventTransactionCreated, tr, tr.CreatedAt)
		if err != nil {
			return err
		}
		return tx.InsertOutbox(context.Background(), msg)
	})
	require.NoError(t, err)
}

func TestRepository(t *testing.T) {
	pool := startCockroach(t)
	repo := crdb.NewRepository(pool)
	ctx := context.Background()

	t.Run("insert and get with items", func(t *testing.T) {
		tr := newTransaction(t, nil)
		insert(t, repo, tr)

		got, err := repo.GetTransaction(ctx, tr.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusWaitingPayment, got.Status)
		assert.True(t, got.TotalAmount.Equal(decimal.NewFromInt(250000)))
		assert.Len(t, got.Items, 2)
		assert.Nil(t, got.TicketID)

		_, err = repo.GetTransaction(ctx, uuid.New())
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})

	t.Run("conditional status update", func(t *testing.T) {
		tr := newTransaction(t, nil)
		insert(t, repo, tr)
		now := time.Now().UTC()
		proof := "proof-ref"
		queued := domain.NotificationQueued

		var updated *domain.Transaction
		err := repo.InTx(ctx, func(tx lifecycle.Tx) error {
			var err error
			updated, err = tx.UpdateStatus(ctx, lifecycle.StatusUpdate{
				ID: tr.ID, From: domain.StatusWaitingPayment, To: domain.StatusPending, At: now,
				PaymentProof: &proof, ProofUploadedAt: &now, NotificationStatus: &queued,
			})
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPending, updated.Status)
		assert.Equal(t, "proof-ref", *updated.PaymentProof)
		assert.Equal(t, domain.NotificationQueued, updated.NotificationStatus)
		assert.Len(t, updated.Items, 2)

		err = repo.InTx(ctx, func(tx lifecycle.Tx) error {
			_, err := tx.UpdateStatus(ctx, lifecycle.StatusUpdate{
				ID: tr.ID, From: domain.StatusWaitingPayment, To: domain.StatusCancelled, At: now,
			})
			return err
		})
		assert.True(t, errors.Is(err, domain.ErrInvalidState), "got %v", err)

		err = repo.InTx(ctx, func(tx lifecycle.Tx) error {
			_, err := tx.UpdateStatus(ctx, lifecycle.StatusUpdate{
				ID: uuid.New(), From: domain.StatusWaitingPayment, To: domain.StatusCancelled, At: now,
			})
			return err
		})
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})

	t.Run("coupon redemption is bounded", func(t *testing.T) {
		limit := 2
		c := domain.Coupon{
			ID: uuid.New(), Code: "LIMIT-" + uuid.NewString()[:8], DiscountType: domain.DiscountFixed,
			DiscountValue: decimal.NewFromInt(50000), IsActive: true, MaxUses: &limit, CreatedAt: time.Now(),
		}
		require.NoError(t, repo.CreateCoupon(ctx, c))
		assert.True(t, errors.Is(repo.CreateCoupon(ctx, c), domain.ErrConflict))

		redeem := func() error {
			return repo.InTx(ctx, func(tx lifecycle.Tx) error {
				return tx.RedeemCoupon(ctx, c.ID)
			})
		}
		require.NoError(t, redeem())
		require.NoError(t, redeem())
		assert.True(t, errors.Is(redeem(), domain.ErrValidation))

		got, err := repo.GetCouponByCode(ctx, c.Code)
		require.NoError(t, err)
		assert.Equal(t, 2, got.UsedCount)

		require.NoError(t, repo.InTx(ctx, func(tx lifecycle.Tx) error { return tx.ReleaseCoupon(ctx, c.ID) }))
		got, err = repo.GetCouponByCode(ctx, c.Code)
		require.NoError(t, err)
		assert.Equal(t, 1, got.UsedCount)
	})

	t.Run("reserved quantities and stats", func(t *testing.T) {
		tr := newTransaction(t, nil)
		insert(t, repo, tr)

		var reserved map[uuid.UUID]int
		require.NoError(t, repo.InTx(ctx, func(tx lifecycle.Tx) error {
			var err error
			reserved, err = tx.ReservedQuantities(ctx, tr.EventID)
			return err
		}))
		assert.Equal(t, 1, reserved[tr.Items[0].TicketTypeID])

		now := time.Now().UTC()
		ticket := domain.GenerateTicketID(tr.ID, now)
		require.NoError(t, repo.InTx(ctx, func(tx lifecycle.Tx) error {
			if _, err := tx.UpdateStatus(ctx, lifecycle.StatusUpdate{ID: tr.ID, From: domain.StatusWaitingPayment, To: domain.StatusPending, At: now}); err != nil {
				return err
			}
			_, err := tx.UpdateStatus(ctx, lifecycle.StatusUpdate{ID: tr.ID, From: domain.StatusPending, To: domain.StatusConfirmed, At: now, ConfirmedAt: &now, TicketID: &ticket})
			return err
		}))

		stats, err := repo.OrganizerStats(ctx, []uuid.UUID{tr.EventID})
		require.NoError(t, err)
		assert.Equal(t, 1, stats.ConfirmedCount)
		assert.Equal(t, 2, stats.TicketsSold)
		assert.True(t, stats.TotalRevenue.Equal(decimal.NewFromInt(250000)))

		confirmed := domain.StatusConfirmed
		txs, total, err := repo.ListTransactions(ctx, domain.TransactionFilter{UserID: &tr.UserID, Status: &confirmed, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, txs, 1)
		assert.Equal(t, ticket, *txs[0].TicketID)

		sent := time.Now().UTC()
		applied, err := repo.RecordNotification(ctx, tr.ID, domain.StatusPending, domain.NotificationFailed, nil)
		require.NoError(t, err)
		assert.False(t, applied, "result for an earlier status is ignored")

		applied, err = repo.RecordNotification(ctx, tr.ID, domain.StatusConfirmed, domain.NotificationSent, &sent)
		require.NoError(t, err)
		assert.True(t, applied)
		got, err := repo.GetTransaction(ctx, tr.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.NotificationSent, got.NotificationStatus)
		assert.NotNil(t, got.TicketSentAt)
	})

	t.Run("expired payments", func(t *testing.T) {
		tr := newTransaction(t, nil)
		tr.PaymentDeadline = time.Now().UTC().Add(-time.Minute)
		insert(t, repo, tr)

		expired, err := repo.ExpiredPayments(ctx, time.Now().UTC(), 100)
		require.NoError(t, err)
		ids := make([]uuid.UUID, 0, len(expired))
		for _, e := range expired {
			ids = append(ids, e.ID)
		}
		assert.Contains(t, ids, tr.ID)
	})

	t.Run("outbox processing", func(t *testing.T) {
		var seen []string
		published, err := repo.ProcessOutbox(ctx, 100, 3, func(rec crdb.OutboxRecord) error {
			seen = append(seen, rec.DedupeKey)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, len(seen), published)
		assert.NotZero(t, published)

		lag, err := repo.OutboxLag(ctx)
		require.NoError(t, err)
		assert.Zero(t, lag)

		insert(t, repo, newTransaction(t, nil))
		for i := 0; i < 3; i++ {
			n, err := repo.ProcessOutbox(ctx, 100, 3, func(crdb.OutboxRecord) error { return errors.New("broker down") })
			require.NoError(t, err)
			assert.Zero(t, n)
		}
		n, err := repo.ProcessOutbox(ctx, 100, 3, func(crdb.OutboxRecord) error {
			t.Fatal("failed records must not be retried")
			return nil
		})
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}
