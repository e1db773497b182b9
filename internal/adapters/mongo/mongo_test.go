package mongo_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	mongoadapter "github.com/robertarktes/eventhub/internal/adapters/mongo"
	"github.com/robertarktes/eventhub/internal/domain"
	"github.com/robertarktes/eventhub/internal/lifecycle"
	"github.com/robertarktes/eventhub/internal/observability"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func startMongo(t *testing.T) *mongo.Database {
	t.Helper()
	if testing.Short() {
		t.Skip("mongo container skipped in -short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForLog("Waiting for connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "27017")
	require.NoError(t, err)

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(fmt.Sprintf("mongodb://%s:%s", host, port.Port())))
	require.NoError(t, err)
	t.Cleanup(func() { client.Disconnect(context.Background()) })
	return client.Database("eventhub_test")
}

func TestMongoAdapters(t *testing.T) {
	db := startMongo(t)
	ctx := context.Background()
	logger := observability.NopLogger()

	t.Run("catalog", func(t *testing.T) {
		catalog := mongoadapter.NewCatalogRepository(db, logger)
		require.NoError(t, catalog.EnsureIndexes(ctx))

		organizer := uuid.New()
		base := time.Date(2025, 6, 1, 19, 0, 0, 0, time.UTC)
		newEvent := func(title, category string, published bool, approval domain.ApprovalStatus, offset int) domain.Event {
			return domain.Event{
				ID: uuid.New(), OrganizerID: organizer, Title: title, Category: category,
				Location: "Jakarta", StartsAt: base.Add(time.Duration(offset) * time.Hour),
				Published: published, Approval: approval,
				TicketTypes: []domain.TicketType{{ID: uuid.New(), Name: "General", Price: decimal.RequireFromString("99999.50"), Quantity: 50}},
				CreatedAt:   base, UpdatedAt: base,
			}
		}
		jazz := newEvent("Jazz Night", "music", true, domain.ApprovalApproved, 1)
		rock := newEvent("Rock Fest", "music", true, domain.ApprovalApproved, 2)
		draft := newEvent("Secret Jazz", "music", false, domain.ApprovalPending, 3)
		for _, e := range []domain.Event{jazz, rock, draft} {
			require.NoError(t, catalog.CreateEvent(ctx, e))
		}
		assert.True(t, errors.Is(catalog.CreateEvent(ctx, jazz), domain.ErrConflict))

		got, err := catalog.GetEvent(ctx, jazz.ID)
		require.NoError(t, err)
		assert.Equal(t, "Jazz Night", got.Title)
		assert.True(t, got.TicketTypes[0].Price.Equal(decimal.RequireFromString("99999.50")))

		_, err = catalog.GetEvent(ctx, uuid.New())
		assert.True(t, errors.Is(err, domain.ErrNotFound))

		page, err := catalog.ListEvents(ctx, domain.EventFilter{OnlyPublic: true, Search: "JAZZ", Page: 1, Limit: 10})
		require.NoError(t, err)
		require.Len(t, page.Events, 1)
		assert.Equal(t, jazz.ID, page.Events[0].ID)

		page, err = catalog.ListEvents(ctx, domain.EventFilter{OnlyPublic: true, Category: "music", Page: 2, Limit: 1})
		require.NoError(t, err)
		assert.Equal(t, int64(2), page.Total)
		require.Len(t, page.Events, 1)
		assert.Equal(t, rock.ID, page.Events[0].ID)

		ids, err := catalog.EventIDsByOrganizer(ctx, organizer)
		require.NoError(t, err)
		assert.Len(t, ids, 3)

		page, err = catalog.ListEvents(ctx, domain.EventFilter{OrganizerID: &organizer, NewestFirst: true, Page: 1, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(3), page.Total, "drafts are included for the organizer")
		stranger := uuid.New()
		page, err = catalog.ListEvents(ctx, domain.EventFilter{OrganizerID: &stranger, Page: 1, Limit: 10})
		require.NoError(t, err)
		assert.Empty(t, page.Events)

		_, err = catalog.ListEvents(ctx, domain.EventFilter{OnlyPublic: true, Page: math.MaxInt, Limit: 100})
		assert.True(t, errors.Is(err, domain.ErrValidation))

		_, err = catalog.Publish(ctx, draft.ID, uuid.New())
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		published, err := catalog.Publish(ctx, draft.ID, organizer)
		require.NoError(t, err)
		assert.True(t, published.Published)

		approved, err := catalog.SetApproval(ctx, draft.ID, domain.ApprovalApproved)
		require.NoError(t, err)
		assert.True(t, approved.Purchasable())
	})

	t.Run("audit", func(t *testing.T) {
		audit := mongoadapter.NewAuditLogger(db, logger)
		txID := uuid.New()
		actor := uuid.New()

		require.NoError(t, audit.Record(ctx, domain.AuditEntry{Action: "transaction.create", ActorID: actor, TransactionID: txID, At: time.Now()}))
		require.NoError(t, audit.Record(ctx, domain.AuditEntry{Action: "transaction.review", ActorID: actor, TransactionID: txID,
			Data: map[string]interface{}{"status": "CONFIRMED", "reviewer": actor}, At: time.Now().Add(time.Second)}))

		entries, err := audit.ForTransaction(ctx, txID)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "transaction.review", entries[1].Action)
		assert.Equal(t, actor.String(), entries[1].Data["reviewer"])
	})

	t.Run("proof store", func(t *testing.T) {
		proofs := mongoadapter.NewProofStore(db)
		data := []byte("\xff\xd8\xff\xe0 fake jpeg")

		ref, err := proofs.Save(ctx, lifecycle.Proof{TransactionID: uuid.New(), Filename: "proof.jpg", ContentType: "image/jpeg", Data: data})
		require.NoError(t, err)

		rc, contentType, err := proofs.Open(ctx, ref)
		require.NoError(t, err)
		got, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		assert.True(t, bytes.Equal(data, got))
		assert.Equal(t, "image/jpeg", contentType)

		require.NoError(t, proofs.Delete(ctx, ref))
		_, _, err = proofs.Open(ctx, ref)
		assert.True(t, errors.Is(err, domain.ErrNotFound))

		_, _, err = proofs.Open(ctx, "not-an-object-id")
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})
}
