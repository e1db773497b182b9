package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/eventhub/internal/domain"
	"github.com/robertarktes/eventhub/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type AuditLogger struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewAuditLogger(db *mongo.Database, logger observability.Logger) *AuditLogger {
	return &AuditLogger{
		coll:   db.Collection("audit_logs"),
		logger: logger,
	}
}

type AuditLog struct {
	ID            string    `bson:"_id"`
	Action        string    `bson:"action"`
	ActorID       string    `bson:"actor_id"`
	TransactionID string    `bson:"transaction_id"`
	Timestamp     time.Time `bson:"timestamp"`
	Data          bson.M    `bson:"data,omitempty"`
}

func (a *AuditLogger) Record(ctx context.Context, entry domain.AuditEntry) error {
	at := entry.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	data := bson.M{}
	for k, v := range entry.Data {
		data[k] = auditValue(v)
	}
	log := AuditLog{
		ID:            uuid.NewString(),
		Action:        entry.Action,
		ActorID:       entry.ActorID.String(),
		TransactionID: entry.TransactionID.String(),
		Timestamp:     at,
		Data:          data,
	}
	_, err := a.coll.InsertOne(ctx, log)
	if err != nil {
		a.logger.WithError(err).WithField("action", entry.Action).Error("failed to insert audit log")
		return err
	}
	return nil
}

// auditValue keeps ids readable in the collection instead of binary subtype 0.
func auditValue(v interface{}) interface{} {
	switch t := v.(type) {
	case uuid.UUID:
		return t.String()
	case *uuid.UUID:
		if t == nil {
			return nil
		}
		return t.String()
	}
	return v
}

func (a *AuditLogger) ForTransaction(ctx context.Context, id uuid.UUID) ([]domain.AuditEntry, error) {
	cur, err := a.coll.Find(ctx, bson.M{"transaction_id": id.String()},
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var logs []AuditLog
	if err := cur.All(ctx, &logs); err != nil {
		return nil, err
	}
	entries := make([]domain.AuditEntry, 0, len(logs))
	for _, l := range logs {
		actor, _ := uuid.Parse(l.ActorID)
		entries = append(entries, domain.AuditEntry{
			Action:        l.Action,
			ActorID:       actor,
			TransactionID: id,
			Data:          l.Data,
			At:            l.Timestamp,
		})
	}
	return entries, nil
}
