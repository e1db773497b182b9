package mongo

import (
	"context"
	"regexp"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/eventhub/internal/domain"
	"github.com/robertarktes/eventhub/internal/observability"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type CatalogRepository struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewCatalogRepository(db *mongo.Database, logger observability.Logger) *CatalogRepository {
	return &CatalogRepository{
		coll:   db.Collection("events"),
		logger: logger,
	}
}

type EventDoc struct {
	ID          string          `bson:"_id"`
	OrganizerID string          `bson:"organizer_id"`
	Title       string          `bson:"title"`
	Description string          `bson:"description"`
	Category    string          `bson:"category"`
	Location    string          `bson:"location"`
	StartsAt    time.Time       `bson:"starts_at"`
	Published   bool            `bson:"published"`
	Approval    string          `bson:"approval"`
	TicketTypes []TicketTypeDoc `bson:"ticket_types"`
	CreatedAt   time.Time       `bson:"created_at"`
	UpdatedAt   time.Time       `bson:"updated_at"`
}

type TicketTypeDoc struct {
	ID       string               `bson:"id"`
	Name     string               `bson:"name"`
	Price    primitive.Decimal128 `bson:"price"`
	Quantity int                  `bson:"quantity"`
}

func toEventDoc(e domain.Event) (EventDoc, error) {
	doc := EventDoc{
		ID:          e.ID.String(),
		OrganizerID: e.OrganizerID.String(),
		Title:       e.Title,
		Description: e.Description,
		Category:    e.Category,
		Location:    e.Location,
		StartsAt:    e.StartsAt,
		Published:   e.Published,
		Approval:    string(e.Approval),
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
	for _, tt := range e.TicketTypes {
		price, err := primitive.ParseDecimal128(tt.Price.StringFixed(2))
		if err != nil {
			return EventDoc{}, errors.Wrapf(err, "price of %s", tt.Name)
		}
		doc.TicketTypes = append(doc.TicketTypes, TicketTypeDoc{
			ID:       tt.ID.String(),
			Name:     tt.Name,
			Price:    price,
			Quantity: tt.Quantity,
		})
	}
	return doc, nil
}

func (d EventDoc) toDomain() (*domain.Event, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, errors.Wrapf(err, "event id %q", d.ID)
	}
	organizer, err := uuid.Parse(d.OrganizerID)
	if err != nil {
		return nil, errors.Wrapf(err, "organizer id %q", d.OrganizerID)
	}
	e := &domain.Event{
		ID:          id,
		OrganizerID: organizer,
		Title:       d.Title,
		Description: d.Description,
		Category:    d.Category,
		Location:    d.Location,
		StartsAt:    d.StartsAt,
		Published:   d.Published,
		Approval:    domain.ApprovalStatus(d.Approval),
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	for _, tt := range d.TicketTypes {
		ttID, err := uuid.Parse(tt.ID)
		if err != nil {
			return nil, errors.Wrapf(err, "ticket type id %q", tt.ID)
		}
		price, err := decimal.NewFromString(tt.Price.String())
		if err != nil {
			return nil, errors.Wrapf(err, "price of %s", tt.Name)
		}
		e.TicketTypes = append(e.TicketTypes, domain.TicketType{ID: ttID, Name: tt.Name, Price: price, Quantity: tt.Quantity})
	}
	return e, nil
}

func (c *CatalogRepository) EnsureIndexes(ctx context.Context) error {
	_, err := c.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "organizer_id", Value: 1}}},
		{Keys: bson.D{{Key: "published", Value: 1}, {Key: "approval", Value: 1}, {Key: "starts_at", Value: 1}}},
	})
	return err
}

func (c *CatalogRepository) GetEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	var doc EventDoc
	err := c.coll.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.NotFoundf("event %s not found", id)
	}
	if err != nil {
		c.logger.WithError(err).WithField("event_id", id).Error("failed to get event")
		return nil, err
	}
	return doc.toDomain()
}

func (c *CatalogRepository) CreateEvent(ctx context.Context, event domain.Event) error {
	doc, err := toEventDoc(event)
	if err != nil {
		return err
	}
	_, err = c.coll.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return errors.Mark(errors.Newf("event %s already exists", event.ID), domain.ErrConflict)
	}
	if err != nil {
		c.logger.WithError(err).Error("failed to create event")
		return err
	}
	return nil
}

func (c *CatalogRepository) ListEvents(ctx context.Context, f domain.EventFilter) (domain.EventPage, error) {
	filter := bson.M{}
	if f.OnlyPublic {
		filter["published"] = true
		filter["approval"] = string(domain.ApprovalApproved)
	}
	if f.OrganizerID != nil {
		filter["organizer_id"] = f.OrganizerID.String()
	}
	if f.Category != "" {
		filter["category"] = f.Category
	}
	if f.Search != "" {
		re := primitive.Regex{Pattern: regexp.QuoteMeta(f.Search), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"title": re},
			bson.M{"description": re},
			bson.M{"location": re},
		}
	}

	skip, err := domain.PageOffset(f.Page, f.Limit)
	if err != nil {
		return domain.EventPage{}, err
	}
	total, err := c.coll.CountDocuments(ctx, filter)
	if err != nil {
		return domain.EventPage{}, err
	}

	sort := bson.D{{Key: "starts_at", Value: 1}, {Key: "_id", Value: 1}}
	if f.NewestFirst {
		sort = bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}
	}
	opts := options.Find().
		SetSort(sort).
		SetSkip(int64(skip)).
		SetLimit(int64(f.Limit))
	cur, err := c.coll.Find(ctx, filter, opts)
	if err != nil {
		return domain.EventPage{}, err
	}
	var docs []EventDoc
	if err := cur.All(ctx, &docs); err != nil {
		return domain.EventPage{}, err
	}

	page := domain.EventPage{Page: f.Page, Limit: f.Limit, Total: total}
	for _, d := range docs {
		e, err := d.toDomain()
		if err != nil {
			return domain.EventPage{}, err
		}
		page.Events = append(page.Events, *e)
	}
	return page, nil
}

func (c *CatalogRepository) EventIDsByOrganizer(ctx context.Context, organizerID uuid.UUID) ([]uuid.UUID, error) {
	cur, err := c.coll.Find(ctx, bson.M{"organizer_id": organizerID.String()},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	var docs []struct {
		ID string `bson:"_id"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(docs))
	for _, d := range docs {
		id, err := uuid.Parse(d.ID)
		if err != nil {
			return nil, errors.Wrapf(err, "event id %q", d.ID)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Publish flips the published flag on an event owned by organizerID.
func (c *CatalogRepository) Publish(ctx context.Context, id, organizerID uuid.UUID) (*domain.Event, error) {
	return c.update(ctx,
		bson.M{"_id": id.String(), "organizer_id": organizerID.String()},
		bson.M{"$set": bson.M{"published": true, "updated_at": time.Now().UTC()}},
		id)
}

func (c *CatalogRepository) SetApproval(ctx context.Context, id uuid.UUID, status domain.ApprovalStatus) (*domain.Event, error) {
	return c.update(ctx,
		bson.M{"_id": id.String()},
		bson.M{"$set": bson.M{"approval": string(status), "updated_at": time.Now().UTC()}},
		id)
}

func (c *CatalogRepository) update(ctx context.Context, filter, update bson.M, id uuid.UUID) (*domain.Event, error) {
	var doc EventDoc
	err := c.coll.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.NotFoundf("event %s not found", id)
	}
	if err != nil {
		c.logger.WithError(err).WithField("event_id", id).Error("failed to update event")
		return nil, err
	}
	return doc.toDomain()
}
