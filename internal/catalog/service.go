package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/eventhub/internal/auth"
	"github.com/robertarktes/eventhub/internal/domain"
	"github.com/robertarktes/eventhub/internal/observability"
	"github.com/shopspring/decimal"
)

type EventRepository interface {
	GetEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error)
	CreateEvent(ctx context.Context, event domain.Event) error
	ListEvents(ctx context.Context, f domain.EventFilter) (domain.EventPage, error)
	Publish(ctx context.Context, id, organizerID uuid.UUID) (*domain.Event, error)
	SetApproval(ctx context.Context, id uuid.UUID, status domain.ApprovalStatus) (*domain.Event, error)
}

type CouponRepository interface {
	CreateCoupon(ctx context.Context, c domain.Coupon) error
	GetCouponByCode(ctx context.Context, code string) (*domain.Coupon, error)
}

type Service struct {
	events  EventRepository
	coupons CouponRepository
	logger  observability.Logger
	now     func() time.Time
}

func NewService(events EventRepository, coupons CouponRepository, logger observability.Logger) *Service {
	return &Service{events: events, coupons: coupons, logger: logger, now: time.Now}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

const (
	defaultLimit = 10
	maxLimit     = 100
)

type ListQuery struct {
	Category string
	Search   string
	Page     int
	Limit    int
}

func (q *ListQuery) normalize() error {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = defaultLimit
	}
	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	_, err := domain.PageOffset(q.Page, q.Limit)
	return err
}

// ListPublic returns purchasable events only.
func (s *Service) ListPublic(ctx context.Context, q ListQuery) (domain.EventPage, error) {
	if err := q.normalize(); err != nil {
		return domain.EventPage{}, err
	}
	return s.events.ListEvents(ctx, domain.EventFilter{
		Category:   strings.TrimSpace(q.Category),
		Search:     strings.TrimSpace(q.Search),
		OnlyPublic: true,
		Page:       q.Page,
		Limit:      q.Limit,
	})
}

// ListOwn returns every event of the calling organizer, drafts and pending
// ones included, most recently created first.
func (s *Service) ListOwn(ctx context.Context, id auth.Identity, page, limit int) (domain.EventPage, error) {
	if !id.IsOrganizer() && !id.IsAdmin() {
		return domain.EventPage{}, domain.Forbiddenf("organizer access required")
	}
	q := ListQuery{Page: page, Limit: limit}
	if err := q.normalize(); err != nil {
		return domain.EventPage{}, err
	}
	organizerID := id.ID
	return s.events.ListEvents(ctx, domain.EventFilter{
		OrganizerID: &organizerID,
		NewestFirst: true,
		Page:        q.Page,
		Limit:       q.Limit,
	})
}

// Get hides events that are not purchasable from everyone but their organizer and admins.
// viewer is nil for anonymous callers.
func (s *Service) Get(ctx context.Context, viewer *auth.Identity, id uuid.UUID) (*domain.Event, error) {
	e, err := s.events.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.Purchasable() {
		return e, nil
	}
	if viewer != nil && (viewer.IsAdmin() || viewer.ID == e.OrganizerID) {
		return e, nil
	}
	return nil, domain.NotFoundf("event %s not found", id)
}

type TicketTypeInput struct {
	Name     string
	Price    decimal.Decimal
	Quantity int
}

type EventInput struct {
	Title       string
	Description string
	Category    string
	Location    string
	StartsAt    time.Time
	TicketTypes []TicketTypeInput
}

func (in EventInput) validate(now time.Time) error {
	if strings.TrimSpace(in.Title) == "" {
		return domain.Validationf("title is required")
	}
	if in.StartsAt.IsZero() || !in.StartsAt.After(now) {
		return domain.Validationf("event must start in the future")
	}
	if len(in.TicketTypes) == 0 {
		return domain.Validationf("at least one ticket type is required")
	}
	seen := make(map[string]bool, len(in.TicketTypes))
	for _, tt := range in.TicketTypes {
		name := strings.TrimSpace(tt.Name)
		if name == "" {
			return domain.Validationf("ticket type name is required")
		}
		if seen[strings.ToLower(name)] {
			return domain.Validationf("duplicate ticket type %q", name)
		}
		seen[strings.ToLower(name)] = true
		if tt.Price.IsNegative() {
			return domain.Validationf("ticket type %q has a negative price", name)
		}
		if tt.Quantity <= 0 {
			return domain.Validationf("ticket type %q needs a positive quantity", name)
		}
	}
	return nil
}

// CreateEvent stores a new unpublished event awaiting admin approval.
func (s *Service) CreateEvent(ctx context.Context, id auth.Identity, in EventInput) (*domain.Event, error) {
	if !id.IsOrganizer() && !id.IsAdmin() {
		return nil, domain.Forbiddenf("only organizers can create events")
	}
	now := s.now().UTC()
	if err := in.validate(now); err != nil {
		return nil, err
	}

	e := domain.Event{
		ID:          uuid.New(),
		OrganizerID: id.ID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Category:    strings.TrimSpace(in.Category),
		Location:    strings.TrimSpace(in.Location),
		StartsAt:    in.StartsAt.UTC(),
		Approval:    domain.ApprovalPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, tt := range in.TicketTypes {
		e.TicketTypes = append(e.TicketTypes, domain.TicketType{
			ID:       uuid.New(),
			Name:     strings.TrimSpace(tt.Name),
			Price:    tt.Price.Round(2),
			Quantity: tt.Quantity,
		})
	}
	if err := s.events.CreateEvent(ctx, e); err != nil {
		return nil, err
	}
	s.logger.WithFields(map[string]interface{}{"event_id": e.ID, "organizer_id": id.ID}).Info("event created")
	return &e, nil
}

func (s *Service) Publish(ctx context.Context, id auth.Identity, eventID uuid.UUID) (*domain.Event, error) {
	e, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if e.OrganizerID != id.ID && !id.IsAdmin() {
		return nil, domain.Forbiddenf("event %s belongs to another organizer", eventID)
	}
	if e.Published {
		return e, nil
	}
	e, err = s.events.Publish(ctx, eventID, e.OrganizerID)
	if err != nil {
		return nil, err
	}
	s.logger.WithField("event_id", eventID).Info("event published")
	return e, nil
}

func (s *Service) SetApproval(ctx context.Context, id auth.Identity, eventID uuid.UUID, status domain.ApprovalStatus) (*domain.Event, error) {
	if !id.IsAdmin() {
		return nil, domain.Forbiddenf("only admins can review events")
	}
	if status != domain.ApprovalApproved && status != domain.ApprovalRejected {
		return nil, domain.Validationf("approval must be %s or %s", domain.ApprovalApproved, domain.ApprovalRejected)
	}
	e, err := s.events.SetApproval(ctx, eventID, status)
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(map[string]interface{}{"event_id": eventID, "approval": status, "admin_id": id.ID}).Info("event reviewed")
	return e, nil
}

type CouponInput struct {
	Code          string
	DiscountType  domain.DiscountType
	DiscountValue decimal.Decimal
	ExpiresAt     *time.Time
	MaxUses       *int
}

// CreateCoupon normalizes the code to upper case; new coupons are active.
func (s *Service) CreateCoupon(ctx context.Context, id auth.Identity, in CouponInput) (*domain.Coupon, error) {
	if !id.IsAdmin() {
		return nil, domain.Forbiddenf("only admins can create coupons")
	}
	now := s.now().UTC()
	c := domain.Coupon{
		ID:            uuid.New(),
		Code:          strings.ToUpper(strings.TrimSpace(in.Code)),
		DiscountType:  domain.DiscountType(strings.ToUpper(string(in.DiscountType))),
		DiscountValue: in.DiscountValue,
		IsActive:      true,
		ExpiresAt:     in.ExpiresAt,
		MaxUses:       in.MaxUses,
		CreatedAt:     now,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.ExpiresAt != nil && !c.ExpiresAt.After(now) {
		return nil, domain.Validationf("coupon expiry must be in the future")
	}
	if err := s.coupons.CreateCoupon(ctx, c); err != nil {
		return nil, err
	}
	s.logger.WithFields(map[string]interface{}{"coupon_id": c.ID, "code": c.Code}).Info("coupon created")
	return &c, nil
}

// LookupCoupon lets buyers check a code before checkout. Coupons that cannot
// be redeemed right now are reported as not found.
func (s *Service) LookupCoupon(ctx context.Context, code string) (*domain.Coupon, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, domain.Validationf("coupon code is required")
	}
	c, err := s.coupons.GetCouponByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := c.CheckRedeemable(s.now()); err != nil {
		return nil, domain.NotFoundf("coupon %s is not available", code)
	}
	return c, nil
}
