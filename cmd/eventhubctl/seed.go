package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/eventhub/internal/adapters/crdb"
	mongoadapter "github.com/robertarktes/eventhub/internal/adapters/mongo"
	"github.com/robertarktes/eventhub/internal/domain"
	"github.com/robertarktes/eventhub/internal/observability"
	"github.com/robertarktes/eventhub/internal/platform"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Events  []seedEvent  `yaml:"events"`
	Coupons []seedCoupon `yaml:"coupons"`
}

type seedEvent struct {
	ID          string           `yaml:"id"`
	OrganizerID string           `yaml:"organizer_id"`
	Title       string           `yaml:"title"`
	Description string           `yaml:"description"`
	Category    string           `yaml:"category"`
	Location    string           `yaml:"location"`
	StartsAt    time.Time        `yaml:"starts_at"`
	Published   bool             `yaml:"published"`
	Approval    string           `yaml:"approval"`
	TicketTypes []seedTicketType `yaml:"ticket_types"`
}

type seedTicketType struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Price    string `yaml:"price"`
	Quantity int    `yaml:"quantity"`
}

type seedCoupon struct {
	ID            string     `yaml:"id"`
	Code          string     `yaml:"code"`
	DiscountType  string     `yaml:"discount_type"`
	DiscountValue string     `yaml:"discount_value"`
	ExpiresAt     *time.Time `yaml:"expires_at"`
	MaxUses       *int       `yaml:"max_uses"`
}

func parseID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.New(), nil
	}
	return uuid.Parse(raw)
}

func (s seedEvent) toDomain(now time.Time) (domain.Event, error) {
	id, err := parseID(s.ID)
	if err != nil {
		return domain.Event{}, errors.Wrapf(err, "event %q id", s.Title)
	}
	organizer, err := uuid.Parse(s.OrganizerID)
	if err != nil {
		return domain.Event{}, errors.Wrapf(err, "event %q organizer_id", s.Title)
	}
	approval := domain.ApprovalStatus(s.Approval)
	if approval == "" {
		approval = domain.ApprovalPending
	}
	e := domain.Event{
		ID:          id,
		OrganizerID: organizer,
		Title:       s.Title,
		Description: s.Description,
		Category:    s.Category,
		Location:    s.Location,
		StartsAt:    s.StartsAt.UTC(),
		Published:   s.Published,
		Approval:    approval,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, tt := range s.TicketTypes {
		ttID, err := parseID(tt.ID)
		if err != nil {
			return domain.Event{}, errors.Wrapf(err, "ticket type %q id", tt.Name)
		}
		price, err := decimal.NewFromString(tt.Price)
		if err != nil {
			return domain.Event{}, errors.Wrapf(err, "ticket type %q price", tt.Name)
		}
		e.TicketTypes = append(e.TicketTypes, domain.TicketType{ID: ttID, Name: tt.Name, Price: price, Quantity: tt.Quantity})
	}
	if len(e.TicketTypes) == 0 {
		return domain.Event{}, errors.Newf("event %q has no ticket types", s.Title)
	}
	return e, nil
}

func (s seedCoupon) toDomain(now time.Time) (domain.Coupon, error) {
	id, err := parseID(s.ID)
	if err != nil {
		return domain.Coupon{}, errors.Wrapf(err, "coupon %q id", s.Code)
	}
	value, err := decimal.NewFromString(s.DiscountValue)
	if err != nil {
		return domain.Coupon{}, errors.Wrapf(err, "coupon %q discount_value", s.Code)
	}
	c := domain.Coupon{
		ID:            id,
		Code:          s.Code,
		DiscountType:  domain.DiscountType(s.DiscountType),
		DiscountValue: value,
		IsActive:      true,
		ExpiresAt:     s.ExpiresAt,
		MaxUses:       s.MaxUses,
		CreatedAt:     now,
	}
	return c, c.Validate()
}

func readSeed(r io.Reader) (seedFile, error) {
	var f seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return seedFile{}, errors.Wrap(err, "parse seed file")
	}
	return f, nil
}

type seedTarget struct {
	createEvent  func(ctx context.Context, e domain.Event) error
	createCoupon func(ctx context.Context, c domain.Coupon) error
}

type seedResult struct {
	Events, Coupons, Skipped int
}

// apply inserts every fixture; fixtures that already exist are skipped so the
// command can be re-run.
func (f seedFile) apply(ctx context.Context, t seedTarget, now time.Time) (seedResult, error) {
	var res seedResult
	for _, se := range f.Events {
		e, err := se.toDomain(now)
		if err != nil {
			return res, err
		}
		switch err := t.createEvent(ctx, e); {
		case errors.Is(err, domain.ErrConflict):
			res.Skipped++
		case err != nil:
			return res, err
		default:
			res.Events++
		}
	}
	for _, sc := range f.Coupons {
		c, err := sc.toDomain(now)
		if err != nil {
			return res, err
		}
		switch err := t.createCoupon(ctx, c); {
		case errors.Is(err, domain.ErrConflict):
			res.Skipped++
		case err != nil:
			return res, err
		default:
			res.Coupons++
		}
	}
	return res, nil
}

func newSeedCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load events and coupons from a YAML fixture file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			file, err := os.Open(path)
			if err != nil {
				return err
			}
			defer file.Close()
			fixtures, err := readSeed(file)
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			pool, err := platform.OpenCRDB(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()
			client, db, err := platform.OpenMongo(ctx, cfg)
			if err != nil {
				return err
			}
			defer client.Disconnect(ctx)

			events := mongoadapter.NewCatalogRepository(db, observability.NewLogger(cfg.LogLevel))
			repo := crdb.NewRepository(pool)
			res, err := fixtures.apply(ctx, seedTarget{
				createEvent:  events.CreateEvent,
				createCoupon: repo.CreateCoupon,
			}, time.Now().UTC())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d events, %d coupons (%d already present)\n", res.Events, res.Coupons, res.Skipped)
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "file", "f", "cmd/eventhubctl/testdata/seed.yaml", "fixture file")
	return cmd
}
