package main

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/eventhub/internal/auth"
	"github.com/robertarktes/eventhub/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadSeed_Fixture(t *testing.T) {
	file, err := os.Open("testdata/seed.yaml")
	require.NoError(t, err)
	defer file.Close()

	f, err := readSeed(file)
	require.NoError(t, err)
	require.Len(t, f.Events, 2)
	require.Len(t, f.Coupons, 2)

	now := time.Now().UTC()
	e, err := f.Events[0].toDomain(now)
	require.NoError(t, err)
	assert.True(t, e.Purchasable())
	assert.Equal(t, "9a8b7c6d-5e4f-4a3b-9c2d-1e0f9a8b7c6d", e.TicketTypes[0].ID.String())
	assert.Equal(t, "150000", e.TicketTypes[1].Price.String())

	draft, err := f.Events[1].toDomain(now)
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalPending, draft.Approval)
	assert.False(t, draft.Purchasable())

	c, err := f.Coupons[1].toDomain(now)
	require.NoError(t, err)
	assert.Equal(t, domain.DiscountFixed, c.DiscountType)
	require.NotNil(t, c.MaxUses)
	assert.Equal(t, 1, *c.MaxUses)
}

func TestReadSeed_RejectsUnknownFields(t *testing.T) {
	_, err := readSeed(strings.NewReader("events:\n  - titel: typo\n"))
	assert.Error(t, err)
}

func TestSeedApply_SkipsExisting(t *testing.T) {
	f := seedFile{
		Events: []seedEvent{{
			OrganizerID: uuid.NewString(),
			Title:       "Jazz Night",
			TicketTypes: []seedTicketType{{Name: "General", Price: "100000", Quantity: 10}},
		}},
		Coupons: []seedCoupon{
			{Code: "SAVE10", DiscountType: "PERCENTAGE", DiscountValue: "10"},
			{Code: "TAKEN", DiscountType: "FIXED", DiscountValue: "5000"},
		},
	}
	var events []domain.Event
	target := seedTarget{
		createEvent: func(_ context.Context, e domain.Event) error {
			events = append(events, e)
			return nil
		},
		createCoupon: func(_ context.Context, c domain.Coupon) error {
			if c.Code == "TAKEN" {
				return errors.Mark(errors.New("exists"), domain.ErrConflict)
			}
			return nil
		},
	}

	res, err := f.apply(context.Background(), target, time.Now())
	require.NoError(t, err)
	assert.Equal(t, seedResult{Events: 1, Coupons: 1, Skipped: 1}, res)
	require.Len(t, events, 1)
	assert.NotEqual(t, uuid.Nil, events[0].ID)
}

func TestSeedApply_InvalidCoupon(t *testing.T) {
	f := seedFile{Coupons: []seedCoupon{{Code: "BAD", DiscountType: "PERCENTAGE", DiscountValue: "150"}}}
	_, err := f.apply(context.Background(), seedTarget{}, time.Now())
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestTokenCmd(t *testing.T) {
	t.Setenv("JWT_SECRET", "ctl-secret")
	userID := uuid.NewString()

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"token", "--user", userID, "--role", "admin"})
	require.NoError(t, cmd.Execute())

	id, err := auth.NewTokens("ctl-secret").Verify(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, userID, id.ID.String())
	assert.Equal(t, domain.RoleAdmin, id.Role)

	cmd = newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"token", "--role", "root"})
	assert.Error(t, cmd.Execute())
}
