package auth

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/robertarktes/eventhub/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokens_IssueAndVerify(t *testing.T) {
	tokens := NewTokens("s3cret")
	id := Identity{ID: uuid.New(), Email: "ana@example.com", Name: "Ana", Role: domain.RoleAdmin}

	raw, err := tokens.Issue(id, time.Hour)
	require.NoError(t, err)

	got, err := tokens.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, id, got)
	assert.True(t, got.IsAdmin())
}

func TestTokens_VerifyRejects(t *testing.T) {
	tokens := NewTokens("s3cret")
	id := Identity{ID: uuid.New(), Role: domain.RoleCustomer}

	expired, err := tokens.Issue(id, -time.Minute)
	require.NoError(t, err)
	other, err := NewTokens("other").Issue(id, time.Hour)
	require.NoError(t, err)
	badRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:             "ROOT",
		RegisteredClaims: jwt.RegisteredClaims{Subject: id.ID.String()},
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	for name, raw := range map[string]string{
		"garbage":   "not-a-token",
		"expired":   expired,
		"wrong key": other,
		"bad role":  badRole,
	} {
		_, err := tokens.Verify(raw)
		assert.True(t, errors.Is(err, domain.ErrUnauthenticated), name)
	}
}

func TestTokens_LegacyIDClaim(t *testing.T) {
	userID := uuid.New()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: userID.String(),
		Email:  "org@example.com",
		Role:   "organizer",
	}).SignedString([]byte("k"))
	require.NoError(t, err)

	got, err := NewTokens("k").Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, userID, got.ID)
	assert.Equal(t, domain.RoleOrganizer, got.Role)
}

func TestBearerToken(t *testing.T) {
	tok, ok := BearerToken("Bearer abc.def")
	assert.True(t, ok)
	assert.Equal(t, "abc.def", tok)

	_, ok = BearerToken("Basic abc")
	assert.False(t, ok)
	_, ok = BearerToken("Bearer ")
	assert.False(t, ok)
}

func TestIdentityContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	id := Identity{ID: uuid.New(), Role: domain.RoleOrganizer}
	got, ok := FromContext(WithIdentity(context.Background(), id))
	assert.True(t, ok)
	assert.True(t, got.IsOrganizer())
}
