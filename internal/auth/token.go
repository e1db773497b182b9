package auth

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/robertarktes/eventhub/internal/domain"
)

type Claims struct {
	UserID string `json:"id,omitempty"`
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

type Tokens struct {
	secret []byte
}

func NewTokens(secret string) *Tokens {
	return &Tokens{secret: []byte(secret)}
}

func (t *Tokens) Issue(id Identity, ttl time.Duration) (string, error) {
	if len(t.secret) == 0 {
		return "", errors.New("jwt secret not configured")
	}
	now := time.Now()
	claims := Claims{
		UserID: id.ID.String(),
		Email:  id.Email,
		Name:   id.Name,
		Role:   string(id.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Verify resolves a bearer token into an Identity. Every failure is ErrUnauthenticated.
func (t *Tokens) Verify(raw string) (Identity, error) {
	if len(t.secret) == 0 {
		return Identity{}, errors.Mark(errors.New("jwt secret not configured"), domain.ErrUnauthenticated)
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Identity{}, errors.Mark(errors.Wrap(err, "invalid token"), domain.ErrUnauthenticated)
	}

	sub := claims.Subject
	if sub == "" {
		sub = claims.UserID
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return Identity{}, errors.Mark(errors.New("token subject is not a user id"), domain.ErrUnauthenticated)
	}

	role := domain.Role(strings.ToUpper(claims.Role))
	switch role {
	case domain.RoleCustomer, domain.RoleOrganizer, domain.RoleAdmin:
	case "":
		role = domain.RoleCustomer
	default:
		return Identity{}, errors.Mark(errors.Newf("unknown role %q", claims.Role), domain.ErrUnauthenticated)
	}

	return Identity{ID: userID, Email: claims.Email, Name: claims.Name, Role: role}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}
