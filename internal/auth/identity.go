package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/robertarktes/eventhub/internal/domain"
)

// Identity is the resolved caller. Handlers receive it explicitly through the
// request context and pass it on; nothing reads identity from ambient state.
type Identity struct {
	ID    uuid.UUID
	Email string
	Name  string
	Role  domain.Role
}

func (i Identity) IsAdmin() bool {
	return i.Role == domain.RoleAdmin
}

func (i Identity) IsOrganizer() bool {
	return i.Role == domain.RoleOrganizer
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
