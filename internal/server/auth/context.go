package auth

import (
	"context"

	"github.com/dmitrijs2005/storefront/internal/server/models"
)

// Identity is what a verified token says about its bearer.
type Identity struct {
	UserID string      `json:"id"`
	Role   models.Role `json:"role"`
}

type identityKey struct{}

func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity attached by the session
// middleware and whether there was one.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok && id.UserID != ""
}
