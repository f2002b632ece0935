package middleware

import (
	"context"

	"github.com/giftcard/giftcard-api/internal/core/domain"
)

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying identity.
func WithIdentity(ctx context.Context, identity *domain.ResolvedIdentity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFrom returns the identity attached by Authenticate or OptionalAuth.
func IdentityFrom(ctx context.Context) (*domain.ResolvedIdentity, bool) {
	identity, ok := ctx.Value(identityKey{}).(*domain.ResolvedIdentity)
	return identity, ok && identity != nil
}
