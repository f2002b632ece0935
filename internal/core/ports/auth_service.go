package ports

import (
	"context"

	"github.com/giftcard/giftcard-api/internal/core/domain"
)

type AuthService interface {
	Register(ctx context.Context, username, email, password, roleName string) (*domain.ResolvedIdentity, error)
	Login(ctx context.Context, identifier, password string) (*domain.ResolvedIdentity, error)
	GetByID(ctx context.Context, id int64) (*domain.ResolvedIdentity, error)
	ChangePassword(ctx context.Context, userID int64, current, next string) error
}

// TokenCodec issues and verifies session tokens.
type TokenCodec interface {
	Issue(subject domain.TokenSubject) (string, error)
	Verify(token string) (*domain.TokenClaims, error)
}
