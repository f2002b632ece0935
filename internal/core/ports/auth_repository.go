package ports

import (
	"context"

	"github.com/giftcard/giftcard-api/internal/core/domain"
)

// CredentialStore persists user accounts. Implementations hash the plaintext
// password in Create and UpdatePassword; a hash never leaves the store through
// any other path.
type CredentialStore interface {
	// FindByUsernameOrEmail matches identifier exactly against either field and
	// loads the role. Returns domain.ErrUserNotFound when nothing matches.
	FindByUsernameOrEmail(ctx context.Context, identifier string) (*domain.User, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	// Create returns domain.ErrDuplicateIdentity on a unique index violation.
	Create(ctx context.Context, user domain.NewUser) (*domain.User, error)
	FindByID(ctx context.Context, id int64, includeRole bool) (*domain.User, error)
	UpdatePassword(ctx context.Context, id int64, plaintext string) error
	VerifyPassword(user *domain.User, candidate string) bool
}

// RoleStore exposes the seeded role vocabulary.
type RoleStore interface {
	// FindByName returns domain.ErrRoleNotFound when the role does not exist.
	FindByName(ctx context.Context, name string) (*domain.Role, error)
	// Seed creates any missing role from domain.Roles. Safe to call repeatedly.
	Seed(ctx context.Context) error
}
