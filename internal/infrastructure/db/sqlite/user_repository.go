package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/giftcard/giftcard-api/internal/core/domain"
	"github.com/giftcard/giftcard-api/internal/pkg/password"
)

// UserRepository implements ports.CredentialStore on top of gorm.
type UserRepository struct {
	db     *gorm.DB
	hasher *password.Hasher
}

func NewUserRepository(db *gorm.DB, hasher *password.Hasher) *UserRepository {
	return &UserRepository{db: db, hasher: hasher}
}

func (r *UserRepository) FindByUsernameOrEmail(ctx context.Context, identifier string) (*domain.User, error) {
	var rec userRecord
	err := r.db.WithContext(ctx).
		Preload("Role").
		Where("username = ? OR email = ?", identifier, identifier).
		First(&rec).Error
	if err != nil {
		return nil, notFoundOr(err, "find user")
	}
	return rec.toDomain(), nil
}

func (r *UserRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&userRecord{}).
		Where("username = ? OR email = ?", username, email).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("%w: count users: %w", domain.ErrStoreFailure, err)
	}
	return n > 0, nil
}

// Create hashes the plaintext password and inserts the user. The unique
// indexes on username and email reject concurrent duplicates.
func (r *UserRepository) Create(ctx context.Context, nu domain.NewUser) (*domain.User, error) {
	hash, err := r.hash(nu.Password)
	if err != nil {
		return nil, err
	}

	rec := userRecord{
		Username: nu.Username,
		Email:    nu.Email,
		Password: hash,
		RoleID:   nu.RoleID,
	}
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(&rec).Error; err != nil {
		if isDuplicate(err) {
			return nil, domain.ErrDuplicateIdentity
		}
		return nil, fmt.Errorf("%w: insert user: %w", domain.ErrStoreFailure, err)
	}
	return rec.toDomain(), nil
}

func (r *UserRepository) FindByID(ctx context.Context, id int64, includeRole bool) (*domain.User, error) {
	q := r.db.WithContext(ctx)
	if includeRole {
		q = q.Preload("Role")
	}

	var rec userRecord
	if err := q.First(&rec, id).Error; err != nil {
		return nil, notFoundOr(err, "find user by id")
	}
	return rec.toDomain(), nil
}

// UpdatePassword rehashes plaintext and stores it for user id.
func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, plaintext string) error {
	hash, err := r.hash(plaintext)
	if err != nil {
		return err
	}

	res := r.db.WithContext(ctx).Model(&userRecord{}).Where("id = ?", id).Update("password", hash)
	if res.Error != nil {
		return fmt.Errorf("%w: update password: %w", domain.ErrStoreFailure, res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// hash reports a plaintext bcrypt cannot accept as an invalid field.
func (r *UserRepository) hash(plaintext string) (string, error) {
	hash, err := r.hasher.Hash(plaintext)
	if errors.Is(err, password.ErrTooLong) {
		return "", fmt.Errorf("%w: password must be at most %d bytes", domain.ErrInvalidField, password.MaxLength)
	}
	return hash, err
}

func (r *UserRepository) VerifyPassword(user *domain.User, candidate string) bool {
	if user == nil {
		return false
	}
	return r.hasher.Compare(user.PasswordHash, candidate)
}

func notFoundOr(err error, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrUserNotFound
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrStoreFailure, op, err)
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed")
}
