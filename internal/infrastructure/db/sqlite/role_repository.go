package sqlite

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/giftcard/giftcard-api/internal/core/domain"
)

var roleDescriptions = map[string]string{
	domain.RoleAdmin: "Administrator with full access",
	domain.RoleUser:  "Regular user",
}

// RoleRepository implements ports.RoleStore on top of gorm.
type RoleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

func (r *RoleRepository) FindByName(ctx context.Context, name string) (*domain.Role, error) {
	var rec roleRecord
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrRoleNotFound
		}
		return nil, fmt.Errorf("%w: find role: %w", domain.ErrStoreFailure, err)
	}
	return rec.toDomain(), nil
}

// Seed inserts the role vocabulary in order, skipping roles that already exist.
func (r *RoleRepository) Seed(ctx context.Context) error {
	for _, name := range domain.Roles {
		rec := roleRecord{}
		err := r.db.WithContext(ctx).
			Where(roleRecord{Name: name}).
			Attrs(roleRecord{Description: roleDescriptions[name], Status: int(domain.RoleActive)}).
			FirstOrCreate(&rec).Error
		if err != nil {
			return fmt.Errorf("%w: seed role %s: %w", domain.ErrStoreFailure, name, err)
		}
	}
	return nil
}
