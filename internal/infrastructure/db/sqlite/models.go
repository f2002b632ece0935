package sqlite

import (
	"time"

	"github.com/giftcard/giftcard-api/internal/core/domain"
)

type roleRecord struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	Name        string `gorm:"uniqueIndex;not null"`
	Description string
	Status      int `gorm:"not null;default:1"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (roleRecord) TableName() string { return "roles" }

type userRecord struct {
	ID        int64       `gorm:"primaryKey;autoIncrement"`
	Username  string      `gorm:"size:50;uniqueIndex;not null"`
	Email     string      `gorm:"uniqueIndex;not null"`
	Password  string      `gorm:"not null"`
	RoleID    int64       `gorm:"not null;index"`
	Role      *roleRecord `gorm:"foreignKey:RoleID"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (userRecord) TableName() string { return "users" }

type authEventRecord struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	Kind       string `gorm:"index;not null"`
	UserID     int64  `gorm:"index"`
	Identifier string
	Reason     string
	IP         string
	OccurredAt time.Time `gorm:"index"`
	CreatedAt  time.Time
}

func (authEventRecord) TableName() string { return "auth_events" }

func (r *roleRecord) toDomain() *domain.Role {
	return &domain.Role{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Status:      domain.RoleStatus(r.Status),
	}
}

func (r *userRecord) toDomain() *domain.User {
	u := &domain.User{
		ID:           r.ID,
		Username:     r.Username,
		Email:        r.Email,
		PasswordHash: r.Password,
		RoleID:       r.RoleID,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
	if r.Role != nil {
		u.Role = r.Role.toDomain()
	}
	return u
}
