package sqlite

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/giftcard/giftcard-api/internal/core/domain"
)

// EventRepository implements ports.AuditRepository on the auth_events table.
type EventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) InsertEvent(ctx context.Context, event *domain.AuthEvent) error {
	rec := authEventRecord{
		Kind:       string(event.Kind),
		UserID:     event.UserID,
		Identifier: event.Identifier,
		Reason:     event.Reason,
		IP:         event.IP,
		OccurredAt: event.Timestamp.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("%w: insert auth event: %w", domain.ErrStoreFailure, err)
	}
	return nil
}
