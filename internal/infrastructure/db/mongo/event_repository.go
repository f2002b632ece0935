package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/giftcard/giftcard-api/internal/core/domain"
	"github.com/giftcard/giftcard-api/internal/core/ports"
)

const authEventsCollection = "auth_events"

// EventRepository implements ports.AuditRepository using MongoDB.
type EventRepository struct {
	db *mongo.Database
}

// NewEventRepository creates a new EventRepository.
func NewEventRepository(db *mongo.Database) ports.AuditRepository {
	return &EventRepository{db: db}
}

// InsertEvent persists an auth event to the auth_events collection.
func (r *EventRepository) InsertEvent(ctx context.Context, event *domain.AuthEvent) error {
	doc := bson.M{
		"kind":         string(event.Kind),
		"identifier":   event.Identifier,
		"timestamp":    event.Timestamp.UTC(),
		"processed_at": time.Now().UTC(),
	}
	if event.UserID != 0 {
		doc["user_id"] = event.UserID
	}
	if event.Reason != "" {
		doc["reason"] = event.Reason
	}
	if event.IP != "" {
		doc["ip"] = event.IP
	}

	if _, err := r.db.Collection(authEventsCollection).InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("%w: insert auth event: %w", domain.ErrStoreFailure, err)
	}
	return nil
}
