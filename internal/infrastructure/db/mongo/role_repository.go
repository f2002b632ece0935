package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/giftcard/giftcard-api/internal/core/domain"
)

const rolesCollection = "roles"

// RoleRepository implements ports.RoleStore using MongoDB.
type RoleRepository struct {
	roles    *mongo.Collection
	counters *mongo.Collection
}

func NewRoleRepository(db *mongo.Database) *RoleRepository {
	return &RoleRepository{
		roles:    db.Collection(rolesCollection),
		counters: db.Collection(countersCollection),
	}
}

type mongoRole struct {
	ID          int64  `bson:"_id"`
	Name        string `bson:"name"`
	Description string `bson:"description,omitempty"`
	Status      int    `bson:"status"`
}

func (r *RoleRepository) FindByName(ctx context.Context, name string) (*domain.Role, error) {
	return r.findOne(ctx, bson.M{"name": name})
}

func (r *RoleRepository) FindByID(ctx context.Context, id int64) (*domain.Role, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// Seed creates the role vocabulary in order. Existing roles keep their ids.
func (r *RoleRepository) Seed(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.roles.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("%w: role indexes: %w", domain.ErrStoreFailure, err)
	}

	for _, name := range domain.Roles {
		if _, err := r.FindByName(ctx, name); err == nil {
			continue
		} else if !errors.Is(err, domain.ErrRoleNotFound) {
			return err
		}

		id, err := nextSequence(ctx, r.counters, rolesCollection)
		if err != nil {
			return err
		}
		doc := mongoRole{ID: id, Name: name, Description: seedDescription(name), Status: int(domain.RoleActive)}
		if _, err := r.roles.InsertOne(ctx, doc); err != nil && !mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: seed role %s: %w", domain.ErrStoreFailure, name, err)
		}
	}
	return nil
}

func (r *RoleRepository) findOne(ctx context.Context, filter bson.M) (*domain.Role, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var mr mongoRole
	if err := r.roles.FindOne(ctx, filter).Decode(&mr); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrRoleNotFound
		}
		return nil, fmt.Errorf("%w: find role: %w", domain.ErrStoreFailure, err)
	}
	return &domain.Role{
		ID:          mr.ID,
		Name:        mr.Name,
		Description: mr.Description,
		Status:      domain.RoleStatus(mr.Status),
	}, nil
}

func seedDescription(name string) string {
	switch name {
	case domain.RoleAdmin:
		return "Administrator with full access"
	case domain.RoleUser:
		return "Regular user"
	default:
		return ""
	}
}
