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
	"github.com/giftcard/giftcard-api/internal/pkg/password"
)

const (
	usersCollection    = "users"
	countersCollection = "counters"
)

// UserRepository implements ports.CredentialStore using MongoDB. Users get
// sequential numeric ids from the counters collection.
type UserRepository struct {
	users    *mongo.Collection
	counters *mongo.Collection
	roles    *RoleRepository
	hasher   *password.Hasher
}

func NewUserRepository(db *mongo.Database, roles *RoleRepository, hasher *password.Hasher) *UserRepository {
	return &UserRepository{
		users:    db.Collection(usersCollection),
		counters: db.Collection(countersCollection),
		roles:    roles,
		hasher:   hasher,
	}
}

type mongoUser struct {
	ID           int64  `bson:"_id"`
	Username     string `bson:"username"`
	Email        string `bson:"email"`
	PasswordHash string `bson:"password_hash"`
	RoleID       int64  `bson:"role_id"`
	CreatedAt    int64  `bson:"created_at"`
	UpdatedAt    int64  `bson:"updated_at"`
}

func (r *UserRepository) Create(ctx context.Context, nu domain.NewUser) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	hash, err := r.hash(nu.Password)
	if err != nil {
		return nil, err
	}

	id, err := nextSequence(ctx, r.counters, usersCollection)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	doc := mongoUser{
		ID:           id,
		Username:     nu.Username,
		Email:        nu.Email,
		PasswordHash: hash,
		RoleID:       nu.RoleID,
		CreatedAt:    now.Unix(),
		UpdatedAt:    now.Unix(),
	}

	if _, err := r.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrDuplicateIdentity
		}
		return nil, fmt.Errorf("%w: insert user: %w", domain.ErrStoreFailure, err)
	}
	return doc.toDomain(), nil
}

func (r *UserRepository) FindByUsernameOrEmail(ctx context.Context, identifier string) (*domain.User, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"username": identifier},
		bson.M{"email": identifier},
	}}
	return r.findOne(ctx, filter, true)
}

func (r *UserRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{"$or": bson.A{
		bson.M{"username": username},
		bson.M{"email": email},
	}}
	n, err := r.users.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("%w: count users: %w", domain.ErrStoreFailure, err)
	}
	return n > 0, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id int64, includeRole bool) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": id}, includeRole)
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, plaintext string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	hash, err := r.hash(plaintext)
	if err != nil {
		return err
	}

	res, err := r.users.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"password_hash": hash,
		"updated_at":    time.Now().UTC().Unix(),
	}})
	if err != nil {
		return fmt.Errorf("%w: update password: %w", domain.ErrStoreFailure, err)
	}
	if res.MatchedCount == 0 {
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

// EnsureIndexes creates the unique indexes that back identity uniqueness.
func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "role_id", Value: 1}}},
	}
	_, err := r.users.Indexes().CreateMany(ctx, indexes)
	return err
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M, includeRole bool) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var mu mongoUser
	if err := r.users.FindOne(ctx, filter).Decode(&mu); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: find user: %w", domain.ErrStoreFailure, err)
	}

	user := mu.toDomain()
	if includeRole {
		role, err := r.roles.FindByID(ctx, mu.RoleID)
		switch {
		case err == nil:
			user.Role = role
		case errors.Is(err, domain.ErrRoleNotFound):
			// Left nil; the identity reports UNKNOWN.
		default:
			return nil, err
		}
	}
	return user, nil
}

func (mu mongoUser) toDomain() *domain.User {
	return &domain.User{
		ID:           mu.ID,
		Username:     mu.Username,
		Email:        mu.Email,
		PasswordHash: mu.PasswordHash,
		RoleID:       mu.RoleID,
		CreatedAt:    unixToTime(mu.CreatedAt),
		UpdatedAt:    unixToTime(mu.UpdatedAt),
	}
}

// nextSequence atomically increments and returns the counter called name.
func nextSequence(ctx context.Context, counters *mongo.Collection, name string) (int64, error) {
	var out struct {
		Seq int64 `bson:"seq"`
	}
	err := counters.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&out)
	if err != nil {
		return 0, fmt.Errorf("%w: next %s id: %w", domain.ErrStoreFailure, name, err)
	}
	return out.Seq, nil
}

func unixToTime(ts int64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0).UTC()
}
