package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

var ErrNotFound = errors.New("profile not found")

// CollectionName is the document-store collection holding profiles.
const CollectionName = "profiles"

// Store is the persistence surface the profile service and the uniqueness
// checker rely on. Implemented by Repository; tests substitute fakes.
type Store interface {
	Get(ctx context.Context, uid string) (*Profile, error)
	Create(ctx context.Context, p *Profile) error
	Touch(ctx context.Context, uid string) error
	UpdateNames(ctx context.Context, uid string, firstName, lastName, username *string) error
	FindByUsername(ctx context.Context, normalized string) ([]*Profile, error)
	ListExcept(ctx context.Context, uid string) ([]*Profile, error)
}

// Repository persists profiles in the document store.
type Repository struct {
	coll *mongo.Collection
}

func NewRepository(db *mongo.Database) *Repository {
	return &Repository{coll: db.Collection(CollectionName)}
}

// Get retrieves a profile by the owning principal's ID
func (r *Repository) Get(ctx context.Context, uid string) (*Profile, error) {
	var p Profile
	err := r.coll.FindOne(ctx, bson.M{"_id": uid}).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &p, nil
}

// Create inserts a profile, assigning createdAt and lastActiveAt.
// createdAt is set exactly once, here.
func (r *Repository) Create(ctx context.Context, p *Profile) error {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.LastActiveAt = now

	if _, err := r.coll.InsertOne(ctx, p); err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

// Touch merge-updates only lastActiveAt, leaving every other field alone.
func (r *Repository) Touch(ctx context.Context, uid string) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": uid},
		bson.M{"$set": bson.M{"lastActiveAt": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("failed to touch profile: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateNames merge-writes the editable fields. A nil field is cleared, a
// non-nil field is set; the username is stored normalized. lastActiveAt is
// refreshed as part of the same write.
func (r *Repository) UpdateNames(ctx context.Context, uid string, firstName, lastName, username *string) error {
	set := bson.M{"lastActiveAt": time.Now().UTC()}
	unset := bson.M{}

	if firstName != nil {
		set["firstName"] = *firstName
	} else {
		unset["firstName"] = ""
	}
	if lastName != nil {
		set["lastName"] = *lastName
	} else {
		unset["lastName"] = ""
	}
	if username != nil {
		set["username"] = Normalize(*username)
	} else {
		unset["username"] = ""
	}

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": uid}, update)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// FindByUsername runs an equality query on the normalized username.
func (r *Repository) FindByUsername(ctx context.Context, normalized string) ([]*Profile, error) {
	cursor, err := r.coll.Find(ctx, bson.M{"username": normalized})
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles by username: %w", err)
	}
	defer cursor.Close(ctx)

	var profiles []*Profile
	if err := cursor.All(ctx, &profiles); err != nil {
		return nil, fmt.Errorf("failed to decode profiles: %w", err)
	}
	return profiles, nil
}

// ListExcept returns every profile except the given principal's own.
func (r *Repository) ListExcept(ctx context.Context, uid string) ([]*Profile, error) {
	cursor, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$ne": uid}})
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer cursor.Close(ctx)

	var profiles []*Profile
	if err := cursor.All(ctx, &profiles); err != nil {
		return nil, fmt.Errorf("failed to decode profiles: %w", err)
	}
	return profiles, nil
}
