package recipe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

var ErrNotFound = errors.New("recipe not found")

// CollectionName is the document-store collection holding recipes.
const CollectionName = "recipes"

// Store is the persistence surface the sharing service relies on.
type Store interface {
	Get(ctx context.Context, id string) (*Recipe, error)
	UpdateSharing(ctx context.Context, id string, sharedWith []string, visibility Visibility, sharedAt *time.Time) error
}

// Repository reads and merge-writes recipe sharing state in the document
// store.
type Repository struct {
	coll *mongo.Collection
}

func NewRepository(db *mongo.Database) *Repository {
	return &Repository{coll: db.Collection(CollectionName)}
}

// Get retrieves a recipe by ID
func (r *Repository) Get(ctx context.Context, id string) (*Recipe, error) {
	var rec Recipe
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get recipe: %w", err)
	}
	return &rec, nil
}

// UpdateSharing merge-writes only the sharing fields. sharedAt is written
// only when non-nil; it is never unset.
func (r *Repository) UpdateSharing(ctx context.Context, id string, sharedWith []string, visibility Visibility, sharedAt *time.Time) error {
	set := bson.M{
		"sharedWith": sharedWith,
		"visibility": visibility,
	}
	if sharedAt != nil {
		set["sharedAt"] = *sharedAt
	}

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update recipe sharing: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
