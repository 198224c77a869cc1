package mealplan

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

var ErrNotFound = errors.New("meal plan not found")

// CollectionName is the document-store collection holding weekly meal plans.
const CollectionName = "mealPlans"

// Repository reads weekly meal plans from the document store.
type Repository struct {
	coll *mongo.Collection
}

func NewRepository(db *mongo.Database) *Repository {
	return &Repository{coll: db.Collection(CollectionName)}
}

// Get retrieves the plan for a week-range key
func (r *Repository) Get(ctx context.Context, weekRange string) (*MealPlan, error) {
	var plan MealPlan
	err := r.coll.FindOne(ctx, bson.M{"_id": weekRange}).Decode(&plan)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get meal plan: %w", err)
	}
	return &plan, nil
}
