package recipe

import (
	"time"
)

// Visibility of a recipe. "public" is a valid stored value but the sharing
// editor never produces it; it only moves recipes between private and shared.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityShared  Visibility = "shared"
	VisibilityPublic  Visibility = "public"
)

// VisibilityFor derives visibility from the sharing list: shared iff the
// list is non-empty.
func VisibilityFor(sharedWith []string) Visibility {
	if len(sharedWith) > 0 {
		return VisibilityShared
	}
	return VisibilityPrivate
}

// Recipe is the slice of the recipe document this service reads and writes.
// The full recipe is owned by the recipe-editing surface; sharing updates
// are merge-writes that leave the rest of the document untouched.
//
// SharedAt records the first time the recipe was ever shared and is never
// cleared, even when the sharing list is emptied again: "was ever shared"
// survives un-sharing.
type Recipe struct {
	ID          string     `bson:"_id" json:"id"`
	UserID      string     `bson:"userId" json:"user_id"`
	Name        string     `bson:"name" json:"name"`
	Ingredients []string   `bson:"ingredients,omitempty" json:"ingredients,omitempty"`
	SharedWith  []string   `bson:"sharedWith,omitempty" json:"shared_with"`
	Visibility  Visibility `bson:"visibility,omitempty" json:"visibility"`
	SharedAt    *time.Time `bson:"sharedAt,omitempty" json:"shared_at,omitempty"`
}
