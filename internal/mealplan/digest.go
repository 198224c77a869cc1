package mealplan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tastebook/tastebook-api/internal/logging"
	"github.com/tastebook/tastebook-api/internal/recipe"
)

// PlanStore is the meal plan lookup the digest needs.
type PlanStore interface {
	Get(ctx context.Context, weekRange string) (*MealPlan, error)
}

// RecipeStore resolves the recipe IDs a plan references.
type RecipeStore interface {
	Get(ctx context.Context, id string) (*recipe.Recipe, error)
}

// Digest formats the "today's meal" message sent by the daily notifier.
type Digest struct {
	plans   PlanStore
	recipes RecipeStore
	logger  *logging.Logger
}

func NewDigest(plans PlanStore, recipes RecipeStore, logger *logging.Logger) *Digest {
	return &Digest{plans: plans, recipes: recipes, logger: logger}
}

// TodayMessage builds the digest for the given date: each planned recipe's
// name with its ingredient list, or a "nothing planned" line when the day
// is empty. Recipes that no longer resolve are skipped.
func (d *Digest) TodayMessage(ctx context.Context, now time.Time) (string, error) {
	dayName := now.Weekday().String()
	dateStr := now.Format(dateLayout)
	nothingPlanned := fmt.Sprintf("No meal planned for %s, %s", dayName, dateStr)

	plan, err := d.plans.Get(ctx, WeekRange(now))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nothingPlanned, nil
		}
		return "", fmt.Errorf("failed to load meal plan: %w", err)
	}

	recipeIDs := plan.RecipeIDsFor(now.Weekday())
	if len(recipeIDs) == 0 {
		return nothingPlanned, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🍽️ Today's Meal (%s, %s):\n\n", dayName, dateStr)

	for _, id := range recipeIDs {
		rec, err := d.recipes.Get(ctx, id)
		if err != nil {
			d.logger.Warn("failed to resolve planned recipe", "recipe_id", id, "error", err.Error())
			continue
		}

		fmt.Fprintf(&b, "📌 %s\n", rec.Name)
		b.WriteString("Ingredients:\n")
		for _, ingredient := range rec.Ingredients {
			fmt.Fprintf(&b, "• %s\n", ingredient)
		}
		b.WriteString("\n")
	}

	return strings.TrimSpace(b.String()), nil
}
