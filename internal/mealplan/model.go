package mealplan

import (
	"strings"
	"time"
)

// MealPlan is one week of planned meals, keyed by its week-range string
// (see WeekRange). Each weekday holds a comma-separated list of recipe IDs;
// an absent or empty field means nothing is planned that day.
type MealPlan struct {
	ID        string `bson:"_id" json:"id"`
	Monday    string `bson:"Monday,omitempty" json:"monday,omitempty"`
	Tuesday   string `bson:"Tuesday,omitempty" json:"tuesday,omitempty"`
	Wednesday string `bson:"Wednesday,omitempty" json:"wednesday,omitempty"`
	Thursday  string `bson:"Thursday,omitempty" json:"thursday,omitempty"`
	Friday    string `bson:"Friday,omitempty" json:"friday,omitempty"`
	Saturday  string `bson:"Saturday,omitempty" json:"saturday,omitempty"`
	Sunday    string `bson:"Sunday,omitempty" json:"sunday,omitempty"`
}

// RecipeIDsFor splits the given weekday's field into recipe IDs.
func (p *MealPlan) RecipeIDsFor(day time.Weekday) []string {
	var raw string
	switch day {
	case time.Monday:
		raw = p.Monday
	case time.Tuesday:
		raw = p.Tuesday
	case time.Wednesday:
		raw = p.Wednesday
	case time.Thursday:
		raw = p.Thursday
	case time.Friday:
		raw = p.Friday
	case time.Saturday:
		raw = p.Saturday
	case time.Sunday:
		raw = p.Sunday
	}

	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	ids := make([]string, 0, len(parts))
	for _, part := range parts {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// Day numbers are zero-padded; the web client builds plan keys the same way.
const dateLayout = "January 02, 2006"

// WeekRange returns the Monday-based week-range key for the given date,
// e.g. "March 03, 2025 - March 09, 2025". Meal plan documents are keyed by
// this string.
func WeekRange(t time.Time) string {
	// time.Weekday has Sunday = 0; shift so Monday starts the week.
	offset := (int(t.Weekday()) + 6) % 7
	start := t.AddDate(0, 0, -offset)
	end := start.AddDate(0, 0, 6)
	return start.Format(dateLayout) + " - " + end.Format(dateLayout)
}
