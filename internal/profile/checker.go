package profile

import (
	"context"

	"github.com/tastebook/tastebook-api/internal/logging"
)

// Checker answers whether a candidate username is already held by some other
// principal.
//
// The check is best-effort: there is no unique index behind it, so two
// concurrent signups racing for the same name can both succeed. On a query
// failure it fails open, reporting the name as free, so a transient store
// fault never blocks signup or profile editing. Callers validate the
// username format before calling; the checker only normalizes and compares.
type Checker struct {
	store  Store
	logger *logging.Logger
}

func NewChecker(store Store, logger *logging.Logger) *Checker {
	return &Checker{store: store, logger: logger}
}

// Exists reports whether any principal other than excludeUID holds the
// candidate username. excludeUID may be empty (signup path); a non-empty
// excludeUID lets a principal keep its own unchanged username when editing.
func (c *Checker) Exists(ctx context.Context, candidate, excludeUID string) bool {
	normalized := Normalize(candidate)
	if normalized == "" {
		return false
	}

	matches, err := c.store.FindByUsername(ctx, normalized)
	if err != nil {
		// Fail open: availability over strictness.
		c.logger.Warn("username uniqueness check failed, treating as available",
			"username", normalized, "error", err.Error())
		return false
	}

	for _, m := range matches {
		if m.UID != excludeUID {
			return true
		}
	}
	return false
}
