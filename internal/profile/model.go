package profile

import (
	"regexp"
	"strings"
	"time"
)

// usernameRE is the accepted username shape, checked after trimming.
var usernameRE = regexp.MustCompile(`^[A-Za-z0-9_]{3,20}$`)

// Profile is the application-owned record of display attributes for a
// principal. Exactly one profile exists per principal, keyed by the
// identity-store account ID. Email is copied from the account at creation
// and never re-synced.
type Profile struct {
	UID          string    `bson:"_id" json:"uid"`
	Email        string    `bson:"email" json:"email"`
	FirstName    *string   `bson:"firstName,omitempty" json:"first_name"`
	LastName     *string   `bson:"lastName,omitempty" json:"last_name"`
	Username     *string   `bson:"username,omitempty" json:"username"`
	CreatedAt    time.Time `bson:"createdAt" json:"created_at"`
	LastActiveAt time.Time `bson:"lastActiveAt" json:"last_active_at"`
}

// Normalize folds a username into its stored and compared form.
func Normalize(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// ValidUsername reports whether the trimmed username matches the accepted
// shape (3-20 word characters).
func ValidUsername(username string) bool {
	return usernameRE.MatchString(strings.TrimSpace(username))
}

// NormalizedUsername returns the normalized stored username, or "" when the
// profile has none. Usernames are stored normalized already; normalizing
// again here keeps comparisons safe against records written by older
// clients.
func (p *Profile) NormalizedUsername() string {
	if p.Username == nil {
		return ""
	}
	return Normalize(*p.Username)
}

// FullName joins the name fields, skipping the ones that are unset.
func (p *Profile) FullName() string {
	var parts []string
	if p.FirstName != nil && *p.FirstName != "" {
		parts = append(parts, *p.FirstName)
	}
	if p.LastName != nil && *p.LastName != "" {
		parts = append(parts, *p.LastName)
	}
	return strings.Join(parts, " ")
}

// SortKey orders share candidates by username, falling back to email for
// profiles that never picked one.
func (p *Profile) SortKey() string {
	if u := p.NormalizedUsername(); u != "" {
		return u
	}
	return strings.ToLower(p.Email)
}
