package profile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tastebook/tastebook-api/internal/logging"
)

var (
	ErrInvalidUsername = errors.New("username must be 3-20 letters, digits or underscores")
	ErrUsernameTaken   = errors.New("username already taken")
)

// Service implements profile loading, lazy backfill and the profile editor.
type Service struct {
	store   Store
	checker *Checker
	logger  *logging.Logger
}

func NewService(store Store, checker *Checker, logger *logging.Logger) *Service {
	return &Service{store: store, checker: checker, logger: logger}
}

// Get loads the principal's profile, backfilling an empty one when it does
// not exist yet. A profile can be missing when the signup-time profile write
// failed; the backfill record carries only uid and email because the name
// fields cannot be recovered.
func (s *Service) Get(ctx context.Context, uid, email string) (*Profile, error) {
	p, err := s.store.Get(ctx, uid)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	p = &Profile{UID: uid, Email: email}
	if err := s.store.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to backfill profile: %w", err)
	}
	s.logger.Info("backfilled missing profile", "uid", uid)
	return p, nil
}

// CreateInitial writes the signup-time profile with all fields from the
// form. The username is stored normalized.
func (s *Service) CreateInitial(ctx context.Context, uid, email string, firstName, lastName, username *string) error {
	if username != nil {
		normalized := Normalize(*username)
		username = &normalized
	}
	p := &Profile{
		UID:       uid,
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
		Username:  username,
	}
	return s.store.Create(ctx, p)
}

// EnsureActive is the sign-in path: backfill the profile when absent,
// otherwise merge-update only lastActiveAt.
func (s *Service) EnsureActive(ctx context.Context, uid, email string) error {
	_, err := s.store.Get(ctx, uid)
	if errors.Is(err, ErrNotFound) {
		return s.store.Create(ctx, &Profile{UID: uid, Email: email})
	}
	if err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}
	return s.store.Touch(ctx, uid)
}

// Update is the profile editor. Each field is independently nullable: nil
// clears it. The uniqueness check runs only when the normalized username
// actually changes, and excludes the acting principal so keeping one's own
// username is never a collision.
func (s *Service) Update(ctx context.Context, uid, email string, firstName, lastName, username *string) (*Profile, error) {
	current, err := s.Get(ctx, uid, email)
	if err != nil {
		return nil, err
	}

	if username != nil && *username != "" {
		if !ValidUsername(*username) {
			return nil, ErrInvalidUsername
		}
		normalized := Normalize(*username)
		if normalized != current.NormalizedUsername() && s.checker.Exists(ctx, normalized, uid) {
			return nil, ErrUsernameTaken
		}
	}

	if err := s.store.UpdateNames(ctx, uid, firstName, lastName, username); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	return s.store.Get(ctx, uid)
}

// ShareCandidates returns every other principal's profile, sorted by
// username (falling back to email), optionally narrowed by a substring
// filter over username and full name.
func (s *Service) ShareCandidates(ctx context.Context, uid, query string) ([]*Profile, error) {
	profiles, err := s.store.ListExcept(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to list share candidates: %w", err)
	}

	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].SortKey() < profiles[j].SortKey()
	})

	return FilterCandidates(profiles, query), nil
}

// FilterCandidates keeps profiles whose username or full name contains the
// query, case-insensitively. An empty query keeps everything.
func FilterCandidates(profiles []*Profile, query string) []*Profile {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return profiles
	}

	filtered := make([]*Profile, 0, len(profiles))
	for _, p := range profiles {
		if strings.Contains(p.NormalizedUsername(), query) ||
			strings.Contains(strings.ToLower(p.FullName()), query) {
			filtered = append(filtered, p)
		}
	}
	return filtered
}
