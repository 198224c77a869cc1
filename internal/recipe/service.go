package recipe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tastebook/tastebook-api/internal/logging"
	"github.com/tastebook/tastebook-api/internal/profile"
)

var ErrNotOwner = errors.New("only the recipe owner can change sharing")

// ProfileReader resolves principals to profiles, for notification emails
// and owner display names.
type ProfileReader interface {
	Get(ctx context.Context, uid string) (*profile.Profile, error)
}

// ShareNotifier tells a principal that a recipe was shared with them.
// Failures are logged, never surfaced: the share itself already succeeded.
type ShareNotifier interface {
	SendRecipeShared(ctx context.Context, toEmail, recipeName, ownerName string) error
}

// Service implements the sharing-list editor.
type Service struct {
	store    Store
	profiles ProfileReader
	notifier ShareNotifier
	logger   *logging.Logger
}

func NewService(store Store, profiles ProfileReader, notifier ShareNotifier, logger *logging.Logger) *Service {
	return &Service{
		store:    store,
		profiles: profiles,
		notifier: notifier,
		logger:   logger,
	}
}

// GetSharing loads a recipe's sharing state. Only the owner may look at it
// through this surface.
func (s *Service) GetSharing(ctx context.Context, actorUID, recipeID string) (*Recipe, error) {
	rec, err := s.store.Get(ctx, recipeID)
	if err != nil {
		return nil, err
	}
	if rec.UserID != actorUID {
		return nil, ErrNotOwner
	}
	return rec, nil
}

// SetSharedWith replaces the sharing list wholesale. The new list wins
// entirely; there is no incremental add/remove. Non-owners are rejected
// before any write happens. Visibility is derived from the new list, and
// sharedAt is stamped only on the first transition to a non-empty list.
func (s *Service) SetSharedWith(ctx context.Context, actorUID, recipeID string, uids []string) (*Recipe, error) {
	rec, err := s.store.Get(ctx, recipeID)
	if err != nil {
		return nil, err
	}
	if rec.UserID != actorUID {
		return nil, ErrNotOwner
	}

	sharedWith := dedupe(uids)
	visibility := VisibilityFor(sharedWith)

	var sharedAt *time.Time
	if rec.SharedAt == nil && len(sharedWith) > 0 {
		now := time.Now().UTC()
		sharedAt = &now
	}

	if err := s.store.UpdateSharing(ctx, recipeID, sharedWith, visibility, sharedAt); err != nil {
		return nil, fmt.Errorf("failed to save sharing list: %w", err)
	}

	s.notifyNewMembers(rec, sharedWith)

	updated := *rec
	updated.SharedWith = sharedWith
	updated.Visibility = visibility
	if sharedAt != nil {
		updated.SharedAt = sharedAt
	}
	return &updated, nil
}

// notifyNewMembers emails principals newly added to the list. Fire and
// forget: a failed email never fails the share.
func (s *Service) notifyNewMembers(rec *Recipe, sharedWith []string) {
	previous := make(map[string]bool, len(rec.SharedWith))
	for _, uid := range rec.SharedWith {
		previous[uid] = true
	}

	var added []string
	for _, uid := range sharedWith {
		if !previous[uid] {
			added = append(added, uid)
		}
	}
	if len(added) == 0 {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		ownerName := s.ownerDisplayName(ctx, rec.UserID)
		for _, uid := range added {
			p, err := s.profiles.Get(ctx, uid)
			if err != nil {
				s.logger.Warn("failed to resolve share recipient", "uid", uid, "error", err.Error())
				continue
			}
			if err := s.notifier.SendRecipeShared(ctx, p.Email, rec.Name, ownerName); err != nil {
				s.logger.Warn("failed to send share notification",
					"email", p.Email, "recipe_id", rec.ID, "error", err.Error())
			}
		}
	}()
}

func (s *Service) ownerDisplayName(ctx context.Context, uid string) string {
	p, err := s.profiles.Get(ctx, uid)
	if err != nil {
		return "Someone"
	}
	if name := p.FullName(); name != "" {
		return name
	}
	return p.Email
}

// dedupe removes duplicate IDs, preserving first-seen order. The list is a
// set; duplicates are not meaningful.
func dedupe(uids []string) []string {
	seen := make(map[string]bool, len(uids))
	out := make([]string, 0, len(uids))
	for _, uid := range uids {
		if uid == "" || seen[uid] {
			continue
		}
		seen[uid] = true
		out = append(out, uid)
	}
	return out
}
