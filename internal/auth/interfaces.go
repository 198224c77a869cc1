package auth

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tastebook/tastebook-api/internal/user"
)

// TokenService defines the interface for access token creation and validation.
type TokenService interface {
	CreateToken(userID uuid.UUID, email string, duration time.Duration) (string, error)
	VerifyToken(tokenStr string) (*TokenClaims, error)
}

// AccountStore is the identity-store surface the auth service depends on.
// Implemented by user.Repository; tests substitute fakes.
type AccountStore interface {
	Create(ctx context.Context, email, passwordHash string) (*user.Account, error)
	GetByEmail(ctx context.Context, email string) (*user.Account, error)
	GetByID(ctx context.Context, id uuid.UUID) (*user.Account, error)
}

// RefreshTokenRepository defines the interface for refresh token storage
type RefreshTokenRepository interface {
	StoreRefreshToken(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error
	GetRefreshToken(ctx context.Context, token string) (*RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, token string) error
	RevokeAllUserTokens(ctx context.Context, userID uuid.UUID) error
}

// ProfileWriter is the slice of the profile service the auth flows need:
// the unconditional signup-time create, and the sign-in path that backfills
// a missing profile or refreshes lastActiveAt on an existing one.
type ProfileWriter interface {
	CreateInitial(ctx context.Context, uid, email string, firstName, lastName, username *string) error
	EnsureActive(ctx context.Context, uid, email string) error
}

// UsernameChecker reports whether a username is held by another principal.
// Implemented by profile.Checker (which fails open on store errors).
type UsernameChecker interface {
	Exists(ctx context.Context, candidate, excludeUID string) bool
}

// SessionMonitor is the idle-logout surface the handlers poke: Touch arms or
// re-arms the principal's idle countdown, End tears it down on sign-out.
type SessionMonitor interface {
	Touch(uid string)
	End(uid string)
}
