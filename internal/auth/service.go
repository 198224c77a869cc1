package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/argon2"

	"github.com/tastebook/tastebook-api/internal/logging"
	"github.com/tastebook/tastebook-api/internal/profile"
	"github.com/tastebook/tastebook-api/internal/user"
)

var (
	ErrEmailRequired      = errors.New("email is required")
	ErrInvalidEmailFormat = errors.New("invalid email address")
	ErrPasswordRequired   = errors.New("password is required")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrFirstNameRequired  = errors.New("first name is required")
	ErrLastNameRequired   = errors.New("last name is required")
	ErrUsernameRequired   = errors.New("username is required")
	ErrUserNotFound       = errors.New("no account found with this email")
	ErrWrongPassword      = errors.New("incorrect password")
)

// Argon2id parameters - tuned for security vs performance balance
// Time: 3, Memory: 64MB, Threads: 4, KeyLen: 32 bytes
const (
	argon2Time    = 3
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4
	argon2KeyLen  = 32
	saltLen       = 16

	minPasswordLen = 6
)

// SignUpInput carries the signup form fields.
type SignUpInput struct {
	Email           string
	Password        string
	PasswordConfirm string
	FirstName       string
	LastName        string
	Username        string
}

// Service implements the sign-up and sign-in flows on top of the identity
// store, the profile store and the session token stores.
type Service struct {
	accounts             AccountStore
	tokenRepo            RefreshTokenRepository
	profiles             ProfileWriter
	usernames            UsernameChecker
	tokenService         TokenService
	logger               *logging.Logger
	accessTokenDuration  time.Duration
	refreshTokenDuration time.Duration
}

func NewService(
	accounts AccountStore,
	tokenRepo RefreshTokenRepository,
	profiles ProfileWriter,
	usernames UsernameChecker,
	tokenService TokenService,
	logger *logging.Logger,
	accessTokenDuration time.Duration,
	refreshTokenDuration time.Duration,
) *Service {
	return &Service{
		accounts:             accounts,
		tokenRepo:            tokenRepo,
		profiles:             profiles,
		usernames:            usernames,
		tokenService:         tokenService,
		logger:               logger,
		accessTokenDuration:  accessTokenDuration,
		refreshTokenDuration: refreshTokenDuration,
	}
}

// SignUp validates the form, checks username availability, creates the
// account and its profile, and signs the new principal in.
//
// Validation short-circuits on the first failure, in form order. The
// username availability check runs before the account is created, so a
// taken username never leaves a half-created principal behind. A profile
// write failure after the account exists is logged but does not fail the
// signup; the profile is backfilled lazily on the next sign-in.
func (s *Service) SignUp(ctx context.Context, input SignUpInput) (*user.Account, *AuthTokens, error) {
	if err := validateSignUp(input); err != nil {
		return nil, nil, err
	}

	if s.usernames.Exists(ctx, input.Username, "") {
		return nil, nil, profile.ErrUsernameTaken
	}

	passwordHash, err := s.hashPassword(input.Password)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account, err := s.accounts.Create(ctx, strings.TrimSpace(input.Email), passwordHash)
	if err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) {
			return nil, nil, user.ErrDuplicateEmail
		}
		return nil, nil, fmt.Errorf("failed to create account: %w", err)
	}

	firstName := strings.TrimSpace(input.FirstName)
	lastName := strings.TrimSpace(input.LastName)
	username := input.Username
	if err := s.profiles.CreateInitial(ctx, account.ID.String(), account.Email,
		&firstName, &lastName, &username); err != nil {
		// The principal exists without a profile now; sign-in reconciles.
		s.logger.Warn("failed to create profile at signup",
			"uid", account.ID, "error", err.Error())
	}

	tokens, err := s.generateTokens(ctx, account.ID, account.Email)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate tokens: %w", err)
	}

	return account, tokens, nil
}

// SignIn authenticates a principal and refreshes its profile's
// lastActiveAt, backfilling the profile when it is missing.
func (s *Service) SignIn(ctx context.Context, email, password string) (*user.Account, *AuthTokens, error) {
	if err := validateCredentials(email, password); err != nil {
		return nil, nil, err
	}

	account, err := s.accounts.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, nil, ErrUserNotFound
		}
		return nil, nil, fmt.Errorf("failed to get account: %w", err)
	}

	if !s.verifyPassword(account.PasswordHash, password) {
		return nil, nil, ErrWrongPassword
	}

	// Authentication already succeeded; profile trouble is non-fatal.
	if err := s.profiles.EnsureActive(ctx, account.ID.String(), account.Email); err != nil {
		s.logger.Warn("failed to reconcile profile at sign-in",
			"uid", account.ID, "error", err.Error())
	}

	tokens, err := s.generateTokens(ctx, account.ID, account.Email)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate tokens: %w", err)
	}

	return account, tokens, nil
}

// SignOut revokes the given refresh token and returns the principal that
// owned it so the caller can tear down its idle monitoring. Revoking an
// unknown or already-revoked token is a no-op so repeated sign-outs stay
// idempotent.
func (s *Service) SignOut(ctx context.Context, refreshToken string) (uuid.UUID, error) {
	rt, err := s.tokenRepo.GetRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrRefreshTokenNotFound) ||
			errors.Is(err, ErrRefreshTokenRevoked) ||
			errors.Is(err, ErrRefreshTokenExpired) {
			return uuid.Nil, nil
		}
		return uuid.Nil, err
	}

	if err := s.tokenRepo.RevokeRefreshToken(ctx, refreshToken); err != nil && !errors.Is(err, ErrRefreshTokenNotFound) {
		return uuid.Nil, err
	}
	return rt.UserID, nil
}

// RefreshAccessToken rotates a refresh token into a new token pair.
func (s *Service) RefreshAccessToken(ctx context.Context, refreshToken string) (*AuthTokens, error) {
	rt, err := s.tokenRepo.GetRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrRefreshTokenNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}

	if !rt.IsValid() {
		if rt.IsRevoked() {
			return nil, ErrRefreshTokenRevoked
		}
		return nil, ErrRefreshTokenExpired
	}

	// Revoke before reissuing to prevent reuse of the old token.
	if err := s.tokenRepo.RevokeRefreshToken(ctx, refreshToken); err != nil {
		return nil, fmt.Errorf("failed to revoke old refresh token: %w", err)
	}

	account, err := s.accounts.GetByID(ctx, rt.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	tokens, err := s.generateTokens(ctx, account.ID, account.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tokens: %w", err)
	}

	return tokens, nil
}

// RevokeAllSessions revokes every refresh token of a principal. Used by the
// idle-session monitor to force sign-out.
func (s *Service) RevokeAllSessions(ctx context.Context, userID uuid.UUID) error {
	return s.tokenRepo.RevokeAllUserTokens(ctx, userID)
}

// validateSignUp applies the signup form checks in order, first failure wins.
func validateSignUp(input SignUpInput) error {
	if err := validateCredentials(input.Email, input.Password); err != nil {
		return err
	}
	if len(input.Password) < minPasswordLen {
		return ErrWeakPassword
	}
	if input.Password != input.PasswordConfirm {
		return ErrPasswordMismatch
	}
	if strings.TrimSpace(input.FirstName) == "" {
		return ErrFirstNameRequired
	}
	if strings.TrimSpace(input.LastName) == "" {
		return ErrLastNameRequired
	}
	if strings.TrimSpace(input.Username) == "" {
		return ErrUsernameRequired
	}
	if !profile.ValidUsername(input.Username) {
		return profile.ErrInvalidUsername
	}
	return nil
}

// validateCredentials covers the checks shared by both modes. The email
// check is deliberately shallow; the mailbox is never verified, so anything
// beyond "looks like an address" buys nothing.
func validateCredentials(email, password string) error {
	if strings.TrimSpace(email) == "" {
		return ErrEmailRequired
	}
	if !strings.Contains(email, "@") {
		return ErrInvalidEmailFormat
	}
	if password == "" {
		return ErrPasswordRequired
	}
	return nil
}

// generateTokens creates both access and refresh tokens
func (s *Service) generateTokens(ctx context.Context, userID uuid.UUID, email string) (*AuthTokens, error) {
	accessToken, err := s.tokenService.CreateToken(userID, email, s.accessTokenDuration)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}

	refreshToken, err := generateRandomToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	expiresAt := time.Now().Add(s.refreshTokenDuration)
	if err := s.tokenRepo.StoreRefreshToken(ctx, userID, refreshToken, expiresAt); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &AuthTokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTokenDuration.Seconds()),
	}, nil
}

// hashPassword creates an argon2id hash of the password
func (s *Service) hashPassword(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey(
		[]byte(password),
		salt,
		argon2Time,
		argon2Memory,
		argon2Threads,
		argon2KeyLen,
	)

	// Encode as: $argon2id$v=19$m=65536,t=3,p=4$salt$hash
	encodedSalt := base64.RawStdEncoding.EncodeToString(salt)
	encodedHash := base64.RawStdEncoding.EncodeToString(hash)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argon2Memory,
		argon2Time,
		argon2Threads,
		encodedSalt,
		encodedHash,
	), nil
}

// verifyPassword checks if a password matches the stored hash
func (s *Service) verifyPassword(encodedHash, password string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return false
	}

	var version int
	var memory, timeCost uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &timeCost, &threads); err != nil {
		return false
	}
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	decodedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}

	inputHash := argon2.IDKey(
		[]byte(password),
		salt,
		timeCost,
		memory,
		threads,
		uint32(len(decodedHash)),
	)

	return subtle.ConstantTimeCompare(decodedHash, inputHash) == 1
}

// generateRandomToken creates a cryptographically secure random token
func generateRandomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
