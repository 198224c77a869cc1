package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tastebook/tastebook-api/internal/logging"
	"github.com/tastebook/tastebook-api/internal/profile"
	"github.com/tastebook/tastebook-api/internal/user"
)

// --- fakes ---

type fakeAccounts struct {
	createCalls int
	createErr   error
	created     *user.Account

	byEmail map[string]*user.Account
	byID    map[uuid.UUID]*user.Account
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{
		byEmail: make(map[string]*user.Account),
		byID:    make(map[uuid.UUID]*user.Account),
	}
}

func (f *fakeAccounts) Create(ctx context.Context, email, passwordHash string) (*user.Account, error) {
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	account := &user.Account{ID: uuid.New(), Email: email, PasswordHash: passwordHash}
	f.created = account
	f.byEmail[email] = account
	f.byID[account.ID] = account
	return account, nil
}

func (f *fakeAccounts) GetByEmail(ctx context.Context, email string) (*user.Account, error) {
	account, ok := f.byEmail[email]
	if !ok {
		return nil, user.ErrNotFound
	}
	return account, nil
}

func (f *fakeAccounts) GetByID(ctx context.Context, id uuid.UUID) (*user.Account, error) {
	account, ok := f.byID[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return account, nil
}

type fakeTokenRepo struct {
	stored  map[string]*RefreshToken
	revoked map[string]bool
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{
		stored:  make(map[string]*RefreshToken),
		revoked: make(map[string]bool),
	}
}

func (f *fakeTokenRepo) StoreRefreshToken(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error {
	f.stored[token] = &RefreshToken{UserID: userID, ExpiresAt: expiresAt, CreatedAt: time.Now()}
	return nil
}

func (f *fakeTokenRepo) GetRefreshToken(ctx context.Context, token string) (*RefreshToken, error) {
	if f.revoked[token] {
		return nil, ErrRefreshTokenRevoked
	}
	rt, ok := f.stored[token]
	if !ok {
		return nil, ErrRefreshTokenNotFound
	}
	if time.Now().After(rt.ExpiresAt) {
		return nil, ErrRefreshTokenExpired
	}
	return rt, nil
}

func (f *fakeTokenRepo) RevokeRefreshToken(ctx context.Context, token string) error {
	f.revoked[token] = true
	return nil
}

func (f *fakeTokenRepo) RevokeAllUserTokens(ctx context.Context, userID uuid.UUID) error {
	for token, rt := range f.stored {
		if rt.UserID == userID {
			f.revoked[token] = true
		}
	}
	return nil
}

type fakeProfiles struct {
	createCalls  int
	createErr    error
	lastUID      string
	lastEmail    string
	lastFirst    *string
	lastLast     *string
	lastUsername *string

	ensureCalls int
	ensureErr   error
}

func (f *fakeProfiles) CreateInitial(ctx context.Context, uid, email string, firstName, lastName, username *string) error {
	f.createCalls++
	f.lastUID = uid
	f.lastEmail = email
	f.lastFirst = firstName
	f.lastLast = lastName
	f.lastUsername = username
	return f.createErr
}

func (f *fakeProfiles) EnsureActive(ctx context.Context, uid, email string) error {
	f.ensureCalls++
	f.lastUID = uid
	f.lastEmail = email
	return f.ensureErr
}

type fakeChecker struct {
	taken map[string]bool
}

func (f *fakeChecker) Exists(ctx context.Context, candidate, excludeUID string) bool {
	return f.taken[profile.Normalize(candidate)]
}

type stubTokenService struct{}

func (stubTokenService) CreateToken(userID uuid.UUID, email string, duration time.Duration) (string, error) {
	return "access-" + userID.String(), nil
}

func (stubTokenService) VerifyToken(tokenStr string) (*TokenClaims, error) {
	return nil, ErrInvalidToken
}

type fixture struct {
	service  *Service
	accounts *fakeAccounts
	tokens   *fakeTokenRepo
	profiles *fakeProfiles
	checker  *fakeChecker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		accounts: newFakeAccounts(),
		tokens:   newFakeTokenRepo(),
		profiles: &fakeProfiles{},
		checker:  &fakeChecker{taken: make(map[string]bool)},
	}
	f.service = NewService(
		f.accounts,
		f.tokens,
		f.profiles,
		f.checker,
		stubTokenService{},
		logging.NewLogger(true),
		15*time.Minute,
		7*24*time.Hour,
	)
	return f
}

func validSignUp() SignUpInput {
	return SignUpInput{
		Email:           "cook@example.com",
		Password:        "hunter22",
		PasswordConfirm: "hunter22",
		FirstName:       "Alice",
		LastName:        "Baker",
		Username:        "alice_b",
	}
}

// --- signup ---

func TestSignUp_ValidationOrder(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*SignUpInput)
		wantErr error
	}{
		{"empty email", func(in *SignUpInput) { in.Email = "  " }, ErrEmailRequired},
		{"email without at sign", func(in *SignUpInput) { in.Email = "not-an-address" }, ErrInvalidEmailFormat},
		{"empty password", func(in *SignUpInput) { in.Password = "" }, ErrPasswordRequired},
		{"short password", func(in *SignUpInput) { in.Password, in.PasswordConfirm = "12345", "12345" }, ErrWeakPassword},
		{"password mismatch", func(in *SignUpInput) { in.PasswordConfirm = "different" }, ErrPasswordMismatch},
		{"missing first name", func(in *SignUpInput) { in.FirstName = " " }, ErrFirstNameRequired},
		{"missing last name", func(in *SignUpInput) { in.LastName = "" }, ErrLastNameRequired},
		{"missing username", func(in *SignUpInput) { in.Username = "" }, ErrUsernameRequired},
		{"username too short", func(in *SignUpInput) { in.Username = "ab" }, profile.ErrInvalidUsername},
		{"username with spaces", func(in *SignUpInput) { in.Username = "alice baker" }, profile.ErrInvalidUsername},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			input := validSignUp()
			tt.mutate(&input)

			_, _, err := f.service.SignUp(context.Background(), input)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, f.accounts.createCalls, "no account may be created on validation failure")
		})
	}
}

func TestSignUp_EmptyEmailBeatsBadPassword(t *testing.T) {
	f := newFixture(t)
	input := validSignUp()
	input.Email = ""
	input.Password = ""

	_, _, err := f.service.SignUp(context.Background(), input)

	assert.ErrorIs(t, err, ErrEmailRequired)
}

func TestSignUp_TakenUsernameAbortsBeforeAccountCreate(t *testing.T) {
	f := newFixture(t)
	f.checker.taken["alice_b"] = true

	_, _, err := f.service.SignUp(context.Background(), validSignUp())

	assert.ErrorIs(t, err, profile.ErrUsernameTaken)
	assert.Zero(t, f.accounts.createCalls)
	assert.Zero(t, f.profiles.createCalls)
}

func TestSignUp_TakenUsernameCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	f.checker.taken["bob_99"] = true
	input := validSignUp()
	input.Username = "Bob_99"

	_, _, err := f.service.SignUp(context.Background(), input)

	assert.ErrorIs(t, err, profile.ErrUsernameTaken)
}

func TestSignUp_Success(t *testing.T) {
	f := newFixture(t)

	account, tokens, err := f.service.SignUp(context.Background(), validSignUp())

	require.NoError(t, err)
	require.NotNil(t, account)
	assert.Equal(t, "cook@example.com", account.Email)
	assert.NotEqual(t, "hunter22", account.PasswordHash, "password must be stored hashed")

	require.NotNil(t, tokens)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)
	assert.Contains(t, f.tokens.stored, tokens.RefreshToken)

	assert.Equal(t, 1, f.profiles.createCalls)
	assert.Equal(t, account.ID.String(), f.profiles.lastUID)
	require.NotNil(t, f.profiles.lastFirst)
	assert.Equal(t, "Alice", *f.profiles.lastFirst)
	require.NotNil(t, f.profiles.lastUsername)
	assert.Equal(t, "alice_b", *f.profiles.lastUsername)
}

func TestSignUp_ProfileWriteFailureIsNonFatal(t *testing.T) {
	f := newFixture(t)
	f.profiles.createErr = errors.New("document store down")

	account, tokens, err := f.service.SignUp(context.Background(), validSignUp())

	require.NoError(t, err)
	assert.NotNil(t, account)
	assert.NotNil(t, tokens)
}

func TestSignUp_DuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.accounts.createErr = user.ErrDuplicateEmail

	_, _, err := f.service.SignUp(context.Background(), validSignUp())

	assert.ErrorIs(t, err, user.ErrDuplicateEmail)
	assert.Zero(t, f.profiles.createCalls, "no profile without an account")
}

// --- signin ---

func TestSignIn_UnknownEmail(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.service.SignIn(context.Background(), "ghost@example.com", "whatever")

	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestSignIn_WrongPassword(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.service.SignUp(context.Background(), validSignUp())
	require.NoError(t, err)

	_, _, err = f.service.SignIn(context.Background(), "cook@example.com", "not-the-password")

	assert.ErrorIs(t, err, ErrWrongPassword)
}

func TestSignIn_Success(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.service.SignUp(context.Background(), validSignUp())
	require.NoError(t, err)
	f.profiles.ensureCalls = 0

	account, tokens, err := f.service.SignIn(context.Background(), "cook@example.com", "hunter22")

	require.NoError(t, err)
	assert.Equal(t, "cook@example.com", account.Email)
	assert.NotEmpty(t, tokens.RefreshToken)
	assert.Equal(t, 1, f.profiles.ensureCalls, "sign-in reconciles the profile exactly once")
}

func TestSignIn_ProfileReconcileFailureIsNonFatal(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.service.SignUp(context.Background(), validSignUp())
	require.NoError(t, err)
	f.profiles.ensureErr = errors.New("document store down")

	_, tokens, err := f.service.SignIn(context.Background(), "cook@example.com", "hunter22")

	require.NoError(t, err)
	assert.NotNil(t, tokens)
}

func TestSignIn_ValidationShortCircuits(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.service.SignIn(context.Background(), "", "pw")
	assert.ErrorIs(t, err, ErrEmailRequired)

	_, _, err = f.service.SignIn(context.Background(), "no-at-sign", "pw")
	assert.ErrorIs(t, err, ErrInvalidEmailFormat)

	_, _, err = f.service.SignIn(context.Background(), "a@b.c", "")
	assert.ErrorIs(t, err, ErrPasswordRequired)
}

// --- signout and refresh ---

func TestSignOut_ReturnsOwnerAndRevokes(t *testing.T) {
	f := newFixture(t)
	account, tokens, err := f.service.SignUp(context.Background(), validSignUp())
	require.NoError(t, err)

	uid, err := f.service.SignOut(context.Background(), tokens.RefreshToken)

	require.NoError(t, err)
	assert.Equal(t, account.ID, uid)
	assert.True(t, f.tokens.revoked[tokens.RefreshToken])
}

func TestSignOut_UnknownTokenIsIdempotent(t *testing.T) {
	f := newFixture(t)

	uid, err := f.service.SignOut(context.Background(), "never-issued")

	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, uid)
}

func TestSignOut_Twice(t *testing.T) {
	f := newFixture(t)
	_, tokens, err := f.service.SignUp(context.Background(), validSignUp())
	require.NoError(t, err)

	_, err = f.service.SignOut(context.Background(), tokens.RefreshToken)
	require.NoError(t, err)

	uid, err := f.service.SignOut(context.Background(), tokens.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, uid)
}

func TestRefreshAccessToken_RotatesToken(t *testing.T) {
	f := newFixture(t)
	_, tokens, err := f.service.SignUp(context.Background(), validSignUp())
	require.NoError(t, err)

	fresh, err := f.service.RefreshAccessToken(context.Background(), tokens.RefreshToken)

	require.NoError(t, err)
	assert.NotEqual(t, tokens.RefreshToken, fresh.RefreshToken)
	assert.True(t, f.tokens.revoked[tokens.RefreshToken], "old token must be dead after rotation")

	_, err = f.service.RefreshAccessToken(context.Background(), tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshTokenRevoked)
}

func TestRefreshAccessToken_UnknownToken(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.RefreshAccessToken(context.Background(), "never-issued")

	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRevokeAllSessions(t *testing.T) {
	f := newFixture(t)
	account, first, err := f.service.SignUp(context.Background(), validSignUp())
	require.NoError(t, err)
	_, second, err := f.service.SignIn(context.Background(), "cook@example.com", "hunter22")
	require.NoError(t, err)

	require.NoError(t, f.service.RevokeAllSessions(context.Background(), account.ID))

	assert.True(t, f.tokens.revoked[first.RefreshToken])
	assert.True(t, f.tokens.revoked[second.RefreshToken])
}
