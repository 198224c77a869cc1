package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tastebook/tastebook-api/internal/auth"
	"github.com/tastebook/tastebook-api/internal/httputil"
	"github.com/tastebook/tastebook-api/internal/logging"
	"github.com/tastebook/tastebook-api/internal/profile"
	"github.com/tastebook/tastebook-api/internal/recipe"
)

// --- in-memory stores ---

type memProfileStore struct {
	profiles map[string]*profile.Profile
}

func newMemProfileStore() *memProfileStore {
	return &memProfileStore{profiles: make(map[string]*profile.Profile)}
}

func (m *memProfileStore) Get(ctx context.Context, uid string) (*profile.Profile, error) {
	p, ok := m.profiles[uid]
	if !ok {
		return nil, profile.ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (m *memProfileStore) Create(ctx context.Context, p *profile.Profile) error {
	copied := *p
	m.profiles[p.UID] = &copied
	return nil
}

func (m *memProfileStore) Touch(ctx context.Context, uid string) error {
	if p, ok := m.profiles[uid]; ok {
		p.LastActiveAt = time.Now()
	}
	return nil
}

func (m *memProfileStore) UpdateNames(ctx context.Context, uid string, firstName, lastName, username *string) error {
	p, ok := m.profiles[uid]
	if !ok {
		return profile.ErrNotFound
	}
	p.FirstName = firstName
	p.LastName = lastName
	if username != nil {
		normalized := profile.Normalize(*username)
		p.Username = &normalized
	} else {
		p.Username = nil
	}
	return nil
}

func (m *memProfileStore) FindByUsername(ctx context.Context, normalized string) ([]*profile.Profile, error) {
	var matches []*profile.Profile
	for _, p := range m.profiles {
		if p.NormalizedUsername() == normalized {
			matches = append(matches, p)
		}
	}
	return matches, nil
}

func (m *memProfileStore) ListExcept(ctx context.Context, uid string) ([]*profile.Profile, error) {
	var out []*profile.Profile
	for id, p := range m.profiles {
		if id != uid {
			copied := *p
			out = append(out, &copied)
		}
	}
	return out, nil
}

type memRecipeStore struct {
	recipes map[string]*recipe.Recipe
}

func (m *memRecipeStore) Get(ctx context.Context, id string) (*recipe.Recipe, error) {
	rec, ok := m.recipes[id]
	if !ok {
		return nil, recipe.ErrNotFound
	}
	copied := *rec
	return &copied, nil
}

func (m *memRecipeStore) UpdateSharing(ctx context.Context, id string, sharedWith []string, visibility recipe.Visibility, sharedAt *time.Time) error {
	rec, ok := m.recipes[id]
	if !ok {
		return recipe.ErrNotFound
	}
	rec.SharedWith = sharedWith
	rec.Visibility = visibility
	if sharedAt != nil {
		rec.SharedAt = sharedAt
	}
	return nil
}

type noopNotifier struct{}

func (noopNotifier) SendRecipeShared(ctx context.Context, toEmail, recipeName, ownerName string) error {
	return nil
}

// --- fixtures ---

var (
	actorID  = uuid.New()
	otherID  = uuid.New()
	actorUID = actorID.String()
)

// asPrincipal injects the authenticated principal the way RequireAuth does.
func asPrincipal(userID uuid.UUID, email string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), auth.UserIDContextKey, userID)
			ctx = context.WithValue(ctx, auth.UserEmailContextKey, email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func newTestRouter(t *testing.T, userID uuid.UUID, profiles *memProfileStore, recipes *memRecipeStore) *chi.Mux {
	t.Helper()
	logger := logging.NewLogger(true)

	profileService := profile.NewService(profiles, profile.NewChecker(profiles, logger), logger)
	recipeService := recipe.NewService(recipes, profiles, noopNotifier{}, logger)

	profileHandler := NewProfileHandler(profileService)
	recipeHandler := NewRecipeHandler(recipeService)

	r := chi.NewRouter()
	r.Use(asPrincipal(userID, "actor@example.com"))
	r.Get("/profile", profileHandler.GetProfile)
	r.Put("/profile", profileHandler.UpdateProfile)
	r.Get("/profiles", profileHandler.ListCandidates)
	r.Get("/recipes/{id}/sharing", recipeHandler.GetSharing)
	r.Put("/recipes/{id}/sharing", recipeHandler.UpdateSharing)
	return r
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func strp(s string) *string { return &s }

// --- profile handler ---

func TestGetProfile_BackfillsWhenMissing(t *testing.T) {
	profiles := newMemProfileStore()
	router := newTestRouter(t, actorID, profiles, &memRecipeStore{})

	rec := doJSON(t, router, http.MethodGet, "/profile", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var p profile.Profile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, actorUID, p.UID)
	assert.Equal(t, "actor@example.com", p.Email)
	assert.Contains(t, profiles.profiles, actorUID)
}

func TestUpdateProfile_Success(t *testing.T) {
	profiles := newMemProfileStore()
	profiles.profiles[actorUID] = &profile.Profile{UID: actorUID, Email: "actor@example.com"}
	router := newTestRouter(t, actorID, profiles, &memRecipeStore{})

	rec := doJSON(t, router, http.MethodPut, "/profile", UpdateProfileRequest{
		FirstName: strp("Alice"),
		LastName:  strp("Baker"),
		Username:  strp("Alice_B"),
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var p profile.Profile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	require.NotNil(t, p.Username)
	assert.Equal(t, "alice_b", *p.Username)
}

func TestUpdateProfile_TakenUsername(t *testing.T) {
	profiles := newMemProfileStore()
	profiles.profiles[actorUID] = &profile.Profile{UID: actorUID, Email: "actor@example.com"}
	profiles.profiles["rival"] = &profile.Profile{UID: "rival", Email: "rival@example.com", Username: strp("alice_b")}
	router := newTestRouter(t, actorID, profiles, &memRecipeStore{})

	rec := doJSON(t, router, http.MethodPut, "/profile", UpdateProfileRequest{Username: strp("Alice_B")})

	require.Equal(t, http.StatusConflict, rec.Code)
	var resp httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, httputil.CodeUsernameTaken, resp.Code)
}

func TestUpdateProfile_InvalidUsername(t *testing.T) {
	profiles := newMemProfileStore()
	profiles.profiles[actorUID] = &profile.Profile{UID: actorUID, Email: "actor@example.com"}
	router := newTestRouter(t, actorID, profiles, &memRecipeStore{})

	rec := doJSON(t, router, http.MethodPut, "/profile", UpdateProfileRequest{Username: strp("a b")})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, httputil.CodeInvalidUsername, resp.Code)
}

func TestListCandidates_ExcludesSelfAndFilters(t *testing.T) {
	profiles := newMemProfileStore()
	profiles.profiles[actorUID] = &profile.Profile{UID: actorUID, Email: "actor@example.com", Username: strp("actor")}
	profiles.profiles["u1"] = &profile.Profile{UID: "u1", Email: "a@example.com", Username: strp("aaron")}
	profiles.profiles["u2"] = &profile.Profile{UID: "u2", Email: "b@example.com", Username: strp("bertha")}
	router := newTestRouter(t, actorID, profiles, &memRecipeStore{})

	rec := doJSON(t, router, http.MethodGet, "/profiles", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var all []CandidateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	require.Len(t, all, 2)
	assert.Equal(t, "aaron", all[0].Username)
	assert.Equal(t, "bertha", all[1].Username)

	rec = doJSON(t, router, http.MethodGet, "/profiles?q=bert", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var filtered []CandidateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &filtered))
	require.Len(t, filtered, 1)
	assert.Equal(t, "u2", filtered[0].UID)
}

// --- recipe handler ---

func seedRecipe(owner string) *memRecipeStore {
	return &memRecipeStore{recipes: map[string]*recipe.Recipe{
		"r1": {ID: "r1", UserID: owner, Name: "Shakshuka", Visibility: recipe.VisibilityPrivate},
	}}
}

func TestUpdateSharing_ReplacesListWholesale(t *testing.T) {
	profiles := newMemProfileStore()
	profiles.profiles[actorUID] = &profile.Profile{UID: actorUID, Email: "actor@example.com"}
	recipes := seedRecipe(actorUID)
	recipes.recipes["r1"].SharedWith = []string{"old-friend"}
	recipes.recipes["r1"].Visibility = recipe.VisibilityShared
	router := newTestRouter(t, actorID, profiles, recipes)

	rec := doJSON(t, router, http.MethodPut, "/recipes/r1/sharing", UpdateSharingRequest{
		SharedWith: []string{"new-friend"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp SharingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"new-friend"}, resp.SharedWith, "the submitted list wins wholesale")
	assert.Equal(t, "shared", resp.Visibility)
}

func TestUpdateSharing_EmptyListGoesPrivate(t *testing.T) {
	profiles := newMemProfileStore()
	profiles.profiles[actorUID] = &profile.Profile{UID: actorUID, Email: "actor@example.com"}
	recipes := seedRecipe(actorUID)
	router := newTestRouter(t, actorID, profiles, recipes)

	rec := doJSON(t, router, http.MethodPut, "/recipes/r1/sharing", UpdateSharingRequest{SharedWith: []string{}})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp SharingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "private", resp.Visibility)
	assert.Empty(t, resp.SharedWith)
	assert.Nil(t, resp.SharedAt)
}

func TestUpdateSharing_NonOwnerForbidden(t *testing.T) {
	profiles := newMemProfileStore()
	profiles.profiles[actorUID] = &profile.Profile{UID: actorUID, Email: "actor@example.com"}
	recipes := seedRecipe(otherID.String())
	router := newTestRouter(t, actorID, profiles, recipes)

	rec := doJSON(t, router, http.MethodPut, "/recipes/r1/sharing", UpdateSharingRequest{
		SharedWith: []string{actorUID},
	})

	require.Equal(t, http.StatusForbidden, rec.Code)
	var resp httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, httputil.CodeNotRecipeOwner, resp.Code)
	assert.Empty(t, recipes.recipes["r1"].SharedWith, "rejected request must not write")
}

func TestGetSharing_UnknownRecipe(t *testing.T) {
	profiles := newMemProfileStore()
	router := newTestRouter(t, actorID, profiles, &memRecipeStore{recipes: map[string]*recipe.Recipe{}})

	rec := doJSON(t, router, http.MethodGet, "/recipes/missing/sharing", nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
	var resp httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, httputil.CodeRecipeNotFound, resp.Code)
}
