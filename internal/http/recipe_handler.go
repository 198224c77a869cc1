package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tastebook/tastebook-api/internal/httputil"
	"github.com/tastebook/tastebook-api/internal/logging"
	"github.com/tastebook/tastebook-api/internal/recipe"
)

// RecipeHandler serves the sharing-list editor.
type RecipeHandler struct {
	service *recipe.Service
}

func NewRecipeHandler(service *recipe.Service) *RecipeHandler {
	return &RecipeHandler{service: service}
}

// UpdateSharingRequest carries the full replacement sharing list.
type UpdateSharingRequest struct {
	SharedWith []string `json:"shared_with"`
}

// SharingResponse is the recipe's sharing state as seen by its owner.
type SharingResponse struct {
	RecipeID   string   `json:"recipe_id"`
	Name       string   `json:"name"`
	SharedWith []string `json:"shared_with"`
	Visibility string   `json:"visibility"`
	SharedAt   *string  `json:"shared_at,omitempty"`
}

// GetSharing returns a recipe's sharing state
// @Summary      Get a recipe's sharing list
// @Tags         recipes
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Recipe ID"
// @Success      200 {object} SharingResponse
// @Failure      403 {object} httputil.ErrorResponse "Not the owner"
// @Failure      404 {object} httputil.ErrorResponse "Recipe not found"
// @Router       /recipes/{id}/sharing [get]
func (h *RecipeHandler) GetSharing(w http.ResponseWriter, r *http.Request) {
	uid, _, ok := principal(r)
	if !ok {
		httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	rec, err := h.service.GetSharing(r.Context(), uid, chi.URLParam(r, "id"))
	if err != nil {
		h.respondSharingError(w, r, err)
		return
	}

	httputil.RespondJSON(w, toSharingResponse(rec), http.StatusOK)
}

// UpdateSharing replaces a recipe's sharing list
// @Summary      Replace a recipe's sharing list
// @Description  The submitted list replaces the stored one wholesale. Visibility follows from the list: non-empty means shared, empty means private.
// @Tags         recipes
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Recipe ID"
// @Param        request body UpdateSharingRequest true "Replacement sharing list"
// @Success      200 {object} SharingResponse
// @Failure      403 {object} httputil.ErrorResponse "Not the owner"
// @Failure      404 {object} httputil.ErrorResponse "Recipe not found"
// @Router       /recipes/{id}/sharing [put]
func (h *RecipeHandler) UpdateSharing(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	uid, _, ok := principal(r)
	if !ok {
		httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	var req UpdateSharingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid sharing update body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	recipeID := chi.URLParam(r, "id")
	rec, err := h.service.SetSharedWith(r.Context(), uid, recipeID, req.SharedWith)
	if err != nil {
		h.respondSharingError(w, r, err)
		return
	}

	logger.Info("sharing list updated", "recipe_id", recipeID, "shared_with", len(rec.SharedWith))
	httputil.RespondJSON(w, toSharingResponse(rec), http.StatusOK)
}

func (h *RecipeHandler) respondSharingError(w http.ResponseWriter, r *http.Request, err error) {
	logger := logging.GetLoggerFromContext(r.Context())

	switch {
	case errors.Is(err, recipe.ErrNotFound):
		httputil.RespondErrorWithCode(w, "recipe not found", httputil.CodeRecipeNotFound, http.StatusNotFound)
	case errors.Is(err, recipe.ErrNotOwner):
		logger.Warn("sharing access denied", "recipe_id", chi.URLParam(r, "id"))
		httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeNotRecipeOwner, http.StatusForbidden)
	default:
		logger.Error("sharing operation failed", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to process sharing request", httputil.CodeInternalError, http.StatusInternalServerError)
	}
}

func toSharingResponse(rec *recipe.Recipe) SharingResponse {
	resp := SharingResponse{
		RecipeID:   rec.ID,
		Name:       rec.Name,
		SharedWith: rec.SharedWith,
		Visibility: string(rec.Visibility),
		SharedAt:   nil,
	}
	if resp.SharedWith == nil {
		resp.SharedWith = []string{}
	}
	if rec.SharedAt != nil {
		s := rec.SharedAt.UTC().Format(time.RFC3339)
		resp.SharedAt = &s
	}
	return resp
}
