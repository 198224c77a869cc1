package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tastebook/tastebook-api/internal/auth"
	"github.com/tastebook/tastebook-api/internal/httputil"
	"github.com/tastebook/tastebook-api/internal/logging"
	"github.com/tastebook/tastebook-api/internal/profile"
)

// ProfileHandler serves the manage-account surface.
type ProfileHandler struct {
	service *profile.Service
}

func NewProfileHandler(service *profile.Service) *ProfileHandler {
	return &ProfileHandler{service: service}
}

// UpdateProfileRequest is the profile editor form. Absent (null) fields are
// cleared, not kept: the form always submits the full set.
type UpdateProfileRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Username  *string `json:"username"`
}

// CandidateResponse is one entry in the share-candidate list.
type CandidateResponse struct {
	UID      string `json:"uid"`
	Username string `json:"username,omitempty"`
	FullName string `json:"full_name,omitempty"`
	Email    string `json:"email"`
}

// GetProfile returns the acting principal's profile
// @Summary      Get own profile
// @Tags         profile
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} profile.Profile
// @Failure      401 {object} httputil.ErrorResponse
// @Router       /profile [get]
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	uid, email, ok := principal(r)
	if !ok {
		httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	p, err := h.service.Get(r.Context(), uid, email)
	if err != nil {
		logger.Error("failed to load profile", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to load profile", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	httputil.RespondJSON(w, p, http.StatusOK)
}

// UpdateProfile edits the acting principal's profile
// @Summary      Update own profile
// @Tags         profile
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body UpdateProfileRequest true "Editable fields"
// @Success      200 {object} profile.Profile
// @Failure      400 {object} httputil.ErrorResponse "Invalid username"
// @Failure      409 {object} httputil.ErrorResponse "Username already taken"
// @Router       /profile [put]
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	uid, email, ok := principal(r)
	if !ok {
		httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid profile update body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	p, err := h.service.Update(r.Context(), uid, email, req.FirstName, req.LastName, req.Username)
	if err != nil {
		switch {
		case errors.Is(err, profile.ErrInvalidUsername):
			httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeInvalidUsername, http.StatusBadRequest)
		case errors.Is(err, profile.ErrUsernameTaken):
			logger.Warn("profile update failed: username taken")
			httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeUsernameTaken, http.StatusConflict)
		default:
			logger.Error("failed to update profile", "error", err.Error())
			httputil.RespondErrorWithCode(w, "failed to update profile", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	logger.Info("profile updated", "uid", uid)
	httputil.RespondJSON(w, p, http.StatusOK)
}

// ListCandidates returns the share-candidate list
// @Summary      List principals a recipe can be shared with
// @Description  Every profile except the caller's own, sorted by username (email when unset), optionally filtered by substring.
// @Tags         profile
// @Produce      json
// @Security     BearerAuth
// @Param        q query string false "Substring filter over username and full name"
// @Success      200 {array} CandidateResponse
// @Router       /profiles [get]
func (h *ProfileHandler) ListCandidates(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	uid, _, ok := principal(r)
	if !ok {
		httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	candidates, err := h.service.ShareCandidates(r.Context(), uid, r.URL.Query().Get("q"))
	if err != nil {
		logger.Error("failed to list share candidates", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to list profiles", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	out := make([]CandidateResponse, 0, len(candidates))
	for _, p := range candidates {
		out = append(out, CandidateResponse{
			UID:      p.UID,
			Username: p.NormalizedUsername(),
			FullName: p.FullName(),
			Email:    p.Email,
		})
	}

	httputil.RespondJSON(w, out, http.StatusOK)
}

// principal extracts the acting principal from the request context.
func principal(r *http.Request) (uid, email string, ok bool) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		return "", "", false
	}
	email, _ = auth.GetUserEmailFromContext(r.Context())
	return userID.String(), email, true
}
