package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tastebook/tastebook-api/internal/httputil"
	"github.com/tastebook/tastebook-api/internal/logging"
	"github.com/tastebook/tastebook-api/internal/profile"
	"github.com/tastebook/tastebook-api/internal/ratelimit"
	"github.com/tastebook/tastebook-api/internal/user"
)

// Handler contains HTTP handlers for the sign-up/sign-in surface.
type Handler struct {
	service         *Service
	rateLimiter     *ratelimit.Limiter
	monitor         SessionMonitor
	logger          *logging.Logger
	isProduction    bool
	accessDuration  time.Duration
	refreshDuration time.Duration
}

func NewHandler(service *Service, rateLimiter *ratelimit.Limiter, monitor SessionMonitor, logger *logging.Logger, isProduction bool, accessDuration, refreshDuration time.Duration) *Handler {
	return &Handler{
		service:         service,
		rateLimiter:     rateLimiter,
		monitor:         monitor,
		logger:          logger,
		isProduction:    isProduction,
		accessDuration:  accessDuration,
		refreshDuration: refreshDuration,
	}
}

// SignUpRequest represents the signup form
type SignUpRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Username        string `json:"username"`
}

// SignInRequest represents the sign-in form
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest represents the token refresh request body
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// UserResponse represents a principal in API responses
type UserResponse struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

// AuthResponse is returned on successful sign-up or sign-in
type AuthResponse struct {
	User   UserResponse `json:"user"`
	Tokens *AuthTokens  `json:"tokens,omitempty"`
}

// SignUp handles account creation
// @Summary      Sign up
// @Description  Create a new account with profile details and sign the user in.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body SignUpRequest true "Signup form"
// @Success      201 {object} AuthResponse
// @Failure      400 {object} httputil.ErrorResponse "Validation error"
// @Failure      409 {object} httputil.ErrorResponse "Email or username already taken"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Router       /auth/signup [post]
func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	ip := getClientIP(r)
	exceeded, err := h.rateLimiter.CheckIPRateLimitWithPurpose(r.Context(), ip, "signup")
	if err != nil {
		logger.Error("failed to check IP rate limit", "error", err.Error())
	} else if exceeded {
		logger.Warn("IP rate limit exceeded for signup", "ip", ip)
		respondError(w, "too many requests, please try again later", httputil.CodeTooManyRequests, http.StatusTooManyRequests)
		return
	}

	var req SignUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid signup request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})

	if err := h.rateLimiter.RecordIPRequestWithPurpose(r.Context(), ip, "signup"); err != nil {
		logger.Error("failed to record IP request", "error", err.Error())
	}

	account, tokens, err := h.service.SignUp(r.Context(), SignUpInput{
		Email:           req.Email,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Username:        req.Username,
	})
	if err != nil {
		h.respondSignUpError(w, logger, err)
		return
	}

	logger.Info("account created", "user_id", account.ID)
	h.monitor.Touch(account.ID.String())

	h.respondWithTokens(w, r, account, tokens, http.StatusCreated)
}

// SignIn handles authentication
// @Summary      Sign in
// @Description  Authenticate with email and password, receive access and refresh tokens.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body SignInRequest true "Credentials"
// @Success      200 {object} AuthResponse
// @Failure      400 {object} httputil.ErrorResponse "Validation error"
// @Failure      401 {object} httputil.ErrorResponse "Unknown email or wrong password"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Router       /auth/signin [post]
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	ip := getClientIP(r)
	exceeded, err := h.rateLimiter.CheckIPRateLimitWithPurpose(r.Context(), ip, "signin")
	if err != nil {
		logger.Error("failed to check IP rate limit", "error", err.Error())
	} else if exceeded {
		logger.Warn("IP rate limit exceeded for signin", "ip", ip)
		respondError(w, "too many requests, please try again later", httputil.CodeTooManyRequests, http.StatusTooManyRequests)
		return
	}

	var req SignInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid signin request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})

	if err := h.rateLimiter.RecordIPRequestWithPurpose(r.Context(), ip, "signin"); err != nil {
		logger.Error("failed to record IP request", "error", err.Error())
	}

	account, tokens, err := h.service.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondSignInError(w, logger, err)
		return
	}

	logger.Info("user signed in", "user_id", account.ID)
	h.monitor.Touch(account.ID.String())

	h.respondWithTokens(w, r, account, tokens, http.StatusOK)
}

// SignOut handles sign-out
// @Summary      Sign out
// @Description  Revoke the refresh token and clear auth cookies.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body RefreshRequest false "Optional refresh token"
// @Success      200 {object} map[string]string
// @Router       /auth/signout [post]
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var refreshToken string
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
		refreshToken = req.RefreshToken
	}
	if refreshToken == "" {
		cookieToken, _ := GetRefreshTokenFromCookie(r)
		refreshToken = cookieToken
	}

	if refreshToken != "" {
		userID, err := h.service.SignOut(r.Context(), refreshToken)
		if err != nil {
			logger.Warn("failed to revoke refresh token", "error", err.Error())
			// Continue - still clear cookies
		}
		if userID != uuid.Nil {
			h.monitor.End(userID.String())
		}
	}

	ClearAuthCookies(w)

	logger.Info("user signed out")

	respondJSON(w, map[string]string{"message": "signed out"}, http.StatusOK)
}

// Refresh handles access token refresh
// @Summary      Refresh access token
// @Description  Use a refresh token to get a new token pair
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body RefreshRequest true "Refresh token"
// @Success      200 {object} AuthTokens
// @Failure      400 {object} httputil.ErrorResponse "Missing refresh token"
// @Failure      401 {object} httputil.ErrorResponse "Invalid or expired refresh token"
// @Router       /auth/refresh [post]
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var refreshToken string
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
		refreshToken = req.RefreshToken
	}
	if refreshToken == "" {
		cookieToken, err := GetRefreshTokenFromCookie(r)
		if err == nil {
			refreshToken = cookieToken
		}
	}

	if refreshToken == "" {
		logger.Warn("refresh token missing from both body and cookie")
		respondError(w, "refresh token required", httputil.CodeRefreshTokenRequired, http.StatusBadRequest)
		return
	}

	refreshToken = strings.TrimSpace(refreshToken)

	tokens, err := h.service.RefreshAccessToken(r.Context(), refreshToken)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrRefreshTokenRevoked) || errors.Is(err, ErrRefreshTokenExpired) {
			logger.Warn("token refresh failed: invalid or expired token", "error", err.Error())
			respondError(w, "invalid or expired refresh token", httputil.CodeInvalidRefreshToken, http.StatusUnauthorized)
			return
		}
		logger.Error("token refresh failed: internal error", "error", err.Error())
		respondError(w, "failed to refresh token", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("access token refreshed")

	if ShouldUseCookies(r) {
		SetAuthCookies(w, tokens.AccessToken, tokens.RefreshToken, h.isProduction, h.accessDuration, h.refreshDuration)
		respondJSON(w, map[string]string{"message": "token refreshed"}, http.StatusOK)
	} else {
		respondJSON(w, tokens, http.StatusOK)
	}
}

// respondSignUpError maps signup failures to user-facing messages and codes.
func (h *Handler) respondSignUpError(w http.ResponseWriter, logger *logging.Logger, err error) {
	switch {
	case errors.Is(err, user.ErrDuplicateEmail):
		logger.Warn("signup failed: email already in use")
		respondError(w, "email already in use", httputil.CodeEmailAlreadyInUse, http.StatusConflict)
	case errors.Is(err, profile.ErrUsernameTaken):
		logger.Warn("signup failed: username already taken")
		respondError(w, "username already taken", httputil.CodeUsernameTaken, http.StatusConflict)
	case errors.Is(err, ErrEmailRequired):
		respondError(w, err.Error(), httputil.CodeEmailRequired, http.StatusBadRequest)
	case errors.Is(err, ErrInvalidEmailFormat):
		respondError(w, err.Error(), httputil.CodeInvalidEmailFormat, http.StatusBadRequest)
	case errors.Is(err, ErrPasswordRequired):
		respondError(w, err.Error(), httputil.CodePasswordRequired, http.StatusBadRequest)
	case errors.Is(err, ErrWeakPassword):
		respondError(w, err.Error(), httputil.CodeWeakPassword, http.StatusBadRequest)
	case errors.Is(err, ErrPasswordMismatch):
		respondError(w, err.Error(), httputil.CodePasswordMismatch, http.StatusBadRequest)
	case errors.Is(err, ErrFirstNameRequired):
		respondError(w, err.Error(), httputil.CodeFirstNameRequired, http.StatusBadRequest)
	case errors.Is(err, ErrLastNameRequired):
		respondError(w, err.Error(), httputil.CodeLastNameRequired, http.StatusBadRequest)
	case errors.Is(err, ErrUsernameRequired):
		respondError(w, err.Error(), httputil.CodeUsernameRequired, http.StatusBadRequest)
	case errors.Is(err, profile.ErrInvalidUsername):
		respondError(w, err.Error(), httputil.CodeInvalidUsername, http.StatusBadRequest)
	default:
		logger.Error("signup failed: internal error", "error", err.Error())
		respondError(w, "failed to sign up", httputil.CodeInternalError, http.StatusInternalServerError)
	}
}

// respondSignInError maps sign-in failures to user-facing messages and codes.
func (h *Handler) respondSignInError(w http.ResponseWriter, logger *logging.Logger, err error) {
	switch {
	case errors.Is(err, ErrUserNotFound):
		logger.Warn("signin failed: unknown email")
		respondError(w, err.Error(), httputil.CodeUserNotFound, http.StatusUnauthorized)
	case errors.Is(err, ErrWrongPassword):
		logger.Warn("signin failed: wrong password")
		respondError(w, err.Error(), httputil.CodeWrongPassword, http.StatusUnauthorized)
	case errors.Is(err, ErrEmailRequired):
		respondError(w, err.Error(), httputil.CodeEmailRequired, http.StatusBadRequest)
	case errors.Is(err, ErrInvalidEmailFormat):
		respondError(w, err.Error(), httputil.CodeInvalidEmailFormat, http.StatusBadRequest)
	case errors.Is(err, ErrPasswordRequired):
		respondError(w, err.Error(), httputil.CodePasswordRequired, http.StatusBadRequest)
	default:
		logger.Error("signin failed: internal error", "error", err.Error())
		respondError(w, "failed to sign in", httputil.CodeInternalError, http.StatusInternalServerError)
	}
}

// respondWithTokens writes the auth response, using cookies for browser
// clients and the body for everyone else.
func (h *Handler) respondWithTokens(w http.ResponseWriter, r *http.Request, account *user.Account, tokens *AuthTokens, status int) {
	userResponse := UserResponse{ID: account.ID, Email: account.Email}

	if ShouldUseCookies(r) {
		SetAuthCookies(w, tokens.AccessToken, tokens.RefreshToken, h.isProduction, h.accessDuration, h.refreshDuration)
		respondJSON(w, AuthResponse{User: userResponse}, status)
		return
	}
	respondJSON(w, AuthResponse{User: userResponse, Tokens: tokens}, status)
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, data any, statusCode int) {
	httputil.RespondJSON(w, data, statusCode)
}

// respondError sends an error response with a machine-readable code
func respondError(w http.ResponseWriter, message string, code string, statusCode int) {
	httputil.RespondErrorWithCode(w, message, code, statusCode)
}

// getClientIP extracts the client IP address from the request
func getClientIP(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		// X-Forwarded-For can contain multiple IPs, take the first one
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	xri := r.Header.Get("X-Real-IP")
	if xri != "" {
		return strings.TrimSpace(xri)
	}

	ip := r.RemoteAddr
	// RemoteAddr format is "IP:port", keep just the IP
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}
