package httputil

// Machine-readable error codes returned alongside user-facing messages.
// Clients should branch on these, never on the message text.
const (
	CodeInvalidRequestBody = "INVALID_REQUEST_BODY"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeTooManyRequests    = "TOO_MANY_REQUESTS"

	// Sign-up / sign-in
	CodeEmailRequired      = "EMAIL_REQUIRED"
	CodeInvalidEmailFormat = "INVALID_EMAIL_FORMAT"
	CodeEmailAlreadyInUse  = "EMAIL_ALREADY_IN_USE"
	CodePasswordRequired   = "PASSWORD_REQUIRED"
	CodeWeakPassword       = "WEAK_PASSWORD"
	CodePasswordMismatch   = "PASSWORD_MISMATCH"
	CodeUserNotFound       = "USER_NOT_FOUND"
	CodeWrongPassword      = "WRONG_PASSWORD"

	// Profile fields
	CodeFirstNameRequired = "FIRST_NAME_REQUIRED"
	CodeLastNameRequired  = "LAST_NAME_REQUIRED"
	CodeUsernameRequired  = "USERNAME_REQUIRED"
	CodeInvalidUsername   = "INVALID_USERNAME"
	CodeUsernameTaken     = "USERNAME_TAKEN"
	CodeProfileNotFound   = "PROFILE_NOT_FOUND"

	// Tokens / sessions
	CodeMissingAuth          = "MISSING_AUTH"
	CodeInvalidAuthHeader    = "INVALID_AUTH_HEADER"
	CodeInvalidToken         = "INVALID_TOKEN"
	CodeTokenExpired         = "TOKEN_EXPIRED"
	CodeInvalidTokenUserID   = "INVALID_TOKEN_USER_ID"
	CodeRefreshTokenRequired = "REFRESH_TOKEN_REQUIRED"
	CodeInvalidRefreshToken  = "INVALID_REFRESH_TOKEN"

	// Recipe sharing
	CodeRecipeNotFound = "RECIPE_NOT_FOUND"
	CodeNotRecipeOwner = "NOT_RECIPE_OWNER"
)
