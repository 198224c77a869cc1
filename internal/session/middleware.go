package session

import (
	"net/http"

	"github.com/tastebook/tastebook-api/internal/auth"
)

// Activity resets the acting principal's idle countdown on every
// authenticated request. Must be mounted after auth.Middleware.RequireAuth
// so the principal is present in the context.
func Activity(monitor *Monitor) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userID, ok := auth.GetUserIDFromContext(r.Context()); ok {
				monitor.Touch(userID.String())
			}
			next.ServeHTTP(w, r)
		})
	}
}
