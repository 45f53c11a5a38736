package auth

import (
	"fmt"
	"net/http"

	"seller-portal/internal/logger"
	"seller-portal/internal/utils"
)

// Middleware rejects requests without a valid bearer token and stores the
// caller's Identity in the request context.
func Middleware(verifier Verifier, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken, err := ExtractTokenFromRequest(r)
			if err != nil {
				log.LogSecurity("AUTH_MISSING", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
				utils.ErrorMessage(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			id, err := verifier.Verify(r.Context(), rawToken)
			if err != nil {
				log.LogSecurity("AUTH_INVALID", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
				utils.ErrorMessage(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireAdmin must run after Middleware.
func RequireAdmin(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := FromContext(r.Context())
			if !ok || !id.Admin {
				log.LogSecurity("ADMIN_REQUIRED", fmt.Sprintf("user %q denied %s %s", id.UserID, r.Method, r.URL.Path))
				utils.ErrorMessage(w, http.StatusForbidden, "admin access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
