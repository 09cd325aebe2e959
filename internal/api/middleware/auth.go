package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/mcoot/racecoord/internal/api/apierr"
)

// AdminTokenHeader carries the operator token on admin requests
const AdminTokenHeader = "X-Admin-Token"

// AdminAuth creates middleware that only lets through requests carrying the
// configured admin token
func AdminAuth(token string) func(http.Handler) http.Handler {
	expected := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := extractToken(r)
			if provided == "" || len(expected) == 0 || subtle.ConstantTimeCompare([]byte(provided), expected) != 1 {
				apierr.WriteError(w, apierr.NewUnauthorizedError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractToken reads the admin token from its header, falling back to a
// bearer Authorization header
func extractToken(r *http.Request) string {
	if token := strings.TrimSpace(r.Header.Get(AdminTokenHeader)); token != "" {
		return token
	}
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}
