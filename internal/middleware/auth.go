package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// TokenCookie carries the API token for browser sessions.
const TokenCookie = "api_token"

// AuthMiddleware requires the API token on /api/ and /logs/ requests, either
// as "Authorization: Bearer <token>" or in the TokenCookie cookie. An empty
// token disables the check. /metrics and /auth/ stay open.
func AuthMiddleware(token string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token == "" || !protected(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		if !validToken(r, token) {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func protected(path string) bool {
	return strings.HasPrefix(path, "/api/") || strings.HasPrefix(path, "/logs/")
}

func validToken(r *http.Request, token string) bool {
	presented := ""
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		presented = strings.TrimPrefix(auth, "Bearer ")
	} else if cookie, err := r.Cookie(TokenCookie); err == nil {
		presented = cookie.Value
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(token)) == 1
}
