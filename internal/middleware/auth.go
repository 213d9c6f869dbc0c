package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

const unauthorizedBody = `{"success":false,"error":"Unauthorized","message":"a valid Bearer token is required"}`

// Authenticated reports whether r carries the Bearer token.
func Authenticated(token string, r *http.Request) bool {
	authHeader := r.Header.Get("Authorization")
	if token == "" || !strings.HasPrefix(authHeader, "Bearer ") {
		return false
	}
	got := strings.TrimPrefix(authHeader, "Bearer ")
	return subtle.ConstantTimeCompare([]byte(got), []byte(token)) == 1
}

// Auth returns a handler that requires a valid Bearer token before
// delegating to next. Responds with 401 if the header is missing or wrong.
func Auth(token string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !Authenticated(token, r) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(unauthorizedBody))
			return
		}
		next.ServeHTTP(w, r)
	})
}
