package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/mailgrove/mailgrove/internal/directory"
	"github.com/mailgrove/mailgrove/internal/models"
)

// IdentityHeader carries the caller's address. The simulation trusts the
// header once the address resolves to a verified identity; credential
// mechanics live outside this system.
const IdentityHeader = "X-Mailgrove-User"

// contextKey is an unexported type used for context keys in this package.
type contextKey string

// UserContextKey is the context key used to store the resolved identity.
const UserContextKey contextKey = "user"

// RequireIdentity returns middleware that resolves the identity header
// against the directory and stores the verified user in the request context.
// Requests without a resolvable verified address get a 401.
func RequireIdentity(dir *directory.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			email := r.Header.Get(IdentityHeader)
			if email == "" {
				unauthorized(w)
				return
			}

			user, err := dir.FindVerifiedByEmail(r.Context(), email)
			if err != nil {
				unauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext extracts the resolved identity from the context.
// Returns nil if no user is present.
func UserFromContext(ctx context.Context) *models.User {
	user, _ := ctx.Value(UserContextKey).(*models.User)
	return user
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "unknown or unverified user"})
}
