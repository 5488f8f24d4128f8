package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/tendant/simple-idm-otp/internal/httputil"
	"github.com/tendant/simple-idm-otp/pkg/domain"
)

type contextKey string

const (
	// UserKey is the context key for the authenticated user.
	UserKey contextKey = "user"
	// ClaimsKey is the context key for the token claims.
	ClaimsKey contextKey = "claims"
)

// Authenticator resolves a bearer token to an active user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.User, *domain.TokenClaims, error)
}

// Authorizer answers permission checks for a user.
type Authorizer interface {
	HasPermission(ctx context.Context, userID uuid.UUID, permission string) (bool, error)
}

// Authenticate creates middleware that requires a valid bearer token
// belonging to an active user.
func Authenticate(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := httputil.BearerToken(r)
			if !ok {
				httputil.Error(w, http.StatusUnauthorized, "access denied. no token provided")
				return
			}

			user, claims, err := authn.Authenticate(r.Context(), token)
			if err != nil {
				httputil.Error(w, http.StatusUnauthorized, "invalid token or user not found")
				return
			}

			ctx := context.WithValue(r.Context(), UserKey, user)
			ctx = context.WithValue(ctx, ClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Authorize creates middleware that requires the authenticated user to hold
// permission. It must run after Authenticate.
func Authorize(authz Authorizer, permission string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := GetUser(r.Context())
			if !ok {
				httputil.Error(w, http.StatusUnauthorized, "access denied. no token provided")
				return
			}

			allowed, err := authz.HasPermission(r.Context(), user.ID, permission)
			if err != nil {
				httputil.WriteError(w, logger, domain.Dependency("permission check", err))
				return
			}
			if !allowed {
				httputil.WriteError(w, logger, domain.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetUser extracts the authenticated user from the request context.
func GetUser(ctx context.Context) (*domain.User, bool) {
	user, ok := ctx.Value(UserKey).(*domain.User)
	return user, ok
}

// GetClaims extracts the token claims from the request context.
func GetClaims(ctx context.Context) (*domain.TokenClaims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*domain.TokenClaims)
	return claims, ok
}
