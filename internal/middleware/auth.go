package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bvabank/backend/internal/access"
	"github.com/bvabank/backend/internal/logger"
	"github.com/bvabank/backend/internal/models"
	"github.com/bvabank/backend/internal/services"
)

// TokenParser verifies a bearer token, including revocation.
type TokenParser interface {
	Parse(ctx context.Context, token string) (access.Principal, *access.Claims, error)
}

type claimsKey struct{}

// ClaimsFromContext returns the verified token claims, if any.
func ClaimsFromContext(ctx context.Context) (*access.Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*access.Claims)
	return claims, ok
}

// Authenticate resolves the Authorization header into a principal. Requests without the header
// continue as anonymous; a present but malformed, invalid or revoked token is rejected with 401.
// When revocation cannot be checked the request fails with 500.
func Authenticate(tokens TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
				services.WriteError(w, fmt.Errorf("%w: invalid authorization header format", models.ErrUnauthorized), false)
				return
			}

			principal, claims, err := tokens.Parse(r.Context(), parts[1])
			if errors.Is(err, models.ErrStore) {
				services.WriteError(w, err, false)
				return
			}
			if err != nil {
				logger.Info("AUTH", "token rejected", logger.Fields{"path": r.URL.Path, "reason": err.Error()})
				services.WriteError(w, fmt.Errorf("%w: invalid or expired token", models.ErrUnauthorized), false)
				return
			}

			ctx := access.WithPrincipal(r.Context(), principal)
			ctx = context.WithValue(ctx, claimsKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Require admits only principals holding the capability.
func Require(c access.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := access.Authorize(access.FromContext(r.Context()), c); err != nil {
				services.WriteError(w, err, false)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeaders sets response headers common to every API response.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
