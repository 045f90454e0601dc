package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/bandroom/bandroom-api/internal/pkg/jwt"
	"github.com/bandroom/bandroom-api/internal/pkg/response"
)

type contextKey string

const (
	OwnerIDKey  contextKey = "owner_id"
	EntitledKey contextKey = "entitled"
)

// Auth returns middleware that resolves the owner identity from a bearer
// token. Identity management lives outside this service; the token only
// carries the stable owner id and the credit-entitlement capability.
func Auth(jwtService *jwt.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				response.Unauthorized(w, "Missing authorization header")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				response.Unauthorized(w, "Invalid authorization header format")
				return
			}

			claims, err := jwtService.ValidateToken(parts[1])
			if err != nil {
				if err == jwt.ErrExpiredToken {
					response.Unauthorized(w, "Token expired")
				} else {
					response.Unauthorized(w, "Invalid token")
				}
				return
			}

			ctx := context.WithValue(r.Context(), OwnerIDKey, claims.OwnerID)
			ctx = context.WithValue(ctx, EntitledKey, claims.Entitled)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetOwnerID extracts the owner id from context
func GetOwnerID(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(OwnerIDKey).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

// IsEntitled reports whether the owner may fund hours from credit
func IsEntitled(ctx context.Context) bool {
	if entitled, ok := ctx.Value(EntitledKey).(bool); ok {
		return entitled
	}
	return false
}
