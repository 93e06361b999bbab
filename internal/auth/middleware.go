package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type contextKey string

const (
	userIDKey contextKey = "auth.userID"
	tokenKey  contextKey = "auth.token"
)

// UserID returns the authenticated user's ID from the request context.
func UserID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDKey).(uuid.UUID)
	return id, ok
}

// BearerToken returns the raw access token from the request context.
func BearerToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenKey).(string)
	return token, ok
}

// Middleware validates Bearer access tokens and rejects revoked ones. On
// success the user ID and the raw token land in the request context.
func Middleware(issuer *TokenIssuer, blacklist Blacklist) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, ok := bearerToken(r)
			if !ok {
				unauthorized(w, "missing bearer token")
				return
			}

			userID, _, err := issuer.Verify(tokenStr, TokenTypeAccess)
			if err != nil {
				log.Debug().Err(err).Msg("Token verification failed")
				unauthorized(w, "invalid token")
				return
			}

			revoked, err := blacklist.IsRevoked(r.Context(), tokenStr)
			if err != nil {
				log.Error().Err(err).Msg("Blacklist check failed")
				http.Error(w, `{"detail":"authorization unavailable"}`, http.StatusServiceUnavailable)
				return
			}
			if revoked {
				unauthorized(w, "token revoked")
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			ctx = context.WithValue(ctx, tokenKey, tokenStr)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return header[len(prefix):], true
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"detail":"` + msg + `"}`)) //nolint:errcheck
}
