package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"food-delivery/internal/http/respond"
	"food-delivery/internal/services/auth"
)

const bearerPrefix = "bearer "

// TokenAuthenticator resolves an access token to a user id.
type TokenAuthenticator interface {
	WhoAmI(ctx context.Context, accessToken string) (int64, error)
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", fmt.Errorf("%w: missing bearer token", auth.ErrInvalidToken)
	}
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", fmt.Errorf("%w: invalid authorization scheme", auth.ErrInvalidToken)
	}

	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", fmt.Errorf("%w: missing bearer token", auth.ErrInvalidToken)
	}

	return token, nil
}

// Authenticate rejects requests without a valid access token and stores the
// caller's user id in the request context.
func Authenticate(log *slog.Logger, authn TokenAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := BearerToken(r)
			if err != nil {
				respond.Error(w, log, err)
				return
			}

			userID, err := authn.WhoAmI(r.Context(), token)
			if err != nil {
				respond.Error(w, log, err)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID returns the id stored by Authenticate.
func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok
}
