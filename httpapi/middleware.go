package httpapi

import (
	"context"
	"net/http"
	"strings"

	"chat-relay/contract"
	"chat-relay/errors"
)

type contextKey int

const userIDKey contextKey = iota

// Auth resolves the Bearer token through the identity collaborator and
// stores the authenticated user ID in the request context. The same
// verifier backs the websocket handshake, so both channels agree on who
// a token belongs to.
func Auth(verifier contract.TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			userID, err := verifier.Verify(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext returns the authenticated user set by Auth.
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDKey).(string)
	if !ok || userID == "" {
		return "", errors.ErrInvalidToken
	}
	return userID, nil
}
