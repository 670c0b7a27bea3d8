package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/longregen/memoir/internal/platform/logger"
	"github.com/longregen/memoir/internal/ports"
)

type contextKey string

const (
	UserIDContextKey    contextKey = "user_id"
	RequestIDContextKey contextKey = "request_id"
)

// Auth rejects requests without a verifiable bearer token before any handler runs.
// The verified user ID is stored in the request context.
func Auth(verifier ports.TokenVerifier, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			userID, err := verifier.Verify(r.Context(), token)
			if err != nil {
				log.Debug("token rejected", "path", r.URL.Path, "error", err.Error(),
					"request_id", GetRequestID(r.Context()))
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDContextKey, userID)
}

func GetUserID(ctx context.Context) string {
	userID, ok := ctx.Value(UserIDContextKey).(string)
	if !ok {
		return ""
	}
	return userID
}
