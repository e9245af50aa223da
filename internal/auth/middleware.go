package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"noticeboard-backend/internal/respond"
)

type contextKey string

const userIDKey contextKey = "noticeboard_user_id"

const (
	msgMissingToken = "Log in first"
	msgInvalidToken = "Login first"
)

// Middleware rejects requests without a valid bearer token and stores the
// token's user id in the request context.
func Middleware(issuer *Issuer, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r.Header.Get("Authorization"))
			if token == "" {
				respond.Error(w, http.StatusUnauthorized, msgMissingToken)
				return
			}

			claims, err := issuer.ParseToken(token)
			if err != nil {
				log.Debug("token rejected", slog.String("path", r.URL.Path), slog.Any("error", err))
				respond.Error(w, http.StatusUnauthorized, msgInvalidToken)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), claims.UserID)))
		})
	}
}

// bearerToken takes the second space-separated part of the header, as
// clients commonly send "Bearer <token>".
func bearerToken(header string) string {
	parts := strings.Fields(header)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	value := ctx.Value(userIDKey)
	userID, ok := value.(string)
	return userID, ok && userID != ""
}
