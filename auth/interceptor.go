package auth

import (
	"context"
	"interest-chat/domain/chat"
	"interest-chat/errors"
	"net/http"
	"strings"
)

type contextKey string

const (
	UserIDKey contextKey = "user_id"
	RolesKey  contextKey = "roles"
)

// Authenticate resolves the caller identity from the Authorization header.
// A request without a token goes through anonymous, the operations decide whether they need an identity.
// A token that does not validate is rejected with reject.
func Authenticate(issuer *TokenIssuer, reject func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := TokenFromRequest(r)
			if tokenStr == "" {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := issuer.ValidateToken(tokenStr)
			if err != nil {
				reject(w, r, errors.ErrInvalidToken)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), chat.UserID(claims.UserID), claims.Roles)))
		})
	}
}

// TokenFromRequest expects the standard "Bearer <token>" header.
// Browsers cannot set headers on a websocket upgrade, so the token query parameter is accepted too.
func TokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return r.URL.Query().Get("token")
}

func WithIdentity(ctx context.Context, userID chat.UserID, roles []string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	return context.WithValue(ctx, RolesKey, roles)
}

// UserIDFromContext returns the identity attached by Authenticate, if any.
func UserIDFromContext(ctx context.Context) (chat.UserID, bool) {
	userID, ok := ctx.Value(UserIDKey).(chat.UserID)
	return userID, ok && userID != ""
}
