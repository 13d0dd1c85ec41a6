package auth

import "context"

type userIDKey struct{}

// ContextWithUserID attaches the authenticated user id to the context.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFromContext returns the authenticated user id, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey{}).(string)

	return id, ok && id != ""
}

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "session"
