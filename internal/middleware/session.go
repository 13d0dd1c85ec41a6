package middleware

import (
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/shortlinks/internal/auth"
	"go.uber.org/zap"
)

// TokenVerifier resolves a session token to a user id.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// Session resolves the session token from the Authorization bearer header or the
// session cookie and stores the user id in the request context. Requests without a valid
// token continue anonymously; handlers decide whether a user is required.
func Session(_ huma.API, verifier TokenVerifier, logger *zap.Logger) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		token := sessionToken(ctx)
		if token == "" {
			next(ctx)

			return
		}

		userID, err := verifier.Verify(token)
		if err != nil {
			logger.Debug("ignoring invalid session token", zap.Error(err))
			next(ctx)

			return
		}

		next(huma.WithContext(ctx, auth.ContextWithUserID(ctx.Context(), userID)))
	}
}

func sessionToken(ctx huma.Context) string {
	if header := ctx.Header("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}

	// Request.Cookie skips malformed pairs instead of rejecting the whole header.
	req := &http.Request{Header: http.Header{"Cookie": {ctx.Header("Cookie")}}}

	cookie, err := req.Cookie(auth.SessionCookieName)
	if err != nil {
		return ""
	}

	return cookie.Value
}
