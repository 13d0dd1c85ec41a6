package middleware

import (
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/shortlinks/internal/ratelimit"
	"go.uber.org/zap"
)

// RateLimit returns a Huma middleware that applies the per-client limits declared in each
// operation's ratelimit.EndpointConfig metadata. Operations without limits pass through.
//
// The key combines the client, the operation's route template (e.g. "/{code}") and the
// window, so all requests matching one route share counters per client.
// Store failures are logged and the request is let through.
func RateLimit(api huma.API, store ratelimit.Store, logger *zap.Logger) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		cfg := ratelimit.GetEndpointConfig(ctx)
		if cfg == nil || cfg.Disabled || len(cfg.Limits) == 0 {
			next(ctx)

			return
		}

		path := ctx.Operation().Path
		client := clientKey(ctx)

		for _, limit := range cfg.Limits {
			key := ratelimit.HTTPKey(client, path, limit.Window)

			count, err := store.Record(ctx.Context(), key, limit.Max, limit.Window)
			if err != nil {
				logger.Warn("rate limit check failed, allowing request",
					zap.String("path", path),
					zap.Error(err),
				)

				break
			}

			if count > limit.Max {
				logger.Warn("rate limit exceeded",
					zap.String("path", path),
					zap.String("method", ctx.Method()),
					zap.Int64("count", count),
					zap.Int64("max", limit.Max),
					zap.Duration("window", limit.Window),
					zap.String("client_ip", ClientIP(ctx)),
				)

				msg := fmt.Sprintf("rate limit exceeded: %d/%d requests in %s", count, limit.Max, limit.Window)
				_ = huma.WriteErr(api, ctx, http.StatusTooManyRequests, msg)

				return
			}
		}

		next(ctx)
	}
}
