package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/shortlinks/internal/shortener"
	"go.uber.org/zap"
)

var notFoundPage = []byte(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Link not found</title></head>
<body>
<h1>Link not found</h1>
<p>The short link you followed does not exist.</p>
</body>
</html>
`)

// RedirectHandler follows short links.
type RedirectHandler struct {
	resolver *shortener.Resolver
	logger   *zap.Logger
}

// NewRedirectHandler creates a new redirect handler.
func NewRedirectHandler(resolver *shortener.Resolver, logger *zap.Logger) *RedirectHandler {
	return &RedirectHandler{resolver: resolver, logger: logger}
}

// Redirect answers 302 for active codes and an HTML page with 404 for unknown or expired ones.
func (h *RedirectHandler) Redirect(ctx context.Context, req *RedirectRequest) (*RedirectResponse, error) {
	meta := RequestMetaFromContext(ctx)

	target, err := h.resolver.Resolve(ctx, shortener.Code(req.Code), shortener.Visit{
		ClientIP:  meta.ClientIP,
		UserAgent: meta.UserAgent,
		Referrer:  meta.Referrer,
	})
	if err != nil {
		if errors.Is(err, shortener.ErrNotFound) {
			resp := &RedirectResponse{Status: http.StatusNotFound, Body: notFoundPage}
			resp.Headers.ContentType = "text/html; charset=utf-8"

			return resp, nil
		}

		h.logger.Error("resolve short code failed", zap.String("code", req.Code), zap.Error(err))

		return nil, huma.Error500InternalServerError(msgInternal)
	}

	resp := &RedirectResponse{Status: http.StatusFound}
	resp.Headers.Location = target

	return resp, nil
}
