package handlers

import (
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/shortlinks/internal/ratelimit"
)

// RegisterRoutes registers all shortener routes with per-endpoint rate limit configuration.
func RegisterRoutes(
	api huma.API,
	authHandler *AuthHandler,
	linkHandler *LinkHandler,
	publicHandler *PublicHandler,
	redirectHandler *RedirectHandler,
) {
	registerAuthRoutes(api, authHandler)
	registerLinkRoutes(api, linkHandler)

	huma.Register(api, huma.Operation{
		OperationID: "qr-code",
		Method:      http.MethodGet,
		Path:        "/api/qr",
		Summary:     "Render QR code",
		Description: "Encodes the url query parameter as a PNG QR code data URI.",
		Tags:        []string{"Links"},
	}, publicHandler.QRCode)

	huma.Register(api, huma.Operation{
		OperationID: "stats",
		Method:      http.MethodGet,
		Path:        "/api/stats",
		Summary:     "Global statistics",
		Tags:        []string{"Links"},
	}, publicHandler.Stats)

	// GET /{code} - Redirect to original URL
	// Uses relaxed rate limits for high-traffic read operations
	huma.Register(api, huma.Operation{
		OperationID: "redirect",
		Method:      http.MethodGet,
		Path:        "/{code}",
		Summary:     "Redirect to original URL",
		Description: "Redirects to the original URL associated with the short code.",
		Tags:        []string{"Links"},
		Metadata: map[string]any{
			ratelimit.MetadataKey: ratelimit.EndpointConfig{
				Limits: []ratelimit.LimitConfig{
					{Window: time.Minute, Max: 1000},
				},
			},
		},
	}, redirectHandler.Redirect)
}

func registerAuthRoutes(api huma.API, h *AuthHandler) {
	// Credential endpoints are limited per client to slow down guessing.
	huma.Register(api, huma.Operation{
		OperationID: "register",
		Method:      http.MethodPost,
		Path:        "/api/register",
		Summary:     "Register an account",
		Tags:        []string{"Auth"},
		Metadata: map[string]any{
			ratelimit.MetadataKey: ratelimit.EndpointConfig{
				Limits: []ratelimit.LimitConfig{{Window: time.Minute, Max: 10}},
			},
		},
	}, h.Register)

	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/api/login",
		Summary:     "Log in",
		Description: "Verifies credentials and returns a session token, also set as the session cookie.",
		Tags:        []string{"Auth"},
		Metadata: map[string]any{
			ratelimit.MetadataKey: ratelimit.EndpointConfig{
				Limits: []ratelimit.LimitConfig{{Window: time.Minute, Max: 20}},
			},
		},
	}, h.Login)

	huma.Register(api, huma.Operation{
		OperationID: "logout",
		Method:      http.MethodPost,
		Path:        "/api/logout",
		Summary:     "Log out",
		Tags:        []string{"Auth"},
	}, h.Logout)
}

func registerLinkRoutes(api huma.API, h *LinkHandler) {
	// Creation is limited per user inside the link service.
	huma.Register(api, huma.Operation{
		OperationID: "create-link",
		Method:      http.MethodPost,
		Path:        "/api/link",
		Summary:     "Create short link",
		Tags:        []string{"Links"},
	}, h.CreateLink)

	huma.Register(api, huma.Operation{
		OperationID: "list-links",
		Method:      http.MethodGet,
		Path:        "/api/link",
		Summary:     "List my links",
		Description: "Lists the caller's links, newest first, with their expiration status.",
		Tags:        []string{"Links"},
	}, h.ListLinks)

	huma.Register(api, huma.Operation{
		OperationID: "delete-link",
		Method:      http.MethodDelete,
		Path:        "/api/link",
		Summary:     "Delete one of my links",
		Tags:        []string{"Links"},
	}, h.DeleteLink)
}
