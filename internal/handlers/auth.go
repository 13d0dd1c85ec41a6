package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/shortlinks/internal/auth"
	"go.uber.org/zap"
)

// AuthHandler handles registration and session operations.
type AuthHandler struct {
	service      *auth.Service
	tokens       *auth.Tokens
	secureCookie bool
	logger       *zap.Logger
}

// NewAuthHandler creates a new auth handler. secureCookie marks the session cookie HTTPS-only.
func NewAuthHandler(service *auth.Service, tokens *auth.Tokens, secureCookie bool, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		service:      service,
		tokens:       tokens,
		secureCookie: secureCookie,
		logger:       logger,
	}
}

func (h *AuthHandler) Register(ctx context.Context, req *CredentialsRequest) (*SuccessResponse, error) {
	err := h.service.Register(ctx, req.Body.Email, req.Body.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidInput):
			return nil, huma.Error400BadRequest(msgInvalidInput)
		case errors.Is(err, auth.ErrUserExists):
			return nil, huma.Error400BadRequest(msgUserExists)
		default:
			h.logger.Error("register failed", zap.Error(err))

			return nil, huma.Error500InternalServerError(msgInternal)
		}
	}

	resp := &SuccessResponse{}
	resp.Body.Success = true

	return resp, nil
}

func (h *AuthHandler) Login(ctx context.Context, req *CredentialsRequest) (*LoginResponse, error) {
	user, err := h.service.Login(ctx, req.Body.Email, req.Body.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return nil, huma.Error401Unauthorized(msgInvalidCredentials)
		}

		h.logger.Error("login failed", zap.Error(err))

		return nil, huma.Error500InternalServerError(msgInternal)
	}

	token, expiresAt, err := h.tokens.Issue(user)
	if err != nil {
		h.logger.Error("issue session token failed", zap.Error(err))

		return nil, huma.Error500InternalServerError(msgInternal)
	}

	resp := &LoginResponse{}
	resp.SetCookie = h.sessionCookie(token, expiresAt)
	resp.Body.Success = true
	resp.Body.User = UserBody{ID: user.ID, Email: user.Email}
	resp.Body.Token = token

	return resp, nil
}

func (h *AuthHandler) Logout(_ context.Context, _ *struct{}) (*LogoutResponse, error) {
	resp := &LogoutResponse{}
	resp.SetCookie = h.sessionCookie("", time.Unix(0, 0))
	resp.SetCookie.MaxAge = -1
	resp.Body.Success = true

	return resp, nil
}

func (h *AuthHandler) sessionCookie(value string, expires time.Time) http.Cookie {
	return http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	}
}
