package handlers

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/shortlinks/internal/auth"
)

// Error messages returned to clients.
const (
	msgInvalidInput       = "Invalid input"
	msgUnauthorized       = "Unauthorized"
	msgUserExists         = "User already exists"
	msgInvalidCredentials = "Invalid credentials"
	msgRateLimited        = "Rate limit exceeded. Please try again later."
	msgLimiterUnavailable = "Service temporarily unavailable"
	msgNotFoundOrUnauth   = "Not found or unauthorized"
	msgMissingURL         = "Missing url"
	msgInternal           = "Internal server error"
)

// ErrorBody is the error model rendered for every failed request: {"error": "..."}.
type ErrorBody struct {
	Status  int    `json:"-"`
	Message string `doc:"Short description of the failure" json:"error"`
}

func (e *ErrorBody) Error() string {
	return e.Message
}

func (e *ErrorBody) GetStatus() int {
	return e.Status
}

// UseErrorModel replaces huma's problem+json errors with ErrorBody.
// Request validation failures are reported as 400 Invalid input.
func UseErrorModel() {
	huma.NewError = func(status int, msg string, _ ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity {
			return &ErrorBody{Status: http.StatusBadRequest, Message: msgInvalidInput}
		}

		return &ErrorBody{Status: status, Message: msg}
	}
}

// currentUser returns the authenticated user id placed in the context by the session middleware.
func currentUser(ctx context.Context) (string, error) {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return "", huma.Error401Unauthorized(msgUnauthorized)
	}

	return userID, nil
}
