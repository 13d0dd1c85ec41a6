package auth

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by repositories when no user matches.
	ErrNotFound = errors.New("user not found")

	ErrInvalidInput       = errors.New("invalid input")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// User is a registered account. PasswordHash never leaves the service layer.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// PublicUser is the subset of a user that is safe to return to clients.
type PublicUser struct {
	ID    string
	Email string
}

// Repository defines the persistence operations for users.
type Repository interface {
	// Create inserts a new user. Returns ErrUserExists if the email is already registered.
	Create(ctx context.Context, user *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
}
