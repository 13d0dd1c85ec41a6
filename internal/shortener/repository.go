package shortener

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by repositories when no link matches, and by the resolver
	// when a code is unknown or expired.
	ErrNotFound = errors.New("link not found")

	// ErrCodeConflict is returned by Save when the short code is already taken.
	ErrCodeConflict = errors.New("short code already exists")
)

// Repository defines the persistence operations for links.
type Repository interface {
	// Save inserts a new link. Returns ErrCodeConflict if the code is already in use.
	Save(ctx context.Context, link *Link) error
	GetByCode(ctx context.Context, code Code) (*Link, error)

	// ListByOwner returns the user's links, newest first.
	ListByOwner(ctx context.Context, userID string) ([]*Link, error)

	// DeleteOwned deletes the link only if it belongs to userID and returns the deleted row.
	// Returns ErrNotFound when no row matched both predicates.
	DeleteOwned(ctx context.Context, id, userID string) (*Link, error)

	// ListExpired returns links whose expiration is strictly before the given time.
	ListExpired(ctx context.Context, before time.Time) ([]*Link, error)

	// Delete removes a link by id and reports whether a row was removed.
	Delete(ctx context.Context, id string) (bool, error)

	IncrementClicks(ctx context.Context, code Code) error
	Count(ctx context.Context) (int64, error)
}

// Cache evicts cached entries keyed by short code.
type Cache interface {
	Evict(ctx context.Context, code Code) error
}

// CodeGenerator generates random short codes.
type CodeGenerator func() string
