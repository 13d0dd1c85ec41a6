package shortener

import "time"

// Code represents a short link code.
type Code string

// Link represents a shortened URL owned by a user.
type Link struct {
	ID          string
	Code        Code
	OriginalURL string
	UserID      string
	CreatedAt   time.Time
	ExpiresAt   *time.Time // nil means the link never expires
	Clicks      int64
}

// Expired reports whether the link has an expiration strictly before now.
func (l *Link) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && l.ExpiresAt.Before(now)
}

// LinkView is a link annotated with its expiration status at read time.
type LinkView struct {
	*Link
	Expired bool
}
