package analytics

import "time"

const (
	// TopicLinkCreated carries LinkCreatedEvent payloads.
	TopicLinkCreated = "link.created"
	// TopicLinkClicked carries LinkClickedEvent payloads.
	TopicLinkClicked = "link.clicked"
)

// LinkCreatedEvent represents an event emitted when a link is shortened.
type LinkCreatedEvent struct {
	LinkID      string     `json:"linkId"`
	Code        string     `json:"code"`
	OriginalURL string     `json:"originalUrl"`
	UserID      string     `json:"userId"`
	CreatedAt   time.Time  `json:"createdAt"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

// LinkClickedEvent represents a successful redirect through a short code.
type LinkClickedEvent struct {
	Code       string    `json:"code"`
	AccessedAt time.Time `json:"accessedAt"`
	ClientIP   string    `json:"clientIp"`
	UserAgent  string    `json:"userAgent"`
	Referrer   string    `json:"referrer"`
}
