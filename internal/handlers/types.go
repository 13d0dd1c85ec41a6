package handlers

import (
	"net/http"
	"time"
)

// SuccessResponse is returned by operations that only report success.
type SuccessResponse struct {
	Body struct {
		Success bool `json:"success"`
	}
}

// CredentialsRequest is the request body for registration and login.
type CredentialsRequest struct {
	Body struct {
		Email    string `doc:"Account email"                    example:"jane@example.com" json:"email"`
		Password string `doc:"Account password, 6 to 72 chars" example:"s3cret!"         json:"password"`
	}
}

// UserBody is the public view of a user.
type UserBody struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// LoginResponse carries the session token in the body and as a cookie.
type LoginResponse struct {
	SetCookie http.Cookie `header:"Set-Cookie"`
	Body      struct {
		Success bool     `json:"success"`
		User    UserBody `json:"user"`
		Token   string   `doc:"Session token, also usable as a Bearer token" json:"token"`
	}
}

// LogoutResponse clears the session cookie.
type LogoutResponse struct {
	SetCookie http.Cookie `header:"Set-Cookie"`
	Body      struct {
		Success bool `json:"success"`
	}
}

// LinkBody is the JSON representation of a link.
type LinkBody struct {
	ID          string     `json:"id"`
	ShortCode   string     `example:"abc123"                json:"shortCode"`
	ShortURL    string     `example:"http://localhost:8888/abc123" json:"shortUrl"`
	OriginalURL string     `example:"https://example.com/a/long/path" json:"originalUrl"`
	UserID      string     `json:"userId"`
	CreatedAt   time.Time  `json:"createdAt"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	Clicks      int64      `json:"clicks"`
}

// LinkListItem is a link annotated with whether it has expired.
type LinkListItem struct {
	LinkBody

	Expired bool `json:"expired"`
}

// CreateLinkRequest is the request body for shortening a URL.
type CreateLinkRequest struct {
	Body struct {
		OriginalURL string     `doc:"The URL to shorten"                      example:"https://example.com/a/long/path" json:"originalUrl"`
		ExpiresAt   *time.Time `doc:"Optional expiration time (RFC 3339)" json:"expiresAt,omitempty"`
	}
}

// CreateLinkResponse is the response for a successfully created link.
type CreateLinkResponse struct {
	Body struct {
		Success bool     `json:"success"`
		Link    LinkBody `json:"link"`
	}
}

// ListLinksResponse lists the caller's links, newest first.
type ListLinksResponse struct {
	Body struct {
		Links []LinkListItem `json:"links"`
	}
}

// DeleteLinkRequest identifies the link to delete.
type DeleteLinkRequest struct {
	Body struct {
		LinkID string `doc:"Id of the link to delete" json:"linkId"`
	}
}

// QRRequest is the request for rendering a QR code.
type QRRequest struct {
	URL string `doc:"Content to encode" query:"url" required:"false"`
}

// QRResponse carries a QR code as a PNG data URI.
type QRResponse struct {
	Body struct {
		QR string `doc:"data:image/png;base64 URI" json:"qr"`
	}
}

// StatsResponse reports global statistics.
type StatsResponse struct {
	Body struct {
		TotalLinks int64 `json:"totalLinks"`
	}
}

// RedirectRequest is the request for following a short link.
type RedirectRequest struct {
	Code string `doc:"The short code" example:"abc123" path:"code"`
}

// RedirectResponse either redirects or renders the not-found page.
type RedirectResponse struct {
	Status  int
	Headers struct {
		Location    string `header:"Location"`
		ContentType string `header:"Content-Type"`
	}
	Body []byte
}
