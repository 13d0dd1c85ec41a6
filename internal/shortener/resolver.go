package shortener

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/serroba/shortlinks/internal/analytics"
	"github.com/serroba/shortlinks/internal/messaging"
	"go.uber.org/zap"
)

// Visit describes the client following a short link.
type Visit struct {
	ClientIP  string
	UserAgent string
	Referrer  string
}

// Resolver maps short codes to their destinations and emits click events.
type Resolver struct {
	repo         Repository
	publishClick messaging.Publish[analytics.LinkClickedEvent]
	logger       *zap.Logger
	now          func() time.Time
}

// NewResolver creates a new redirect resolver.
func NewResolver(
	repo Repository,
	publishClick messaging.Publish[analytics.LinkClickedEvent],
	logger *zap.Logger,
) *Resolver {
	return &Resolver{
		repo:         repo,
		publishClick: publishClick,
		logger:       logger,
		now:          time.Now,
	}
}

// WithClock returns a copy of the resolver using the given time source.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	c := *r
	c.now = now

	return &c
}

// Resolve returns the destination URL for an active code. Unknown and expired codes
// both yield ErrNotFound.
func (r *Resolver) Resolve(ctx context.Context, code Code, visit Visit) (string, error) {
	link, err := r.repo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrNotFound
		}

		return "", fmt.Errorf("get link: %w", err)
	}

	now := r.now()
	if link.Expired(now) {
		return "", ErrNotFound
	}

	event := &analytics.LinkClickedEvent{
		Code:       string(code),
		AccessedAt: now,
		ClientIP:   visit.ClientIP,
		UserAgent:  visit.UserAgent,
		Referrer:   visit.Referrer,
	}

	if err := r.publishClick(event); err != nil {
		r.logger.Error("failed to publish click event",
			zap.String("code", event.Code),
			zap.Error(err),
		)
	}

	return link.OriginalURL, nil
}
