package store

import (
	"context"

	"github.com/serroba/shortlinks/internal/analytics"
	"go.uber.org/zap"
)

// Noop is a no-op implementation of analytics.Store that logs events.
type Noop struct {
	logger *zap.Logger
}

// NewNoop creates a new no-op analytics store.
func NewNoop(logger *zap.Logger) *Noop {
	return &Noop{logger: logger}
}

func (n *Noop) SaveLinkCreated(_ context.Context, event *analytics.LinkCreatedEvent) error {
	fields := []zap.Field{
		zap.String("code", event.Code),
		zap.String("linkId", event.LinkID),
		zap.String("userId", event.UserID),
		zap.Time("createdAt", event.CreatedAt),
	}
	if event.ExpiresAt != nil {
		fields = append(fields, zap.Time("expiresAt", *event.ExpiresAt))
	}

	n.logger.Info("link created event received", fields...)

	return nil
}

func (n *Noop) SaveLinkClicked(_ context.Context, event *analytics.LinkClickedEvent) error {
	n.logger.Info("link clicked event received",
		zap.String("code", event.Code),
		zap.Time("accessedAt", event.AccessedAt),
		zap.String("referrer", event.Referrer),
	)

	return nil
}
