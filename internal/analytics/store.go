package analytics

import "context"

// Store defines the interface for persisting analytics events.
type Store interface {
	SaveLinkCreated(ctx context.Context, event *LinkCreatedEvent) error
	SaveLinkClicked(ctx context.Context, event *LinkClickedEvent) error
}
