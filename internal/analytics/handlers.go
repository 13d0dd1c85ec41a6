package analytics

import (
	"context"
	"fmt"

	"github.com/serroba/shortlinks/internal/messaging"
)

// ClickCounter increments the click counter of the link with the given code.
type ClickCounter func(ctx context.Context, code string) error

// NewClickHandler counts the click and then records the event.
func NewClickHandler(count ClickCounter, store Store) messaging.Handler[LinkClickedEvent] {
	return func(ctx context.Context, event *LinkClickedEvent) error {
		if err := count(ctx, event.Code); err != nil {
			return fmt.Errorf("count click: %w", err)
		}

		return store.SaveLinkClicked(ctx, event)
	}
}

// NewCreatedHandler records link creation events.
func NewCreatedHandler(store Store) messaging.Handler[LinkCreatedEvent] {
	return store.SaveLinkCreated
}
