package messaging

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"
)

// Runnable represents a component that can be started and shutdown.
type Runnable interface {
	Start(ctx context.Context) error
	Shutdown() error
}

// ConsumerGroup runs consumers and other background workers with a unified lifecycle.
type ConsumerGroup struct {
	runnables []Runnable
	closers   []io.Closer
	logger    *zap.Logger
}

// NewConsumerGroup creates a new group. The closers, typically subscribers, are closed
// after every runnable has shut down.
func NewConsumerGroup(logger *zap.Logger, closers ...io.Closer) *ConsumerGroup {
	return &ConsumerGroup{
		closers: closers,
		logger:  logger,
	}
}

// Add registers a runnable with the group.
func (g *ConsumerGroup) Add(r Runnable) {
	g.runnables = append(g.runnables, r)
}

// Start starts every runnable in registration order.
func (g *ConsumerGroup) Start(ctx context.Context) error {
	for i, r := range g.runnables {
		if err := r.Start(ctx); err != nil {
			// Shutdown already started runnables on failure
			for j := i - 1; j >= 0; j-- {
				_ = g.runnables[j].Shutdown()
			}

			return fmt.Errorf("failed to start runnable %d: %w", i, err)
		}
	}

	g.logger.Info("consumer group started", zap.Int("count", len(g.runnables)))

	return nil
}

// Shutdown stops every runnable and closes the group's resources. It returns the first error.
func (g *ConsumerGroup) Shutdown() error {
	g.logger.Info("shutting down consumer group")

	var firstErr error

	for _, r := range g.runnables {
		if err := r.Shutdown(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	for _, c := range g.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
