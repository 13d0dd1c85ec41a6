// Package sweeper periodically removes expired links.
package sweeper

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper is the operation run on every tick.
type Sweeper interface {
	DeleteExpiredLinks(ctx context.Context) (int, error)
}

// Runner calls DeleteExpiredLinks on a fixed interval. It satisfies messaging.Runnable.
type Runner struct {
	sweeper  Sweeper
	interval time.Duration
	logger   *zap.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

// DefaultInterval is used when New receives a non-positive interval.
const DefaultInterval = 5 * time.Minute

// New creates a runner that sweeps every interval.
func New(sweeper Sweeper, interval time.Duration, logger *zap.Logger) *Runner {
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Runner{
		sweeper:  sweeper,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start sweeps once immediately and then on every tick until Shutdown.
func (r *Runner) Start(ctx context.Context) error {
	ctx, r.cancel = context.WithCancel(ctx)

	go r.loop(ctx)

	r.logger.Info("expiration sweeper started", zap.Duration("interval", r.interval))

	return nil
}

func (r *Runner) loop(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Runner) sweep(ctx context.Context) {
	deleted, err := r.sweeper.DeleteExpiredLinks(ctx)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Error("expiration sweep failed", zap.Int("deleted", deleted), zap.Error(err))
		}

		return
	}

	r.logger.Debug("expiration sweep finished", zap.Int("deleted", deleted))
}

// Shutdown stops the loop and waits for an in-progress sweep.
func (r *Runner) Shutdown() error {
	if r.cancel == nil {
		return nil
	}

	r.cancel()
	<-r.done

	return nil
}
