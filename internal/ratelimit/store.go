package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// CreateKeyPrefix namespaces the per-user link creation counters.
const CreateKeyPrefix = "create:"

// Store records admitted hits in a sliding log.
type Store interface {
	// Record drops hits older than window and returns the count the attempt would reach,
	// the attempt included. The hit is only kept when that count is within limit, so
	// denied attempts never extend the window.
	Record(ctx context.Context, key string, limit int64, window time.Duration) (count int64, err error)
}

// HTTPKey is the counter key of one client on one route template for a window size.
// Distinct windows on the same route keep separate logs.
func HTTPKey(client, route string, window time.Duration) string {
	return fmt.Sprintf("http:%s:%s:%d", client, route, window.Milliseconds())
}
