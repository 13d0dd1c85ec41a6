package health

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/redis/go-redis/v9"
)

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
	statusDisabled  = "disabled"

	pingTimeout = 2 * time.Second
)

// Checker defines the interface for checking service health.
// *pgxpool.Pool satisfies it directly.
type Checker interface {
	Ping(ctx context.Context) error
}

// RedisChecker adapts redis.Client to Checker interface.
type RedisChecker struct {
	client *redis.Client
}

// NewRedisChecker creates a new Redis health checker.
func NewRedisChecker(client *redis.Client) *RedisChecker {
	return &RedisChecker{client: client}
}

// Ping checks Redis connectivity.
func (r *RedisChecker) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Handler handles health check operations. A nil checker reports its backend as disabled.
type Handler struct {
	redis    Checker
	postgres Checker
}

// NewHandler creates a new health handler.
func NewHandler(redis, postgres Checker) *Handler {
	return &Handler{redis: redis, postgres: postgres}
}

// Response is the response for health check endpoint.
type Response struct {
	Body struct {
		Status   string `doc:"ok or degraded"                 json:"status"`
		Redis    string `doc:"healthy, unhealthy or disabled" json:"redis"`
		Postgres string `doc:"healthy, unhealthy or disabled" json:"postgres"`
	}
}

// Check performs a health check of the application and its dependencies.
func (h *Handler) Check(ctx context.Context, _ *struct{}) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	resp := &Response{}
	resp.Body.Status = "ok"
	resp.Body.Redis = probe(ctx, h.redis)
	resp.Body.Postgres = probe(ctx, h.postgres)

	if resp.Body.Redis == statusUnhealthy || resp.Body.Postgres == statusUnhealthy {
		resp.Body.Status = "degraded"
	}

	return resp, nil
}

func probe(ctx context.Context, c Checker) string {
	if c == nil {
		return statusDisabled
	}

	if err := c.Ping(ctx); err != nil {
		return statusUnhealthy
	}

	return statusHealthy
}

// RegisterRoutes registers health check routes.
func RegisterRoutes(api huma.API, h *Handler) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      "GET",
		Path:        "/health",
		Summary:     "Service health",
		Tags:        []string{"Health"},
	}, h.Check)
}
