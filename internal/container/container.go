package container

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor" // CBOR format support for huma
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/serroba/shortlinks/internal/analytics"
	analyticsstore "github.com/serroba/shortlinks/internal/analytics/store"
	"github.com/serroba/shortlinks/internal/auth"
	"github.com/serroba/shortlinks/internal/handlers"
	"github.com/serroba/shortlinks/internal/health"
	"github.com/serroba/shortlinks/internal/messaging"
	"github.com/serroba/shortlinks/internal/middleware"
	"github.com/serroba/shortlinks/internal/ratelimit"
	"github.com/serroba/shortlinks/internal/shortener"
	"github.com/serroba/shortlinks/internal/store"
	"github.com/serroba/shortlinks/internal/sweeper"
	"go.uber.org/zap"
)

const consumerGroupName = "shortlinks"

// Options are read from flags or SERVICE_* environment variables.
type Options struct {
	Port                 int    `default:"8888"           help:"Port to listen on"                                      short:"p"`
	BaseURL              string `help:"Public base URL of short links, defaults to http://localhost:<port>"`
	CodeLength           int    `default:"6"              help:"Length of generated short codes"                        short:"c"`
	RedisAddr            string `default:"localhost:6379" help:"Redis server address, empty keeps everything in process" short:"r"`
	DatabaseURL          string `help:"PostgreSQL connection URL, empty keeps data in memory"`
	LogFormat            string `default:"json"           help:"Log output format, json or console"`
	SessionSecret        string `help:"HMAC secret for session tokens, random when empty"`
	SessionTTLHours      int    `default:"168"            help:"Session token lifetime in hours"`
	SecureCookie         bool   `help:"Mark the session cookie Secure"`
	CreateLimit          int    `default:"5"              help:"Links a user may create per window"`
	CreateWindowSeconds  int    `default:"60"             help:"Link creation rate limit window in seconds"`
	LimiterTimeoutMs     int    `default:"2000"           help:"Rate limiter timeout in milliseconds"`
	LimiterFailClosed    bool   `help:"Reject link creation when the rate limiter errors"`
	CacheTTLMinutes      int    `default:"60"             help:"Redis link cache TTL in minutes"`
	BcryptCost           int    `default:"10"             help:"bcrypt cost for password hashes"`
	SweepIntervalSeconds int    `help:"Interval between expired link sweeps in seconds, 0 disables periodic sweeping"`
}

// PublicBaseURL returns the configured base URL or the local default.
func (o *Options) PublicBaseURL() string {
	if o.BaseURL != "" {
		return o.BaseURL
	}

	return fmt.Sprintf("http://localhost:%d", o.Port)
}

// InProcessWorkers reports whether background consumers must run inside the server,
// because either the broker or the link data is local to the process.
func (o *Options) InProcessWorkers() bool {
	return o.RedisAddr == "" || o.DatabaseURL == ""
}

// RedisConn closes the client when the injector shuts down.
type RedisConn struct {
	*redis.Client
}

func (r *RedisConn) Shutdown() error {
	return r.Close()
}

// PostgresConn closes the pool when the injector shuts down.
type PostgresConn struct {
	*pgxpool.Pool
}

func (p *PostgresConn) Shutdown() error {
	p.Close()

	return nil
}

// LoggerPackage provides the zap logger.
func LoggerPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*zap.Logger, error) {
		opts := do.MustInvoke[*Options](i)

		if opts.LogFormat == "console" {
			return zap.NewDevelopment()
		}

		return zap.NewProduction()
	})
}

// RedisPackage provides the Redis connection. Only invoke it when RedisAddr is set.
func RedisPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*RedisConn, error) {
		opts := do.MustInvoke[*Options](i)
		if opts.RedisAddr == "" {
			return nil, fmt.Errorf("redis address is not configured")
		}

		client := redis.NewClient(&redis.Options{Addr: opts.RedisAddr})

		return &RedisConn{Client: client}, nil
	})
}

// PostgresPackage provides the migrated connection pool. Only invoke it when DatabaseURL is set.
func PostgresPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*PostgresConn, error) {
		opts := do.MustInvoke[*Options](i)
		if opts.DatabaseURL == "" {
			return nil, fmt.Errorf("database url is not configured")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		pool, err := pgxpool.New(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}

		if err := store.Migrate(ctx, pool); err != nil {
			pool.Close()

			return nil, err
		}

		return &PostgresConn{Pool: pool}, nil
	})
}

// RepositoryPackage provides link and user repositories plus the link cache.
func RepositoryPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (shortener.Repository, error) {
		opts := do.MustInvoke[*Options](i)

		var repo shortener.Repository

		if opts.DatabaseURL != "" {
			pg, err := do.Invoke[*PostgresConn](i)
			if err != nil {
				return nil, err
			}

			repo = store.NewPostgresStore(pg.Pool)
		} else {
			repo = store.NewMemoryStore()
		}

		if opts.RedisAddr == "" {
			return repo, nil
		}

		rdb, err := do.Invoke[*RedisConn](i)
		if err != nil {
			return nil, err
		}

		ttl := time.Duration(opts.CacheTTLMinutes) * time.Minute

		return store.NewRedisCacheRepository(repo, rdb.Client, ttl), nil
	})

	do.Provide(i, func(i *do.Injector) (shortener.Cache, error) {
		repo, err := do.Invoke[shortener.Repository](i)
		if err != nil {
			return nil, err
		}

		// Postgres without Redis has nothing to evict.
		if cache, ok := repo.(shortener.Cache); ok {
			return cache, nil
		}

		return nil, nil
	})

	do.Provide(i, func(i *do.Injector) (auth.Repository, error) {
		opts := do.MustInvoke[*Options](i)
		if opts.DatabaseURL == "" {
			return store.NewUserMemoryStore(), nil
		}

		pg, err := do.Invoke[*PostgresConn](i)
		if err != nil {
			return nil, err
		}

		return store.NewPostgresUserStore(pg.Pool), nil
	})
}

// RateLimitPackage provides the rate limit store and the link creation limiter.
func RateLimitPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (ratelimit.Store, error) {
		opts := do.MustInvoke[*Options](i)
		if opts.RedisAddr == "" {
			return store.NewRateLimitMemoryStore(), nil
		}

		rdb, err := do.Invoke[*RedisConn](i)
		if err != nil {
			return nil, err
		}

		return store.NewRateLimitRedisStore(rdb.Client), nil
	})

	do.Provide(i, func(i *do.Injector) (ratelimit.Limiter, error) {
		opts := do.MustInvoke[*Options](i)

		rlStore, err := do.Invoke[ratelimit.Store](i)
		if err != nil {
			return nil, err
		}

		window := time.Duration(opts.CreateWindowSeconds) * time.Second

		return ratelimit.NewSlidingWindowLimiter(rlStore, int64(opts.CreateLimit), window).
			WithPrefix(ratelimit.CreateKeyPrefix), nil
	})
}

// PubSubPackage provides the watermill publisher and subscriber. Without Redis both
// are backed by one in-process channel.
func PubSubPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*gochannel.GoChannel, error) {
		logger := do.MustInvoke[*zap.Logger](i)

		return gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, messaging.NewZapLogger(logger)), nil
	})

	do.Provide(i, func(i *do.Injector) (message.Publisher, error) {
		opts := do.MustInvoke[*Options](i)
		if opts.RedisAddr == "" {
			return do.MustInvoke[*gochannel.GoChannel](i), nil
		}

		rdb, err := do.Invoke[*RedisConn](i)
		if err != nil {
			return nil, err
		}

		logger := do.MustInvoke[*zap.Logger](i)

		publisher, err := redisstream.NewPublisher(redisstream.PublisherConfig{
			Client:     rdb.Client,
			Marshaller: redisstream.DefaultMarshallerUnmarshaller{},
		}, messaging.NewZapLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("create redis stream publisher: %w", err)
		}

		return publisher, nil
	})

	do.Provide(i, func(i *do.Injector) (message.Subscriber, error) {
		opts := do.MustInvoke[*Options](i)
		if opts.RedisAddr == "" {
			return do.MustInvoke[*gochannel.GoChannel](i), nil
		}

		rdb, err := do.Invoke[*RedisConn](i)
		if err != nil {
			return nil, err
		}

		logger := do.MustInvoke[*zap.Logger](i)

		subscriber, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
			Client:        rdb.Client,
			Unmarshaller:  redisstream.DefaultMarshallerUnmarshaller{},
			ConsumerGroup: consumerGroupName,
		}, messaging.NewZapLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("create redis stream subscriber: %w", err)
		}

		return subscriber, nil
	})
}

// PublisherGroupPackage provides the publisher group that owns the publisher lifecycle.
func PublisherGroupPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*messaging.PublisherGroup, error) {
		publisher, err := do.Invoke[message.Publisher](i)
		if err != nil {
			return nil, err
		}

		return messaging.NewPublisherGroup(publisher), nil
	})
}

// ServicesPackage provides the auth and link services.
func ServicesPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*auth.Service, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		repo, err := do.Invoke[auth.Repository](i)
		if err != nil {
			return nil, err
		}

		return auth.NewService(repo, opts.BcryptCost, logger)
	})

	do.Provide(i, func(i *do.Injector) (*auth.Tokens, error) {
		opts := do.MustInvoke[*Options](i)

		secret := opts.SessionSecret
		if secret == "" {
			do.MustInvoke[*zap.Logger](i).Warn("no session secret configured, sessions will not survive a restart")

			secret = uuid.NewString() + uuid.NewString()
		}

		return auth.NewTokens(secret, time.Duration(opts.SessionTTLHours)*time.Hour), nil
	})

	do.Provide(i, func(i *do.Injector) (*shortener.Service, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		repo, err := do.Invoke[shortener.Repository](i)
		if err != nil {
			return nil, err
		}

		cache, err := do.Invoke[shortener.Cache](i)
		if err != nil {
			return nil, err
		}

		limiter, err := do.Invoke[ratelimit.Limiter](i)
		if err != nil {
			return nil, err
		}

		gen, err := shortener.NewCodeGenerator(opts.CodeLength)
		if err != nil {
			return nil, err
		}

		serviceOpts := []shortener.Option{
			shortener.WithLimiterTimeout(time.Duration(opts.LimiterTimeoutMs) * time.Millisecond),
			shortener.WithLimiterFailClosed(opts.LimiterFailClosed),
		}

		// The sweep command builds the service without a broker.
		if publishers, err := do.Invoke[*messaging.PublisherGroup](i); err == nil {
			serviceOpts = append(serviceOpts, shortener.WithCreatedPublisher(
				messaging.NewPublishFunc[analytics.LinkCreatedEvent](publishers.Publisher(), analytics.TopicLinkCreated),
			))
		}

		return shortener.NewService(repo, cache, limiter, gen, logger, serviceOpts...), nil
	})

	do.Provide(i, func(i *do.Injector) (*shortener.Resolver, error) {
		logger := do.MustInvoke[*zap.Logger](i)

		repo, err := do.Invoke[shortener.Repository](i)
		if err != nil {
			return nil, err
		}

		publishers, err := do.Invoke[*messaging.PublisherGroup](i)
		if err != nil {
			return nil, err
		}

		publishClick := messaging.NewPublishFunc[analytics.LinkClickedEvent](
			publishers.Publisher(), analytics.TopicLinkClicked,
		)

		return shortener.NewResolver(repo, publishClick, logger), nil
	})
}

// HTTPPackage provides the router and the huma API with every route registered.
func HTTPPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*chi.Mux, error) {
		return chi.NewMux(), nil
	})

	do.Provide(i, func(i *do.Injector) (huma.API, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)
		router := do.MustInvoke[*chi.Mux](i)

		handlers.UseErrorModel()

		api := humachi.New(router, huma.DefaultConfig("Short Links", "1.0.0"))

		rlStore, err := do.Invoke[ratelimit.Store](i)
		if err != nil {
			return nil, err
		}

		tokens := do.MustInvoke[*auth.Tokens](i)

		api.UseMiddleware(
			middleware.RequestMeta(api),
			middleware.Session(api, tokens, logger),
			middleware.RateLimit(api, rlStore, logger),
		)

		authService, err := do.Invoke[*auth.Service](i)
		if err != nil {
			return nil, err
		}

		linkService, err := do.Invoke[*shortener.Service](i)
		if err != nil {
			return nil, err
		}

		resolver, err := do.Invoke[*shortener.Resolver](i)
		if err != nil {
			return nil, err
		}

		handlers.RegisterRoutes(api,
			handlers.NewAuthHandler(authService, tokens, opts.SecureCookie, logger),
			handlers.NewLinkHandler(linkService, opts.PublicBaseURL(), logger),
			handlers.NewPublicHandler(linkService, logger),
			handlers.NewRedirectHandler(resolver, logger),
		)

		healthH, err := healthHandler(i, opts)
		if err != nil {
			return nil, err
		}

		health.RegisterRoutes(api, healthH)

		return api, nil
	})
}

func healthHandler(i *do.Injector, opts *Options) (*health.Handler, error) {
	var redisChecker, postgresChecker health.Checker

	if opts.RedisAddr != "" {
		rdb, err := do.Invoke[*RedisConn](i)
		if err != nil {
			return nil, err
		}

		redisChecker = health.NewRedisChecker(rdb.Client)
	}

	if opts.DatabaseURL != "" {
		pg, err := do.Invoke[*PostgresConn](i)
		if err != nil {
			return nil, err
		}

		postgresChecker = pg.Pool
	}

	return health.NewHandler(redisChecker, postgresChecker), nil
}

// ConsumerGroupPackage provides the background workers: event consumers and, when an
// interval is configured, the expiration sweeper.
func ConsumerGroupPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (analytics.Store, error) {
		return analyticsstore.NewNoop(do.MustInvoke[*zap.Logger](i)), nil
	})

	do.Provide(i, func(i *do.Injector) (*messaging.ConsumerGroup, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		subscriber, err := do.Invoke[message.Subscriber](i)
		if err != nil {
			return nil, err
		}

		linkService, err := do.Invoke[*shortener.Service](i)
		if err != nil {
			return nil, err
		}

		analyticsStore := do.MustInvoke[analytics.Store](i)

		countClick := func(ctx context.Context, code string) error {
			return linkService.TrackClick(ctx, shortener.Code(code))
		}

		group := messaging.NewConsumerGroup(logger, subscriber)
		group.Add(messaging.NewConsumer(
			subscriber,
			analytics.TopicLinkClicked,
			analytics.NewClickHandler(countClick, analyticsStore),
			logger,
		))
		group.Add(messaging.NewConsumer(
			subscriber,
			analytics.TopicLinkCreated,
			analytics.NewCreatedHandler(analyticsStore),
			logger,
		))

		// Expired links stay listed for their owners until a sweep runs.
		if opts.SweepIntervalSeconds > 0 {
			group.Add(sweeper.New(linkService, time.Duration(opts.SweepIntervalSeconds)*time.Second, logger))
		}

		return group, nil
	})
}
