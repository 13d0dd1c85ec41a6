package main

import (
	"context"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/joho/godotenv"
	"github.com/samber/do"
	"github.com/serroba/shortlinks/internal/container"
	"github.com/serroba/shortlinks/internal/messaging"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cli := humacli.New(func(hooks humacli.Hooks, opts *container.Options) {
		injector := do.New()
		do.ProvideValue(injector, opts)
		container.LoggerPackage(injector)
		container.RedisPackage(injector)
		container.PostgresPackage(injector)
		container.RepositoryPackage(injector)
		container.RateLimitPackage(injector)
		container.PubSubPackage(injector)
		container.ServicesPackage(injector)
		container.ConsumerGroupPackage(injector)

		logger := do.MustInvoke[*zap.Logger](injector)
		ctx, cancel := context.WithCancel(context.Background())
		stopped := make(chan struct{})

		hooks.OnStart(func() {
			if opts.InProcessWorkers() {
				logger.Warn("consumer needs both redis and postgres to share work with the server")
			}

			group := do.MustInvoke[*messaging.ConsumerGroup](injector)
			if err := group.Start(ctx); err != nil {
				logger.Fatal("failed to start consumer group", zap.Error(err))
			}

			logger.Info("consumer running")

			<-stopped
		})

		hooks.OnStop(func() {
			logger.Info("shutting down")
			cancel()

			if err := injector.Shutdown(); err != nil {
				logger.Error("shutdown error", zap.Error(err))
			}

			close(stopped)
			logger.Info("shutdown complete")
		})
	})

	cli.Run()
}
