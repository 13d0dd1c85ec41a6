package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/samber/do"
	"github.com/serroba/shortlinks/internal/container"
	"github.com/serroba/shortlinks/internal/messaging"
	"github.com/serroba/shortlinks/internal/shortener"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func registerPackages(injector *do.Injector, options *container.Options) {
	do.ProvideValue(injector, options)
	container.LoggerPackage(injector)
	container.RedisPackage(injector)
	container.PostgresPackage(injector)
	container.RepositoryPackage(injector)
	container.RateLimitPackage(injector)
	container.PubSubPackage(injector)
	container.PublisherGroupPackage(injector)
	container.ServicesPackage(injector)
	container.HTTPPackage(injector)

	if options.InProcessWorkers() {
		container.ConsumerGroupPackage(injector)
	}
}

func main() {
	// A missing .env file is fine; the environment and flags still apply.
	_ = godotenv.Load()

	cli := humacli.New(func(hooks humacli.Hooks, options *container.Options) {
		injector := do.New()
		registerPackages(injector, options)

		logger := do.MustInvoke[*zap.Logger](injector)

		var server *http.Server

		hooks.OnStart(func() {
			router := do.MustInvoke[*chi.Mux](injector)

			// Invoke API to trigger route registration
			_ = do.MustInvoke[huma.API](injector)

			if options.InProcessWorkers() {
				group := do.MustInvoke[*messaging.ConsumerGroup](injector)
				if err := group.Start(context.Background()); err != nil {
					logger.Fatal("failed to start background workers", zap.Error(err))
				}

				logger.Info("background workers running in process")
			}

			server = &http.Server{
				Addr:              fmt.Sprintf(":%d", options.Port),
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			logger.Info("server starting",
				zap.Int("port", options.Port),
				zap.String("baseUrl", options.PublicBaseURL()),
			)

			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Fatal("server failed", zap.Error(err))
			}
		})

		hooks.OnStop(func() {
			logger.Info("shutting down")

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if server != nil {
				if err := server.Shutdown(ctx); err != nil {
					logger.Error("server shutdown error", zap.Error(err))
				}
			}

			if err := injector.Shutdown(); err != nil {
				logger.Error("service shutdown error", zap.Error(err))
			}

			logger.Info("shutdown complete")
		})
	})

	cli.Root().AddCommand(&cobra.Command{
		Use:   "sweep",
		Short: "Delete expired links once and exit",
		Run: humacli.WithOptions(func(cmd *cobra.Command, _ []string, options *container.Options) {
			injector := do.New()
			do.ProvideValue(injector, options)
			container.LoggerPackage(injector)
			container.RedisPackage(injector)
			container.PostgresPackage(injector)
			container.RepositoryPackage(injector)
			container.RateLimitPackage(injector)
			container.ServicesPackage(injector)

			defer func() { _ = injector.Shutdown() }()

			logger := do.MustInvoke[*zap.Logger](injector)
			service := do.MustInvoke[*shortener.Service](injector)

			deleted, err := service.DeleteExpiredLinks(cmd.Context())
			if err != nil {
				logger.Error("sweep failed", zap.Int("deleted", deleted), zap.Error(err))

				return
			}

			logger.Info("sweep complete", zap.Int("deleted", deleted))
		}),
	})

	cli.Root().AddCommand(&cobra.Command{
		Use:   "openapi",
		Short: "Print the OpenAPI spec as YAML",
		Run: humacli.WithOptions(func(cmd *cobra.Command, _ []string, options *container.Options) {
			// Build the API without backends; only the route definitions are needed.
			offline := *options
			offline.RedisAddr = ""
			offline.DatabaseURL = ""
			offline.SessionSecret = "openapi"

			injector := do.New()
			registerPackages(injector, &offline)

			api := do.MustInvoke[huma.API](injector)

			out, err := api.OpenAPI().YAML()
			if err != nil {
				cmd.PrintErrln(err)

				return
			}

			fmt.Println(string(out))
		}),
	})

	cli.Run()
}
