package app

import (
	"context"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fundnest/fundnest-api/internal/auth"
	"github.com/fundnest/fundnest-api/internal/database"
	"github.com/fundnest/fundnest-api/internal/metrics"
	"github.com/fundnest/fundnest-api/internal/migration"
	"github.com/fundnest/fundnest-api/internal/ratelimit"
	"github.com/fundnest/fundnest-api/internal/server"
)

// Module combines all application modules
func Module() fx.Option {
	return fx.Options(
		// Logger
		fx.Provide(newLogger),

		// Configuration
		fx.Provide(server.LoadConfig),

		// Metrics
		fx.Provide(
			metrics.NewRegistry,
			func(reg *prometheus.Registry) *metrics.Metrics {
				return metrics.New(reg)
			},
		),

		// Storage
		database.Module(),
		migration.Module(),

		// Auth and rate limiting
		auth.NewModule(),
		ratelimit.NewModule(),

		// Server
		fx.Provide(server.NewServer),

		// Start the server
		fx.Invoke(registerHooks),
	)
}

func newLogger() (*zap.Logger, error) {
	env := os.Getenv("APP_ENV")
	return server.NewLogger(env)
}

func registerHooks(
	lifecycle fx.Lifecycle,
	srv *server.Server,
	log *zap.Logger,
) {
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return srv.Start()
		},
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down server...")
			return srv.Stop(ctx)
		},
	})
}
