package ratelimit

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fundnest/fundnest-api/internal/config"
	"github.com/fundnest/fundnest-api/internal/metrics"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"

	GeneralLimiter = "general"
	LoginLimiter   = "login"
)

// Limiters are the two independently configured instances used by the
// auth routes.
type Limiters struct {
	General *Limiter
	Login   *Limiter
}

func NewModule() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				func(lc fx.Lifecycle, config *config.AppConfig, m *metrics.Metrics, log *zap.Logger) Store {
					return newStore(lc, config, m, log)
				},
			),
			fx.Annotate(
				func(config *config.AppConfig, store Store, m *metrics.Metrics) *Limiters {
					return &Limiters{
						General: New(GeneralLimiter, config.RateLimit.General, store, WithMetrics(m)),
						Login:   New(LoginLimiter, config.RateLimit.Login, store, WithMetrics(m)),
					}
				},
			),
		),
	)
}

func newStore(lc fx.Lifecycle, config *config.AppConfig, m *metrics.Metrics, log *zap.Logger) Store {
	if config.RateLimit.Backend == BackendRedis {
		client := NewRedisClient(config.Redis)
		store := NewRedisStore(client)
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				log.Info("rate limit windows stored in redis", zap.String("addr", config.Redis.Addr))
				return store.Ping(ctx)
			},
			OnStop: func(ctx context.Context) error {
				return client.Close()
			},
		})
		return store
	}

	store := NewMemoryStore(config.RateLimit.CleanupInterval, m)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return store.Close()
		},
	})
	return store
}
