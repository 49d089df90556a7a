package auth

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fundnest/fundnest-api/internal/config"
	"github.com/fundnest/fundnest-api/internal/database"
	"github.com/fundnest/fundnest-api/internal/metrics"
)

// NewModule returns the auth module options
func NewModule() fx.Option {
	return fx.Options(
		fx.Provide(
			// Provide repository
			fx.Annotate(
				func(config *config.AppConfig, db *database.Manager, log *zap.Logger) Repository {
					if config.Database.Driver == database.DriverMemory {
						log.Warn("using in-memory credential store; data is lost on restart")
						return NewMemoryRepository()
					}
					return NewRepository(db.DB())
				},
			),
			// Provide hasher
			fx.Annotate(
				func(config *config.AppConfig) PasswordHasher {
					return NewBcryptHasher(config.Auth.BcryptCost)
				},
			),
			// Provide token issuer; fails startup without a secret
			fx.Annotate(
				func(config *config.AppConfig) (*TokenIssuer, error) {
					return NewTokenIssuer(config.Auth.JWTSecret, config.Auth.TokenExpiration, nil)
				},
			),
			// Provide service
			fx.Annotate(
				func(
					config *config.AppConfig,
					log *zap.Logger,
					repo Repository,
					hasher PasswordHasher,
					tokens *TokenIssuer,
					m *metrics.Metrics,
				) *Service {
					return NewService(&config.Auth, log, repo, hasher, tokens,
						WithMetrics(m),
						WithProduction(config.IsProduction()),
					)
				},
			),
			// Provide handler
			fx.Annotate(
				func(svc *Service, log *zap.Logger) *Handler {
					return NewHandler(svc, log)
				},
			),
			// Provide middleware
			fx.Annotate(
				func(svc *Service, h *Handler) *AuthMiddleware {
					return NewAuthMiddleware(svc, h)
				},
			),
			// Provide reset token janitor
			fx.Annotate(
				func(config *config.AppConfig, repo Repository, log *zap.Logger) *ResetTokenJanitor {
					return NewResetTokenJanitor(repo, config.Auth.ResetSweepInterval, log)
				},
			),
		),
		fx.Invoke(registerHooks),
	)
}

func registerHooks(lifecycle fx.Lifecycle, janitor *ResetTokenJanitor) {
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			janitor.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			janitor.Stop()
			return nil
		},
	})
}
