package migration

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fundnest/fundnest-api/internal/config"
	"github.com/fundnest/fundnest-api/internal/database"
)

// Module brings the Postgres schema up to the latest migration on start.
// It is a no-op for the memory driver or when auto_migrate is off.
func Module() fx.Option {
	return fx.Options(
		fx.Invoke(registerHooks),
	)
}

func registerHooks(
	lifecycle fx.Lifecycle,
	config *config.AppConfig,
	logger *zap.Logger,
) error {
	if config.Database.Driver != database.DriverPostgres || !config.Database.AutoMigrate {
		return nil
	}

	migrator, err := NewMigrator(&config.Database)
	if err != nil {
		return err
	}

	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			currentVersion, err := migrator.Version()
			if err != nil {
				return fmt.Errorf("failed to get current migration version: %w", err)
			}

			latestVersion, err := migrator.LatestVersion()
			if err != nil {
				return fmt.Errorf("failed to get latest migration version: %w", err)
			}

			logger.Info("Database migration status",
				zap.Int64("current_version", currentVersion),
				zap.Int64("latest_version", latestVersion))

			switch {
			case currentVersion > latestVersion:
				logger.Info("Downgrading database schema",
					zap.Int64("from_version", currentVersion),
					zap.Int64("to_version", latestVersion))
				if err := migrator.DownTo(latestVersion); err != nil {
					return fmt.Errorf("failed to downgrade database: %w", err)
				}
			case currentVersion < latestVersion:
				logger.Info("Upgrading database schema",
					zap.Int64("from_version", currentVersion),
					zap.Int64("to_version", latestVersion))
				if err := migrator.Up(); err != nil {
					return fmt.Errorf("failed to upgrade database: %w", err)
				}
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return migrator.Close()
		},
	})
	return nil
}
