package database

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/fundnest/fundnest-api/internal/config"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

type Manager struct {
	db     *gorm.DB
	config *config.DatabaseConfig
	logger *zap.Logger
}

// NewManager opens Postgres when the postgres driver is selected. With the
// memory driver the manager holds no connection and DB returns nil.
func NewManager(config *config.DatabaseConfig, logger *zap.Logger) (*Manager, error) {
	m := &Manager{
		config: config,
		logger: logger,
	}
	if config.Driver == DriverMemory {
		return m, nil
	}

	db, err := newDatabase(config)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	m.db = db

	logger.Info("connected to database",
		zap.String("host", config.Host),
		zap.Int("port", config.Port),
		zap.String("name", config.Name))

	return m, nil
}

func (m *Manager) DB() *gorm.DB {
	return m.db
}

func (m *Manager) Ping(ctx context.Context) error {
	if m.db == nil {
		return nil
	}
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (m *Manager) Close() error {
	if m.db == nil {
		return nil
	}
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// DSN renders the lib/pq connection string shared by gorm and goose.
func DSN(config *config.DatabaseConfig) string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		config.Host,
		config.User,
		config.Password,
		config.Name,
		config.Port,
		config.SSLMode,
	)
}

func newDatabase(config *config.DatabaseConfig) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		// Unique violations surface as gorm.ErrDuplicatedKey
		TranslateError: true,
		Logger: logger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			logger.Config{
				SlowThreshold:             time.Second,
				LogLevel:                  logger.Warn,
				IgnoreRecordNotFoundError: true,
				Colorful:                  false,
			},
		),
	}

	return gorm.Open(postgres.Open(DSN(config)), gormConfig)
}
