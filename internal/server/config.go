package server

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/fundnest/fundnest-api/internal/config"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTesting     = "testing"
)

const envPrefix = "FUNDNEST"

var ErrMissingJWTSecret = errors.New("auth.jwt_secret must be set")

func LoadConfig() (*config.AppConfig, error) {
	return LoadConfigFrom("./config/server")
}

// LoadConfigFrom reads config.toml from dir (if present), then applies
// FUNDNEST_* environment overrides on top of the defaults.
func LoadConfigFrom(dir string) (*config.AppConfig, error) {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = EnvDevelopment
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(dir)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg config.AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Load environment-specific rate limits, e.g. [ratelimit.production]
	if envSettings := v.GetStringMap(fmt.Sprintf("ratelimit.%s", env)); len(envSettings) > 0 {
		if err := v.UnmarshalKey(fmt.Sprintf("ratelimit.%s", env), &cfg.RateLimit); err != nil {
			return nil, fmt.Errorf("error unmarshaling env config: %w", err)
		}
	}
	cfg.Env = env

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "5000")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.request_timeout", 15*time.Second)
	v.SetDefault("server.trusted_proxies", []string{})

	v.SetDefault("grpc.host", "0.0.0.0")
	v.SetDefault("grpc.port", "5001")
	v.SetDefault("grpc.enable_reflection", false)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_expiration", 24*time.Hour)
	v.SetDefault("auth.bcrypt_cost", 12)
	v.SetDefault("auth.reset_token_expiration", time.Hour)
	v.SetDefault("auth.reset_url_base", "http://localhost:3000/reset-password")
	v.SetDefault("auth.min_password_length", 8)
	v.SetDefault("auth.reset_sweep_interval", 10*time.Minute)

	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "fundnest")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.migrations_dir", "")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("ratelimit.backend", "memory")
	v.SetDefault("ratelimit.cleanup_interval", time.Minute)
	v.SetDefault("ratelimit.general.window", 15*time.Minute)
	v.SetDefault("ratelimit.general.max_requests", 5)
	v.SetDefault("ratelimit.login.window", 15*time.Minute)
	v.SetDefault("ratelimit.login.max_requests", 3)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
}

func validate(cfg *config.AppConfig) error {
	if cfg.Auth.JWTSecret == "" {
		return ErrMissingJWTSecret
	}
	for _, proxy := range cfg.Server.TrustedProxies {
		if net.ParseIP(proxy) == nil {
			if _, _, err := net.ParseCIDR(proxy); err != nil {
				return fmt.Errorf("server.trusted_proxies: %q is neither an IP nor a CIDR", proxy)
			}
		}
	}
	if cfg.Auth.BcryptCost < bcrypt.MinCost || cfg.Auth.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("auth.bcrypt_cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if cfg.Auth.TokenExpiration <= 0 {
		return fmt.Errorf("auth.token_expiration must be positive")
	}
	for name, l := range map[string]config.LimitConfig{
		"general": cfg.RateLimit.General,
		"login":   cfg.RateLimit.Login,
	} {
		if l.Window <= 0 || l.MaxRequests <= 0 {
			return fmt.Errorf("ratelimit.%s needs a positive window and max_requests", name)
		}
	}
	switch cfg.Database.Driver {
	case "memory", "postgres":
	default:
		return fmt.Errorf("unknown database.driver %q", cfg.Database.Driver)
	}
	switch cfg.RateLimit.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown ratelimit.backend %q", cfg.RateLimit.Backend)
	}
	return nil
}
