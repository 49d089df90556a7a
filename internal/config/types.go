package config

import "time"

type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           string        `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	// TrustedProxies lists the IPs or CIDRs whose X-Forwarded-For is honoured
	// when resolving the client address. Empty means the peer address is used.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

type GRPCConfig struct {
	Host             string `mapstructure:"host"`
	Port             string `mapstructure:"port"`
	EnableReflection bool   `mapstructure:"enable_reflection"`
}

type AuthConfig struct {
	JWTSecret            string        `mapstructure:"jwt_secret"`
	TokenExpiration      time.Duration `mapstructure:"token_expiration"`
	BcryptCost           int           `mapstructure:"bcrypt_cost"`
	ResetTokenExpiration time.Duration `mapstructure:"reset_token_expiration"`
	ResetURLBase         string        `mapstructure:"reset_url_base"`
	MinPasswordLength    int           `mapstructure:"min_password_length"`
	ResetSweepInterval   time.Duration `mapstructure:"reset_sweep_interval"`
}

type DatabaseConfig struct {
	Driver        string `mapstructure:"driver"` // "memory" or "postgres"
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Name          string `mapstructure:"name"`
	SSLMode       string `mapstructure:"sslmode"`
	MigrationsDir string `mapstructure:"migrations_dir"`
	AutoMigrate   bool   `mapstructure:"auto_migrate"`
}

// LimitConfig is one sliding window: at most MaxRequests per client within Window.
type LimitConfig struct {
	Window      time.Duration `mapstructure:"window"`
	MaxRequests int           `mapstructure:"max_requests"`
}

type RateLimitConfig struct {
	Backend         string        `mapstructure:"backend"` // "memory" or "redis"
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	General         LimitConfig   `mapstructure:"general"`
	Login           LimitConfig   `mapstructure:"login"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type AppConfig struct {
	Env       string          `mapstructure:"env"`
	Server    ServerConfig    `mapstructure:"server"`
	GRPC      GRPCConfig      `mapstructure:"grpc"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Database  DatabaseConfig  `mapstructure:"database"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Redis     RedisConfig     `mapstructure:"redis"`
}

// IsProduction reports whether the process runs with production-only behaviour,
// e.g. no reset links in API responses.
func (c *AppConfig) IsProduction() bool {
	return c.Env == "production"
}
