package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	DB        DBConfig
	Redis     RedisConfig
	RabbitMQ  RabbitMQConfig
	JWT       JWTConfig
	Admin     AdminConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port            int           `env:"SERVER_PORT" envDefault:"8000"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	// TrustedProxies lists the proxy CIDRs whose forwarding headers are
	// believed. Unset means the client IP is always the socket peer.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`
}

type DBConfig struct {
	Host     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	User     string `env:"POSTGRES_USER" envDefault:"postgres"`
	Password string `env:"POSTGRES_PASSWORD" envDefault:"postgres"`
	Name     string `env:"POSTGRES_DB" envDefault:"food_ordering"`
	SSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`
	MinConns int32  `env:"POSTGRES_MIN_CONNS" envDefault:"5"`
	MaxConns int32  `env:"POSTGRES_MAX_CONNS" envDefault:"20"`
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

// MigrateURL is the DSN in the scheme registered by the migrate pgx/v5 driver.
func (c DBConfig) MigrateURL() string {
	return "pgx5://" + strings.TrimPrefix(c.DSN(), "postgres://")
}

// RedisConfig is optional; leaving REDIS_ADDR unset disables the product cache
// and worker deduplication.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

func (c RedisConfig) Enabled() bool { return c.Addr != "" }

// RabbitMQConfig is optional; leaving RABBITMQ_URL unset disables order events.
type RabbitMQConfig struct {
	URL string `env:"RABBITMQ_URL"`
}

func (c RabbitMQConfig) Enabled() bool { return c.URL != "" }

type JWTConfig struct {
	Secret     string        `env:"JWT_SECRET_KEY" envDefault:"your-secret-key-change-in-production"`
	Expiration time.Duration `env:"JWT_EXPIRATION" envDefault:"168h"`
}

type AdminConfig struct {
	Email    string `env:"ADMIN_EMAIL" envDefault:"admin@shawarmore.com"`
	Password string `env:"ADMIN_PASSWORD" envDefault:"admin123"`
	FullName string `env:"ADMIN_FULL_NAME" envDefault:"Admin User"`
}

type CORSConfig struct {
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://127.0.0.1:3000"`
}

type RateLimitConfig struct {
	AuthRPS   float64 `env:"AUTH_RATE_LIMIT_RPS" envDefault:"5"`
	AuthBurst int     `env:"AUTH_RATE_LIMIT_BURST" envDefault:"10"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.DB.MinConns > cfg.DB.MaxConns {
		return nil, fmt.Errorf("parse config: POSTGRES_MIN_CONNS (%d) exceeds POSTGRES_MAX_CONNS (%d)", cfg.DB.MinConns, cfg.DB.MaxConns)
	}
	return cfg, nil
}
