package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every environment variable, e.g. NEIGHBORLY_ADDR.
const Prefix = "NEIGHBORLY"

const devSigningKey = "dev-secret-key-change-in-production"

type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// Server captures process level configuration.
type Server struct {
	Addr            string        `envconfig:"ADDR" default:":8080"`
	Environment     Environment   `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`

	// DatabaseURL selects Postgres-backed stores. Empty means in-memory stores.
	DatabaseURL string `envconfig:"DATABASE_URL"`

	JWTSigningKey string `envconfig:"JWT_SIGNING_KEY"`
	JWTIssuer     string `envconfig:"JWT_ISSUER" default:"neighborly"`

	Redis RedisConfig `envconfig:"REDIS"`
	Kafka KafkaConfig `envconfig:"KAFKA"`
	Sweep SweepConfig `envconfig:"SWEEP"`
}

// RedisConfig configures the optional Redis connection used for the sweep lock.
type RedisConfig struct {
	URL          string        `envconfig:"URL"`
	PoolSize     int           `envconfig:"POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"3s"`
}

// KafkaConfig configures the optional audit event sink.
type KafkaConfig struct {
	Brokers    []string `envconfig:"BROKERS"`
	AuditTopic string   `envconfig:"AUDIT_TOPIC" default:"neighborly.audit"`
}

// SweepConfig configures the expiration sweep. Interval is read once at startup.
type SweepConfig struct {
	Interval time.Duration `envconfig:"INTERVAL" default:"5m"`
	LockTTL  time.Duration `envconfig:"LOCK_TTL" default:"4m"`
	Enabled  bool          `envconfig:"ENABLED" default:"true"`
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	var cfg Server
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return Server{}, fmt.Errorf("process env config: %w", err)
	}
	if err := cfg.resolve(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

func (c *Server) resolve() error {
	c.LogLevel = strings.ToLower(c.LogLevel)
	if c.JWTSigningKey == "" {
		if c.Environment == EnvProduction {
			return errors.New("JWT signing key is required in production")
		}
		c.JWTSigningKey = devSigningKey
	}
	if c.Sweep.Interval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %s", c.Sweep.Interval)
	}
	if c.Sweep.LockTTL <= 0 {
		c.Sweep.LockTTL = c.Sweep.Interval
	}
	return nil
}

// UsesPostgres reports whether concept stores should be backed by Postgres.
func (c Server) UsesPostgres() bool {
	return c.DatabaseURL != ""
}
