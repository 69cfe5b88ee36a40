package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "STOCKLEDGER"

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Config is the daemon configuration, read from STOCKLEDGER_* variables.
type Config struct {
	Env       string `envconfig:"ENV" default:"development"`
	Addr      string `envconfig:"ADDR" default:":8080"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`
	BasePath  string `envconfig:"BASE_PATH" default:"/api/v1"`
	Metrics   bool   `envconfig:"METRICS" default:"true"`

	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS"`

	Branches        []string      `envconfig:"BRANCHES"`
	Timezone        string        `envconfig:"TIMEZONE" default:"Asia/Kolkata"`
	MaxWriteRetries int           `envconfig:"MAX_WRITE_RETRIES" default:"3"`
	PluginTimeout   time.Duration `envconfig:"PLUGIN_TIMEOUT" default:"5s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`

	StoreDriver   string `envconfig:"STORE_DRIVER" default:"memory"`
	StoreDSN      string `envconfig:"STORE_DSN"`
	MongoDatabase string `envconfig:"MONGO_DATABASE" default:"stockledger"`
	DBMaxOpen     int    `envconfig:"DB_MAX_OPEN_CONNS" default:"25"`
	DBMaxIdle     int    `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
	DBTracing     bool   `envconfig:"DB_TRACING" default:"false"`

	RedisAddr     string        `envconfig:"REDIS_ADDR"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	LockTTL       time.Duration `envconfig:"LOCK_TTL" default:"30s"`

	PubSubProject         string `envconfig:"PUBSUB_PROJECT"`
	PubSubTopic           string `envconfig:"PUBSUB_TOPIC" default:"stock-events"`
	PubSubCredentialsJSON string `envconfig:"PUBSUB_CREDENTIALS_JSON"`
	PubSubOrdering        bool   `envconfig:"PUBSUB_ORDERING" default:"false"`
}

// LoadConfig reads the environment.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("config: %s_JWT_SECRET is empty", EnvPrefix)
	}
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	switch c.StoreDriver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres, DriverMongo:
		if c.StoreDSN == "" {
			return fmt.Errorf("config: %s_STORE_DSN is required for driver %q", EnvPrefix, c.StoreDriver)
		}
	default:
		return fmt.Errorf("config: unknown store driver %q", c.StoreDriver)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	for i, b := range c.Branches {
		c.Branches[i] = strings.TrimSpace(b)
	}
	return nil
}

// IsProd reports whether the daemon runs in production.
func (c *Config) IsProd() bool {
	return strings.EqualFold(c.Env, "production")
}

// Location is the configured business timezone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Level maps LogLevel to a slog level.
func (c *Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
