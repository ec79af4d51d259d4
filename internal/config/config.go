package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/efreitasn/cryptosim/internal/domain"
	"github.com/efreitasn/cryptosim/internal/feed"
)

// Reconnect modes for the upstream feed.
const (
	ReconnectNone    = "none"
	ReconnectBackoff = "backoff"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds all runtime configuration for the simulator.
type Config struct {
	Port     int    `env:"PORT" yaml:"port"`
	LogLevel string `env:"LOG_LEVEL" yaml:"log_level"`

	// InitialBalance is kept as text so that no precision is lost before
	// it reaches the ledger.
	InitialBalance string `env:"INITIAL_BALANCE" yaml:"initial_balance"`

	FeedEnabled            bool          `env:"FEED_ENABLED" yaml:"feed_enabled"`
	FeedURL                string        `env:"FEED_URL" yaml:"feed_url"`
	FeedSymbols            []string      `env:"FEED_SYMBOLS" envSeparator:"," yaml:"feed_symbols"`
	FeedReconnect          string        `env:"FEED_RECONNECT" yaml:"feed_reconnect"`
	FeedBackoffMin         time.Duration `env:"FEED_BACKOFF_MIN" yaml:"feed_backoff_min"`
	FeedBackoffMax         time.Duration `env:"FEED_BACKOFF_MAX" yaml:"feed_backoff_max"`
	FeedBackoffMaxAttempts int           `env:"FEED_BACKOFF_MAX_ATTEMPTS" yaml:"feed_backoff_max_attempts"`

	StoreDriver      string `env:"STORE_DRIVER" yaml:"store_driver"`
	SQLitePath       string `env:"SQLITE_PATH" yaml:"sqlite_path"`
	DatabaseURL      string `env:"DATABASE_URL" yaml:"database_url"`
	PostgresHost     string `env:"POSTGRES_HOST" yaml:"postgres_host"`
	PostgresPort     int    `env:"POSTGRES_PORT" yaml:"postgres_port"`
	PostgresUser     string `env:"POSTGRES_USER" yaml:"postgres_user"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" yaml:"-"`
	PostgresDB       string `env:"POSTGRES_DB" yaml:"postgres_db"`

	KafkaBrokers    []string `env:"KAFKA_BROKERS" envSeparator:"," yaml:"kafka_brokers"`
	KafkaTopic      string   `env:"KAFKA_TOPIC" yaml:"kafka_topic"`
	BroadcastBuffer int      `env:"BROADCAST_BUFFER" yaml:"broadcast_buffer"`

	EquityInterval  time.Duration `env:"EQUITY_INTERVAL" yaml:"equity_interval"`
	WebhookTimeout  time.Duration `env:"WEBHOOK_TIMEOUT" yaml:"webhook_timeout"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" yaml:"read_timeout"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" yaml:"write_timeout"`
	IdleTimeout     time.Duration `env:"IDLE_TIMEOUT" yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" yaml:"shutdown_timeout"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Port:           8080,
		LogLevel:       "info",
		InitialBalance: "10000",

		FeedEnabled:    true,
		FeedURL:        "wss://ws.kraken.com/v2",
		FeedSymbols:    append([]string(nil), feed.DefaultSymbols...),
		FeedReconnect:  ReconnectNone,
		FeedBackoffMin: 250 * time.Millisecond,
		FeedBackoffMax: 30 * time.Second,

		StoreDriver: DriverMemory,
		SQLitePath:  "cryptosim.db",

		KafkaTopic:      "prices",
		BroadcastBuffer: 256,

		EquityInterval:  time.Minute,
		WebhookTimeout:  5 * time.Second,
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// CONFIG_FILE if set, then environment variables, and validates the result.
// An environment variable always wins over the file.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks every value and reports the first invalid one.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT: %d, must be between 1 and 65535", c.Port)
	}
	if !isValidLogLevel(c.LogLevel) {
		return fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", c.LogLevel)
	}

	balance, err := domain.ParseAmount(c.InitialBalance)
	if err != nil {
		return fmt.Errorf("invalid INITIAL_BALANCE: %w", err)
	}
	if balance.Sign() <= 0 {
		return fmt.Errorf("invalid INITIAL_BALANCE: %s, must be greater than 0", c.InitialBalance)
	}

	if c.FeedEnabled {
		if c.FeedURL == "" {
			return errors.New("FEED_URL is required when the feed is enabled")
		}
		if len(c.FeedSymbols) == 0 {
			return errors.New("FEED_SYMBOLS must list at least one symbol")
		}
	}
	switch c.FeedReconnect {
	case ReconnectNone:
	case ReconnectBackoff:
		if c.FeedBackoffMin <= 0 {
			return fmt.Errorf("invalid FEED_BACKOFF_MIN: %s, must be positive", c.FeedBackoffMin)
		}
		if c.FeedBackoffMax < c.FeedBackoffMin {
			return fmt.Errorf("invalid FEED_BACKOFF_MAX: %s, must not be below FEED_BACKOFF_MIN", c.FeedBackoffMax)
		}
		if c.FeedBackoffMaxAttempts < 0 {
			return fmt.Errorf("invalid FEED_BACKOFF_MAX_ATTEMPTS: %d, must be non-negative", c.FeedBackoffMaxAttempts)
		}
	default:
		return fmt.Errorf("invalid FEED_RECONNECT: %q, must be one of: none, backoff", c.FeedReconnect)
	}

	switch c.StoreDriver {
	case DriverMemory:
	case DriverSQLite:
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required for the sqlite store")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" && c.PostgresHost == "" {
			return errors.New("DATABASE_URL or POSTGRES_HOST is required for the postgres store")
		}
	default:
		return fmt.Errorf("invalid STORE_DRIVER: %q, must be one of: memory, sqlite, postgres", c.StoreDriver)
	}

	if len(c.KafkaBrokers) > 0 && strings.TrimSpace(c.KafkaTopic) == "" {
		return errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	if c.BroadcastBuffer <= 0 {
		return fmt.Errorf("invalid BROADCAST_BUFFER: %d, must be positive", c.BroadcastBuffer)
	}
	if c.EquityInterval < 0 {
		return fmt.Errorf("invalid EQUITY_INTERVAL: %s, must be non-negative", c.EquityInterval)
	}

	for _, d := range []struct {
		name string
		val  time.Duration
	}{
		{"WEBHOOK_TIMEOUT", c.WebhookTimeout},
		{"READ_TIMEOUT", c.ReadTimeout},
		{"WRITE_TIMEOUT", c.WriteTimeout},
		{"IDLE_TIMEOUT", c.IdleTimeout},
		{"SHUTDOWN_TIMEOUT", c.ShutdownTimeout},
	} {
		if d.val <= 0 {
			return fmt.Errorf("invalid %s: %s, must be positive", d.name, d.val)
		}
	}
	return nil
}

// Balance returns InitialBalance as a decimal. It is zero if the
// configuration has not been validated.
func (c *Config) Balance() decimal.Decimal {
	d, err := domain.ParseAmount(c.InitialBalance)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ReconnectPolicy returns the feed reconnect policy FeedReconnect selects.
func (c *Config) ReconnectPolicy() feed.ReconnectPolicy {
	if c.FeedReconnect != ReconnectBackoff {
		return feed.NoReconnect{}
	}
	b := feed.DefaultBackoff()
	b.Min = c.FeedBackoffMin
	b.Max = c.FeedBackoffMax
	b.MaxAttempts = c.FeedBackoffMaxAttempts
	return b
}

// SlogLevel maps LogLevel to a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
