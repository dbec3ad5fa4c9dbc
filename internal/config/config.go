// Package config loads server configuration from flags, environment variables and a .env file.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Ledger backends.
const (
	LedgerSQLite = "sqlite"
	LedgerBadger = "badger"
)

// Config holds the application configuration.
type Config struct {
	App     AppConfig
	Logger  LoggerConfig
	Storage StorageConfig
	Server  ServerConfig
	Auth    AuthConfig
	Lease   LeaseConfig
	Events  EventsConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// StorageConfig selects where and how data is persisted.
type StorageConfig struct {
	DataPath string // holds library.db, the ledger directory, the search index and auth.key
	// LedgerBackend is sqlite (loans share the catalog database) or badger.
	LedgerBackend string
}

// SQLitePath is the catalog database file.
func (s StorageConfig) SQLitePath() string { return filepath.Join(s.DataPath, "library.db") }

// BadgerPath is the loan ledger directory used by the badger backend.
func (s StorageConfig) BadgerPath() string { return filepath.Join(s.DataPath, "ledger") }

// SearchPath is the bleve index directory.
func (s StorageConfig) SearchPath() string { return filepath.Join(s.DataPath, "search") }

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	CORSOrigins  []string
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	// PASETO v4 symmetric key, set from auth.LoadOrGenerateKey at startup.
	AccessTokenKey      []byte
	AccessTokenDuration time.Duration
	// LoginRatePerMinute bounds register/login attempts per client IP.
	LoginRatePerMinute int
}

// LeaseConfig configures the per-book lease. An empty RedisAddr keeps leases in-process.
type LeaseConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration
}

// Distributed reports whether leases are held in Redis.
func (l LeaseConfig) Distributed() bool { return l.RedisAddr != "" }

// EventsConfig configures loan event publishing. No brokers disables it.
type EventsConfig struct {
	KafkaBrokers []string
	KafkaTopic   string
}

// Enabled reports whether loan events are published.
func (e EventsConfig) Enabled() bool { return len(e.KafkaBrokers) > 0 }

// LoadConfig loads configuration with precedence flag > environment > .env file > default.
// args excludes the program name.
func LoadConfig(args []string) (*Config, error) {
	fs := flag.NewFlagSet("library-server", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := fs.String("data-path", "", "Directory for databases, search index and keys")
	ledgerBackend := fs.String("ledger-backend", "", "Loan ledger backend (sqlite, badger)")
	port := fs.String("port", "", "Server port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	corsOrigins := fs.String("cors-origins", "", "Comma separated allowed CORS origins")
	accessTokenDuration := fs.String("access-token-duration", "", "Access token lifetime (default: 24h)")
	redisAddr := fs.String("redis-addr", "", "Redis address for distributed book leases")
	leaseTTL := fs.String("lease-ttl", "", "Book lease TTL (default: 10s)")
	kafkaBrokers := fs.String("kafka-brokers", "", "Comma separated Kafka brokers for loan events")
	kafkaTopic := fs.String("kafka-topic", "", "Kafka topic for loan events (default: library.loans)")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// godotenv never overrides variables that are already set.
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load env file %s: %w", *envFile, err)
	}

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Storage: StorageConfig{
			DataPath:      getConfigValue(*dataPath, "DATA_PATH", ""),
			LedgerBackend: strings.ToLower(getConfigValue(*ledgerBackend, "LEDGER_BACKEND", LedgerSQLite)),
		},
		Server: ServerConfig{
			Port:        getConfigValue(*port, "SERVER_PORT", "8080"),
			CORSOrigins: splitList(getConfigValue(*corsOrigins, "CORS_ORIGINS", "*")),
		},
		Auth: AuthConfig{
			LoginRatePerMinute: getIntConfigValue("", "LOGIN_RATE_PER_MINUTE", 20),
		},
		Lease: LeaseConfig{
			RedisAddr:     getConfigValue(*redisAddr, "REDIS_ADDR", ""),
			RedisPassword: getConfigValue("", "REDIS_PASSWORD", ""),
			RedisDB:       getIntConfigValue("", "REDIS_DB", 0),
		},
		Events: EventsConfig{
			KafkaBrokers: splitList(getConfigValue(*kafkaBrokers, "KAFKA_BROKERS", "")),
			KafkaTopic:   getConfigValue(*kafkaTopic, "KAFKA_TOPIC", "library.loans"),
		},
	}

	durations := []struct {
		name   string
		flag   string
		envKey string
		def    string
		dst    *time.Duration
	}{
		{"read timeout", *readTimeout, "SERVER_READ_TIMEOUT", "15s", &cfg.Server.ReadTimeout},
		{"write timeout", *writeTimeout, "SERVER_WRITE_TIMEOUT", "15s", &cfg.Server.WriteTimeout},
		{"idle timeout", *idleTimeout, "SERVER_IDLE_TIMEOUT", "60s", &cfg.Server.IdleTimeout},
		{"access token duration", *accessTokenDuration, "ACCESS_TOKEN_DURATION", "24h", &cfg.Auth.AccessTokenDuration},
		{"lease ttl", *leaseTTL, "BOOK_LEASE_TTL", "10s", &cfg.Lease.TTL},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flag, d.envKey, d.def)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.name, raw, err)
		}
		*d.dst = parsed
	}

	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all config values are present and valid.
func (c *Config) Validate() error {
	switch c.App.Environment {
	case "development", "staging", "production":
	case "":
		return errors.New("ENV is required")
	default:
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	switch strings.ToLower(c.Logger.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Storage.DataPath == "" {
		return errors.New("data path cannot be empty after expansion")
	}

	switch c.Storage.LedgerBackend {
	case LedgerSQLite, LedgerBadger:
	default:
		return fmt.Errorf("invalid ledger backend: %s (must be sqlite or badger)", c.Storage.LedgerBackend)
	}

	if c.Lease.TTL <= 0 {
		return errors.New("lease ttl must be positive")
	}

	if c.Events.Enabled() && c.Events.KafkaTopic == "" {
		return errors.New("kafka topic is required when brokers are configured")
	}

	return nil
}

func (c *Config) expandDataPath() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	expanded, err := expandPath(c.Storage.DataPath, filepath.Join(home, ".library-server"))
	if err != nil {
		return err
	}
	c.Storage.DataPath = expanded
	return nil
}

// expandPath expands ~ and makes path absolute, falling back to defaultPath when empty.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	return abs, nil
}

func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return defaultValue
}

func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	raw := getConfigValue(flagValue, envKey, "")
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return n
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
