package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"watchparty/database"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Config holds all application configuration
type Config struct {
	// Logging
	LogLevel  string
	LogFormat string // "text" or "json"

	// Watch party configuration
	AdminDiscordIDs []int64 // Discord IDs allowed to create and settle wagers
	JoinBonus       int64
	OpenWindow      time.Duration // How long before a match an auto party opens

	// Scheduler configuration
	SchedulerInterval     time.Duration
	SchedulerPartyTimeout time.Duration
	ShutdownGrace         time.Duration

	// Match feed configuration
	MatchSourceURL     string
	MatchSourceTimeout time.Duration

	// Redis configuration (match cache, disabled when empty)
	RedisAddr     string
	MatchCacheTTL time.Duration

	// NATS configuration (events are dropped when empty)
	NATSServers string

	// Database configuration (balance history is not persisted when empty)
	DatabaseURL      string
	DatabaseName     string
	DatabaseMaxConns int32
	HistoryBuffer    int

	// Admin API configuration
	AdminAPIAddr string

	// OpenTelemetry configuration
	OTelEnabled              bool
	OTelExporterType         string // "console", "otlp", "prometheus" or "none"
	OTelOTLPEndpoint         string
	OTelServiceName          string
	OTelExportIntervalMillis int

	// Environment
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	// If instance is already set (e.g., by tests), return it
	if instance != nil {
		return instance
	}

	once.Do(func() {
		if err := godotenv.Load(); err != nil {
			log.Debug("No .env file found, reading environment variables directly")
		}

		var err error
		instance, err = load()
		if err != nil {
			if os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// HistoryEnabled reports whether balance history is persisted
func (c *Config) HistoryEnabled() bool {
	return c.DatabaseURL != ""
}

// load loads configuration from environment variables
func load() (*Config, error) {
	config := &Config{
		LogLevel:  getEnvWithDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvWithDefault("LOG_FORMAT", "text"),

		JoinBonus:  500,
		OpenWindow: 30 * time.Minute,

		SchedulerInterval:     5 * time.Minute,
		SchedulerPartyTimeout: 20 * time.Second,
		ShutdownGrace:         10 * time.Second,

		MatchSourceURL:     os.Getenv("MATCH_SOURCE_URL"),
		MatchSourceTimeout: 10 * time.Second,

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		MatchCacheTTL: 2 * time.Minute,

		NATSServers: os.Getenv("NATS_SERVERS"),

		DatabaseURL:      os.Getenv("DATABASE_URL"),
		DatabaseName:     os.Getenv("DATABASE_NAME"),
		DatabaseMaxConns: 4,
		HistoryBuffer:    1000,

		AdminAPIAddr: getEnvWithDefault("ADMIN_API_ADDR", ":8080"),

		OTelEnabled:              os.Getenv("OTEL_ENABLED") == "true",
		OTelExporterType:         getEnvWithDefault("OTEL_EXPORTER_TYPE", "prometheus"),
		OTelOTLPEndpoint:         getEnvWithDefault("OTEL_OTLP_ENDPOINT", "otel-collector:4317"),
		OTelServiceName:          getEnvWithDefault("OTEL_SERVICE_NAME", "watchparty"),
		OTelExportIntervalMillis: 15000,

		Environment: os.Getenv("ENVIRONMENT"),
	}

	var err error
	if config.JoinBonus, err = getEnvInt64("JOIN_BONUS", config.JoinBonus); err != nil {
		return nil, err
	}
	if bonus := config.JoinBonus; bonus < 0 {
		return nil, fmt.Errorf("JOIN_BONUS cannot be negative, got %d", bonus)
	}
	if minutes := os.Getenv("OPEN_WINDOW_MINUTES"); minutes != "" {
		parsed, err := strconv.Atoi(minutes)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("OPEN_WINDOW_MINUTES must be a positive integer, got %q", minutes)
		}
		config.OpenWindow = time.Duration(parsed) * time.Minute
	}
	if config.SchedulerInterval, err = getEnvDuration("SCHEDULER_INTERVAL", config.SchedulerInterval); err != nil {
		return nil, err
	}
	if config.SchedulerPartyTimeout, err = getEnvDuration("SCHEDULER_PARTY_TIMEOUT", config.SchedulerPartyTimeout); err != nil {
		return nil, err
	}
	if config.ShutdownGrace, err = getEnvDuration("SHUTDOWN_GRACE", config.ShutdownGrace); err != nil {
		return nil, err
	}
	if config.MatchSourceTimeout, err = getEnvDuration("MATCH_SOURCE_TIMEOUT", config.MatchSourceTimeout); err != nil {
		return nil, err
	}
	if config.MatchCacheTTL, err = getEnvDuration("MATCH_CACHE_TTL", config.MatchCacheTTL); err != nil {
		return nil, err
	}
	if conns := os.Getenv("DATABASE_MAX_CONNS"); conns != "" {
		parsed, err := strconv.ParseInt(conns, 10, 32)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("DATABASE_MAX_CONNS must be a positive integer, got %q", conns)
		}
		config.DatabaseMaxConns = int32(parsed)
	}
	if buffer := os.Getenv("HISTORY_BUFFER"); buffer != "" {
		parsed, err := strconv.Atoi(buffer)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("HISTORY_BUFFER must be a positive integer, got %q", buffer)
		}
		config.HistoryBuffer = parsed
	}
	if interval := os.Getenv("OTEL_EXPORT_INTERVAL_MS"); interval != "" {
		if parsed, err := strconv.Atoi(interval); err == nil && parsed > 0 {
			config.OTelExportIntervalMillis = parsed
		}
	}

	// Parse admin Discord IDs
	if adminIDs := os.Getenv("ADMIN_IDS"); adminIDs != "" {
		config.AdminDiscordIDs, err = parseIDList(adminIDs)
		if err != nil {
			return nil, err
		}
	}

	// Set default environment if not specified
	if config.Environment == "" {
		config.Environment = "development"
	}

	if config.Environment != "test" {
		// Validate required configuration
		if config.MatchSourceURL == "" {
			return nil, fmt.Errorf("MATCH_SOURCE_URL is required")
		}
		if config.DatabaseName != "" && config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when DATABASE_NAME is set")
		}
	}

	return config, nil
}

func parseIDList(raw string) ([]int64, error) {
	var ids []int64
	for _, idStr := range strings.Split(raw, ",") {
		idStr = strings.TrimSpace(idStr)
		if idStr == "" {
			continue
		}
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid admin ID %q: %w", idStr, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// getEnvWithDefault returns the environment variable value or a default if not set
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, value)
	}
	return parsed, nil
}

// ConfigureLogging applies the configured level and formatter to the global logger
func (c *Config) ConfigureLogging() {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		log.WithField("level", c.LogLevel).Warn("Unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if c.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
// This should only be called from test files
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
// This should only be called from test files
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		Environment:           "test",
		LogLevel:              "debug",
		LogFormat:             "text",
		AdminDiscordIDs:       []int64{999999, 999991}, // Default test admin IDs
		JoinBonus:             500,
		OpenWindow:            30 * time.Minute,
		SchedulerInterval:     5 * time.Minute,
		SchedulerPartyTimeout: 20 * time.Second,
		ShutdownGrace:         10 * time.Second,
		MatchSourceTimeout:    10 * time.Second,
		MatchCacheTTL:         2 * time.Minute,
		HistoryBuffer:         1000,
		AdminAPIAddr:          ":0",
		OTelExporterType:      "none",
		OTelServiceName:       "watchparty-test",
	}
}
