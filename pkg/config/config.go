package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vincentdavis/league-gotta-bike/pkg/observability"
	"github.com/vincentdavis/league-gotta-bike/pkg/storage"
)

// ConfigFileEnv names the optional YAML file read before the environment
const ConfigFileEnv = "LEAGUE_CONFIG_FILE"

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `yaml:"server"`

	// Storage configuration
	Storage storage.Config `yaml:"storage"`

	// Redis backs the shared permission cache and rate limiter
	Redis storage.RedisConfig `yaml:"redis"`

	Cache     CacheConfig     `yaml:"cache"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// Observability configuration
	Observability ObservabilityConfig `yaml:"observability"`

	Scheduler SchedulerConfig `yaml:"scheduler"`
	Import    ImportConfig    `yaml:"import"`

	// Webhooks forwards audit events to an outbound endpoint
	Webhooks WebhookConfig `yaml:"webhooks"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`

	// Bearer tokens are HS256 JWTs signed with JWTSecret
	JWTSecret string `yaml:"jwt_secret"`
	JWTIssuer string `yaml:"jwt_issuer"`
}

// CacheConfig holds permission cache settings
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	L1Size  int           `yaml:"l1_size"`
	TTL     time.Duration `yaml:"ttl"`

	// L1TTL bounds how long a process trusts its own LRU once Redis is shared
	L1TTL time.Duration `yaml:"l1_ttl"`
}

// RateLimitConfig holds per-actor request limits. It needs Redis.
type RateLimitConfig struct {
	Enabled           bool          `yaml:"enabled"`
	RequestsPerWindow int           `yaml:"requests_per_window"`
	Window            time.Duration `yaml:"window"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel string `yaml:"log_level"`

	// Metrics
	MetricsEnabled bool `yaml:"metrics_enabled"`

	// OpenTelemetry
	OTelEnabled        bool    `yaml:"otel_enabled"`
	OTelEndpoint       string  `yaml:"otel_endpoint"`
	OTelServiceName    string  `yaml:"otel_service_name"`
	OTelServiceVersion string  `yaml:"otel_service_version"`
	OTelInsecure       bool    `yaml:"otel_insecure"` // Use insecure gRPC connection
	OTelSampleRatio    float64 `yaml:"otel_sample_ratio"`
}

// Level returns the parsed log level, info when unparseable
func (o ObservabilityConfig) Level() observability.LogLevel {
	level, _ := observability.ParseLogLevel(o.LogLevel)
	return level
}

// OTel converts the settings for observability.InitOTel
func (o ObservabilityConfig) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        o.OTelEnabled,
		Endpoint:       o.OTelEndpoint,
		ServiceName:    o.OTelServiceName,
		ServiceVersion: o.OTelServiceVersion,
		Insecure:       o.OTelInsecure,
		SampleRatio:    o.OTelSampleRatio,
	}
}

// SchedulerConfig holds settings for the scheduler binary
type SchedulerConfig struct {
	// StatusSyncSchedule is a cron spec with a seconds field
	StatusSyncSchedule   string `yaml:"status_sync_schedule"`
	AuditCleanupSchedule string `yaml:"audit_cleanup_schedule"`
	Concurrency          int    `yaml:"concurrency"`
	AuditRetentionDays   int    `yaml:"audit_retention_days"`
}

// ImportConfig holds bulk import settings
type ImportConfig struct {
	MaxErrors int `yaml:"max_errors"`
}

// WebhookConfig holds the outbound notification endpoint. Delivery is off
// when URL is empty.
type WebhookConfig struct {
	URL         string   `yaml:"url"`
	Secret      string   `yaml:"secret"`
	Format      string   `yaml:"format"`
	Events      []string `yaml:"events"`
	Workers     int      `yaml:"workers"`
	QueueSize   int      `yaml:"queue_size"`
	MaxAttempts int      `yaml:"max_attempts"`
}

// DefaultConfig returns the configuration used when nothing is set
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    1 << 20,
			HealthPort:      "9090",
			JWTIssuer:       "league-gotta-bike",
		},
		Storage: storage.DefaultConfig(),
		Cache: CacheConfig{
			Enabled: true,
			L1Size:  10000,
			TTL:     time.Minute,
			L1TTL:   5 * time.Second,
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: 120,
			Window:            time.Minute,
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "league-server",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
			OTelSampleRatio:    1.0,
		},
		Scheduler: SchedulerConfig{
			StatusSyncSchedule:   "0 0 3 * * *",
			AuditCleanupSchedule: "0 30 4 * * 0",
			Concurrency:          4,
			AuditRetentionDays:   730,
		},
		Import: ImportConfig{MaxErrors: 20},
		Webhooks: WebhookConfig{
			Format:      "json",
			Workers:     2,
			QueueSize:   256,
			MaxAttempts: 5,
		},
	}
}

// LoadConfig builds the configuration from defaults, the YAML file named by
// LEAGUE_CONFIG_FILE if set, and LEAGUE_* environment variables, in that
// order of precedence from lowest to highest
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	applyServerEnv(&cfg.Server)
	applyStorageEnv(&cfg.Storage)
	applyRedisEnv(cfg)
	applyObservabilityEnv(&cfg.Observability)
	applySchedulerEnv(cfg)
	applyWebhookEnv(&cfg.Webhooks)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadFile decodes a YAML file over cfg. Keys absent from the file keep
// their current values.
func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func applyServerEnv(cfg *ServerConfig) {
	cfg.Host = getEnv("LEAGUE_HOST", cfg.Host)
	cfg.Port = getEnv("LEAGUE_PORT", cfg.Port)
	cfg.ReadTimeout = getEnvDuration("LEAGUE_READ_TIMEOUT", cfg.ReadTimeout)
	cfg.WriteTimeout = getEnvDuration("LEAGUE_WRITE_TIMEOUT", cfg.WriteTimeout)
	cfg.IdleTimeout = getEnvDuration("LEAGUE_IDLE_TIMEOUT", cfg.IdleTimeout)
	cfg.ShutdownTimeout = getEnvDuration("LEAGUE_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	cfg.MaxBodyBytes = getEnvInt64("LEAGUE_MAX_BODY_BYTES", cfg.MaxBodyBytes)
	cfg.HealthPort = getEnv("LEAGUE_HEALTH_PORT", cfg.HealthPort)
	cfg.JWTSecret = getEnv("LEAGUE_JWT_SECRET", cfg.JWTSecret)
	cfg.JWTIssuer = getEnv("LEAGUE_JWT_ISSUER", cfg.JWTIssuer)
}

func applyStorageEnv(cfg *storage.Config) {
	cfg.Driver = getEnv("LEAGUE_STORAGE_DRIVER", cfg.Driver)

	// PostgreSQL config
	cfg.PostgresURL = getEnv("LEAGUE_POSTGRES_URL", cfg.PostgresURL)
	if maxConns := getEnvInt("LEAGUE_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.PostgresMaxConns = maxConns
	}
	if minConns := getEnvInt("LEAGUE_POSTGRES_MIN_CONNS", 0); minConns > 0 {
		cfg.PostgresMinConns = minConns
	}
	if timeout := getEnvDuration("LEAGUE_POSTGRES_TIMEOUT", 0); timeout > 0 {
		cfg.PostgresTimeout = timeout
	}

	// Transaction retry
	if attempts := getEnvInt("LEAGUE_TX_RETRY_ATTEMPTS", 0); attempts > 0 {
		cfg.RetryAttempts = uint(attempts)
	}
	cfg.RetryDelay = getEnvDuration("LEAGUE_TX_RETRY_DELAY", cfg.RetryDelay)
	cfg.RetryMaxDelay = getEnvDuration("LEAGUE_TX_RETRY_MAX_DELAY", cfg.RetryMaxDelay)
}

func applyRedisEnv(cfg *Config) {
	cfg.Redis.URL = getEnv("LEAGUE_REDIS_URL", cfg.Redis.URL)
	cfg.Redis.Password = getEnv("LEAGUE_REDIS_PASSWORD", cfg.Redis.Password)
	if redisDB := getEnvInt("LEAGUE_REDIS_DB", -1); redisDB >= 0 {
		cfg.Redis.DB = redisDB
	}
	if poolSize := getEnvInt("LEAGUE_REDIS_POOL_SIZE", 0); poolSize > 0 {
		cfg.Redis.PoolSize = poolSize
	}

	cfg.Cache.Enabled = getEnvBool("LEAGUE_CACHE_ENABLED", cfg.Cache.Enabled)
	if size := getEnvInt("LEAGUE_L1_CACHE_SIZE", 0); size > 0 {
		cfg.Cache.L1Size = size
	}
	cfg.Cache.TTL = getEnvDuration("LEAGUE_CACHE_TTL", cfg.Cache.TTL)
	cfg.Cache.L1TTL = getEnvDuration("LEAGUE_CACHE_L1_TTL", cfg.Cache.L1TTL)

	cfg.RateLimit.Enabled = getEnvBool("LEAGUE_RATE_LIMIT_ENABLED", cfg.RateLimit.Enabled)
	cfg.RateLimit.RequestsPerWindow = getEnvInt("LEAGUE_RATE_LIMIT_REQUESTS", cfg.RateLimit.RequestsPerWindow)
	cfg.RateLimit.Window = getEnvDuration("LEAGUE_RATE_LIMIT_WINDOW", cfg.RateLimit.Window)
}

func applyObservabilityEnv(cfg *ObservabilityConfig) {
	cfg.LogLevel = getEnv("LEAGUE_LOG_LEVEL", cfg.LogLevel)
	cfg.MetricsEnabled = getEnvBool("LEAGUE_METRICS_ENABLED", cfg.MetricsEnabled)
	cfg.OTelEnabled = getEnvBool("LEAGUE_OTEL_ENABLED", cfg.OTelEnabled)
	cfg.OTelEndpoint = getEnv("LEAGUE_OTEL_ENDPOINT", cfg.OTelEndpoint)
	cfg.OTelServiceName = getEnv("LEAGUE_OTEL_SERVICE_NAME", cfg.OTelServiceName)
	cfg.OTelServiceVersion = getEnv("LEAGUE_OTEL_SERVICE_VERSION", cfg.OTelServiceVersion)
	cfg.OTelInsecure = getEnvBool("LEAGUE_OTEL_INSECURE", cfg.OTelInsecure)
	cfg.OTelSampleRatio = getEnvFloat("LEAGUE_OTEL_SAMPLE_RATIO", cfg.OTelSampleRatio)
}

func applySchedulerEnv(cfg *Config) {
	cfg.Scheduler.StatusSyncSchedule = getEnv("LEAGUE_STATUS_SYNC_SCHEDULE", cfg.Scheduler.StatusSyncSchedule)
	cfg.Scheduler.AuditCleanupSchedule = getEnv("LEAGUE_AUDIT_CLEANUP_SCHEDULE", cfg.Scheduler.AuditCleanupSchedule)
	cfg.Scheduler.Concurrency = getEnvInt("LEAGUE_SYNC_CONCURRENCY", cfg.Scheduler.Concurrency)
	cfg.Scheduler.AuditRetentionDays = getEnvInt("LEAGUE_AUDIT_RETENTION_DAYS", cfg.Scheduler.AuditRetentionDays)
	cfg.Import.MaxErrors = getEnvInt("LEAGUE_IMPORT_MAX_ERRORS", cfg.Import.MaxErrors)
}

func applyWebhookEnv(cfg *WebhookConfig) {
	cfg.URL = getEnv("LEAGUE_WEBHOOK_URL", cfg.URL)
	cfg.Secret = getEnv("LEAGUE_WEBHOOK_SECRET", cfg.Secret)
	cfg.Format = getEnv("LEAGUE_WEBHOOK_FORMAT", cfg.Format)
	if events := getEnv("LEAGUE_WEBHOOK_EVENTS", ""); events != "" {
		cfg.Events = nil
		for _, e := range strings.Split(events, ",") {
			if e = strings.TrimSpace(e); e != "" {
				cfg.Events = append(cfg.Events, e)
			}
		}
	}
	cfg.Workers = getEnvInt("LEAGUE_WEBHOOK_WORKERS", cfg.Workers)
	cfg.QueueSize = getEnvInt("LEAGUE_WEBHOOK_QUEUE_SIZE", cfg.QueueSize)
	cfg.MaxAttempts = getEnvInt("LEAGUE_WEBHOOK_MAX_ATTEMPTS", cfg.MaxAttempts)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}
	if len(c.Server.JWTSecret) > 0 && len(c.Server.JWTSecret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 bytes")
	}

	// Validate storage config based on driver
	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if c.Storage.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required for postgres storage")
		}
	default:
		return fmt.Errorf("invalid storage driver: %s (must be postgres or memory)", c.Storage.Driver)
	}

	if c.RateLimit.Enabled {
		if c.Redis.URL == "" {
			return fmt.Errorf("redis URL is required when rate limiting is enabled")
		}
		if c.RateLimit.RequestsPerWindow <= 0 || c.RateLimit.Window <= 0 {
			return fmt.Errorf("rate limit requests and window must be positive")
		}
	}

	if _, err := observability.ParseLogLevel(c.Observability.LogLevel); err != nil {
		return err
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
		if c.Observability.OTelSampleRatio < 0 || c.Observability.OTelSampleRatio > 1 {
			return fmt.Errorf("OpenTelemetry sample ratio must be between 0 and 1")
		}
	}

	if c.Scheduler.Concurrency <= 0 {
		return fmt.Errorf("scheduler concurrency must be positive")
	}
	if c.Import.MaxErrors <= 0 {
		return fmt.Errorf("import max errors must be positive")
	}

	if c.Webhooks.URL != "" {
		switch c.Webhooks.Format {
		case "", "json", "slack", "teams":
		default:
			return fmt.Errorf("invalid webhook format: %s (must be json, slack or teams)", c.Webhooks.Format)
		}
		if c.Webhooks.MaxAttempts <= 0 {
			return fmt.Errorf("webhook max attempts must be positive")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
