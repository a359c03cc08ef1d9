package storage

import "time"

// Config for the storage backend
type Config struct {
	Driver string `yaml:"driver"` // "postgres" or "memory"

	PostgresURL         string        `yaml:"postgres_url"`
	PostgresMaxConns    int           `yaml:"postgres_max_conns"`
	PostgresMinConns    int           `yaml:"postgres_min_conns"`
	PostgresTimeout     time.Duration `yaml:"postgres_timeout"`
	PostgresMaxLifetime time.Duration `yaml:"postgres_max_lifetime"`
	PostgresMaxIdleTime time.Duration `yaml:"postgres_max_idle_time"`

	// Transaction retry on serialization failure or deadlock
	RetryAttempts uint          `yaml:"retry_attempts"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
	RetryMaxDelay time.Duration `yaml:"retry_max_delay"`
}

// DefaultConfig returns the default storage configuration
func DefaultConfig() Config {
	return Config{
		Driver:              "memory",
		PostgresMaxConns:    20,
		PostgresMinConns:    2,
		PostgresTimeout:     10 * time.Second,
		PostgresMaxLifetime: 30 * time.Minute,
		PostgresMaxIdleTime: 5 * time.Minute,
		RetryAttempts:       3,
		RetryDelay:          50 * time.Millisecond,
		RetryMaxDelay:       time.Second,
	}
}
