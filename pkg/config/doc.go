// Package config provides application configuration management from a YAML
// file and environment variables.
//
// # Overview
//
// LoadConfig starts from DefaultConfig, decodes the YAML file named by
// LEAGUE_CONFIG_FILE over it when that variable is set, applies LEAGUE_*
// environment variables on top and validates the result. Environment
// variables therefore always win over the file.
//
// # Configuration Structure
//
// Server settings:
//
//	LEAGUE_HOST="0.0.0.0"
//	LEAGUE_PORT="8080"
//	LEAGUE_HEALTH_PORT="9090"
//	LEAGUE_READ_TIMEOUT="15s"
//	LEAGUE_JWT_SECRET="at-least-32-bytes-of-secret-material"
//
// Storage settings:
//
//	LEAGUE_STORAGE_DRIVER="postgres"  # postgres, memory
//	LEAGUE_POSTGRES_URL="postgres://localhost/league"
//	LEAGUE_POSTGRES_MAX_CONNS="20"
//	LEAGUE_TX_RETRY_ATTEMPTS="3"
//
// Cache and rate limit settings:
//
//	LEAGUE_CACHE_ENABLED="true"
//	LEAGUE_CACHE_TTL="1m"
//	LEAGUE_REDIS_URL="redis://localhost:6379"
//	LEAGUE_RATE_LIMIT_ENABLED="true"
//	LEAGUE_RATE_LIMIT_REQUESTS="120"
//
// Observability settings:
//
//	LEAGUE_LOG_LEVEL="info"  # debug, info, warn, error
//	LEAGUE_METRICS_ENABLED="true"
//	LEAGUE_OTEL_ENABLED="true"
//	LEAGUE_OTEL_ENDPOINT="otel-collector:4317"
//
// Scheduler and import settings:
//
//	LEAGUE_STATUS_SYNC_SCHEDULE="0 0 3 * * *"
//	LEAGUE_SYNC_CONCURRENCY="4"
//	LEAGUE_AUDIT_RETENTION_DAYS="730"
//	LEAGUE_IMPORT_MAX_ERRORS="20"
//
// Audit event webhooks (off unless a URL is set):
//
//	LEAGUE_WEBHOOK_URL="https://hooks.slack.com/services/..."
//	LEAGUE_WEBHOOK_FORMAT="slack"  # json, slack, teams
//	LEAGUE_WEBHOOK_EVENTS="membership.join_requested,registration.requested"
//
// The same settings in YAML:
//
//	server:
//	  port: "8080"
//	  read_timeout: 15s
//	storage:
//	  driver: postgres
//	  postgres_url: postgres://localhost/league
//	cache:
//	  ttl: 1m
//
// # Related Packages
//
//   - pkg/storage: Uses storage and Redis configuration
//   - pkg/observability: Uses observability configuration
//   - pkg/webhooks: Uses webhook configuration
package config
