// Package observability provides structured logging, Prometheus metrics,
// OpenTelemetry tracing and health endpoints for the league services.
//
// # Structured Logging
//
// Logger wraps log/slog with a JSON handler:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("organization_id", orgID).Info("membership created")
//
// Request-scoped loggers travel in the context:
//
//	ctx = observability.WithLogger(ctx, logger)
//	observability.FromContext(ctx).WithError(err).Error("registration failed")
//
// # Prometheus Metrics
//
// Metrics is registered once per process and handed to the services. Every
// Record* method is safe on a nil *Metrics so tests can pass nil:
//
//	metrics := observability.NewMetrics(prometheus.NewRegistry())
//	metrics.RecordRegistration("waitlisted")
//
// # OpenTelemetry
//
// InitOTel installs global tracer and meter providers exporting over OTLP
// gRPC. Services obtain tracers with Tracer and close spans with EndSpan,
// which records the error on failure.
//
// # Health Checks
//
// HealthChecker reports the store and, when configured, Redis. Redis is an
// optional cache so its failure degrades rather than fails readiness.
package observability
