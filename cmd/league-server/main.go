package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/vincentdavis/league-gotta-bike/pkg/api"
	"github.com/vincentdavis/league-gotta-bike/pkg/audit"
	"github.com/vincentdavis/league-gotta-bike/pkg/config"
	"github.com/vincentdavis/league-gotta-bike/pkg/importer"
	"github.com/vincentdavis/league-gotta-bike/pkg/membership"
	"github.com/vincentdavis/league-gotta-bike/pkg/middleware"
	"github.com/vincentdavis/league-gotta-bike/pkg/observability"
	"github.com/vincentdavis/league-gotta-bike/pkg/rbac"
	"github.com/vincentdavis/league-gotta-bike/pkg/seasons"
	"github.com/vincentdavis/league-gotta-bike/pkg/storage"
	"github.com/vincentdavis/league-gotta-bike/pkg/storage/memory"
	"github.com/vincentdavis/league-gotta-bike/pkg/storage/postgres"
	"github.com/vincentdavis/league-gotta-bike/pkg/webhooks"
)

var version = "dev"

func main() {
	migrate := flag.Bool("migrate", true, "Apply database migrations on startup (postgres only)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.Level(), os.Stdout).
		WithField("service", cfg.Observability.OTelServiceName)
	if err := run(cfg, logger, *migrate); err != nil {
		logger.WithError(err).Error("Server exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger, migrate bool) error {
	ctx := context.Background()
	if cfg.Server.JWTSecret == "" {
		return errors.New("LEAGUE_JWT_SECRET is required")
	}

	otelCfg := cfg.Observability.OTel()
	if otelCfg.ServiceVersion == "" {
		otelCfg.ServiceVersion = version
	}
	providers, err := observability.InitOTel(ctx, otelCfg, logger)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	store, db, err := openStore(ctx, cfg.Storage, migrate, logger, metrics)
	if err != nil {
		return err
	}

	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		if rdb, err = storage.NewRedisClient(ctx, cfg.Redis); err != nil {
			return err
		}
		logger.Info("Connected to Redis")
	}

	// Audit events go to the log and, with postgres, to the audit table
	auditLoggers := []audit.Logger{audit.NewStructuredLogger(logger.WithField("component", "audit"))}
	var auditSearch api.AuditSearcher
	if db != nil {
		dbAudit, err := audit.NewDBLogger(db)
		if err != nil {
			return err
		}
		auditLoggers = append(auditLoggers, dbAudit)
		auditSearch = dbAudit
	}
	if cfg.Webhooks.URL != "" {
		notifier, err := newNotifier(cfg.Webhooks, logger)
		if err != nil {
			return err
		}
		auditLoggers = append(auditLoggers, notifier)
		logger.WithField("format", cfg.Webhooks.Format).Info("Audit webhooks enabled")
	}
	auditLog := audit.NewMultiLogger(auditLoggers...)

	var authz rbac.Authorizer = rbac.NewResolver(store.Memberships())
	opts := []membership.Option{
		membership.WithAuditLogger(auditLog),
		membership.WithLogger(logger),
		membership.WithMetrics(metrics),
	}
	if cfg.Cache.Enabled {
		cached := rbac.NewCachedResolver(authz, rbac.CacheConfig{Size: cfg.Cache.L1Size, TTL: cfg.Cache.TTL, L1TTL: cfg.Cache.L1TTL}, rdb, logger, metrics)
		authz = cached
		opts = append(opts, membership.WithInvalidator(cached))
	}

	mgr := membership.NewManager(store, opts...)
	srvCfg := api.Config{
		Store:         store,
		Manager:       mgr,
		Registrar:     seasons.NewRegistrar(mgr, store, logger, metrics),
		Importer:      importer.New(mgr, cfg.Import.MaxErrors, logger, metrics),
		Authorizer:    authz,
		Authenticator: middleware.NewAuthenticator(cfg.Server.JWTSecret, cfg.Server.JWTIssuer),
		Audit:         auditSearch,
		Logger:        logger,
		Metrics:       metrics,
		MaxBodyBytes:  cfg.Server.MaxBodyBytes,
	}
	if cfg.RateLimit.Enabled {
		srvCfg.RateLimiter = middleware.NewRateLimiter(rdb, middleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.RequestsPerWindow,
			WindowDuration:    cfg.RateLimit.Window,
		}, logger)
	}

	var handler http.Handler = api.NewServer(srvCfg)
	if otelCfg.Enabled {
		handler = otelhttp.NewHandler(handler, "league-api")
	}

	server := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health and metrics live on their own port for probes and scraping
	health := observability.NewHealthChecker(store, rdb, version)
	opsMux := http.NewServeMux()
	opsMux.HandleFunc("/health/live", health.Liveness)
	opsMux.HandleFunc("/health/ready", health.Readiness)
	opsMux.Handle("/metrics", observability.MetricsHandler(registry))
	opsServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:           opsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	shutdown := observability.NewShutdownManager(logger, server, cfg.Server.ShutdownTimeout)
	shutdown.Register(opsServer.Shutdown)
	shutdown.Register(func(ctx context.Context) error { return auditLog.Close() })
	if rdb != nil {
		shutdown.Register(func(ctx context.Context) error { return rdb.Close() })
	}
	shutdown.Register(func(ctx context.Context) error { return store.Close() })
	shutdown.Register(func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, logger)
	})

	serveErr := make(chan error, 2)
	serve := func(name string, srv *http.Server) {
		defer observability.RecoverPanic(logger, name)
		logger.WithField("addr", srv.Addr).Infof("Starting %s", name)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("%s: %w", name, err)
		}
	}
	go serve("api server", server)
	go serve("ops server", opsServer)

	stop := make(chan error, 1)
	go func() { stop <- shutdown.WaitForSignal() }()

	select {
	case err := <-serveErr:
		_ = shutdown.Shutdown()
		return err
	case err := <-stop:
		return err
	}
}

func newNotifier(cfg config.WebhookConfig, logger *observability.Logger) (*webhooks.Notifier, error) {
	format, err := webhooks.ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}
	events := make([]audit.EventType, 0, len(cfg.Events))
	for _, e := range cfg.Events {
		events = append(events, audit.EventType(e))
	}
	wcfg := webhooks.DefaultConfig()
	wcfg.Endpoints = []webhooks.Endpoint{{URL: cfg.URL, Secret: cfg.Secret, Format: format, Events: events}}
	wcfg.Workers = cfg.Workers
	wcfg.QueueSize = cfg.QueueSize
	if cfg.MaxAttempts > 0 {
		wcfg.MaxAttempts = uint(cfg.MaxAttempts)
	}
	return webhooks.NewNotifier(wcfg, logger), nil
}

// openStore opens the configured backend. The returned *sql.DB is nil for
// the memory store.
func openStore(ctx context.Context, cfg storage.Config, migrate bool, logger *observability.Logger, metrics *observability.Metrics) (storage.Store, *sql.DB, error) {
	switch cfg.Driver {
	case "memory":
		logger.Warn("Using in-memory storage; data is lost on restart")
		return memory.New(), nil, nil
	case "postgres":
		db, err := postgres.Open(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		if migrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				_ = db.Close()
				return nil, nil, err
			}
			logger.Info("Database migrations applied")
		}
		store := postgres.NewStore(db, cfg, postgres.WithRetryHook(func(attempt uint, err error) {
			metrics.RecordTxRetry()
			logger.WithError(err).WithField("attempt", attempt).Debug("Retrying transaction")
		}))
		return store, db, nil
	}
	return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}
