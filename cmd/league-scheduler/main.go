package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/vincentdavis/league-gotta-bike/pkg/audit"
	"github.com/vincentdavis/league-gotta-bike/pkg/config"
	"github.com/vincentdavis/league-gotta-bike/pkg/membership"
	"github.com/vincentdavis/league-gotta-bike/pkg/observability"
	"github.com/vincentdavis/league-gotta-bike/pkg/seasons"
	"github.com/vincentdavis/league-gotta-bike/pkg/storage/postgres"
)

func main() {
	runOnce := flag.Bool("run-once", false, "Run every job once and exit")
	job := flag.String("job", "", "With --run-once, run only this job (status-sync or audit-cleanup)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Observability.LogLevel)
	if cfg.Storage.Driver != "postgres" {
		logger.Fatalf("Scheduler requires the postgres storage driver, got %q", cfg.Storage.Driver)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Open(ctx, cfg.Storage)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	auditDB, err := audit.NewDBLogger(db)
	if err != nil {
		logger.Fatalf("Failed to create audit logger: %v", err)
	}

	libLogger := observability.NewLogger(cfg.Observability.Level(), os.Stdout).WithField("service", "league-scheduler")
	store := postgres.NewStore(db, cfg.Storage, postgres.WithRetryHook(func(attempt uint, err error) {
		logger.WithError(err).WithField("attempt", attempt).Debug("Retrying transaction")
	}))
	mgr := membership.NewManager(store,
		membership.WithAuditLogger(auditDB),
		membership.WithLogger(libLogger),
	)

	s := &scheduler{
		syncer:    seasons.NewSyncer(mgr, store, cfg.Scheduler.Concurrency, libLogger, nil),
		audit:     auditDB,
		retention: retentionPolicy(cfg.Scheduler.AuditRetentionDays),
		logger:    logger,
	}

	if *runOnce {
		if err := s.runOnce(ctx, *job); err != nil {
			logger.Fatalf("Run failed: %v", err)
		}
		return
	}

	c := cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(cfg.Scheduler.StatusSyncSchedule, func() { s.statusSync(ctx) }); err != nil {
		logger.Fatalf("Invalid status sync schedule %q: %v", cfg.Scheduler.StatusSyncSchedule, err)
	}
	if _, err := c.AddFunc(cfg.Scheduler.AuditCleanupSchedule, func() { s.auditCleanup(ctx) }); err != nil {
		logger.Fatalf("Invalid audit cleanup schedule %q: %v", cfg.Scheduler.AuditCleanupSchedule, err)
	}
	c.Start()
	logger.WithFields(logrus.Fields{
		"status_sync":   cfg.Scheduler.StatusSyncSchedule,
		"audit_cleanup": cfg.Scheduler.AuditCleanupSchedule,
	}).Info("Scheduler started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	logger.WithField("signal", sig.String()).Info("Shutting down scheduler")

	// Wait for running jobs, then cancel anything still blocked
	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(cfg.Server.ShutdownTimeout):
		logger.Warn("Timed out waiting for running jobs")
	}
	cancel()
}

type scheduler struct {
	syncer    *seasons.Syncer
	audit     *audit.DBLogger
	retention audit.RetentionPolicy
	logger    *logrus.Logger
}

func (s *scheduler) runOnce(ctx context.Context, job string) error {
	switch job {
	case "":
		if err := s.statusSync(ctx); err != nil {
			return err
		}
		return s.auditCleanup(ctx)
	case "status-sync":
		return s.statusSync(ctx)
	case "audit-cleanup":
		return s.auditCleanup(ctx)
	}
	return fmt.Errorf("unknown job %q", job)
}

func (s *scheduler) statusSync(ctx context.Context) error {
	result, err := s.syncer.Run(ctx)
	entry := s.logger.WithFields(logrus.Fields{
		"job":                     "status-sync",
		"organizations_processed": result.OrganizationsProcessed,
		"memberships_activated":   result.MembershipsActivated,
		"memberships_deactivated": result.MembershipsDeactivated,
		"failed":                  result.Failed,
		"duration":                result.Duration.String(),
	})
	if err != nil {
		entry.WithError(err).Error("Status sync finished with errors")
		return err
	}
	entry.Info("Status sync finished")
	return nil
}

func (s *scheduler) auditCleanup(ctx context.Context) error {
	deleted, err := s.audit.Cleanup(ctx, s.retention)
	if err != nil {
		s.logger.WithError(err).Error("Audit cleanup failed")
		return err
	}
	s.logger.WithFields(logrus.Fields{
		"job":     "audit-cleanup",
		"deleted": deleted,
	}).Info("Audit cleanup finished")
	return nil
}

func retentionPolicy(days int) audit.RetentionPolicy {
	policy := audit.DefaultRetentionPolicy()
	if days > 0 {
		policy.RetentionDays = days
	}
	return policy
}

func setupLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}
