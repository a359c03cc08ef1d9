package membership

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vincentdavis/league-gotta-bike/pkg/audit"
	"github.com/vincentdavis/league-gotta-bike/pkg/observability"
	"github.com/vincentdavis/league-gotta-bike/pkg/orgs"
	"github.com/vincentdavis/league-gotta-bike/pkg/rbac"
	"github.com/vincentdavis/league-gotta-bike/pkg/storage"
)

var tracer = observability.Tracer("membership")

// Manager runs membership lifecycle and role operations
type Manager struct {
	store   storage.Store
	audit   audit.Logger
	cache   rbac.Invalidator
	logger  *observability.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// Option configures a Manager
type Option func(*Manager)

// WithAuditLogger sets the destination for audit events
func WithAuditLogger(l audit.Logger) Option {
	return func(m *Manager) { m.audit = l }
}

// WithInvalidator sets the permission cache to invalidate after changes
func WithInvalidator(inv rbac.Invalidator) Option {
	return func(m *Manager) { m.cache = inv }
}

// WithLogger sets the fallback logger used when the context carries none
func WithLogger(l *observability.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithMetrics sets the metrics sink
func WithMetrics(metrics *observability.Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a manager over store
func NewManager(store storage.Store, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		audit:  audit.NoopLogger{},
		logger: observability.NopLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TxFunc is the body of Manager.Run
type TxFunc func(ctx context.Context, tx *Tx) error

// Run executes fn in one transaction on behalf of actorID (0 for the
// system). Audit events and cache invalidations queued on tx are emitted
// only if the transaction commits.
func (m *Manager) Run(ctx context.Context, actorID int64, fn TxFunc) error {
	var tx *Tx
	err := m.store.InTx(ctx, func(ctx context.Context, repos storage.Repositories) error {
		// InTx may call us again after a conflict; start from a clean slate
		tx = newTx(repos, actorID, m.now())
		return fn(ctx, tx)
	})
	if err != nil {
		return err
	}
	m.afterCommit(ctx, tx)
	return nil
}

func (m *Manager) afterCommit(ctx context.Context, tx *Tx) {
	audit.Emit(ctx, m.audit, tx.events...)
	if m.cache == nil {
		return
	}
	for _, k := range tx.stale {
		if err := m.cache.Invalidate(ctx, k.userID, k.orgID); err != nil {
			m.log(ctx).WithError(err).WithFields(map[string]any{
				"user_id":         k.userID,
				"organization_id": k.orgID,
			}).Warn("failed to invalidate permission cache")
		}
	}
}

func (m *Manager) log(ctx context.Context) *observability.Logger {
	return observability.FromContextOr(ctx, m.logger)
}

// do wraps an operation with a span, a metric and a log line
func (m *Manager) do(ctx context.Context, op string, actorID int64, fields map[string]any, fn TxFunc) error {
	if actorID != 0 {
		ctx = observability.WithActorID(ctx, actorID)
	}
	ctx, span := tracer.Start(ctx, "membership."+op, trace.WithAttributes(
		attribute.String("membership.operation", op),
		attribute.Int64("actor.id", actorID),
	))
	err := m.Run(ctx, actorID, fn)
	observability.EndSpan(span, err)
	m.metrics.RecordMembershipChange(op, err)

	logger := m.log(ctx).WithFields(fields).WithField("operation", op)
	switch {
	case err == nil:
		logger.Info("membership operation completed")
	case isRejection(err):
		logger.WithError(err).Warn("membership operation rejected")
	default:
		logger.WithError(err).Error("membership operation failed")
	}
	return err
}

// isRejection reports whether err is a business outcome rather than a fault
func isRejection(err error) bool {
	return IsMembershipError(err) ||
		rbac.IsUnauthorized(err) ||
		orgs.IsHierarchyViolation(err) ||
		errors.Is(err, orgs.ErrInvalidOrganization) ||
		errors.Is(err, orgs.ErrHasChildren) ||
		errors.Is(err, ErrInvalidInput) ||
		storage.IsNotFound(err) ||
		storage.IsDuplicate(err)
}
