// Package postgres implements storage.Store on PostgreSQL through lib/pq.
//
// Transactions run at READ COMMITTED. Capacity and owner checks rely on
// LockSeason and LockOrganization, which issue SELECT ... FOR UPDATE so that
// concurrent transactions touching the same season or organization queue on
// the row lock and each re-reads counts committed before it. Serialization
// failures and deadlocks are reported as storage.ErrConflict and InTx retries
// them with backoff.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/lib/pq"

	"github.com/vincentdavis/league-gotta-bike/pkg/storage"
)

const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is a PostgreSQL storage.Store
type Store struct {
	db      *sql.DB
	cfg     storage.Config
	onRetry func(attempt uint, err error)
}

// Option configures a Store
type Option func(*Store)

// WithRetryHook is called before each transaction retry
func WithRetryHook(fn func(attempt uint, err error)) Option {
	return func(s *Store) {
		s.onRetry = fn
	}
}

// NewStore wraps an open database
func NewStore(db *sql.DB, cfg storage.Config, opts ...Option) *Store {
	s := &Store{db: db, cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ storage.Store = (*Store)(nil)

// DB returns the underlying database handle
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Organizations() storage.OrganizationRepository { return &repos{q: s.db} }
func (s *Store) Memberships() storage.MembershipRepository     { return &repos{q: s.db} }
func (s *Store) Roles() storage.RoleRepository                 { return &repos{q: s.db} }
func (s *Store) Seasons() storage.SeasonRepository             { return &repos{q: s.db} }
func (s *Store) Registrations() storage.RegistrationRepository { return &repos{q: s.db} }

// InTx runs fn in a READ COMMITTED transaction, retrying on conflict
func (s *Store) InTx(ctx context.Context, fn storage.TxFunc) error {
	attempts := s.cfg.RetryAttempts
	if attempts == 0 {
		attempts = 1
	}

	return retry.Do(
		func() error {
			return s.runTx(ctx, fn)
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(s.cfg.RetryDelay),
		retry.MaxDelay(s.cfg.RetryMaxDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(storage.IsConflict),
		retry.OnRetry(func(n uint, err error) {
			if s.onRetry != nil {
				s.onRetry(n+1, err)
			}
		}),
	)
}

func (s *Store) runTx(ctx context.Context, fn storage.TxFunc) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return wrapErr("failed to begin transaction", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, &repos{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return wrapErr("failed to commit transaction", err)
	}
	return nil
}

// HealthCheck pings the database
func (s *Store) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres unhealthy: %w", err)
	}
	return nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// wrapErr maps driver errors onto the storage sentinels
func wrapErr(msg string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", msg, storage.ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeUniqueViolation:
			return fmt.Errorf("%s: %w: %w", msg, storage.ErrDuplicate, err)
		case codeSerializationFailure, codeDeadlockDetected:
			return fmt.Errorf("%s: %w: %w", msg, storage.ErrConflict, err)
		}
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// expectOne turns a zero-row update or delete into ErrNotFound
func expectOne(res sql.Result, msg string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return wrapErr(msg, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", msg, storage.ErrNotFound)
	}
	return nil
}
