package seasons

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vincentdavis/league-gotta-bike/pkg/membership"
	"github.com/vincentdavis/league-gotta-bike/pkg/models"
	"github.com/vincentdavis/league-gotta-bike/pkg/observability"
	"github.com/vincentdavis/league-gotta-bike/pkg/storage"
)

// DefaultSyncConcurrency bounds how many organizations sync at once
const DefaultSyncConcurrency = 4

// SyncResult summarizes one sync run
type SyncResult struct {
	OrganizationsProcessed int           `json:"organizations_processed"`
	MembershipsActivated   int           `json:"memberships_activated"`
	MembershipsDeactivated int           `json:"memberships_deactivated"`
	Failed                 int           `json:"failed"`
	Duration               time.Duration `json:"duration"`
}

// MembershipsUpdated is the total number of status changes
func (r SyncResult) MembershipsUpdated() int {
	return r.MembershipsActivated + r.MembershipsDeactivated
}

// Syncer aligns membership status with active season registrations
type Syncer struct {
	mgr         *membership.Manager
	seasons     storage.SeasonRepository
	concurrency int
	logger      *observability.Logger
	metrics     *observability.Metrics
}

// NewSyncer creates a syncer. concurrency <= 0 uses DefaultSyncConcurrency.
func NewSyncer(mgr *membership.Manager, store storage.Store, concurrency int, logger *observability.Logger, metrics *observability.Metrics) *Syncer {
	if concurrency <= 0 {
		concurrency = DefaultSyncConcurrency
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Syncer{
		mgr:         mgr,
		seasons:     store.Seasons(),
		concurrency: concurrency,
		logger:      logger.WithField("component", "status_sync"),
		metrics:     metrics,
	}
}

// Run syncs every organization with an active season. Each organization is
// its own transaction; a failure is logged and counted without stopping the
// others, and all failures are returned joined.
func (s *Syncer) Run(ctx context.Context) (SyncResult, error) {
	ctx, span := tracer.Start(ctx, "seasons.status_sync")
	start := time.Now()

	active, err := s.seasons.ListActiveSeasons(ctx)
	if err != nil {
		err = fmt.Errorf("failed to list active seasons: %w", err)
		observability.EndSpan(span, err)
		return SyncResult{}, err
	}

	// one active season per organization; the first listed wins
	byOrg := make(map[int64]*models.Season, len(active))
	var order []*models.Season
	for _, season := range active {
		if _, ok := byOrg[season.OrganizationID]; ok {
			continue
		}
		byOrg[season.OrganizationID] = season
		order = append(order, season)
	}

	var (
		activated, deactivated, failed atomic.Int64
		mu                             sync.Mutex
		errs                           []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, season := range order {
		g.Go(func() error {
			up, down, err := s.syncOrganization(gctx, season)
			activated.Add(int64(up))
			deactivated.Add(int64(down))
			if err != nil {
				failed.Add(1)
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				s.logger.WithError(err).WithFields(map[string]any{
					"organization_id": season.OrganizationID,
					"season_id":       season.ID,
				}).Error("failed to sync organization")
			}
			return nil
		})
	}
	_ = g.Wait()

	result := SyncResult{
		OrganizationsProcessed: len(order),
		MembershipsActivated:   int(activated.Load()),
		MembershipsDeactivated: int(deactivated.Load()),
		Failed:                 int(failed.Load()),
		Duration:               time.Since(start),
	}
	s.metrics.RecordStatusSync(string(models.MembershipActive), result.MembershipsActivated)
	s.metrics.RecordStatusSync(string(models.MembershipInactive), result.MembershipsDeactivated)
	s.metrics.ObserveStatusSync(result.Duration)

	err = errors.Join(errs...)
	observability.EndSpan(span, err)
	s.logger.WithFields(map[string]any{
		"organizations_processed": result.OrganizationsProcessed,
		"memberships_updated":     result.MembershipsUpdated(),
		"failed":                  result.Failed,
		"duration_ms":             result.Duration.Milliseconds(),
	}).Info("membership status sync completed")
	return result, err
}

// syncOrganization updates one organization in a single transaction and
// returns how many memberships were activated and deactivated
func (s *Syncer) syncOrganization(ctx context.Context, season *models.Season) (int, int, error) {
	var up, down int
	err := s.mgr.Run(ctx, 0, func(ctx context.Context, tx *membership.Tx) error {
		up, down = 0, 0
		repos := tx.Repositories()
		ms, err := repos.Memberships().ListMemberships(ctx, season.OrganizationID, storage.MembershipFilter{})
		if err != nil {
			return fmt.Errorf("failed to list memberships: %w", err)
		}
		for _, m := range ms {
			if exemptFromSync(m) {
				continue
			}
			registered, err := repos.Registrations().HasRegistration(ctx, m.ID, season.ID, models.RegistrationApproved)
			if err != nil {
				return fmt.Errorf("failed to check registration of membership %d: %w", m.ID, err)
			}
			want := models.MembershipInactive
			if registered {
				want = models.MembershipActive
			}
			if m.Status == want {
				continue
			}
			if _, err := tx.SetStatus(ctx, m, want); err != nil {
				return err
			}
			if registered {
				up++
			} else {
				down++
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return up, down, nil
}

// exemptFromSync reports memberships whose status the sync never touches
func exemptFromSync(m *models.Membership) bool {
	switch {
	case m.Status == models.MembershipProspect:
		return true
	case m.PermissionLevel == models.PermissionOwner, m.PermissionLevel == models.PermissionAdmin:
		return true
	}
	return false
}
