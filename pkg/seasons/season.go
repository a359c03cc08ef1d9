package seasons

import (
	"context"
	"fmt"
	"strings"

	"github.com/vincentdavis/league-gotta-bike/pkg/audit"
	"github.com/vincentdavis/league-gotta-bike/pkg/membership"
	"github.com/vincentdavis/league-gotta-bike/pkg/models"
	"github.com/vincentdavis/league-gotta-bike/pkg/rbac"
	"github.com/vincentdavis/league-gotta-bike/pkg/storage"
)

// CreateSeason stores a new season for its organization. The actor needs
// edit_org. A season created active deactivates the organization's other
// seasons.
func (r *Registrar) CreateSeason(ctx context.Context, actorID int64, season *models.Season) (*models.Season, error) {
	var created *models.Season
	fields := map[string]any{"organization_id": season.OrganizationID, "name": season.Name}
	err := r.do(ctx, "create_season", actorID, fields, func(ctx context.Context, tx *membership.Tx) error {
		created = season.Clone()
		created.ID = 0
		created.Name = strings.TrimSpace(created.Name)
		if err := created.Validate(); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidSeason, err)
		}
		if err := tx.Authorize(ctx, created.OrganizationID, rbac.ActionEditOrg); err != nil {
			return err
		}
		repos := tx.Repositories()
		if _, err := repos.Organizations().LockOrganization(ctx, created.OrganizationID); err != nil {
			return fmt.Errorf("failed to lock organization: %w", err)
		}
		if created.IsActive {
			if err := deactivateOthers(ctx, repos, created.OrganizationID, 0); err != nil {
				return err
			}
		}
		if err := repos.Seasons().CreateSeason(ctx, created); err != nil {
			return fmt.Errorf("failed to create season: %w", err)
		}
		tx.Record(tx.NewEvent(audit.EventSeasonCreated, created.OrganizationID, audit.SubjectSeason, created.ID).
			WithMetadata("name", created.Name).
			WithMetadata("active", created.IsActive))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ActivateSeason makes a season the organization's active season and
// deactivates the others. The actor needs edit_org.
func (r *Registrar) ActivateSeason(ctx context.Context, actorID, seasonID int64) (*models.Season, error) {
	var activated *models.Season
	fields := map[string]any{"season_id": seasonID}
	err := r.do(ctx, "activate_season", actorID, fields, func(ctx context.Context, tx *membership.Tx) error {
		repos := tx.Repositories()
		season, err := repos.Seasons().GetSeason(ctx, seasonID)
		if err != nil {
			return fmt.Errorf("failed to get season: %w", err)
		}
		if err := tx.Authorize(ctx, season.OrganizationID, rbac.ActionEditOrg); err != nil {
			return err
		}
		if _, err := repos.Organizations().LockOrganization(ctx, season.OrganizationID); err != nil {
			return fmt.Errorf("failed to lock organization: %w", err)
		}
		activated = season
		if season.IsActive {
			return nil
		}
		if err := deactivateOthers(ctx, repos, season.OrganizationID, season.ID); err != nil {
			return err
		}
		season.IsActive = true
		if err := repos.Seasons().UpdateSeason(ctx, season); err != nil {
			return fmt.Errorf("failed to update season: %w", err)
		}
		tx.Record(tx.NewEvent(audit.EventSeasonActivated, season.OrganizationID, audit.SubjectSeason, season.ID).
			Transition("inactive", "active"))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return activated, nil
}

func deactivateOthers(ctx context.Context, repos storage.Repositories, orgID, keep int64) error {
	seasons, err := repos.Seasons().ListSeasons(ctx, orgID)
	if err != nil {
		return fmt.Errorf("failed to list seasons: %w", err)
	}
	for _, s := range seasons {
		if s.ID == keep || !s.IsActive {
			continue
		}
		s.IsActive = false
		if err := repos.Seasons().UpdateSeason(ctx, s); err != nil {
			return fmt.Errorf("failed to deactivate season %d: %w", s.ID, err)
		}
	}
	return nil
}

// GetSeason loads a season by id
func (r *Registrar) GetSeason(ctx context.Context, id int64) (*models.Season, error) {
	s, err := r.store.Seasons().GetSeason(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get season: %w", err)
	}
	return s, nil
}

// ListSeasons lists an organization's seasons, newest first
func (r *Registrar) ListSeasons(ctx context.Context, orgID int64) ([]*models.Season, error) {
	seasons, err := r.store.Seasons().ListSeasons(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list seasons: %w", err)
	}
	return seasons, nil
}
