package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/vincentdavis/league-gotta-bike/pkg/models"
	"github.com/vincentdavis/league-gotta-bike/pkg/storage"
)

// repos implements every storage repository over a querier
type repos struct {
	q querier
}

func (r *repos) Organizations() storage.OrganizationRepository { return r }
func (r *repos) Memberships() storage.MembershipRepository     { return r }
func (r *repos) Roles() storage.RoleRepository                 { return r }
func (r *repos) Seasons() storage.SeasonRepository             { return r }
func (r *repos) Registrations() storage.RegistrationRepository { return r }

type scanner interface {
	Scan(dest ...any) error
}

const orgColumns = `id, type, parent_id, name, slug, description, is_active, membership_open, profile, created_at, updated_at`

func scanOrganization(row scanner) (*models.Organization, error) {
	var (
		org     models.Organization
		profile []byte
	)
	err := row.Scan(
		&org.ID, &org.Type, &org.ParentID, &org.Name, &org.Slug, &org.Description,
		&org.IsActive, &org.MembershipOpen, &profile, &org.CreatedAt, &org.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(profile) > 0 {
		p, err := models.DecodeProfile(org.Type, profile)
		if err != nil {
			return nil, err
		}
		org.Profile = p
	}
	return &org, nil
}

func encodeProfile(p models.Profile) (sql.NullString, error) {
	if p == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode profile: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func (r *repos) CreateOrganization(ctx context.Context, org *models.Organization) error {
	profile, err := encodeProfile(org.Profile)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO organizations (type, parent_id, name, slug, description, is_active, membership_open, profile)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`
	err = r.q.QueryRowContext(ctx, query,
		org.Type, org.ParentID, org.Name, org.Slug, org.Description,
		org.IsActive, org.MembershipOpen, profile,
	).Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return wrapErr("failed to create organization", err)
	}
	return nil
}

func (r *repos) GetOrganization(ctx context.Context, id int64) (*models.Organization, error) {
	query := `SELECT ` + orgColumns + ` FROM organizations WHERE id = $1`
	org, err := scanOrganization(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("failed to get organization %d", id), err)
	}
	return org, nil
}

func (r *repos) GetOrganizationBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	query := `SELECT ` + orgColumns + ` FROM organizations WHERE slug = $1`
	org, err := scanOrganization(r.q.QueryRowContext(ctx, query, slug))
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("failed to get organization %q", slug), err)
	}
	return org, nil
}

func (r *repos) UpdateOrganization(ctx context.Context, org *models.Organization) error {
	profile, err := encodeProfile(org.Profile)
	if err != nil {
		return err
	}

	query := `
		UPDATE organizations
		SET type = $1, parent_id = $2, name = $3, slug = $4, description = $5,
			is_active = $6, membership_open = $7, profile = $8, updated_at = NOW()
		WHERE id = $9
		RETURNING updated_at
	`
	err = r.q.QueryRowContext(ctx, query,
		org.Type, org.ParentID, org.Name, org.Slug, org.Description,
		org.IsActive, org.MembershipOpen, profile, org.ID,
	).Scan(&org.UpdatedAt)
	if err != nil {
		return wrapErr(fmt.Sprintf("failed to update organization %d", org.ID), err)
	}
	return nil
}

// DeleteOrganization relies on the foreign keys to cascade memberships,
// roles, seasons and registrations
func (r *repos) DeleteOrganization(ctx context.Context, id int64) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM organizations WHERE id = $1`, id)
	if err != nil {
		return wrapErr(fmt.Sprintf("failed to delete organization %d", id), err)
	}
	return expectOne(res, fmt.Sprintf("failed to delete organization %d", id))
}

func (r *repos) ListChildren(ctx context.Context, parentID int64) ([]*models.Organization, error) {
	query := `SELECT ` + orgColumns + ` FROM organizations WHERE parent_id = $1 ORDER BY name`
	rows, err := r.q.QueryContext(ctx, query, parentID)
	if err != nil {
		return nil, wrapErr("failed to list child organizations", err)
	}
	defer rows.Close()

	var out []*models.Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, wrapErr("failed to scan organization", err)
		}
		out = append(out, org)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("failed to list child organizations", err)
	}
	return out, nil
}

func (r *repos) LockOrganization(ctx context.Context, id int64) (*models.Organization, error) {
	query := `SELECT ` + orgColumns + ` FROM organizations WHERE id = $1 FOR UPDATE`
	org, err := scanOrganization(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("failed to lock organization %d", id), err)
	}
	return org, nil
}
