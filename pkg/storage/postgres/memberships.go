package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/vincentdavis/league-gotta-bike/pkg/models"
	"github.com/vincentdavis/league-gotta-bike/pkg/storage"
)

const membershipColumns = `id, user_id, organization_id, permission_level, status, joined_at, updated_at`

func scanMembership(row scanner) (*models.Membership, error) {
	var m models.Membership
	err := row.Scan(&m.ID, &m.UserID, &m.OrganizationID, &m.PermissionLevel, &m.Status, &m.JoinedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *repos) CreateMembership(ctx context.Context, m *models.Membership) error {
	query := `
		INSERT INTO memberships (user_id, organization_id, permission_level, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, joined_at, updated_at
	`
	err := r.q.QueryRowContext(ctx, query, m.UserID, m.OrganizationID, m.PermissionLevel, m.Status).
		Scan(&m.ID, &m.JoinedAt, &m.UpdatedAt)
	if err != nil {
		return wrapErr("failed to create membership", err)
	}
	return nil
}

func (r *repos) GetMembership(ctx context.Context, id int64) (*models.Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM memberships WHERE id = $1`
	m, err := scanMembership(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("failed to get membership %d", id), err)
	}
	return m, nil
}

func (r *repos) FindMembership(ctx context.Context, userID, orgID int64) (*models.Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM memberships WHERE user_id = $1 AND organization_id = $2`
	m, err := scanMembership(r.q.QueryRowContext(ctx, query, userID, orgID))
	if err != nil {
		return nil, wrapErr("failed to find membership", err)
	}
	return m, nil
}

func (r *repos) UpdateMembership(ctx context.Context, m *models.Membership) error {
	query := `
		UPDATE memberships
		SET permission_level = $1, status = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING updated_at
	`
	err := r.q.QueryRowContext(ctx, query, m.PermissionLevel, m.Status, m.ID).Scan(&m.UpdatedAt)
	if err != nil {
		return wrapErr(fmt.Sprintf("failed to update membership %d", m.ID), err)
	}
	return nil
}

func (r *repos) DeleteMembership(ctx context.Context, id int64) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM memberships WHERE id = $1`, id)
	if err != nil {
		return wrapErr("failed to delete membership", err)
	}
	return expectOne(res, fmt.Sprintf("failed to delete membership %d", id))
}

func (r *repos) ListMemberships(ctx context.Context, orgID int64, filter storage.MembershipFilter) ([]*models.Membership, error) {
	conds := []string{"organization_id = $1"}
	args := []any{orgID}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.PermissionLevel != "" {
		args = append(args, filter.PermissionLevel)
		conds = append(conds, fmt.Sprintf("permission_level = $%d", len(args)))
	}

	query := `SELECT ` + membershipColumns + ` FROM memberships WHERE ` + strings.Join(conds, " AND ") + ` ORDER BY id`
	return r.queryMemberships(ctx, query, args...)
}

func (r *repos) ListUserMemberships(ctx context.Context, userID int64) ([]*models.Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM memberships WHERE user_id = $1 ORDER BY id`
	return r.queryMemberships(ctx, query, userID)
}

func (r *repos) queryMemberships(ctx context.Context, query string, args ...any) ([]*models.Membership, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("failed to list memberships", err)
	}
	defer rows.Close()

	var out []*models.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, wrapErr("failed to scan membership", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("failed to list memberships", err)
	}
	return out, nil
}

func (r *repos) CountOwners(ctx context.Context, orgID int64) (int, error) {
	query := `
		SELECT COUNT(*) FROM memberships
		WHERE organization_id = $1 AND permission_level = 'owner' AND status = 'active'
	`
	var n int
	if err := r.q.QueryRowContext(ctx, query, orgID).Scan(&n); err != nil {
		return 0, wrapErr("failed to count owners", err)
	}
	return n, nil
}
