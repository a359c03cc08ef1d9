package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vincentdavis/league-gotta-bike/pkg/models"
)

func (r *repos) ListRoles(ctx context.Context, membershipID int64) ([]*models.MemberRole, error) {
	query := `
		SELECT id, membership_id, role_type, is_primary, notes, created_at, updated_at
		FROM member_roles
		WHERE membership_id = $1
		ORDER BY id
	`
	rows, err := r.q.QueryContext(ctx, query, membershipID)
	if err != nil {
		return nil, wrapErr("failed to list roles", err)
	}
	defer rows.Close()

	var out []*models.MemberRole
	for rows.Next() {
		var role models.MemberRole
		if err := rows.Scan(&role.ID, &role.MembershipID, &role.RoleType, &role.IsPrimary, &role.Notes, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, wrapErr("failed to scan role", err)
		}
		out = append(out, &role)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("failed to list roles", err)
	}
	return out, nil
}

// InsertRole leaves a concurrently inserted row in place and loads it
func (r *repos) InsertRole(ctx context.Context, role *models.MemberRole) (bool, error) {
	query := `
		INSERT INTO member_roles (membership_id, role_type, is_primary, notes)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (membership_id, role_type) DO NOTHING
		RETURNING id, created_at, updated_at
	`
	err := r.q.QueryRowContext(ctx, query, role.MembershipID, role.RoleType, role.IsPrimary, role.Notes).
		Scan(&role.ID, &role.CreatedAt, &role.UpdatedAt)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, wrapErr("failed to insert role", err)
	}

	query = `
		SELECT id, membership_id, role_type, is_primary, notes, created_at, updated_at
		FROM member_roles
		WHERE membership_id = $1 AND role_type = $2
	`
	err = r.q.QueryRowContext(ctx, query, role.MembershipID, role.RoleType).
		Scan(&role.ID, &role.MembershipID, &role.RoleType, &role.IsPrimary, &role.Notes, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return false, wrapErr(fmt.Sprintf("failed to get role %s", role.RoleType), err)
	}
	return false, nil
}

func (r *repos) UpdateRole(ctx context.Context, role *models.MemberRole) error {
	query := `
		UPDATE member_roles SET is_primary = $1, notes = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING updated_at
	`
	if err := r.q.QueryRowContext(ctx, query, role.IsPrimary, role.Notes, role.ID).Scan(&role.UpdatedAt); err != nil {
		return wrapErr(fmt.Sprintf("failed to update role %d", role.ID), err)
	}
	return nil
}

func (r *repos) DeleteRole(ctx context.Context, membershipID int64, roleType models.RoleType) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM member_roles WHERE membership_id = $1 AND role_type = $2`, membershipID, roleType)
	if err != nil {
		return wrapErr("failed to delete role", err)
	}
	return expectOne(res, fmt.Sprintf("failed to delete role %s", roleType))
}

func (r *repos) ClearPrimary(ctx context.Context, membershipID int64, keep models.RoleType) error {
	query := `
		UPDATE member_roles SET is_primary = FALSE, updated_at = NOW()
		WHERE membership_id = $1 AND role_type <> $2 AND is_primary
	`
	if _, err := r.q.ExecContext(ctx, query, membershipID, keep); err != nil {
		return wrapErr("failed to clear primary role", err)
	}
	return nil
}

func (r *repos) DeleteRoles(ctx context.Context, membershipID int64) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM member_roles WHERE membership_id = $1`, membershipID); err != nil {
		return wrapErr("failed to delete roles", err)
	}
	return nil
}
