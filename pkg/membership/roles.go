package membership

import (
	"context"
	"fmt"

	"github.com/vincentdavis/league-gotta-bike/pkg/audit"
	"github.com/vincentdavis/league-gotta-bike/pkg/models"
	"github.com/vincentdavis/league-gotta-bike/pkg/rbac"
	"github.com/vincentdavis/league-gotta-bike/pkg/storage"
)

// AddRole attaches roleType to m. Adding a role the membership already holds
// returns the existing role; with primary set it also becomes the primary.
func (tx *Tx) AddRole(ctx context.Context, m *models.Membership, roleType models.RoleType, primary bool) (*models.MemberRole, error) {
	if !roleType.Valid() {
		return nil, fmt.Errorf("%w: unknown role type %q", ErrInvalidInput, roleType)
	}

	roles, err := tx.repos.Roles().ListRoles(ctx, m.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}

	role := findRole(roles, roleType)
	created := false
	if role == nil {
		// role is filled from the existing row when a concurrent transaction
		// inserted it first
		role = &models.MemberRole{MembershipID: m.ID, RoleType: roleType, IsPrimary: primary}
		created, err = tx.repos.Roles().InsertRole(ctx, role)
		if err != nil {
			return nil, fmt.Errorf("failed to insert role: %w", err)
		}
	}

	switch {
	case created:
		tx.event(audit.EventRoleAdded, m.OrganizationID, audit.SubjectRole, role.ID).
			WithMetadata("membership_id", m.ID).
			WithMetadata("role_type", string(roleType)).
			WithMetadata("primary", primary)
	case primary && !role.IsPrimary:
		role.IsPrimary = true
		if err := tx.repos.Roles().UpdateRole(ctx, role); err != nil {
			return nil, fmt.Errorf("failed to update role: %w", err)
		}
	default:
		return role, nil
	}

	if primary {
		if err := tx.repos.Roles().ClearPrimary(ctx, m.ID, roleType); err != nil {
			return nil, fmt.Errorf("failed to clear primary role: %w", err)
		}
	}
	return role, nil
}

// RemoveRole detaches roleType from m. Removing a role the membership does
// not hold is a no-op.
func (tx *Tx) RemoveRole(ctx context.Context, m *models.Membership, roleType models.RoleType) error {
	roles, err := tx.repos.Roles().ListRoles(ctx, m.ID)
	if err != nil {
		return fmt.Errorf("failed to list roles: %w", err)
	}
	role := findRole(roles, roleType)
	if role == nil {
		return nil
	}

	err = tx.repos.Roles().DeleteRole(ctx, m.ID, roleType)
	if storage.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}
	tx.event(audit.EventRoleRemoved, m.OrganizationID, audit.SubjectRole, role.ID).
		WithMetadata("membership_id", m.ID).
		WithMetadata("role_type", string(roleType))
	return nil
}

func findRole(roles []*models.MemberRole, roleType models.RoleType) *models.MemberRole {
	for _, r := range roles {
		if r.RoleType == roleType {
			return r
		}
	}
	return nil
}

// PrimaryRole picks the primary role from roles. Several primaries resolve
// to the most recently marked one; none falls back to the first role in
// models.RoleTypes order. It returns nil for an empty list.
func PrimaryRole(roles []*models.MemberRole) *models.MemberRole {
	var primary *models.MemberRole
	for _, r := range roles {
		if r.IsPrimary && (primary == nil || r.UpdatedAt.After(primary.UpdatedAt)) {
			primary = r
		}
	}
	if primary != nil {
		return primary
	}
	for _, rt := range models.RoleTypes {
		for _, r := range roles {
			if r.RoleType == rt {
				return r
			}
		}
	}
	return nil
}

// RoleTypesOf returns the role types held, in models.RoleTypes order
func RoleTypesOf(roles []*models.MemberRole) []models.RoleType {
	held := make(map[models.RoleType]bool, len(roles))
	for _, r := range roles {
		held[r.RoleType] = true
	}
	var out []models.RoleType
	for _, rt := range models.RoleTypes {
		if held[rt] {
			out = append(out, rt)
		}
	}
	return out
}

// AddRole attaches a role to a membership. The actor needs manage_members
// on the membership's organization.
func (m *Manager) AddRole(ctx context.Context, actorID, membershipID int64, roleType models.RoleType, primary bool) (*models.MemberRole, error) {
	var role *models.MemberRole
	fields := map[string]any{"membership_id": membershipID, "role_type": string(roleType)}
	err := m.do(ctx, "add_role", actorID, fields, func(ctx context.Context, tx *Tx) error {
		mem, err := tx.GetMembership(ctx, membershipID)
		if err != nil {
			return err
		}
		if err := tx.Authorize(ctx, mem.OrganizationID, rbac.ActionManageMembers); err != nil {
			return err
		}
		role, err = tx.AddRole(ctx, mem, roleType, primary)
		return err
	})
	if err != nil {
		return nil, err
	}
	return role, nil
}

// RemoveRole detaches a role from a membership. The actor needs
// manage_members on the membership's organization.
func (m *Manager) RemoveRole(ctx context.Context, actorID, membershipID int64, roleType models.RoleType) error {
	fields := map[string]any{"membership_id": membershipID, "role_type": string(roleType)}
	return m.do(ctx, "remove_role", actorID, fields, func(ctx context.Context, tx *Tx) error {
		mem, err := tx.GetMembership(ctx, membershipID)
		if err != nil {
			return err
		}
		if err := tx.Authorize(ctx, mem.OrganizationID, rbac.ActionManageMembers); err != nil {
			return err
		}
		return tx.RemoveRole(ctx, mem, roleType)
	})
}

// ListRoles returns the roles of a membership
func (m *Manager) ListRoles(ctx context.Context, membershipID int64) ([]*models.MemberRole, error) {
	roles, err := m.store.Roles().ListRoles(ctx, membershipID)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	return roles, nil
}

// PrimaryRole returns the primary role of a membership, nil if it has none
func (m *Manager) PrimaryRole(ctx context.Context, membershipID int64) (*models.MemberRole, error) {
	roles, err := m.ListRoles(ctx, membershipID)
	if err != nil {
		return nil, err
	}
	return PrimaryRole(roles), nil
}
