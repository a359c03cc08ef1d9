package importer

import (
	"context"
	"fmt"

	"github.com/vincentdavis/league-gotta-bike/pkg/membership"
	"github.com/vincentdavis/league-gotta-bike/pkg/storage"
)

// Export returns the organization's memberships as rows that Import accepts
func Export(ctx context.Context, repos storage.Repositories, orgID int64) ([]Row, error) {
	ms, err := repos.Memberships().ListMemberships(ctx, orgID, storage.MembershipFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	rows := make([]Row, 0, len(ms))
	for i, m := range ms {
		roles, err := repos.Roles().ListRoles(ctx, m.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list roles of membership %d: %w", m.ID, err)
		}
		row := Row{
			Line:            i + 1,
			UserID:          m.UserID,
			PermissionLevel: string(m.PermissionLevel),
			Status:          string(m.Status),
		}
		for _, rt := range membership.RoleTypesOf(roles) {
			row.Roles = append(row.Roles, string(rt))
		}
		if primary := membership.PrimaryRole(roles); primary != nil && primary.IsPrimary {
			row.PrimaryRole = string(primary.RoleType)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
