package membership

import (
	"context"
	"fmt"
	"strings"

	"github.com/vincentdavis/league-gotta-bike/pkg/audit"
	"github.com/vincentdavis/league-gotta-bike/pkg/models"
	"github.com/vincentdavis/league-gotta-bike/pkg/orgs"
	"github.com/vincentdavis/league-gotta-bike/pkg/rbac"
	"github.com/vincentdavis/league-gotta-bike/pkg/storage"
)

// CreateOrganization stores org and makes the actor its owner. Creating an
// organization under a parent requires manager or above on the parent.
func (m *Manager) CreateOrganization(ctx context.Context, actorID int64, org *models.Organization) (*models.Organization, error) {
	var created *models.Organization
	fields := map[string]any{"organization_type": string(org.Type), "name": org.Name}
	err := m.do(ctx, "create_organization", actorID, fields, func(ctx context.Context, tx *Tx) error {
		created = org.Clone()
		return tx.createOrganization(ctx, created)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// CreateSubOrganization creates a squad, club or practice group under
// parentTeamID. The actor needs manager or above on the parent team.
func (m *Manager) CreateSubOrganization(ctx context.Context, actorID, parentTeamID int64, orgType models.OrgType, name string) (*models.Organization, error) {
	var org *models.Organization
	fields := map[string]any{"organization_type": string(orgType), "parent_id": parentTeamID, "name": name}
	err := m.do(ctx, "create_sub_organization", actorID, fields, func(ctx context.Context, tx *Tx) error {
		if !orgType.IsSubgroup() {
			return fmt.Errorf("%w: %q is not a sub-organization type", orgs.ErrInvalidOrganization, orgType)
		}
		org = &models.Organization{Type: orgType, ParentID: &parentTeamID, Name: name}
		return tx.createOrganization(ctx, org)
	})
	if err != nil {
		return nil, err
	}
	return org, nil
}

// OrganizationUpdate lists the fields UpdateOrganization changes. Nil fields
// keep their value.
type OrganizationUpdate struct {
	Name           *string
	Slug           *string
	Description    *string
	MembershipOpen *bool
	IsActive       *bool
	Type           *models.OrgType
	Profile        models.Profile

	// ParentID moves the organization under another one, DetachParent makes
	// it a root
	ParentID     *int64
	DetachParent bool
}

// UpdateOrganization applies upd to the organization. It requires edit_org,
// and moving under a new parent also requires manager or above there.
func (m *Manager) UpdateOrganization(ctx context.Context, actorID, orgID int64, upd OrganizationUpdate) (*models.Organization, error) {
	var updated *models.Organization
	fields := map[string]any{"organization_id": orgID}
	err := m.do(ctx, "update_organization", actorID, fields, func(ctx context.Context, tx *Tx) error {
		org, err := tx.repos.Organizations().LockOrganization(ctx, orgID)
		if err != nil {
			return fmt.Errorf("failed to lock organization: %w", err)
		}
		if err := tx.Authorize(ctx, orgID, rbac.ActionEditOrg); err != nil {
			return err
		}
		updated, err = tx.updateOrganization(ctx, org, upd)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (tx *Tx) updateOrganization(ctx context.Context, org *models.Organization, upd OrganizationUpdate) (*models.Organization, error) {
	next := org.Clone()
	var changed []string

	if upd.Name != nil {
		next.Name = strings.TrimSpace(*upd.Name)
		changed = append(changed, "name")
	}
	if upd.Slug != nil {
		next.Slug = strings.TrimSpace(*upd.Slug)
		if next.Slug == "" {
			return nil, fmt.Errorf("%w: slug cannot be empty", orgs.ErrInvalidOrganization)
		}
		changed = append(changed, "slug")
	}
	if upd.Description != nil {
		next.Description = *upd.Description
		changed = append(changed, "description")
	}
	if upd.MembershipOpen != nil {
		next.MembershipOpen = *upd.MembershipOpen
		changed = append(changed, "membership_open")
	}
	if upd.IsActive != nil {
		next.IsActive = *upd.IsActive
		changed = append(changed, "is_active")
	}

	retyped := upd.Type != nil && *upd.Type != org.Type
	if retyped {
		next.Type = *upd.Type
		changed = append(changed, "type")
	}
	switch {
	case upd.Profile != nil:
		next.Profile = upd.Profile
		changed = append(changed, "profile")
	case retyped && next.Type.Valid():
		profile, err := models.NewProfile(next.Type)
		if err != nil {
			return nil, err
		}
		next.Profile = profile
	}

	switch {
	case upd.DetachParent:
		next.ParentID = nil
	case upd.ParentID != nil:
		parentID := *upd.ParentID
		next.ParentID = &parentID
	}
	moved := !sameParent(org.ParentID, next.ParentID)
	if moved {
		changed = append(changed, "parent_id")
		if next.ParentID != nil {
			if err := tx.RequireLevel(ctx, *next.ParentID, models.PermissionManager); err != nil {
				return nil, err
			}
		}
	}

	if err := orgs.Validate(ctx, tx.repos.Organizations(), next); err != nil {
		return nil, err
	}
	if retyped {
		// existing children must still accept the organization as parent
		children, err := tx.repos.Organizations().ListChildren(ctx, org.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list child organizations: %w", err)
		}
		for _, child := range children {
			if err := orgs.CheckParent(child.Type, next); err != nil {
				return nil, err
			}
		}
	}

	if err := tx.repos.Organizations().UpdateOrganization(ctx, next); err != nil {
		return nil, fmt.Errorf("failed to update organization: %w", err)
	}
	e := tx.event(audit.EventOrganizationUpdated, org.ID, audit.SubjectOrganization, org.ID).
		WithMetadata("fields", changed)
	if retyped {
		e.Transition(string(org.Type), string(next.Type))
	}
	return next, nil
}

func sameParent(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// DeleteOrganization removes an organization with its memberships, roles,
// seasons and registrations. It requires delete_org and fails with
// orgs.ErrHasChildren while child organizations remain.
func (m *Manager) DeleteOrganization(ctx context.Context, actorID, orgID int64) error {
	fields := map[string]any{"organization_id": orgID}
	return m.do(ctx, "delete_organization", actorID, fields, func(ctx context.Context, tx *Tx) error {
		org, err := tx.repos.Organizations().LockOrganization(ctx, orgID)
		if err != nil {
			return fmt.Errorf("failed to lock organization: %w", err)
		}
		if err := tx.Authorize(ctx, orgID, rbac.ActionDeleteOrg); err != nil {
			return err
		}

		children, err := tx.repos.Organizations().ListChildren(ctx, orgID)
		if err != nil {
			return fmt.Errorf("failed to list child organizations: %w", err)
		}
		if len(children) > 0 {
			return fmt.Errorf("%w: %d remaining", orgs.ErrHasChildren, len(children))
		}
		members, err := tx.repos.Memberships().ListMemberships(ctx, orgID, storage.MembershipFilter{})
		if err != nil {
			return fmt.Errorf("failed to list memberships: %w", err)
		}
		seasonList, err := tx.repos.Seasons().ListSeasons(ctx, orgID)
		if err != nil {
			return fmt.Errorf("failed to list seasons: %w", err)
		}

		if err := tx.repos.Organizations().DeleteOrganization(ctx, orgID); err != nil {
			return fmt.Errorf("failed to delete organization: %w", err)
		}
		for _, mem := range members {
			tx.Invalidate(mem.UserID, orgID)
		}
		tx.event(audit.EventOrganizationDeleted, orgID, audit.SubjectOrganization, orgID).
			WithMetadata("slug", org.Slug).
			WithMetadata("memberships", len(members)).
			WithMetadata("seasons", len(seasonList))
		return nil
	})
}

func (tx *Tx) createOrganization(ctx context.Context, org *models.Organization) error {
	org.Name = strings.TrimSpace(org.Name)
	if org.Profile == nil && org.Type.Valid() {
		profile, err := models.NewProfile(org.Type)
		if err != nil {
			return err
		}
		org.Profile = profile
	}
	org.IsActive = true

	slugPrefix := ""
	if org.ParentID != nil {
		parent, err := tx.repos.Organizations().GetOrganization(ctx, *org.ParentID)
		if err != nil {
			return fmt.Errorf("failed to get parent organization: %w", err)
		}
		if err := tx.RequireLevel(ctx, parent.ID, models.PermissionManager); err != nil {
			return err
		}
		slugPrefix = parent.Slug + "-"
	}
	if err := orgs.Validate(ctx, tx.repos.Organizations(), org); err != nil {
		return err
	}
	if org.Slug == "" {
		base := orgs.Slugify(org.Name)
		if base == "" {
			return fmt.Errorf("%w: name must contain letters or digits", orgs.ErrInvalidOrganization)
		}
		org.Slug = slugPrefix + base
	}

	if err := tx.repos.Organizations().CreateOrganization(ctx, org); err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}
	tx.event(audit.EventOrganizationCreated, org.ID, audit.SubjectOrganization, org.ID).
		WithMetadata("type", string(org.Type)).
		WithMetadata("slug", org.Slug)

	if tx.actorID == 0 {
		return nil
	}
	_, err := tx.CreateMembership(ctx, tx.actorID, org.ID, models.PermissionOwner, models.MembershipActive)
	return err
}

// CreateMembership binds a user to an organization with the given level.
// It fails with DuplicateMembership if the pair already exists.
func (m *Manager) CreateMembership(ctx context.Context, userID, orgID int64, level models.PermissionLevel, status models.MembershipStatus) (*models.Membership, error) {
	var created *models.Membership
	fields := map[string]any{"user_id": userID, "organization_id": orgID, "permission_level": string(level)}
	err := m.do(ctx, "create_membership", 0, fields, func(ctx context.Context, tx *Tx) error {
		var err error
		created, err = tx.CreateMembership(ctx, userID, orgID, level, status)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// AddMember adds a user as an active member. The actor needs manage_members,
// and assign_permissions as well when granting admin or owner.
func (m *Manager) AddMember(ctx context.Context, actorID, userID, orgID int64, level models.PermissionLevel) (*models.Membership, error) {
	var created *models.Membership
	fields := map[string]any{"user_id": userID, "organization_id": orgID, "permission_level": string(level)}
	err := m.do(ctx, "add_member", actorID, fields, func(ctx context.Context, tx *Tx) error {
		if err := tx.authorizeGrant(ctx, orgID, level); err != nil {
			return err
		}
		var err error
		created, err = tx.CreateMembership(ctx, userID, orgID, level, models.MembershipActive)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (tx *Tx) authorizeGrant(ctx context.Context, orgID int64, level models.PermissionLevel) error {
	if err := tx.Authorize(ctx, orgID, rbac.ActionManageMembers); err != nil {
		return err
	}
	if level.Rank() >= models.PermissionAdmin.Rank() {
		return tx.Authorize(ctx, orgID, rbac.ActionAssignPermissions)
	}
	return nil
}

// ChangePermissionLevel sets a membership's level. The actor needs
// assign_permissions; demoting the only owner fails with
// CannotDemoteLastOwner.
func (m *Manager) ChangePermissionLevel(ctx context.Context, actorID, membershipID int64, level models.PermissionLevel) (*models.Membership, error) {
	var updated *models.Membership
	fields := map[string]any{"membership_id": membershipID, "permission_level": string(level)}
	err := m.do(ctx, "change_permission_level", actorID, fields, func(ctx context.Context, tx *Tx) error {
		mem, err := tx.GetMembership(ctx, membershipID)
		if err != nil {
			return err
		}
		if err := tx.Authorize(ctx, mem.OrganizationID, rbac.ActionAssignPermissions); err != nil {
			return err
		}
		updated, err = tx.SetPermissionLevel(ctx, mem, level)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// UpdateStatus sets a membership's status. The actor needs manage_members.
func (m *Manager) UpdateStatus(ctx context.Context, actorID, membershipID int64, status models.MembershipStatus) (*models.Membership, error) {
	var updated *models.Membership
	fields := map[string]any{"membership_id": membershipID, "status": string(status)}
	err := m.do(ctx, "update_status", actorID, fields, func(ctx context.Context, tx *Tx) error {
		mem, err := tx.GetMembership(ctx, membershipID)
		if err != nil {
			return err
		}
		if err := tx.Authorize(ctx, mem.OrganizationID, rbac.ActionManageMembers); err != nil {
			return err
		}
		updated, err = tx.SetStatus(ctx, mem, status)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// RequestToJoin creates a prospect membership for userID awaiting a
// decision by the organization's staff
func (m *Manager) RequestToJoin(ctx context.Context, userID, orgID int64) (*models.Membership, error) {
	var created *models.Membership
	fields := map[string]any{"organization_id": orgID}
	err := m.do(ctx, "request_to_join", userID, fields, func(ctx context.Context, tx *Tx) error {
		org, err := tx.repos.Organizations().GetOrganization(ctx, orgID)
		if err != nil {
			return fmt.Errorf("failed to get organization: %w", err)
		}
		if !org.IsActive || !org.MembershipOpen {
			return &MembershipError{Kind: MembershipClosed, UserID: userID, OrganizationID: orgID}
		}
		created, err = tx.CreateMembership(ctx, userID, orgID, models.PermissionMember, models.MembershipProspect)
		if err != nil {
			return err
		}
		tx.event(audit.EventMembershipJoinRequested, orgID, audit.SubjectMembership, created.ID).
			WithMetadata("user_id", userID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// DecideJoinRequest approves or rejects a prospect membership. Approval
// activates it at level (member when empty); rejection deletes it. The actor
// needs manage_members, and assign_permissions to approve above manager.
func (m *Manager) DecideJoinRequest(ctx context.Context, actorID, membershipID int64, approve bool, level models.PermissionLevel) (*models.Membership, error) {
	if level == "" {
		level = models.PermissionMember
	}
	var result *models.Membership
	fields := map[string]any{"membership_id": membershipID, "approve": approve}
	err := m.do(ctx, "decide_join_request", actorID, fields, func(ctx context.Context, tx *Tx) error {
		mem, err := tx.GetMembership(ctx, membershipID)
		if err != nil {
			return err
		}
		if err := tx.Authorize(ctx, mem.OrganizationID, rbac.ActionManageMembers); err != nil {
			return err
		}
		if mem.Status != models.MembershipProspect {
			return &MembershipError{Kind: NotAJoinRequest, UserID: mem.UserID, OrganizationID: mem.OrganizationID}
		}

		if !approve {
			result = mem
			return tx.deleteMembership(ctx, mem, audit.EventMembershipJoinRejected)
		}

		if err := tx.authorizeGrant(ctx, mem.OrganizationID, level); err != nil {
			return err
		}
		if mem, err = tx.SetPermissionLevel(ctx, mem, level); err != nil {
			return err
		}
		if result, err = tx.SetStatus(ctx, mem, models.MembershipActive); err != nil {
			return err
		}
		tx.event(audit.EventMembershipJoinApproved, result.OrganizationID, audit.SubjectMembership, result.ID).
			Transition(string(models.MembershipProspect), string(models.MembershipActive)).
			WithMetadata("user_id", result.UserID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Leave removes the user's own membership. The only owner cannot leave.
func (m *Manager) Leave(ctx context.Context, userID, orgID int64) error {
	fields := map[string]any{"organization_id": orgID}
	return m.do(ctx, "leave", userID, fields, func(ctx context.Context, tx *Tx) error {
		mem, err := tx.FindMembership(ctx, userID, orgID)
		if err != nil {
			return err
		}
		return tx.deleteMembership(ctx, mem, audit.EventMembershipLeft)
	})
}

// RemoveMember deletes a membership and its roles. The actor needs
// manage_members; the only owner cannot be removed.
func (m *Manager) RemoveMember(ctx context.Context, actorID, membershipID int64) error {
	fields := map[string]any{"membership_id": membershipID}
	return m.do(ctx, "remove_member", actorID, fields, func(ctx context.Context, tx *Tx) error {
		mem, err := tx.GetMembership(ctx, membershipID)
		if err != nil {
			return err
		}
		if err := tx.Authorize(ctx, mem.OrganizationID, rbac.ActionManageMembers); err != nil {
			return err
		}
		return tx.deleteMembership(ctx, mem, audit.EventMembershipRemoved)
	})
}

// ListMembers lists the memberships of an organization
func (m *Manager) ListMembers(ctx context.Context, orgID int64, filter storage.MembershipFilter) ([]*models.Membership, error) {
	ms, err := m.store.Memberships().ListMemberships(ctx, orgID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	return ms, nil
}

// GetMembership loads a membership by id
func (m *Manager) GetMembership(ctx context.Context, membershipID int64) (*models.Membership, error) {
	mem, err := m.store.Memberships().GetMembership(ctx, membershipID)
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return mem, nil
}
