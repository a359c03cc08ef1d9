package orgs

import (
	"context"
	"fmt"
	"strings"

	"github.com/vincentdavis/league-gotta-bike/pkg/models"
)

// MaxDepth is the number of levels the tree may have
const MaxDepth = 3

// Lookup loads an organization by id
type Lookup interface {
	GetOrganization(ctx context.Context, id int64) (*models.Organization, error)
}

// CheckParent applies the type rules to a child type and its parent, which is
// nil for a root
func CheckParent(child models.OrgType, parent *models.Organization) error {
	switch {
	case child == models.OrgTypeLeague:
		if parent != nil {
			return &HierarchyViolation{Kind: LeagueCannotHaveParent, OrgType: child, ParentType: parent.Type}
		}
	case child == models.OrgTypeTeam:
		if parent != nil && parent.Type != models.OrgTypeLeague {
			return &HierarchyViolation{Kind: TeamParentMustBeLeagueOrNone, OrgType: child, ParentType: parent.Type}
		}
	case child.IsSubgroup():
		if parent == nil {
			return &HierarchyViolation{Kind: SubgroupRequiresTeamParent, OrgType: child}
		}
		if parent.Type != models.OrgTypeTeam {
			return &HierarchyViolation{Kind: SubgroupRequiresTeamParent, OrgType: child, ParentType: parent.Type}
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidOrganization, child)
	}
	return nil
}

// Validate checks fields, type rules and cycles for org. org.ID is zero for an
// organization that has not been stored yet.
func Validate(ctx context.Context, lookup Lookup, org *models.Organization) error {
	if err := validateFields(org); err != nil {
		return err
	}

	var parent *models.Organization
	if org.ParentID != nil {
		if org.ID != 0 && *org.ParentID == org.ID {
			return &HierarchyViolation{Kind: CyclicHierarchy, OrgType: org.Type, ParentType: org.Type}
		}
		p, err := lookup.GetOrganization(ctx, *org.ParentID)
		if err != nil {
			return fmt.Errorf("failed to load parent organization: %w", err)
		}
		parent = p
	}

	if err := CheckParent(org.Type, parent); err != nil {
		return err
	}

	if parent == nil {
		return nil
	}
	return checkCycle(ctx, lookup, org, parent)
}

// checkCycle walks up from parent and fails if it meets org again or the
// chain is deeper than the tree allows
func checkCycle(ctx context.Context, lookup Lookup, org, parent *models.Organization) error {
	current := parent
	for depth := 1; ; depth++ {
		if org.ID != 0 && current.ID == org.ID {
			return &HierarchyViolation{Kind: CyclicHierarchy, OrgType: org.Type, ParentType: parent.Type}
		}
		if current.ParentID == nil {
			return nil
		}
		if depth >= MaxDepth-1 {
			return &HierarchyViolation{Kind: CyclicHierarchy, OrgType: org.Type, ParentType: parent.Type}
		}
		next, err := lookup.GetOrganization(ctx, *current.ParentID)
		if err != nil {
			return fmt.Errorf("failed to load ancestor organization: %w", err)
		}
		current = next
	}
}

func validateFields(org *models.Organization) error {
	if !org.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidOrganization, org.Type)
	}
	if strings.TrimSpace(org.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidOrganization)
	}
	if err := models.ValidateProfile(org); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOrganization, err)
	}
	return nil
}
