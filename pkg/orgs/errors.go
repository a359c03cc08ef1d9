package orgs

import (
	"errors"
	"fmt"

	"github.com/vincentdavis/league-gotta-bike/pkg/models"
)

// ViolationKind identifies which hierarchy rule was broken
type ViolationKind string

const (
	LeagueCannotHaveParent       ViolationKind = "league_cannot_have_parent"
	TeamParentMustBeLeagueOrNone ViolationKind = "team_parent_must_be_league_or_none"
	SubgroupRequiresTeamParent   ViolationKind = "subgroup_requires_team_parent"
	CyclicHierarchy              ViolationKind = "cyclic_hierarchy"
)

// HierarchyViolation is returned when an organization's parent breaks a rule
type HierarchyViolation struct {
	Kind       ViolationKind
	OrgType    models.OrgType
	ParentType models.OrgType
}

func (e *HierarchyViolation) Error() string {
	switch e.Kind {
	case LeagueCannotHaveParent:
		return "hierarchy violation: a league cannot have a parent organization"
	case TeamParentMustBeLeagueOrNone:
		return fmt.Sprintf("hierarchy violation: a team's parent must be a league, got %s", e.ParentType)
	case SubgroupRequiresTeamParent:
		if e.ParentType == "" {
			return fmt.Sprintf("hierarchy violation: a %s requires a parent team", e.OrgType)
		}
		return fmt.Sprintf("hierarchy violation: a %s's parent must be a team, got %s", e.OrgType, e.ParentType)
	case CyclicHierarchy:
		return "hierarchy violation: organization cannot be its own ancestor"
	}
	return "hierarchy violation"
}

// Is matches another *HierarchyViolation with the same kind, or any kind when
// the target kind is empty
func (e *HierarchyViolation) Is(target error) bool {
	t, ok := target.(*HierarchyViolation)
	if !ok {
		return false
	}
	return t.Kind == "" || t.Kind == e.Kind
}

var (
	ErrHierarchyViolation           = &HierarchyViolation{}
	ErrLeagueCannotHaveParent       = &HierarchyViolation{Kind: LeagueCannotHaveParent}
	ErrTeamParentMustBeLeagueOrNone = &HierarchyViolation{Kind: TeamParentMustBeLeagueOrNone}
	ErrSubgroupRequiresTeamParent   = &HierarchyViolation{Kind: SubgroupRequiresTeamParent}
	ErrCyclicHierarchy              = &HierarchyViolation{Kind: CyclicHierarchy}

	// ErrInvalidOrganization wraps field-level problems such as an unknown
	// type, a missing name or a profile that does not match the type
	ErrInvalidOrganization = errors.New("invalid organization")

	// ErrHasChildren is returned when deleting an organization that still has
	// child organizations
	ErrHasChildren = errors.New("organization has child organizations")
)

// IsHierarchyViolation checks if an error is a hierarchy violation
func IsHierarchyViolation(err error) bool {
	return errors.Is(err, ErrHierarchyViolation)
}
