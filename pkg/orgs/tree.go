package orgs

import (
	"context"
	"fmt"

	"github.com/vincentdavis/league-gotta-bike/pkg/models"
)

// Tree loads organizations and their children
type Tree interface {
	Lookup
	ListChildren(ctx context.Context, parentID int64) ([]*models.Organization, error)
}

// Ancestors returns the parent chain of org, nearest first
func Ancestors(ctx context.Context, lookup Lookup, org *models.Organization) ([]*models.Organization, error) {
	var out []*models.Organization
	parentID := org.ParentID
	for parentID != nil {
		if len(out) >= MaxDepth-1 {
			return nil, &HierarchyViolation{Kind: CyclicHierarchy, OrgType: org.Type}
		}
		parent, err := lookup.GetOrganization(ctx, *parentID)
		if err != nil {
			return nil, fmt.Errorf("failed to load ancestor organization: %w", err)
		}
		out = append(out, parent)
		parentID = parent.ParentID
	}
	return out, nil
}

// Descendants returns every organization below org, breadth first
func Descendants(ctx context.Context, tree Tree, org *models.Organization) ([]*models.Organization, error) {
	var out []*models.Organization
	level := []*models.Organization{org}
	for depth := 1; len(level) > 0; depth++ {
		if depth >= MaxDepth+1 {
			return nil, &HierarchyViolation{Kind: CyclicHierarchy, OrgType: org.Type}
		}
		var next []*models.Organization
		for _, o := range level {
			children, err := tree.ListChildren(ctx, o.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to list child organizations: %w", err)
			}
			next = append(next, children...)
		}
		out = append(out, next...)
		level = next
	}
	return out, nil
}

// LeagueOf returns the league org belongs to, org itself when it is a league,
// or nil for a standalone team and its subgroups
func LeagueOf(ctx context.Context, lookup Lookup, org *models.Organization) (*models.Organization, error) {
	if org.Type == models.OrgTypeLeague {
		return org, nil
	}
	ancestors, err := Ancestors(ctx, lookup, org)
	if err != nil {
		return nil, err
	}
	for _, a := range ancestors {
		if a.Type == models.OrgTypeLeague {
			return a, nil
		}
	}
	return nil, nil
}

// TeamOf returns org itself for a team, the parent team for a subgroup, and
// nil for a league
func TeamOf(ctx context.Context, lookup Lookup, org *models.Organization) (*models.Organization, error) {
	switch {
	case org.Type == models.OrgTypeTeam:
		return org, nil
	case org.Type.IsSubgroup() && org.ParentID != nil:
		parent, err := lookup.GetOrganization(ctx, *org.ParentID)
		if err != nil {
			return nil, fmt.Errorf("failed to load parent organization: %w", err)
		}
		if parent.Type == models.OrgTypeTeam {
			return parent, nil
		}
	}
	return nil, nil
}
