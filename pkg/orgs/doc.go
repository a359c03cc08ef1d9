// Package orgs enforces the shape of the organization tree.
//
// # Hierarchy
//
// Leagues are roots. Teams are roots or children of a league. Squads, clubs
// and practice groups (subgroups) must be children of a team. The tree is
// therefore at most three levels deep:
//
//	league -> team -> squad | club | practice_group
//
// Validate checks these rules whenever an organization is created or its
// parent changes, and walks the parent chain to reject cycles introduced by
// re-parenting. Violations are returned as *HierarchyViolation, which can be
// matched with errors.Is against the Err* values:
//
//	if errors.Is(err, orgs.ErrSubgroupRequiresTeamParent) {
//		// reject the request
//	}
//
// Validation is pure; persisting the organization is the caller's job.
//
// # Navigation
//
// Ancestors, Descendants, LeagueOf and TeamOf walk the tree through a Tree,
// which storage.OrganizationRepository satisfies.
package orgs
