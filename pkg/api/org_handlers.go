package api

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/vincentdavis/league-gotta-bike/pkg/httputil"
	"github.com/vincentdavis/league-gotta-bike/pkg/membership"
	"github.com/vincentdavis/league-gotta-bike/pkg/models"
	"github.com/vincentdavis/league-gotta-bike/pkg/orgs"
	"github.com/vincentdavis/league-gotta-bike/pkg/rbac"
)

// createOrganization creates a league or team and makes the caller its owner
func (s *Server) createOrganization(w http.ResponseWriter, r *http.Request) {
	var req CreateOrganizationRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	org := &models.Organization{
		Type:           req.Type,
		ParentID:       req.ParentID,
		Name:           req.Name,
		Slug:           req.Slug,
		Description:    req.Description,
		MembershipOpen: req.MembershipOpen,
	}
	if len(req.Profile) > 0 {
		profile, err := models.DecodeProfile(req.Type, req.Profile)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: %s", orgs.ErrInvalidOrganization, err))
			return
		}
		org.Profile = profile
	}

	created, err := s.mgr.CreateOrganization(r.Context(), actorID(r), org)
	if err != nil {
		writeError(w, r, err)
		return
	}
	_ = httputil.WriteCreated(w, created)
}

// createSubOrganization creates a squad, club or practice group under the
// team in the path
func (s *Server) createSubOrganization(w http.ResponseWriter, r *http.Request) {
	teamID, ok := httputil.ParsePathInt64OrError(w, r, "org_id")
	if !ok {
		return
	}
	var req CreateSubOrganizationRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	created, err := s.mgr.CreateSubOrganization(r.Context(), actorID(r), teamID, req.Type, req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	_ = httputil.WriteCreated(w, created)
}

// updateOrganization applies a partial update. A profile is decoded against
// the new type when the request changes it.
func (s *Server) updateOrganization(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "org_id")
	if !ok {
		return
	}
	var req UpdateOrganizationRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	upd := membership.OrganizationUpdate{
		Name:           req.Name,
		Slug:           req.Slug,
		Description:    req.Description,
		MembershipOpen: req.MembershipOpen,
		IsActive:       req.IsActive,
		Type:           req.Type,
		ParentID:       req.ParentID,
		DetachParent:   req.DetachParent,
	}
	if len(req.Profile) > 0 {
		var orgType models.OrgType
		if req.Type != nil {
			orgType = *req.Type
		} else {
			current, err := s.store.Organizations().GetOrganization(r.Context(), orgID)
			if err != nil {
				writeError(w, r, err)
				return
			}
			orgType = current.Type
		}
		profile, err := models.DecodeProfile(orgType, req.Profile)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: %s", orgs.ErrInvalidOrganization, err))
			return
		}
		upd.Profile = profile
	}

	updated, err := s.mgr.UpdateOrganization(r.Context(), actorID(r), orgID, upd)
	if err != nil {
		writeError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, updated)
}

// deleteOrganization removes an organization that has no children
func (s *Server) deleteOrganization(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "org_id")
	if !ok {
		return
	}
	if err := s.mgr.DeleteOrganization(r.Context(), actorID(r), orgID); err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) getOrganization(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "org_id")
	if !ok {
		return
	}
	org, err := s.store.Organizations().GetOrganization(r.Context(), orgID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, org)
}

func (s *Server) listChildren(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "org_id")
	if !ok {
		return
	}
	children, err := s.store.Organizations().ListChildren(r.Context(), orgID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, list(children))
}

// getHierarchy returns the organization's ancestors, nearest first, and
// every organization below it
func (s *Server) getHierarchy(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "org_id")
	if !ok {
		return
	}
	ctx := r.Context()
	org, err := s.store.Organizations().GetOrganization(ctx, orgID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ancestors, err := orgs.Ancestors(ctx, s.store.Organizations(), org)
	if err != nil {
		writeError(w, r, err)
		return
	}
	descendants, err := orgs.Descendants(ctx, s.store.Organizations(), org)
	if err != nil {
		writeError(w, r, err)
		return
	}
	league, err := orgs.LeagueOf(ctx, s.store.Organizations(), org)
	if err != nil {
		writeError(w, r, err)
		return
	}
	team, err := orgs.TeamOf(ctx, s.store.Organizations(), org)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if ancestors == nil {
		ancestors = []*models.Organization{}
	}
	if descendants == nil {
		descendants = []*models.Organization{}
	}
	_ = httputil.WriteSuccess(w, HierarchyResponse{
		Organization: org,
		League:       league,
		Team:         team,
		Ancestors:    ancestors,
		Descendants:  descendants,
	})
}

// getPermissions reports the caller's level and allowed actions
func (s *Server) getPermissions(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "org_id")
	if !ok {
		return
	}
	level, err := s.authz.Resolve(r.Context(), actorID(r), orgID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, PermissionsResponse{
		OrganizationID:  orgID,
		PermissionLevel: level,
		Actions:         rbac.Permissions(level),
	})
}

// listMyOrganizations lists the organizations where the caller holds an
// active membership
func (s *Server) listMyOrganizations(w http.ResponseWriter, r *http.Request) {
	levels, err := rbac.ResolveLevels(r.Context(), s.store.Memberships(), actorID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]MyOrganization, 0, len(levels))
	for orgID, level := range levels {
		out = append(out, MyOrganization{OrganizationID: orgID, PermissionLevel: level})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrganizationID < out[j].OrganizationID })
	_ = httputil.WriteSuccess(w, list(out))
}
