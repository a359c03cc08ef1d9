package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/vincentdavis/league-gotta-bike/pkg/httputil"
	"github.com/vincentdavis/league-gotta-bike/pkg/membership"
	"github.com/vincentdavis/league-gotta-bike/pkg/models"
	"github.com/vincentdavis/league-gotta-bike/pkg/rbac"
	"github.com/vincentdavis/league-gotta-bike/pkg/storage"
)

// listMembers lists an organization's memberships, optionally filtered by
// status and permission_level query parameters
func (s *Server) listMembers(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "org_id")
	if !ok {
		return
	}
	filter := storage.MembershipFilter{}
	if v := httputil.GetQueryParam(r, "status", ""); v != "" {
		status, err := models.ParseMembershipStatus(v)
		if err != nil {
			httputil.WriteProblem(w, r, http.StatusBadRequest, "bad_request", err.Error(), nil)
			return
		}
		filter.Status = status
	}
	if v := httputil.GetQueryParam(r, "permission_level", ""); v != "" {
		level, err := models.ParsePermissionLevel(v)
		if err != nil {
			httputil.WriteProblem(w, r, http.StatusBadRequest, "bad_request", err.Error(), nil)
			return
		}
		filter.PermissionLevel = level
	}

	members, err := s.mgr.ListMembers(r.Context(), orgID, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, list(members))
}

func (s *Server) addMember(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "org_id")
	if !ok {
		return
	}
	var req AddMemberRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	m, err := s.mgr.AddMember(r.Context(), actorID(r), req.UserID, orgID, req.PermissionLevel)
	if err != nil {
		writeError(w, r, err)
		return
	}
	_ = httputil.WriteCreated(w, m)
}

// requestToJoin files a join request for the caller
func (s *Server) requestToJoin(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "org_id")
	if !ok {
		return
	}
	m, err := s.mgr.RequestToJoin(r.Context(), actorID(r), orgID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	_ = httputil.WriteCreated(w, m)
}

// leave removes the caller's own membership
func (s *Server) leave(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "org_id")
	if !ok {
		return
	}
	if err := s.mgr.Leave(r.Context(), actorID(r), orgID); err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// getMembership returns a membership with its roles. Members may read
// their own; anyone else needs view on the organization.
func (s *Server) getMembership(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "membership_id")
	if !ok {
		return
	}
	ctx := r.Context()
	m, err := s.mgr.GetMembership(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if m.UserID != actorID(r) && !s.authorize(w, r, m.OrganizationID, rbac.ActionView) {
		return
	}
	roles, err := s.mgr.ListRoles(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if roles == nil {
		roles = []*models.MemberRole{}
	}
	_ = httputil.WriteSuccess(w, MembershipResponse{
		Membership:  m,
		Roles:       roles,
		PrimaryRole: membership.PrimaryRole(roles),
	})
}

func (s *Server) removeMember(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "membership_id")
	if !ok {
		return
	}
	if err := s.mgr.RemoveMember(r.Context(), actorID(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) changeLevel(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "membership_id")
	if !ok {
		return
	}
	var req ChangeLevelRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	m, err := s.mgr.ChangePermissionLevel(r.Context(), actorID(r), id, req.PermissionLevel)
	if err != nil {
		writeError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, m)
}

func (s *Server) changeStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "membership_id")
	if !ok {
		return
	}
	var req ChangeStatusRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	m, err := s.mgr.UpdateStatus(r.Context(), actorID(r), id, req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, m)
}

// decideJoinRequest approves or rejects a prospect. A rejected request is
// deleted and answered with 204.
func (s *Server) decideJoinRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "membership_id")
	if !ok {
		return
	}
	var req JoinDecisionRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	m, err := s.mgr.DecideJoinRequest(r.Context(), actorID(r), id, req.Approve, req.PermissionLevel)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !req.Approve {
		httputil.WriteNoContent(w)
		return
	}
	_ = httputil.WriteSuccess(w, m)
}

func (s *Server) addRole(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "membership_id")
	if !ok {
		return
	}
	var req AddRoleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	role, err := s.mgr.AddRole(r.Context(), actorID(r), id, req.RoleType, req.Primary)
	if err != nil {
		writeError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, role)
}

func (s *Server) removeRole(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "membership_id")
	if !ok {
		return
	}
	roleType := models.RoleType(mux.Vars(r)["role_type"])
	if err := s.mgr.RemoveRole(r.Context(), actorID(r), id, roleType); err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}
