package api

import (
	"net/http"

	"github.com/vincentdavis/league-gotta-bike/pkg/httputil"
	"github.com/vincentdavis/league-gotta-bike/pkg/models"
	"github.com/vincentdavis/league-gotta-bike/pkg/rbac"
)

func (s *Server) listSeasons(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "org_id")
	if !ok {
		return
	}
	found, err := s.registrar.ListSeasons(r.Context(), orgID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, list(found))
}

func (s *Server) createSeason(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "org_id")
	if !ok {
		return
	}
	var req CreateSeasonRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	season, err := s.registrar.CreateSeason(r.Context(), actorID(r), &models.Season{
		OrganizationID:          orgID,
		Name:                    req.Name,
		StartDate:               req.StartDate,
		EndDate:                 req.EndDate,
		RegistrationOpenDate:    req.RegistrationOpenDate,
		RegistrationCloseDate:   req.RegistrationCloseDate,
		IsActive:                req.IsActive,
		AutoApproveRegistration: req.AutoApproveRegistration,
		MaxMembers:              req.MaxMembers,
		RegistrationFee:         req.RegistrationFee,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	_ = httputil.WriteCreated(w, season)
}

func (s *Server) getSeason(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "season_id")
	if !ok {
		return
	}
	season, err := s.registrar.GetSeason(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !s.authorize(w, r, season.OrganizationID, rbac.ActionView) {
		return
	}
	_ = httputil.WriteSuccess(w, season)
}

func (s *Server) activateSeason(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "season_id")
	if !ok {
		return
	}
	season, err := s.registrar.ActivateSeason(r.Context(), actorID(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, season)
}

// listRegistrations lists a season's registrations for the organization's
// staff
func (s *Server) listRegistrations(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "season_id")
	if !ok {
		return
	}
	ctx := r.Context()
	season, err := s.registrar.GetSeason(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !s.authorize(w, r, season.OrganizationID, rbac.ActionManageMembers) {
		return
	}
	regs, err := s.registrar.ListRegistrations(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, list(regs))
}

func (s *Server) requestRegistration(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "season_id")
	if !ok {
		return
	}
	var req RegistrationRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	sm, err := s.registrar.RequestRegistration(r.Context(), actorID(r), req.MembershipID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	_ = httputil.WriteCreated(w, sm)
}

// getRegistration returns a registration to its registrant or to the
// organization's staff
func (s *Server) getRegistration(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "registration_id")
	if !ok {
		return
	}
	ctx := r.Context()
	sm, err := s.registrar.GetRegistration(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if sm.UserID != actorID(r) {
		season, err := s.registrar.GetSeason(ctx, sm.SeasonID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !s.authorize(w, r, season.OrganizationID, rbac.ActionManageMembers) {
			return
		}
	}
	_ = httputil.WriteSuccess(w, sm)
}

func (s *Server) approveRegistration(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "registration_id")
	if !ok {
		return
	}
	sm, err := s.registrar.Approve(r.Context(), actorID(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, sm)
}

func (s *Server) rejectRegistration(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "registration_id")
	if !ok {
		return
	}
	sm, err := s.registrar.Reject(r.Context(), actorID(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, sm)
}

func (s *Server) cancelRegistration(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "registration_id")
	if !ok {
		return
	}
	sm, err := s.registrar.Cancel(r.Context(), actorID(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, sm)
}

func (s *Server) markPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "registration_id")
	if !ok {
		return
	}
	var req PaymentRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	sm, err := s.registrar.MarkPayment(r.Context(), actorID(r), id, req.PaymentStatus)
	if err != nil {
		writeError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, sm)
}
