package api

import (
	"errors"
	"net/http"

	"github.com/vincentdavis/league-gotta-bike/pkg/httputil"
	"github.com/vincentdavis/league-gotta-bike/pkg/importer"
	"github.com/vincentdavis/league-gotta-bike/pkg/membership"
	"github.com/vincentdavis/league-gotta-bike/pkg/middleware"
	"github.com/vincentdavis/league-gotta-bike/pkg/models"
	"github.com/vincentdavis/league-gotta-bike/pkg/observability"
	"github.com/vincentdavis/league-gotta-bike/pkg/orgs"
	"github.com/vincentdavis/league-gotta-bike/pkg/rbac"
	"github.com/vincentdavis/league-gotta-bike/pkg/seasons"
	"github.com/vincentdavis/league-gotta-bike/pkg/storage"
)

// StatusFor maps a domain error onto an HTTP status and a stable error code
func StatusFor(err error) (int, string) {
	var (
		authzErr *rbac.AuthorizationError
		hierErr  *orgs.HierarchyViolation
		memErr   *membership.MembershipError
		regErr   *seasons.RegistrationError
		profErr  *models.ProfileMismatchError
		valErr   *httputil.ValidationError
	)

	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.Is(err, middleware.ErrMissingToken), errors.Is(err, middleware.ErrInvalidToken):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.As(err, &authzErr):
		return http.StatusForbidden, string(authzErr.Kind)
	case errors.As(err, &hierErr):
		return http.StatusUnprocessableEntity, string(hierErr.Kind)
	case errors.As(err, &memErr):
		switch memErr.Kind {
		case membership.DuplicateMembership, membership.CannotDemoteLastOwner:
			return http.StatusConflict, string(memErr.Kind)
		}
		return http.StatusUnprocessableEntity, string(memErr.Kind)
	case errors.As(err, &regErr):
		switch regErr.Kind {
		case seasons.AlreadyRegistered, seasons.CapacityExceeded, seasons.InvalidTransition:
			return http.StatusConflict, string(regErr.Kind)
		}
		return http.StatusUnprocessableEntity, string(regErr.Kind)
	case errors.As(err, &profErr), errors.As(err, &valErr),
		errors.Is(err, orgs.ErrInvalidOrganization),
		errors.Is(err, membership.ErrInvalidInput),
		errors.Is(err, seasons.ErrInvalidSeason),
		errors.Is(err, importer.ErrImportFailed):
		return http.StatusUnprocessableEntity, "validation_failed"
	case errors.Is(err, orgs.ErrHasChildren):
		return http.StatusConflict, "has_children"
	case storage.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case storage.IsDuplicate(err):
		return http.StatusConflict, "duplicate"
	case storage.IsConflict(err):
		return http.StatusConflict, "conflict"
	}
	return http.StatusInternalServerError, "internal"
}

// writeError writes err as a problem response. Server errors are logged and
// their message is not sent to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := StatusFor(err)
	if status >= http.StatusInternalServerError {
		observability.FromContext(r.Context()).WithError(err).
			WithField("path", r.URL.Path).
			Error("request failed")
		httputil.WriteProblem(w, r, status, code, "internal server error", nil)
		return
	}
	var valErr *httputil.ValidationError
	if errors.As(err, &valErr) {
		httputil.WriteProblem(w, r, status, code, "invalid request", valErr.Fields)
		return
	}
	httputil.WriteProblem(w, r, status, code, err.Error(), nil)
}
