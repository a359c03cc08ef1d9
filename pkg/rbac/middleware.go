package rbac

import (
	"net/http"

	"github.com/vincentdavis/league-gotta-bike/pkg/contextkeys"
	"github.com/vincentdavis/league-gotta-bike/pkg/httputil"
	"github.com/vincentdavis/league-gotta-bike/pkg/observability"
)

// OrgIDFunc extracts the target organization from a request
type OrgIDFunc func(r *http.Request) (int64, error)

// PathOrgID reads the organization id from a mux path variable
func PathOrgID(key string) OrgIDFunc {
	return func(r *http.Request) (int64, error) {
		return httputil.ParsePathInt64(r, key)
	}
}

// RequireAction rejects requests whose actor may not perform action on the
// organization named by orgID
func RequireAction(authz Authorizer, action Action, orgID OrgIDFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := contextkeys.GetActor(r.Context())
			if !ok {
				httputil.WriteProblem(w, r, http.StatusUnauthorized, "unauthenticated", "authentication required", nil)
				return
			}
			id, err := orgID(r)
			if err != nil {
				httputil.WriteProblem(w, r, http.StatusBadRequest, "bad_request", err.Error(), nil)
				return
			}

			switch err := authz.Authorize(r.Context(), actor.UserID, id, action); {
			case err == nil:
				next.ServeHTTP(w, r)
			case IsNotAMember(err):
				httputil.WriteProblem(w, r, http.StatusForbidden, string(NotAMember), err.Error(), nil)
			case IsUnauthorized(err):
				httputil.WriteProblem(w, r, http.StatusForbidden, string(Unauthorized), err.Error(), nil)
			default:
				observability.FromContext(r.Context()).WithError(err).Error("authorization check failed")
				httputil.WriteProblem(w, r, http.StatusInternalServerError, "internal", "internal server error", nil)
			}
		})
	}
}
