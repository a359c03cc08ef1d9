package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/vincentdavis/league-gotta-bike/pkg/contextkeys"
	"github.com/vincentdavis/league-gotta-bike/pkg/models"
)

func TestRequireAction(t *testing.T) {
	next := &countingResolver{levels: map[int64]models.PermissionLevel{
		1: models.PermissionAdmin,
		2: models.PermissionMember,
	}}
	authz := NewCachedResolver(next, CacheConfig{}, nil, nil, nil)

	router := mux.NewRouter()
	router.Handle("/orgs/{orgID}/settings", RequireAction(authz, ActionEditOrg, PathOrgID("orgID"))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }),
	))

	tests := []struct {
		name   string
		path   string
		actor  *contextkeys.Actor
		status int
	}{
		{"admin allowed", "/orgs/5/settings", &contextkeys.Actor{UserID: 1}, http.StatusNoContent},
		{"member denied", "/orgs/5/settings", &contextkeys.Actor{UserID: 2}, http.StatusForbidden},
		{"stranger denied", "/orgs/5/settings", &contextkeys.Actor{UserID: 3}, http.StatusForbidden},
		{"anonymous", "/orgs/5/settings", nil, http.StatusUnauthorized},
		{"bad org id", "/orgs/abc/settings", &contextkeys.Actor{UserID: 1}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPut, tt.path, nil)
			if tt.actor != nil {
				r = r.WithContext(contextkeys.WithActor(r.Context(), *tt.actor))
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, r)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}
