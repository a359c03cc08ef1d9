package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/vincentdavis/league-gotta-bike/pkg/audit"
	"github.com/vincentdavis/league-gotta-bike/pkg/contextkeys"
	"github.com/vincentdavis/league-gotta-bike/pkg/httputil"
	"github.com/vincentdavis/league-gotta-bike/pkg/importer"
	"github.com/vincentdavis/league-gotta-bike/pkg/membership"
	"github.com/vincentdavis/league-gotta-bike/pkg/middleware"
	"github.com/vincentdavis/league-gotta-bike/pkg/observability"
	"github.com/vincentdavis/league-gotta-bike/pkg/rbac"
	"github.com/vincentdavis/league-gotta-bike/pkg/seasons"
	"github.com/vincentdavis/league-gotta-bike/pkg/storage"
)

// DefaultMaxBodyBytes caps request bodies when Config leaves it unset
const DefaultMaxBodyBytes = 1 << 20

// AuditSearcher queries the audit trail
type AuditSearcher interface {
	Search(ctx context.Context, filter audit.SearchFilter) ([]*audit.Event, error)
}

// Config wires the server's collaborators. Store, Manager, Registrar,
// Authorizer and Authenticator are required.
type Config struct {
	Store         storage.Store
	Manager       *membership.Manager
	Registrar     *seasons.Registrar
	Importer      *importer.Importer
	Authorizer    rbac.Authorizer
	Authenticator *middleware.Authenticator

	// Optional
	RateLimiter  *middleware.RateLimiter
	Audit        AuditSearcher
	Logger       *observability.Logger
	Metrics      *observability.Metrics
	MaxBodyBytes int64
}

// Server is the REST API
type Server struct {
	router    *mux.Router
	handler   http.Handler
	store     storage.Store
	mgr       *membership.Manager
	registrar *seasons.Registrar
	importer  *importer.Importer
	authz     rbac.Authorizer
	audit     AuditSearcher
	logger    *observability.Logger
}

// NewServer creates a server and its routes
func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.Importer == nil {
		cfg.Importer = importer.New(cfg.Manager, 0, cfg.Logger, cfg.Metrics)
	}

	s := &Server{
		router:    mux.NewRouter(),
		store:     cfg.Store,
		mgr:       cfg.Manager,
		registrar: cfg.Registrar,
		importer:  cfg.Importer,
		authz:     cfg.Authorizer,
		audit:     cfg.Audit,
		logger:    cfg.Logger,
	}
	s.router.Use(observability.HTTPMetricsMiddleware(cfg.Metrics))
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteProblem(w, r, http.StatusNotFound, "not_found", "route not found", nil)
	})

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(cfg.Authenticator.Handler)
	if cfg.RateLimiter != nil {
		api.Use(cfg.RateLimiter.Handler)
	}
	s.setupRoutes(api)

	s.handler = httputil.Chain(
		httputil.RequestIDMiddleware(cfg.Logger),
		httputil.RecoveryMiddleware,
		httputil.LoggingMiddleware,
		httputil.MaxBytesMiddleware(cfg.MaxBodyBytes),
	)(s.router)
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes(r *mux.Router) {
	// Organizations
	r.HandleFunc("/orgs", s.createOrganization).Methods(http.MethodPost)
	r.Handle("/orgs/{org_id}", s.require(rbac.ActionView, s.getOrganization)).Methods(http.MethodGet)
	r.HandleFunc("/orgs/{org_id}", s.updateOrganization).Methods(http.MethodPut)
	r.HandleFunc("/orgs/{org_id}", s.deleteOrganization).Methods(http.MethodDelete)
	r.Handle("/orgs/{org_id}/children", s.require(rbac.ActionView, s.listChildren)).Methods(http.MethodGet)
	r.Handle("/orgs/{org_id}/hierarchy", s.require(rbac.ActionView, s.getHierarchy)).Methods(http.MethodGet)
	r.HandleFunc("/orgs/{org_id}/suborgs", s.createSubOrganization).Methods(http.MethodPost)
	r.HandleFunc("/orgs/{org_id}/permissions", s.getPermissions).Methods(http.MethodGet)
	r.HandleFunc("/me/organizations", s.listMyOrganizations).Methods(http.MethodGet)

	// Memberships
	r.Handle("/orgs/{org_id}/members", s.require(rbac.ActionView, s.listMembers)).Methods(http.MethodGet)
	r.HandleFunc("/orgs/{org_id}/members", s.addMember).Methods(http.MethodPost)
	r.HandleFunc("/orgs/{org_id}/join", s.requestToJoin).Methods(http.MethodPost)
	r.HandleFunc("/orgs/{org_id}/membership", s.leave).Methods(http.MethodDelete)
	r.HandleFunc("/memberships/{membership_id}", s.getMembership).Methods(http.MethodGet)
	r.HandleFunc("/memberships/{membership_id}", s.removeMember).Methods(http.MethodDelete)
	r.HandleFunc("/memberships/{membership_id}/level", s.changeLevel).Methods(http.MethodPut)
	r.HandleFunc("/memberships/{membership_id}/status", s.changeStatus).Methods(http.MethodPut)
	r.HandleFunc("/memberships/{membership_id}/decision", s.decideJoinRequest).Methods(http.MethodPost)

	// Roles
	r.HandleFunc("/memberships/{membership_id}/roles", s.addRole).Methods(http.MethodPost)
	r.HandleFunc("/memberships/{membership_id}/roles/{role_type}", s.removeRole).Methods(http.MethodDelete)

	// Seasons and registrations
	r.Handle("/orgs/{org_id}/seasons", s.require(rbac.ActionView, s.listSeasons)).Methods(http.MethodGet)
	r.HandleFunc("/orgs/{org_id}/seasons", s.createSeason).Methods(http.MethodPost)
	r.HandleFunc("/seasons/{season_id}", s.getSeason).Methods(http.MethodGet)
	r.HandleFunc("/seasons/{season_id}/activate", s.activateSeason).Methods(http.MethodPost)
	r.HandleFunc("/seasons/{season_id}/registrations", s.listRegistrations).Methods(http.MethodGet)
	r.HandleFunc("/seasons/{season_id}/registrations", s.requestRegistration).Methods(http.MethodPost)
	r.HandleFunc("/registrations/{registration_id}", s.getRegistration).Methods(http.MethodGet)
	r.HandleFunc("/registrations/{registration_id}/approve", s.approveRegistration).Methods(http.MethodPost)
	r.HandleFunc("/registrations/{registration_id}/reject", s.rejectRegistration).Methods(http.MethodPost)
	r.HandleFunc("/registrations/{registration_id}/cancel", s.cancelRegistration).Methods(http.MethodPost)
	r.HandleFunc("/registrations/{registration_id}/payment", s.markPayment).Methods(http.MethodPut)

	// Bulk import and export
	r.HandleFunc("/orgs/{org_id}/import", s.importMembers).Methods(http.MethodPost)
	r.Handle("/orgs/{org_id}/export", s.require(rbac.ActionManageMembers, s.exportMembers)).Methods(http.MethodGet)

	// Audit trail
	if s.audit != nil {
		r.Handle("/orgs/{org_id}/audit", s.require(rbac.ActionEditOrg, s.searchAudit)).Methods(http.MethodGet)
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// require gates a handler on an action in the organization named by the
// org_id path variable
func (s *Server) require(action rbac.Action, h http.HandlerFunc) http.Handler {
	return rbac.RequireAction(s.authz, action, rbac.PathOrgID("org_id"))(h)
}

// authorize checks an action for the current actor, writing the error
// response when it fails
func (s *Server) authorize(w http.ResponseWriter, r *http.Request, orgID int64, action rbac.Action) bool {
	if err := s.authz.Authorize(r.Context(), actorID(r), orgID, action); err != nil {
		writeError(w, r, err)
		return false
	}
	return true
}

// actorID returns the authenticated user. The authenticator runs before
// every /api/v1 route so the actor is always present.
func actorID(r *http.Request) int64 {
	actor, _ := contextkeys.GetActor(r.Context())
	return actor.UserID
}
