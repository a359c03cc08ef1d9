// Package api provides the HTTP REST API for leagues, teams, memberships and
// season registration.
//
// # Overview
//
// The API is a thin layer over pkg/membership, pkg/seasons and
// pkg/importer. Handlers decode and validate request bodies, pass the
// authenticated actor to the domain operation and map its error onto a
// status with StatusFor. Authorization decisions are made by the domain
// packages inside their transactions; read-only routes are gated with
// rbac.RequireAction.
//
// # Usage
//
//	srv := api.NewServer(api.Config{
//		Store:         store,
//		Manager:       mgr,
//		Registrar:     registrar,
//		Authorizer:    resolver,
//		Authenticator: middleware.NewAuthenticator(secret, issuer),
//	})
//	http.ListenAndServe(":8080", srv)
//
// # API Endpoints
//
// Every route lives under /api/v1 and requires a bearer token.
//
//	POST   /orgs                                      - Create league or team
//	GET    /orgs/{org_id}                             - Get organization
//	PUT    /orgs/{org_id}                             - Update organization
//	DELETE /orgs/{org_id}                             - Delete organization without children
//	GET    /orgs/{org_id}/children                    - Direct children
//	GET    /orgs/{org_id}/hierarchy                   - Ancestors and descendants
//	POST   /orgs/{org_id}/suborgs                     - Create squad, club or practice group
//	GET    /orgs/{org_id}/permissions                 - Caller's level and actions
//	GET    /me/organizations                          - Caller's active memberships
//	GET    /orgs/{org_id}/members                     - List members
//	POST   /orgs/{org_id}/members                     - Add member
//	POST   /orgs/{org_id}/join                        - Request to join
//	DELETE /orgs/{org_id}/membership                  - Leave
//	GET    /memberships/{membership_id}               - Membership with roles
//	DELETE /memberships/{membership_id}               - Remove member
//	PUT    /memberships/{membership_id}/level         - Change permission level
//	PUT    /memberships/{membership_id}/status        - Change status
//	POST   /memberships/{membership_id}/decision      - Approve or reject join request
//	POST   /memberships/{membership_id}/roles         - Add role
//	DELETE /memberships/{membership_id}/roles/{type}  - Remove role
//	GET    /orgs/{org_id}/seasons                     - List seasons
//	POST   /orgs/{org_id}/seasons                     - Create season
//	GET    /seasons/{season_id}                       - Get season
//	POST   /seasons/{season_id}/activate              - Activate season
//	GET    /seasons/{season_id}/registrations         - List registrations
//	POST   /seasons/{season_id}/registrations         - Register
//	GET    /registrations/{registration_id}           - Get registration
//	POST   /registrations/{registration_id}/approve   - Approve
//	POST   /registrations/{registration_id}/reject    - Reject
//	POST   /registrations/{registration_id}/cancel    - Cancel
//	PUT    /registrations/{registration_id}/payment   - Set payment status
//	POST   /orgs/{org_id}/import                      - Bulk import memberships
//	GET    /orgs/{org_id}/export                      - Export memberships
//	GET    /orgs/{org_id}/audit                       - Search audit trail
//
// # Errors
//
// Errors are JSON bodies of the form {"error", "code", "request_id"}:
//
//	401  missing or invalid token
//	403  not a member, or level too low for the action
//	404  unknown organization, membership, season or registration
//	409  duplicate membership, last owner, already registered, season full
//	422  hierarchy violation, registration window closed, invalid input
package api
