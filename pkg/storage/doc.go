// Package storage defines the persistence contract for organizations,
// memberships, member roles, seasons and season registrations.
//
// # Overview
//
// Repositories are split per aggregate so that callers depend only on what
// they use:
//
//   - OrganizationRepository: organizations and their parent links
//   - MembershipRepository: (user, organization) memberships
//   - RoleRepository: descriptive roles attached to a membership
//   - SeasonRepository: seasons owned by an organization
//   - RegistrationRepository: season registrations
//
// A Store bundles all repositories and adds InTx, which runs a function
// against repositories bound to a single transaction. Everything done inside
// the function commits or rolls back together.
//
// # Locking
//
// LockOrganization and LockSeason take a row-level lock held until the
// enclosing transaction ends. Owner counting and capacity counting must run
// after the corresponding lock so that two concurrent transactions cannot both
// observe the same count.
//
// # Errors
//
// Implementations translate backend failures into ErrNotFound, ErrDuplicate
// and ErrConflict so callers can branch with errors.Is. ErrConflict marks a
// serialization failure or deadlock; InTx retries those before surfacing them.
//
// # Backends
//
//   - storage/postgres: lib/pq backed store with SELECT ... FOR UPDATE locks
//   - storage/memory: single-mutex in-process store used by tests and the
//     memory driver
package storage
