// Package membership manages who belongs to which organization and with what
// permission level, and the descriptive roles attached to each membership.
//
// # Lifecycle
//
// Manager runs every mutation in one storage transaction. Authorization is
// resolved inside the same transaction from the membership rows it is about
// to change, so a check cannot go stale before the write. Operations that
// can remove or demote an owner lock the organization row first and then
// count owners; two concurrent demotions of the last two owners therefore
// serialize and the second one fails with CannotDemoteLastOwner.
//
// Audit events and permission cache invalidations are collected while the
// transaction runs and only emitted after it commits.
//
// # Roles
//
// Roles (coach, parent, athlete...) never grant permissions. A membership
// holds each role type at most once; adding an existing role is a no-op.
// At most one role is primary: marking a role primary clears the flag on the
// others.
//
// # Bulk operations
//
// Tx exposes the unguarded building blocks (CreateMembership,
// SetPermissionLevel, SetStatus, AddRole) so collaborators such as the
// importer can compose many changes into one all-or-nothing transaction via
// Manager.Run.
package membership
