package membership

import (
	"context"
	"fmt"
	"time"

	"github.com/vincentdavis/league-gotta-bike/pkg/audit"
	"github.com/vincentdavis/league-gotta-bike/pkg/models"
	"github.com/vincentdavis/league-gotta-bike/pkg/rbac"
	"github.com/vincentdavis/league-gotta-bike/pkg/storage"
)

type cacheKey struct {
	userID int64
	orgID  int64
}

// Tx is one unit of work. Its methods enforce membership invariants but not
// authorization; callers authorize with Authorize first.
type Tx struct {
	repos   storage.Repositories
	authz   *rbac.Resolver
	actorID int64
	now     time.Time

	events []*audit.Event
	stale  []cacheKey
}

func newTx(repos storage.Repositories, actorID int64, now time.Time) *Tx {
	return &Tx{
		repos:   repos,
		authz:   rbac.NewResolver(repos.Memberships()),
		actorID: actorID,
		now:     now,
	}
}

// Repositories exposes the transaction's repositories
func (tx *Tx) Repositories() storage.Repositories { return tx.repos }

// Authorize checks the actor against the transaction's view of memberships
func (tx *Tx) Authorize(ctx context.Context, orgID int64, action rbac.Action) error {
	return tx.authz.Authorize(ctx, tx.actorID, orgID, action)
}

// ActorID is the user the transaction acts for, 0 for the system
func (tx *Tx) ActorID() int64 { return tx.actorID }

// Now is the transaction's clock reading
func (tx *Tx) Now() time.Time { return tx.now }

// RequireLevel checks that the actor holds at least min on orgID
func (tx *Tx) RequireLevel(ctx context.Context, orgID int64, min models.PermissionLevel) error {
	level, err := tx.authz.Resolve(ctx, tx.actorID, orgID)
	if err != nil {
		return err
	}
	if level.Rank() < min.Rank() {
		return &rbac.AuthorizationError{Kind: rbac.Unauthorized, UserID: tx.actorID, OrganizationID: orgID, Level: level}
	}
	return nil
}

// Record queues an audit event for emission after commit
func (tx *Tx) Record(e *audit.Event) {
	tx.events = append(tx.events, e)
}

func (tx *Tx) event(t audit.EventType, orgID int64, subject audit.SubjectType, subjectID int64) *audit.Event {
	e := tx.NewEvent(t, orgID, subject, subjectID)
	tx.Record(e)
	return e
}

// NewEvent builds an event attributed to the actor without recording it
func (tx *Tx) NewEvent(t audit.EventType, orgID int64, subject audit.SubjectType, subjectID int64) *audit.Event {
	var actor *int64
	if tx.actorID != 0 {
		actor = audit.Actor(tx.actorID)
	}
	return audit.NewEvent(t, actor, orgID, subject, subjectID)
}

// Invalidate queues a permission cache invalidation for after commit
func (tx *Tx) Invalidate(userID, orgID int64) {
	tx.stale = append(tx.stale, cacheKey{userID: userID, orgID: orgID})
}

// GetMembership loads a membership by id
func (tx *Tx) GetMembership(ctx context.Context, id int64) (*models.Membership, error) {
	m, err := tx.repos.Memberships().GetMembership(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return m, nil
}

// FindMembership loads the membership of userID in orgID
func (tx *Tx) FindMembership(ctx context.Context, userID, orgID int64) (*models.Membership, error) {
	m, err := tx.repos.Memberships().FindMembership(ctx, userID, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to find membership: %w", err)
	}
	return m, nil
}

// CreateMembership binds userID to orgID. Joining a squad, club or practice
// group requires an active membership in its parent team.
func (tx *Tx) CreateMembership(ctx context.Context, userID, orgID int64, level models.PermissionLevel, status models.MembershipStatus) (*models.Membership, error) {
	if !level.Valid() {
		return nil, invalidLevel(level)
	}
	if status == "" {
		status = models.MembershipActive
	}
	if !status.Valid() {
		return nil, invalidStatus(status)
	}

	org, err := tx.repos.Organizations().GetOrganization(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	if err := tx.checkParentTeam(ctx, userID, org); err != nil {
		return nil, err
	}

	if _, err := tx.repos.Memberships().FindMembership(ctx, userID, orgID); err == nil {
		return nil, &MembershipError{Kind: DuplicateMembership, UserID: userID, OrganizationID: orgID}
	} else if !storage.IsNotFound(err) {
		return nil, fmt.Errorf("failed to check existing membership: %w", err)
	}

	m := &models.Membership{
		UserID:          userID,
		OrganizationID:  orgID,
		PermissionLevel: level,
		Status:          status,
	}
	if err := tx.repos.Memberships().CreateMembership(ctx, m); err != nil {
		if storage.IsDuplicate(err) {
			return nil, &MembershipError{Kind: DuplicateMembership, UserID: userID, OrganizationID: orgID}
		}
		return nil, fmt.Errorf("failed to create membership: %w", err)
	}

	tx.event(audit.EventMembershipCreated, orgID, audit.SubjectMembership, m.ID).
		Transition("", string(status)).
		WithMetadata("user_id", userID).
		WithMetadata("permission_level", string(level))
	tx.Invalidate(userID, orgID)
	return m, nil
}

func (tx *Tx) checkParentTeam(ctx context.Context, userID int64, org *models.Organization) error {
	if !org.Type.IsSubgroup() || org.ParentID == nil {
		return nil
	}
	parent, err := tx.repos.Memberships().FindMembership(ctx, userID, *org.ParentID)
	if err != nil && !storage.IsNotFound(err) {
		return fmt.Errorf("failed to check parent team membership: %w", err)
	}
	if err != nil || !parent.IsActive() {
		return &MembershipError{Kind: ParentTeamMembershipRequired, UserID: userID, OrganizationID: org.ID}
	}
	return nil
}

// guardLastOwner locks the organization and fails if m is its only active
// owner. It returns the membership as re-read under the lock.
func (tx *Tx) guardLastOwner(ctx context.Context, m *models.Membership) (*models.Membership, error) {
	if _, err := tx.repos.Organizations().LockOrganization(ctx, m.OrganizationID); err != nil {
		return nil, fmt.Errorf("failed to lock organization: %w", err)
	}
	fresh, err := tx.repos.Memberships().GetMembership(ctx, m.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload membership: %w", err)
	}
	if fresh.PermissionLevel != models.PermissionOwner || !fresh.IsActive() {
		return fresh, nil
	}
	owners, err := tx.repos.Memberships().CountOwners(ctx, fresh.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to count owners: %w", err)
	}
	if owners <= 1 {
		return nil, &MembershipError{Kind: CannotDemoteLastOwner, UserID: fresh.UserID, OrganizationID: fresh.OrganizationID}
	}
	return fresh, nil
}

// SetPermissionLevel changes the level of m. Demoting the last active owner
// fails with CannotDemoteLastOwner.
func (tx *Tx) SetPermissionLevel(ctx context.Context, m *models.Membership, level models.PermissionLevel) (*models.Membership, error) {
	if !level.Valid() {
		return nil, invalidLevel(level)
	}
	if level != models.PermissionOwner {
		var err error
		if m, err = tx.guardLastOwner(ctx, m); err != nil {
			return nil, err
		}
	}
	if m.PermissionLevel == level {
		return m, nil
	}

	from := m.PermissionLevel
	updated := m.Clone()
	updated.PermissionLevel = level
	if err := tx.repos.Memberships().UpdateMembership(ctx, updated); err != nil {
		return nil, fmt.Errorf("failed to update membership: %w", err)
	}

	tx.event(audit.EventMembershipLevelChanged, updated.OrganizationID, audit.SubjectMembership, updated.ID).
		Transition(string(from), string(level)).
		WithMetadata("user_id", updated.UserID)
	tx.Invalidate(updated.UserID, updated.OrganizationID)
	return updated, nil
}

// SetStatus changes the status of m. Deactivating the last active owner
// fails with CannotDemoteLastOwner.
func (tx *Tx) SetStatus(ctx context.Context, m *models.Membership, status models.MembershipStatus) (*models.Membership, error) {
	if !status.Valid() {
		return nil, invalidStatus(status)
	}
	if status != models.MembershipActive {
		var err error
		if m, err = tx.guardLastOwner(ctx, m); err != nil {
			return nil, err
		}
	}
	if m.Status == status {
		return m, nil
	}

	from := m.Status
	updated := m.Clone()
	updated.Status = status
	if err := tx.repos.Memberships().UpdateMembership(ctx, updated); err != nil {
		return nil, fmt.Errorf("failed to update membership: %w", err)
	}

	tx.event(audit.EventMembershipStatusChanged, updated.OrganizationID, audit.SubjectMembership, updated.ID).
		Transition(string(from), string(status)).
		WithMetadata("user_id", updated.UserID)
	tx.Invalidate(updated.UserID, updated.OrganizationID)
	return updated, nil
}

// deleteMembership removes m and its roles. Season registrations stay and
// lose their membership reference.
func (tx *Tx) deleteMembership(ctx context.Context, m *models.Membership, eventType audit.EventType) error {
	m, err := tx.guardLastOwner(ctx, m)
	if err != nil {
		return err
	}
	if err := tx.repos.Roles().DeleteRoles(ctx, m.ID); err != nil {
		return fmt.Errorf("failed to delete roles: %w", err)
	}
	if err := tx.repos.Registrations().DetachMembership(ctx, m.ID); err != nil {
		return fmt.Errorf("failed to detach registrations: %w", err)
	}
	if err := tx.repos.Memberships().DeleteMembership(ctx, m.ID); err != nil {
		return fmt.Errorf("failed to delete membership: %w", err)
	}

	tx.event(eventType, m.OrganizationID, audit.SubjectMembership, m.ID).
		Transition(string(m.Status), "").
		WithMetadata("user_id", m.UserID).
		WithMetadata("permission_level", string(m.PermissionLevel))
	tx.Invalidate(m.UserID, m.OrganizationID)
	return nil
}
