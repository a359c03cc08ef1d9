package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/vincentdavis/league-gotta-bike/pkg/models"
	"github.com/vincentdavis/league-gotta-bike/pkg/storage"
)

var errClosed = errors.New("memory store closed")

// repos implements every repository over a state. st returns the state and
// the function that releases it.
type repos struct {
	st  func() (*state, func())
	now func() time.Time
}

func (r *repos) Organizations() storage.OrganizationRepository { return r }
func (r *repos) Memberships() storage.MembershipRepository     { return r }
func (r *repos) Roles() storage.RoleRepository                 { return r }
func (r *repos) Seasons() storage.SeasonRepository             { return r }
func (r *repos) Registrations() storage.RegistrationRepository { return r }

func notFound(what string, id int64) error {
	return fmt.Errorf("%s %d: %w", what, id, storage.ErrNotFound)
}

// Organizations

func (r *repos) CreateOrganization(ctx context.Context, org *models.Organization) error {
	st, release := r.st()
	defer release()

	for _, o := range st.orgs {
		if o.Slug == org.Slug {
			return fmt.Errorf("organization slug %q: %w", org.Slug, storage.ErrDuplicate)
		}
	}
	now := r.now()
	org.ID = st.id()
	org.CreatedAt = now
	org.UpdatedAt = now
	st.orgs[org.ID] = org.Clone()
	return nil
}

func (r *repos) GetOrganization(ctx context.Context, id int64) (*models.Organization, error) {
	st, release := r.st()
	defer release()

	o, ok := st.orgs[id]
	if !ok {
		return nil, notFound("organization", id)
	}
	return o.Clone(), nil
}

func (r *repos) GetOrganizationBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	st, release := r.st()
	defer release()

	for _, o := range st.orgs {
		if o.Slug == slug {
			return o.Clone(), nil
		}
	}
	return nil, fmt.Errorf("organization %q: %w", slug, storage.ErrNotFound)
}

func (r *repos) UpdateOrganization(ctx context.Context, org *models.Organization) error {
	st, release := r.st()
	defer release()

	if _, ok := st.orgs[org.ID]; !ok {
		return notFound("organization", org.ID)
	}
	for _, o := range st.orgs {
		if o.ID != org.ID && o.Slug == org.Slug {
			return fmt.Errorf("organization slug %q: %w", org.Slug, storage.ErrDuplicate)
		}
	}
	org.UpdatedAt = r.now()
	st.orgs[org.ID] = org.Clone()
	return nil
}

func (r *repos) DeleteOrganization(ctx context.Context, id int64) error {
	st, release := r.st()
	defer release()

	if _, ok := st.orgs[id]; !ok {
		return notFound("organization", id)
	}
	st.deleteOrganization(id)
	return nil
}

func (r *repos) ListChildren(ctx context.Context, parentID int64) ([]*models.Organization, error) {
	st, release := r.st()
	defer release()

	var out []*models.Organization
	for _, o := range st.orgs {
		if o.ParentID != nil && *o.ParentID == parentID {
			out = append(out, o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// LockOrganization only reads; InTx already serializes transactions
func (r *repos) LockOrganization(ctx context.Context, id int64) (*models.Organization, error) {
	return r.GetOrganization(ctx, id)
}

// Memberships

func (r *repos) CreateMembership(ctx context.Context, m *models.Membership) error {
	st, release := r.st()
	defer release()

	for _, existing := range st.memberships {
		if existing.UserID == m.UserID && existing.OrganizationID == m.OrganizationID {
			return fmt.Errorf("membership for user %d in organization %d: %w", m.UserID, m.OrganizationID, storage.ErrDuplicate)
		}
	}
	now := r.now()
	m.ID = st.id()
	if m.JoinedAt.IsZero() {
		m.JoinedAt = now
	}
	m.UpdatedAt = now
	st.memberships[m.ID] = m.Clone()
	return nil
}

func (r *repos) GetMembership(ctx context.Context, id int64) (*models.Membership, error) {
	st, release := r.st()
	defer release()

	m, ok := st.memberships[id]
	if !ok {
		return nil, notFound("membership", id)
	}
	return m.Clone(), nil
}

func (r *repos) FindMembership(ctx context.Context, userID, orgID int64) (*models.Membership, error) {
	st, release := r.st()
	defer release()

	for _, m := range st.memberships {
		if m.UserID == userID && m.OrganizationID == orgID {
			return m.Clone(), nil
		}
	}
	return nil, fmt.Errorf("membership for user %d in organization %d: %w", userID, orgID, storage.ErrNotFound)
}

func (r *repos) UpdateMembership(ctx context.Context, m *models.Membership) error {
	st, release := r.st()
	defer release()

	if _, ok := st.memberships[m.ID]; !ok {
		return notFound("membership", m.ID)
	}
	m.UpdatedAt = r.now()
	st.memberships[m.ID] = m.Clone()
	return nil
}

func (r *repos) DeleteMembership(ctx context.Context, id int64) error {
	st, release := r.st()
	defer release()

	if _, ok := st.memberships[id]; !ok {
		return notFound("membership", id)
	}
	delete(st.memberships, id)
	return nil
}

func (r *repos) ListMemberships(ctx context.Context, orgID int64, filter storage.MembershipFilter) ([]*models.Membership, error) {
	st, release := r.st()
	defer release()

	var out []*models.Membership
	for _, m := range st.memberships {
		if m.OrganizationID != orgID {
			continue
		}
		if filter.Status != "" && m.Status != filter.Status {
			continue
		}
		if filter.PermissionLevel != "" && m.PermissionLevel != filter.PermissionLevel {
			continue
		}
		out = append(out, m.Clone())
	}
	sortMemberships(out)
	return out, nil
}

func (r *repos) ListUserMemberships(ctx context.Context, userID int64) ([]*models.Membership, error) {
	st, release := r.st()
	defer release()

	var out []*models.Membership
	for _, m := range st.memberships {
		if m.UserID == userID {
			out = append(out, m.Clone())
		}
	}
	sortMemberships(out)
	return out, nil
}

func (r *repos) CountOwners(ctx context.Context, orgID int64) (int, error) {
	st, release := r.st()
	defer release()

	n := 0
	for _, m := range st.memberships {
		if m.OrganizationID == orgID && m.PermissionLevel == models.PermissionOwner && m.Status == models.MembershipActive {
			n++
		}
	}
	return n, nil
}

func sortMemberships(ms []*models.Membership) {
	sort.Slice(ms, func(i, j int) bool { return ms[i].ID < ms[j].ID })
}

// Roles

func (r *repos) ListRoles(ctx context.Context, membershipID int64) ([]*models.MemberRole, error) {
	st, release := r.st()
	defer release()

	var out []*models.MemberRole
	for _, role := range st.roles {
		if role.MembershipID == membershipID {
			out = append(out, role.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *repos) InsertRole(ctx context.Context, role *models.MemberRole) (bool, error) {
	st, release := r.st()
	defer release()

	for _, existing := range st.roles {
		if existing.MembershipID == role.MembershipID && existing.RoleType == role.RoleType {
			*role = *existing.Clone()
			return false, nil
		}
	}
	now := r.now()
	role.ID = st.id()
	role.CreatedAt = now
	role.UpdatedAt = now
	st.roles[role.ID] = role.Clone()
	return true, nil
}

func (r *repos) UpdateRole(ctx context.Context, role *models.MemberRole) error {
	st, release := r.st()
	defer release()

	if _, ok := st.roles[role.ID]; !ok {
		return notFound("member role", role.ID)
	}
	role.UpdatedAt = r.now()
	st.roles[role.ID] = role.Clone()
	return nil
}

func (r *repos) DeleteRole(ctx context.Context, membershipID int64, roleType models.RoleType) error {
	st, release := r.st()
	defer release()

	for id, role := range st.roles {
		if role.MembershipID == membershipID && role.RoleType == roleType {
			delete(st.roles, id)
			return nil
		}
	}
	return fmt.Errorf("role %s on membership %d: %w", roleType, membershipID, storage.ErrNotFound)
}

func (r *repos) ClearPrimary(ctx context.Context, membershipID int64, keep models.RoleType) error {
	st, release := r.st()
	defer release()

	now := r.now()
	for _, role := range st.roles {
		if role.MembershipID == membershipID && role.RoleType != keep && role.IsPrimary {
			role.IsPrimary = false
			role.UpdatedAt = now
		}
	}
	return nil
}

func (r *repos) DeleteRoles(ctx context.Context, membershipID int64) error {
	st, release := r.st()
	defer release()

	for id, role := range st.roles {
		if role.MembershipID == membershipID {
			delete(st.roles, id)
		}
	}
	return nil
}

// Seasons

func (r *repos) CreateSeason(ctx context.Context, s *models.Season) error {
	st, release := r.st()
	defer release()

	if _, ok := st.orgs[s.OrganizationID]; !ok {
		return notFound("organization", s.OrganizationID)
	}
	now := r.now()
	s.ID = st.id()
	s.CreatedAt = now
	s.UpdatedAt = now
	st.seasons[s.ID] = s.Clone()
	return nil
}

func (r *repos) GetSeason(ctx context.Context, id int64) (*models.Season, error) {
	st, release := r.st()
	defer release()

	s, ok := st.seasons[id]
	if !ok {
		return nil, notFound("season", id)
	}
	return s.Clone(), nil
}

func (r *repos) UpdateSeason(ctx context.Context, s *models.Season) error {
	st, release := r.st()
	defer release()

	if _, ok := st.seasons[s.ID]; !ok {
		return notFound("season", s.ID)
	}
	s.UpdatedAt = r.now()
	st.seasons[s.ID] = s.Clone()
	return nil
}

func (r *repos) ListSeasons(ctx context.Context, orgID int64) ([]*models.Season, error) {
	st, release := r.st()
	defer release()

	var out []*models.Season
	for _, s := range st.seasons {
		if s.OrganizationID == orgID {
			out = append(out, s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.After(out[j].StartDate) })
	return out, nil
}

func (r *repos) ActiveSeason(ctx context.Context, orgID int64) (*models.Season, error) {
	st, release := r.st()
	defer release()

	var active *models.Season
	for _, s := range st.seasons {
		if s.OrganizationID == orgID && s.IsActive {
			if active == nil || s.StartDate.After(active.StartDate) {
				active = s
			}
		}
	}
	if active == nil {
		return nil, fmt.Errorf("active season for organization %d: %w", orgID, storage.ErrNotFound)
	}
	return active.Clone(), nil
}

func (r *repos) ListActiveSeasons(ctx context.Context) ([]*models.Season, error) {
	st, release := r.st()
	defer release()

	var out []*models.Season
	for _, s := range st.seasons {
		if s.IsActive {
			out = append(out, s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// LockSeason only reads; InTx already serializes transactions
func (r *repos) LockSeason(ctx context.Context, id int64) (*models.Season, error) {
	return r.GetSeason(ctx, id)
}

// Registrations

func (r *repos) CreateRegistration(ctx context.Context, sm *models.SeasonMembership) error {
	st, release := r.st()
	defer release()

	if sm.MembershipID != nil {
		for _, existing := range st.registrations {
			if existing.MembershipID != nil && *existing.MembershipID == *sm.MembershipID &&
				existing.SeasonID == sm.SeasonID && existing.RegistrationStatus != models.RegistrationRejected {
				return fmt.Errorf("registration for membership %d in season %d: %w", *sm.MembershipID, sm.SeasonID, storage.ErrDuplicate)
			}
		}
	}
	sm.ID = st.id()
	if sm.RegistrationDate.IsZero() {
		sm.RegistrationDate = r.now()
	}
	sm.UpdatedAt = r.now()
	st.registrations[sm.ID] = sm.Clone()
	return nil
}

func (r *repos) GetRegistration(ctx context.Context, id int64) (*models.SeasonMembership, error) {
	st, release := r.st()
	defer release()

	sm, ok := st.registrations[id]
	if !ok {
		return nil, notFound("season membership", id)
	}
	return sm.Clone(), nil
}

func (r *repos) UpdateRegistration(ctx context.Context, sm *models.SeasonMembership) error {
	st, release := r.st()
	defer release()

	if _, ok := st.registrations[sm.ID]; !ok {
		return notFound("season membership", sm.ID)
	}
	sm.UpdatedAt = r.now()
	st.registrations[sm.ID] = sm.Clone()
	return nil
}

func (r *repos) FindOpenRegistration(ctx context.Context, userID, seasonID int64) (*models.SeasonMembership, error) {
	st, release := r.st()
	defer release()

	for _, sm := range st.registrations {
		if sm.UserID == userID && sm.SeasonID == seasonID && sm.RegistrationStatus != models.RegistrationRejected {
			return sm.Clone(), nil
		}
	}
	return nil, fmt.Errorf("registration for user %d in season %d: %w", userID, seasonID, storage.ErrNotFound)
}

func (r *repos) CountRegistrations(ctx context.Context, seasonID int64, status models.RegistrationStatus) (int, error) {
	st, release := r.st()
	defer release()

	n := 0
	for _, sm := range st.registrations {
		if sm.SeasonID == seasonID && sm.RegistrationStatus == status {
			n++
		}
	}
	return n, nil
}

func (r *repos) ListRegistrations(ctx context.Context, seasonID int64) ([]*models.SeasonMembership, error) {
	st, release := r.st()
	defer release()

	var out []*models.SeasonMembership
	for _, sm := range st.registrations {
		if sm.SeasonID == seasonID {
			out = append(out, sm.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *repos) HasRegistration(ctx context.Context, membershipID, seasonID int64, status models.RegistrationStatus) (bool, error) {
	st, release := r.st()
	defer release()

	for _, sm := range st.registrations {
		if sm.MembershipID != nil && *sm.MembershipID == membershipID && sm.SeasonID == seasonID && sm.RegistrationStatus == status {
			return true, nil
		}
	}
	return false, nil
}

func (r *repos) DetachMembership(ctx context.Context, membershipID int64) error {
	st, release := r.st()
	defer release()

	now := r.now()
	for _, sm := range st.registrations {
		if sm.MembershipID != nil && *sm.MembershipID == membershipID {
			sm.MembershipID = nil
			sm.UpdatedAt = now
		}
	}
	return nil
}
