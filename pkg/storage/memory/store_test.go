package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vincentdavis/league-gotta-bike/pkg/models"
	"github.com/vincentdavis/league-gotta-bike/pkg/storage"
)

func createOrg(t *testing.T, s *Store, slug string) *models.Organization {
	t.Helper()
	org := &models.Organization{Type: models.OrgTypeLeague, Name: slug, Slug: slug, IsActive: true}
	require.NoError(t, s.Organizations().CreateOrganization(context.Background(), org))
	return org
}

func TestInTx(t *testing.T) {
	ctx := context.Background()

	t.Run("commits on success", func(t *testing.T) {
		s := New()
		org := createOrg(t, s, "commit")

		err := s.InTx(ctx, func(ctx context.Context, r storage.Repositories) error {
			return r.Memberships().CreateMembership(ctx, &models.Membership{
				UserID: 1, OrganizationID: org.ID,
				PermissionLevel: models.PermissionOwner, Status: models.MembershipActive,
			})
		})
		require.NoError(t, err)

		m, err := s.Memberships().FindMembership(ctx, 1, org.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PermissionOwner, m.PermissionLevel)
	})

	t.Run("rolls back every write on error", func(t *testing.T) {
		s := New()
		org := createOrg(t, s, "rollback")
		boom := errors.New("boom")

		err := s.InTx(ctx, func(ctx context.Context, r storage.Repositories) error {
			m := &models.Membership{UserID: 1, OrganizationID: org.ID, PermissionLevel: models.PermissionMember, Status: models.MembershipActive}
			if err := r.Memberships().CreateMembership(ctx, m); err != nil {
				return err
			}
			if _, err := r.Roles().InsertRole(ctx, &models.MemberRole{MembershipID: m.ID, RoleType: models.RoleAthlete}); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		_, err = s.Memberships().FindMembership(ctx, 1, org.ID)
		assert.True(t, storage.IsNotFound(err))
	})

	t.Run("cancelled context", func(t *testing.T) {
		s := New()
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		called := false
		err := s.InTx(cctx, func(ctx context.Context, r storage.Repositories) error {
			called = true
			return nil
		})
		require.ErrorIs(t, err, context.Canceled)
		assert.False(t, called)
	})
}

func TestMembershipUniqueness(t *testing.T) {
	ctx := context.Background()
	s := New()
	org := createOrg(t, s, "unique")

	m := &models.Membership{UserID: 7, OrganizationID: org.ID, PermissionLevel: models.PermissionMember, Status: models.MembershipActive}
	require.NoError(t, s.Memberships().CreateMembership(ctx, m))

	err := s.Memberships().CreateMembership(ctx, &models.Membership{UserID: 7, OrganizationID: org.ID, PermissionLevel: models.PermissionAdmin})
	assert.True(t, storage.IsDuplicate(err))
}

func TestInsertRole(t *testing.T) {
	ctx := context.Background()
	s := New()

	first := &models.MemberRole{MembershipID: 5, RoleType: models.RoleCoach, IsPrimary: true}
	created, err := s.Roles().InsertRole(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)

	again := &models.MemberRole{MembershipID: 5, RoleType: models.RoleCoach}
	created, err = s.Roles().InsertRole(ctx, again)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)
	assert.True(t, again.IsPrimary)

	roles, err := s.Roles().ListRoles(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, roles, 1)
}

func TestDeleteOrganization(t *testing.T) {
	ctx := context.Background()
	s := New()
	league := createOrg(t, s, "league")
	team := &models.Organization{Type: models.OrgTypeTeam, ParentID: &league.ID, Name: "team", Slug: "team"}
	require.NoError(t, s.Organizations().CreateOrganization(ctx, team))
	other := createOrg(t, s, "other")

	var mids []int64
	for _, orgID := range []int64{league.ID, team.ID, other.ID} {
		m := &models.Membership{UserID: 1, OrganizationID: orgID, PermissionLevel: models.PermissionOwner, Status: models.MembershipActive}
		require.NoError(t, s.Memberships().CreateMembership(ctx, m))
		_, err := s.Roles().InsertRole(ctx, &models.MemberRole{MembershipID: m.ID, RoleType: models.RoleCoach})
		require.NoError(t, err)
		mids = append(mids, m.ID)
	}
	season := &models.Season{OrganizationID: team.ID, Name: "2026"}
	require.NoError(t, s.Seasons().CreateSeason(ctx, season))
	reg := &models.SeasonMembership{MembershipID: &mids[1], UserID: 1, SeasonID: season.ID, RegistrationStatus: models.RegistrationPending}
	require.NoError(t, s.Registrations().CreateRegistration(ctx, reg))

	require.NoError(t, s.Organizations().DeleteOrganization(ctx, league.ID))

	for _, id := range []int64{league.ID, team.ID} {
		_, err := s.Organizations().GetOrganization(ctx, id)
		assert.True(t, storage.IsNotFound(err))
	}
	for _, mid := range mids[:2] {
		_, err := s.Memberships().GetMembership(ctx, mid)
		assert.True(t, storage.IsNotFound(err))
		roles, err := s.Roles().ListRoles(ctx, mid)
		require.NoError(t, err)
		assert.Empty(t, roles)
	}
	_, err := s.Seasons().GetSeason(ctx, season.ID)
	assert.True(t, storage.IsNotFound(err))
	_, err = s.Registrations().GetRegistration(ctx, reg.ID)
	assert.True(t, storage.IsNotFound(err))

	roles, err := s.Roles().ListRoles(ctx, mids[2])
	require.NoError(t, err)
	assert.Len(t, roles, 1)
	_, err = s.Organizations().GetOrganization(ctx, other.ID)
	assert.NoError(t, err)

	assert.True(t, storage.IsNotFound(s.Organizations().DeleteOrganization(ctx, league.ID)))
}

func TestCountOwners(t *testing.T) {
	ctx := context.Background()
	s := New()
	org := createOrg(t, s, "owners")

	for i, st := range []models.MembershipStatus{models.MembershipActive, models.MembershipInactive} {
		require.NoError(t, s.Memberships().CreateMembership(ctx, &models.Membership{
			UserID: int64(i + 1), OrganizationID: org.ID,
			PermissionLevel: models.PermissionOwner, Status: st,
		}))
	}

	n, err := s.Memberships().CountOwners(ctx, org.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRegistrations(t *testing.T) {
	ctx := context.Background()
	s := New()
	org := createOrg(t, s, "regs")
	season := &models.Season{OrganizationID: org.ID, Name: "2026"}
	require.NoError(t, s.Seasons().CreateSeason(ctx, season))
	mid := int64(42)

	t.Run("one open registration per membership and season", func(t *testing.T) {
		first := &models.SeasonMembership{MembershipID: &mid, UserID: 1, SeasonID: season.ID, RegistrationStatus: models.RegistrationPending}
		require.NoError(t, s.Registrations().CreateRegistration(ctx, first))

		err := s.Registrations().CreateRegistration(ctx, &models.SeasonMembership{MembershipID: &mid, UserID: 1, SeasonID: season.ID, RegistrationStatus: models.RegistrationPending})
		assert.True(t, storage.IsDuplicate(err))

		first.RegistrationStatus = models.RegistrationRejected
		require.NoError(t, s.Registrations().UpdateRegistration(ctx, first))

		require.NoError(t, s.Registrations().CreateRegistration(ctx, &models.SeasonMembership{MembershipID: &mid, UserID: 1, SeasonID: season.ID, RegistrationStatus: models.RegistrationPending}))
	})

	t.Run("detach keeps the row", func(t *testing.T) {
		require.NoError(t, s.Registrations().DetachMembership(ctx, mid))

		regs, err := s.Registrations().ListRegistrations(ctx, season.ID)
		require.NoError(t, err)
		require.Len(t, regs, 2)
		for _, r := range regs {
			assert.Nil(t, r.MembershipID)
			assert.Equal(t, int64(1), r.UserID)
		}
	})

	t.Run("open lookup is by user and sees detached rows", func(t *testing.T) {
		open, err := s.Registrations().FindOpenRegistration(ctx, 1, season.ID)
		require.NoError(t, err)
		assert.Nil(t, open.MembershipID)
		assert.Equal(t, models.RegistrationPending, open.RegistrationStatus)

		_, err = s.Registrations().FindOpenRegistration(ctx, 2, season.ID)
		assert.True(t, storage.IsNotFound(err))
	})
}

func TestReturnedValuesAreCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	org := createOrg(t, s, "copies")

	got, err := s.Organizations().GetOrganization(ctx, org.ID)
	require.NoError(t, err)
	got.Name = "changed"

	again, err := s.Organizations().GetOrganization(ctx, org.ID)
	require.NoError(t, err)
	assert.Equal(t, "copies", again.Name)
}
