//go:build integration

package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vincentdavis/league-gotta-bike/pkg/audit"
	"github.com/vincentdavis/league-gotta-bike/pkg/membership"
	"github.com/vincentdavis/league-gotta-bike/pkg/models"
	"github.com/vincentdavis/league-gotta-bike/pkg/storage"
)

func TestStoreIntegration(t *testing.T) {
	store := SetupTestStore(t)
	ctx := context.Background()

	league := &models.Organization{
		Type: models.OrgTypeLeague, Name: "Front Range", Slug: "front-range",
		IsActive: true, MembershipOpen: true,
		Profile: &models.LeagueProfile{SanctioningBody: "USA Cycling", Region: "CO"},
	}
	require.NoError(t, store.Organizations().CreateOrganization(ctx, league))

	t.Run("profile round trip", func(t *testing.T) {
		got, err := store.Organizations().GetOrganizationBySlug(ctx, "front-range")
		require.NoError(t, err)
		lp, ok := got.Profile.(*models.LeagueProfile)
		require.True(t, ok)
		assert.Equal(t, "USA Cycling", lp.SanctioningBody)
	})

	t.Run("unique membership", func(t *testing.T) {
		m := &models.Membership{UserID: 1, OrganizationID: league.ID, PermissionLevel: models.PermissionOwner, Status: models.MembershipActive}
		require.NoError(t, store.Memberships().CreateMembership(ctx, m))

		err := store.Memberships().CreateMembership(ctx, &models.Membership{UserID: 1, OrganizationID: league.ID, PermissionLevel: models.PermissionMember, Status: models.MembershipActive})
		assert.True(t, storage.IsDuplicate(err))
	})

	t.Run("rollback leaves nothing behind", func(t *testing.T) {
		boom := errors.New("boom")
		err := store.InTx(ctx, func(ctx context.Context, r storage.Repositories) error {
			m := &models.Membership{UserID: 2, OrganizationID: league.ID, PermissionLevel: models.PermissionMember, Status: models.MembershipActive}
			if err := r.Memberships().CreateMembership(ctx, m); err != nil {
				return err
			}
			if _, err := r.Roles().InsertRole(ctx, &models.MemberRole{MembershipID: m.ID, RoleType: models.RoleCoach}); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		_, err = store.Memberships().FindMembership(ctx, 2, league.ID)
		assert.True(t, storage.IsNotFound(err))
	})

	t.Run("removed membership keeps registrations", func(t *testing.T) {
		season := &models.Season{OrganizationID: league.ID, Name: "2026"}
		season.StartDate = league.CreatedAt
		season.EndDate = league.CreatedAt.AddDate(0, 3, 0)
		season.RegistrationOpenDate = league.CreatedAt
		season.RegistrationCloseDate = league.CreatedAt.AddDate(0, 1, 0)
		require.NoError(t, store.Seasons().CreateSeason(ctx, season))

		m := &models.Membership{UserID: 3, OrganizationID: league.ID, PermissionLevel: models.PermissionMember, Status: models.MembershipActive}
		require.NoError(t, store.Memberships().CreateMembership(ctx, m))
		mid := m.ID
		sm := &models.SeasonMembership{
			MembershipID: &mid, UserID: 3, SeasonID: season.ID,
			RegistrationStatus: models.RegistrationApproved, RegistrationDate: season.StartDate,
			PaymentStatus: models.PaymentWaived,
		}
		require.NoError(t, store.Registrations().CreateRegistration(ctx, sm))

		require.NoError(t, store.InTx(ctx, func(ctx context.Context, r storage.Repositories) error {
			if err := r.Registrations().DetachMembership(ctx, mid); err != nil {
				return err
			}
			return r.Memberships().DeleteMembership(ctx, mid)
		}))

		got, err := store.Registrations().GetRegistration(ctx, sm.ID)
		require.NoError(t, err)
		assert.Nil(t, got.MembershipID)
		assert.Equal(t, int64(3), got.UserID)
	})

	t.Run("concurrent add role keeps one row", func(t *testing.T) {
		rec := &audit.Recorder{}
		mgr := membership.NewManager(store, membership.WithAuditLogger(rec))
		m := &models.Membership{UserID: 4, OrganizationID: league.ID, PermissionLevel: models.PermissionMember, Status: models.MembershipActive}
		require.NoError(t, store.Memberships().CreateMembership(ctx, m))

		const workers = 8
		var wg sync.WaitGroup
		ids := make([]int64, workers)
		errs := make([]error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				role, err := mgr.AddRole(ctx, 1, m.ID, models.RoleMechanic, false)
				errs[i] = err
				if err == nil {
					ids[i] = role.ID
				}
			}(i)
		}
		wg.Wait()

		for i := range errs {
			require.NoError(t, errs[i])
			assert.Equal(t, ids[0], ids[i])
		}
		roles, err := store.Roles().ListRoles(ctx, m.ID)
		require.NoError(t, err)
		assert.Len(t, roles, 1)

		added := 0
		for _, et := range rec.Types() {
			if et == audit.EventRoleAdded {
				added++
			}
		}
		assert.Equal(t, 1, added)
	})

	t.Run("deleting an organization cascades", func(t *testing.T) {
		team := &models.Organization{Type: models.OrgTypeTeam, ParentID: &league.ID, Name: "Cascade", Slug: "cascade", IsActive: true}
		require.NoError(t, store.Organizations().CreateOrganization(ctx, team))
		m := &models.Membership{UserID: 5, OrganizationID: team.ID, PermissionLevel: models.PermissionMember, Status: models.MembershipActive}
		require.NoError(t, store.Memberships().CreateMembership(ctx, m))
		_, err := store.Roles().InsertRole(ctx, &models.MemberRole{MembershipID: m.ID, RoleType: models.RoleAthlete})
		require.NoError(t, err)
		season := &models.Season{
			OrganizationID: team.ID, Name: "Cascade 2026",
			StartDate: team.CreatedAt, EndDate: team.CreatedAt.AddDate(0, 3, 0),
			RegistrationOpenDate: team.CreatedAt, RegistrationCloseDate: team.CreatedAt.AddDate(0, 1, 0),
		}
		require.NoError(t, store.Seasons().CreateSeason(ctx, season))

		require.NoError(t, store.InTx(ctx, func(ctx context.Context, r storage.Repositories) error {
			return r.Organizations().DeleteOrganization(ctx, team.ID)
		}))

		_, err = store.Memberships().GetMembership(ctx, m.ID)
		assert.True(t, storage.IsNotFound(err))
		roles, err := store.Roles().ListRoles(ctx, m.ID)
		require.NoError(t, err)
		assert.Empty(t, roles)
		_, err = store.Seasons().GetSeason(ctx, season.ID)
		assert.True(t, storage.IsNotFound(err))
	})
}
