package importer

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vincentdavis/league-gotta-bike/pkg/audit"
	"github.com/vincentdavis/league-gotta-bike/pkg/membership"
	"github.com/vincentdavis/league-gotta-bike/pkg/models"
	"github.com/vincentdavis/league-gotta-bike/pkg/rbac"
	"github.com/vincentdavis/league-gotta-bike/pkg/storage"
	"github.com/vincentdavis/league-gotta-bike/pkg/storage/memory"
)

const owner int64 = 1

func setup(t *testing.T) (*memory.Store, *membership.Manager, *audit.Recorder, *models.Organization) {
	t.Helper()
	store := memory.New()
	rec := &audit.Recorder{}
	mgr := membership.NewManager(store, membership.WithAuditLogger(rec))
	org, err := mgr.CreateOrganization(context.Background(), owner, &models.Organization{Type: models.OrgTypeTeam, Name: "Flatirons Devo"})
	require.NoError(t, err)
	return store, mgr, rec, org
}

func TestImport(t *testing.T) {
	ctx := context.Background()

	t.Run("creates and updates", func(t *testing.T) {
		store, mgr, rec, org := setup(t)
		_, err := mgr.CreateMembership(ctx, 2, org.ID, models.PermissionMember, models.MembershipActive)
		require.NoError(t, err)

		report, err := New(mgr, 0, nil, nil).Import(ctx, owner, org.ID, []Row{
			{Line: 1, UserID: 2, PermissionLevel: "Manager", Roles: []string{"coach"}},
			{Line: 2, UserID: 3, PermissionLevel: "member", Roles: []string{"athlete", "parent"}, PrimaryRole: "athlete"},
			{Line: 3, UserID: 4, PermissionLevel: "member", Status: "inactive"},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, report.Updated)
		assert.Equal(t, 2, report.Created)
		assert.Equal(t, 3, report.RolesAdded)
		assert.Empty(t, report.Errors)

		m, err := store.Memberships().FindMembership(ctx, 2, org.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PermissionManager, m.PermissionLevel)

		m, err = store.Memberships().FindMembership(ctx, 3, org.ID)
		require.NoError(t, err)
		primary, err := mgr.PrimaryRole(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RoleAthlete, primary.RoleType)

		m, err = store.Memberships().FindMembership(ctx, 4, org.ID)
		require.NoError(t, err)
		assert.Equal(t, models.MembershipInactive, m.Status)

		assert.Contains(t, rec.Types(), audit.EventImportCompleted)
	})

	t.Run("any bad row rolls everything back", func(t *testing.T) {
		store, mgr, rec, org := setup(t)
		before := len(rec.Events())
		ownerM, err := store.Memberships().FindMembership(ctx, owner, org.ID)
		require.NoError(t, err)

		report, err := New(mgr, 0, nil, nil).Import(ctx, owner, org.ID, []Row{
			{Line: 1, UserID: 2, PermissionLevel: "member"},
			{Line: 2, UserID: 3, PermissionLevel: "captain"},
			{Line: 3, UserID: 4, PermissionLevel: "member", Roles: []string{"pilot"}},
			{Line: 4, UserID: owner, PermissionLevel: "member"},
			{Line: 5, UserID: 5, PermissionLevel: "member"},
		})
		require.ErrorIs(t, err, ErrImportFailed)
		require.NotNil(t, report)
		assert.Equal(t, 3, report.Failed)
		require.Len(t, report.Errors, 3)
		assert.Equal(t, []int{2, 3, 4}, []int{report.Errors[0].Line, report.Errors[1].Line, report.Errors[2].Line})
		assert.ErrorIs(t, report.Errors[2], membership.ErrCannotDemoteLastOwner)

		for _, user := range []int64{2, 5} {
			_, err := store.Memberships().FindMembership(ctx, user, org.ID)
			assert.True(t, storage.IsNotFound(err), "user %d must not exist", user)
		}
		still, err := store.Memberships().GetMembership(ctx, ownerM.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PermissionOwner, still.PermissionLevel)
		assert.Len(t, rec.Events(), before)
	})

	t.Run("error list is capped but the scan continues", func(t *testing.T) {
		_, mgr, _, org := setup(t)
		var rows []Row
		for i := 0; i < 10; i++ {
			rows = append(rows, Row{Line: i + 1, UserID: int64(10 + i), PermissionLevel: fmt.Sprintf("bogus-%d", i)})
		}
		report, err := New(mgr, 3, nil, nil).Import(ctx, owner, org.ID, rows)
		require.ErrorIs(t, err, ErrImportFailed)
		assert.Equal(t, 10, report.Failed)
		assert.Len(t, report.Errors, 3)
		assert.True(t, report.Truncated)
	})

	t.Run("authorization", func(t *testing.T) {
		_, mgr, _, org := setup(t)
		_, err := mgr.CreateMembership(ctx, 2, org.ID, models.PermissionManager, models.MembershipActive)
		require.NoError(t, err)
		im := New(mgr, 0, nil, nil)

		_, err = im.Import(ctx, 2, org.ID, []Row{{Line: 1, UserID: 3, PermissionLevel: "member"}})
		assert.NoError(t, err)

		_, err = im.Import(ctx, 2, org.ID, []Row{{Line: 1, UserID: 4, PermissionLevel: "admin"}})
		assert.True(t, rbac.IsUnauthorized(err))

		_, err = im.Import(ctx, 99, org.ID, []Row{{Line: 1, UserID: 5, PermissionLevel: "member"}})
		assert.True(t, rbac.IsNotAMember(err))
	})

	t.Run("padded and mixed case levels still need assign_permissions", func(t *testing.T) {
		store, mgr, _, org := setup(t)
		const manager int64 = 2
		_, err := mgr.CreateMembership(ctx, manager, org.ID, models.PermissionManager, models.MembershipActive)
		require.NoError(t, err)
		im := New(mgr, 0, nil, nil)

		for _, level := range []string{" owner", "owner ", "\tAdmin", " OWNER "} {
			_, err = im.Import(ctx, manager, org.ID, []Row{{Line: 1, UserID: manager, PermissionLevel: level}})
			assert.True(t, rbac.IsUnauthorized(err), "level %q", level)
		}

		m, err := store.Memberships().FindMembership(ctx, manager, org.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PermissionManager, m.PermissionLevel)
	})

	t.Run("demoting an admin needs assign_permissions", func(t *testing.T) {
		store, mgr, _, org := setup(t)
		_, err := mgr.CreateMembership(ctx, 2, org.ID, models.PermissionManager, models.MembershipActive)
		require.NoError(t, err)
		_, err = mgr.CreateMembership(ctx, 3, org.ID, models.PermissionAdmin, models.MembershipActive)
		require.NoError(t, err)

		_, err = New(mgr, 0, nil, nil).Import(ctx, 2, org.ID, []Row{{Line: 1, UserID: 3, PermissionLevel: "member"}})
		assert.True(t, rbac.IsUnauthorized(err))

		m, err := store.Memberships().FindMembership(ctx, 3, org.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PermissionAdmin, m.PermissionLevel)
	})
}

func TestExportRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, mgr, _, org := setup(t)
	im := New(mgr, 0, nil, nil)

	_, err := im.Import(ctx, owner, org.ID, []Row{
		{Line: 1, UserID: 2, PermissionLevel: "member", Roles: []string{"mechanic", "athlete"}, PrimaryRole: "mechanic"},
	})
	require.NoError(t, err)

	rows, err := Export(ctx, store, org.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(2), rows[1].UserID)
	assert.Equal(t, []string{"athlete", "mechanic"}, rows[1].Roles)
	assert.Equal(t, "mechanic", rows[1].PrimaryRole)

	report, err := im.Import(ctx, owner, org.ID, rows)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Unchanged)
	assert.Zero(t, report.Created)
}
