package rbac

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vincentdavis/league-gotta-bike/pkg/models"
	"github.com/vincentdavis/league-gotta-bike/pkg/storage/memory"
)

func seedOrg(t *testing.T, s *memory.Store) int64 {
	t.Helper()
	org := &models.Organization{Type: models.OrgTypeLeague, Name: "Valley", Slug: "valley", IsActive: true}
	require.NoError(t, s.Organizations().CreateOrganization(context.Background(), org))
	return org.ID
}

func seedMember(t *testing.T, s *memory.Store, userID, orgID int64, level models.PermissionLevel, status models.MembershipStatus) {
	t.Helper()
	require.NoError(t, s.Memberships().CreateMembership(context.Background(), &models.Membership{
		UserID: userID, OrganizationID: orgID, PermissionLevel: level, Status: status,
	}))
}

func TestResolver(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	orgID := seedOrg(t, s)
	seedMember(t, s, 1, orgID, models.PermissionOwner, models.MembershipActive)
	seedMember(t, s, 2, orgID, models.PermissionManager, models.MembershipActive)
	seedMember(t, s, 3, orgID, models.PermissionAdmin, models.MembershipExpired)

	r := NewResolver(s.Memberships())

	t.Run("active membership", func(t *testing.T) {
		level, err := r.Resolve(ctx, 2, orgID)
		require.NoError(t, err)
		assert.Equal(t, models.PermissionManager, level)
	})

	t.Run("no membership", func(t *testing.T) {
		_, err := r.Resolve(ctx, 99, orgID)
		assert.True(t, IsNotAMember(err))
		assert.True(t, IsUnauthorized(err))
	})

	t.Run("expired membership confers nothing", func(t *testing.T) {
		_, err := r.Resolve(ctx, 3, orgID)
		assert.True(t, IsNotAMember(err))

		ok, err := r.Can(ctx, 3, orgID, ActionView)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("can", func(t *testing.T) {
		ok, err := r.Can(ctx, 1, orgID, ActionDeleteOrg)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = r.Can(ctx, 2, orgID, ActionAssignPermissions)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = r.Can(ctx, 99, orgID, ActionView)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("authorize denied", func(t *testing.T) {
		err := r.Authorize(ctx, 2, orgID, ActionManageFinances)
		require.Error(t, err)
		assert.True(t, IsUnauthorized(err))
		assert.False(t, IsNotAMember(err))

		var authErr *AuthorizationError
		require.True(t, errors.As(err, &authErr))
		assert.Equal(t, ActionManageFinances, authErr.Action)
		assert.Equal(t, models.PermissionManager, authErr.Level)
		assert.Contains(t, err.Error(), "manage_finances")
	})

	t.Run("authorize non member carries action", func(t *testing.T) {
		err := r.Authorize(ctx, 99, orgID, ActionView)
		var authErr *AuthorizationError
		require.True(t, errors.As(err, &authErr))
		assert.Equal(t, NotAMember, authErr.Kind)
		assert.Equal(t, ActionView, authErr.Action)
	})

	t.Run("authorize allowed", func(t *testing.T) {
		assert.NoError(t, r.Authorize(ctx, 2, orgID, ActionManageMembers))
	})
}

type failingFinder struct{ err error }

func (f failingFinder) FindMembership(ctx context.Context, userID, orgID int64) (*models.Membership, error) {
	return nil, f.err
}

func TestResolverStorageError(t *testing.T) {
	boom := errors.New("connection reset")
	r := NewResolver(failingFinder{err: boom})

	_, err := r.Resolve(context.Background(), 1, 1)
	assert.ErrorIs(t, err, boom)
	assert.False(t, IsUnauthorized(err))

	_, err = r.Can(context.Background(), 1, 1, ActionView)
	assert.ErrorIs(t, err, boom)
}

func TestResolveLevels(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	a := seedOrg(t, s)
	b := &models.Organization{Type: models.OrgTypeTeam, Name: "Devo", Slug: "devo", IsActive: true}
	require.NoError(t, s.Organizations().CreateOrganization(ctx, b))

	seedMember(t, s, 1, a, models.PermissionOwner, models.MembershipActive)
	seedMember(t, s, 1, b.ID, models.PermissionMember, models.MembershipProspect)

	levels, err := ResolveLevels(ctx, s.Memberships(), 1)
	require.NoError(t, err)
	assert.Equal(t, map[int64]models.PermissionLevel{a: models.PermissionOwner}, levels)
}
