package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vincentdavis/league-gotta-bike/pkg/models"
)

func TestAllowed(t *testing.T) {
	want := map[Action][]models.PermissionLevel{
		ActionView:              {models.PermissionMember, models.PermissionManager, models.PermissionAdmin, models.PermissionOwner},
		ActionParticipate:       {models.PermissionMember, models.PermissionManager, models.PermissionAdmin, models.PermissionOwner},
		ActionCreateEvent:       {models.PermissionManager, models.PermissionAdmin, models.PermissionOwner},
		ActionManageMembers:     {models.PermissionManager, models.PermissionAdmin, models.PermissionOwner},
		ActionViewFinances:      {models.PermissionManager, models.PermissionAdmin, models.PermissionOwner},
		ActionEditOrg:           {models.PermissionAdmin, models.PermissionOwner},
		ActionAssignPermissions: {models.PermissionAdmin, models.PermissionOwner},
		ActionManageFinances:    {models.PermissionAdmin, models.PermissionOwner},
		ActionDeleteOrg:         {models.PermissionOwner},
	}
	require.Len(t, want, len(Actions()))

	for _, action := range Actions() {
		for _, level := range models.PermissionLevels {
			t.Run(string(level)+"/"+string(action), func(t *testing.T) {
				assert.Equal(t, contains(want[action], level), Allowed(level, action))
			})
		}
	}
}

func contains(ls []models.PermissionLevel, l models.PermissionLevel) bool {
	for _, x := range ls {
		if x == l {
			return true
		}
	}
	return false
}

func TestAllowedUnknown(t *testing.T) {
	assert.False(t, Allowed(models.PermissionOwner, Action("launch_rockets")))
	assert.False(t, Allowed(models.PermissionLevel("superuser"), ActionView))
	assert.False(t, Allowed("", ActionView))
}

func TestManagerCarveOut(t *testing.T) {
	// managers run day to day operations but cannot touch org settings or money
	assert.True(t, Allowed(models.PermissionManager, ActionManageMembers))
	assert.True(t, Allowed(models.PermissionManager, ActionViewFinances))
	assert.False(t, Allowed(models.PermissionManager, ActionAssignPermissions))
	assert.False(t, Allowed(models.PermissionManager, ActionManageFinances))
	assert.False(t, Allowed(models.PermissionManager, ActionEditOrg))
}

func TestPermissions(t *testing.T) {
	assert.ElementsMatch(t, []Action{ActionView, ActionParticipate}, Permissions(models.PermissionMember))
	assert.ElementsMatch(t, Actions(), Permissions(models.PermissionOwner))
	assert.NotContains(t, Permissions(models.PermissionAdmin), ActionDeleteOrg)
}

func TestParseAction(t *testing.T) {
	a, err := ParseAction("manage_members")
	require.NoError(t, err)
	assert.Equal(t, ActionManageMembers, a)

	_, err = ParseAction("MANAGE_MEMBERS")
	assert.Error(t, err)
}
