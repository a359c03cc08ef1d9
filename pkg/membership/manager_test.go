package membership

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vincentdavis/league-gotta-bike/pkg/audit"
	"github.com/vincentdavis/league-gotta-bike/pkg/models"
	"github.com/vincentdavis/league-gotta-bike/pkg/orgs"
	"github.com/vincentdavis/league-gotta-bike/pkg/rbac"
	"github.com/vincentdavis/league-gotta-bike/pkg/storage"
	"github.com/vincentdavis/league-gotta-bike/pkg/storage/memory"
)

const (
	alice int64 = 1 // league owner
	bob   int64 = 2
	carol int64 = 3
	dave  int64 = 4
)

type invalidations struct {
	mu   sync.Mutex
	keys [][2]int64
}

func (i *invalidations) Invalidate(ctx context.Context, userID, orgID int64) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.keys = append(i.keys, [2]int64{userID, orgID})
	return nil
}

type fixture struct {
	store *memory.Store
	mgr   *Manager
	rec   *audit.Recorder
	inv   *invalidations
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{store: memory.New(), rec: &audit.Recorder{}, inv: &invalidations{}}
	f.mgr = NewManager(f.store, WithAuditLogger(f.rec), WithInvalidator(f.inv))
	return f
}

func (f *fixture) league(t *testing.T, owner int64, name string) *models.Organization {
	t.Helper()
	org, err := f.mgr.CreateOrganization(context.Background(), owner, &models.Organization{
		Type: models.OrgTypeLeague, Name: name, MembershipOpen: true,
	})
	require.NoError(t, err)
	return org
}

func (f *fixture) team(t *testing.T, actor int64, parent *int64, name string) *models.Organization {
	t.Helper()
	org, err := f.mgr.CreateOrganization(context.Background(), actor, &models.Organization{
		Type: models.OrgTypeTeam, ParentID: parent, Name: name, MembershipOpen: true,
	})
	require.NoError(t, err)
	return org
}

func (f *fixture) member(t *testing.T, userID, orgID int64, level models.PermissionLevel) *models.Membership {
	t.Helper()
	m, err := f.mgr.CreateMembership(context.Background(), userID, orgID, level, models.MembershipActive)
	require.NoError(t, err)
	return m
}

func TestCreateOrganization(t *testing.T) {
	ctx := context.Background()

	t.Run("creator becomes owner", func(t *testing.T) {
		f := newFixture(t)
		league := f.league(t, alice, "Front Range League")

		assert.Equal(t, "front-range-league", league.Slug)
		assert.True(t, league.IsActive)
		assert.IsType(t, &models.LeagueProfile{}, league.Profile)

		m, err := f.store.Memberships().FindMembership(ctx, alice, league.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PermissionOwner, m.PermissionLevel)
		assert.Equal(t, []audit.EventType{audit.EventOrganizationCreated, audit.EventMembershipCreated}, f.rec.Types())
		assert.Contains(t, f.inv.keys, [2]int64{alice, league.ID})
	})

	t.Run("team under league needs manager on the league", func(t *testing.T) {
		f := newFixture(t)
		league := f.league(t, alice, "Valley")
		f.member(t, bob, league.ID, models.PermissionMember)
		f.member(t, carol, league.ID, models.PermissionManager)

		_, err := f.mgr.CreateOrganization(ctx, bob, &models.Organization{Type: models.OrgTypeTeam, ParentID: &league.ID, Name: "Devo"})
		assert.True(t, rbac.IsUnauthorized(err))
		assert.False(t, rbac.IsNotAMember(err))

		_, err = f.mgr.CreateOrganization(ctx, dave, &models.Organization{Type: models.OrgTypeTeam, ParentID: &league.ID, Name: "Devo"})
		assert.True(t, rbac.IsNotAMember(err))

		team := f.team(t, carol, &league.ID, "Devo")
		assert.Equal(t, "valley-devo", team.Slug)
		owner, err := f.store.Memberships().FindMembership(ctx, carol, team.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PermissionOwner, owner.PermissionLevel)
	})

	t.Run("league with parent", func(t *testing.T) {
		f := newFixture(t)
		league := f.league(t, alice, "Valley")
		_, err := f.mgr.CreateOrganization(ctx, alice, &models.Organization{Type: models.OrgTypeLeague, ParentID: &league.ID, Name: "Inner"})
		assert.ErrorIs(t, err, orgs.ErrLeagueCannotHaveParent)
	})

	t.Run("invalid input leaves nothing behind", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.mgr.CreateOrganization(ctx, alice, &models.Organization{Type: models.OrgTypeLeague, Name: "  "})
		assert.ErrorIs(t, err, orgs.ErrInvalidOrganization)
		_, err = f.mgr.CreateOrganization(ctx, alice, &models.Organization{Type: models.OrgTypeLeague, Name: "!!!"})
		assert.ErrorIs(t, err, orgs.ErrInvalidOrganization)
		assert.Empty(t, f.rec.Events())
	})

	t.Run("duplicate slug", func(t *testing.T) {
		f := newFixture(t)
		f.league(t, alice, "Valley")
		_, err := f.mgr.CreateOrganization(ctx, bob, &models.Organization{Type: models.OrgTypeLeague, Name: "Valley"})
		assert.True(t, storage.IsDuplicate(err))
	})
}

func TestCreateSubOrganization(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	league := f.league(t, alice, "Valley")
	team := f.team(t, alice, &league.ID, "Racing")
	f.member(t, bob, team.ID, models.PermissionManager)
	f.member(t, carol, team.ID, models.PermissionMember)

	t.Run("manager creates squad", func(t *testing.T) {
		squad, err := f.mgr.CreateSubOrganization(ctx, bob, team.ID, models.OrgTypeSquad, "U15 Squad")
		require.NoError(t, err)
		assert.Equal(t, team.ID, *squad.ParentID)
		assert.IsType(t, &models.SquadProfile{}, squad.Profile)

		m, err := f.store.Memberships().FindMembership(ctx, bob, squad.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PermissionOwner, m.PermissionLevel)
	})

	t.Run("member cannot", func(t *testing.T) {
		_, err := f.mgr.CreateSubOrganization(ctx, carol, team.ID, models.OrgTypeClub, "Climbers")
		assert.True(t, rbac.IsUnauthorized(err))
	})

	t.Run("squad directly under league", func(t *testing.T) {
		_, err := f.mgr.CreateSubOrganization(ctx, alice, league.ID, models.OrgTypeSquad, "Loose Squad")
		assert.ErrorIs(t, err, orgs.ErrSubgroupRequiresTeamParent)
	})

	t.Run("non subgroup type", func(t *testing.T) {
		_, err := f.mgr.CreateSubOrganization(ctx, alice, team.ID, models.OrgTypeTeam, "Nested Team")
		assert.ErrorIs(t, err, orgs.ErrInvalidOrganization)
	})

	t.Run("missing parent", func(t *testing.T) {
		_, err := f.mgr.CreateSubOrganization(ctx, alice, 9999, models.OrgTypeSquad, "Orphan")
		assert.True(t, storage.IsNotFound(err))
	})
}

func TestUpdateOrganization(t *testing.T) {
	ctx := context.Background()

	lastEvent := func(f *fixture) *audit.Event {
		events := f.rec.Events()
		require.NotEmpty(t, events)
		return events[len(events)-1]
	}

	t.Run("admin edits fields", func(t *testing.T) {
		f := newFixture(t)
		league := f.league(t, alice, "Valley")
		f.member(t, bob, league.ID, models.PermissionAdmin)

		name, desc, open := "Valley League", "spring racing", false
		updated, err := f.mgr.UpdateOrganization(ctx, bob, league.ID, OrganizationUpdate{
			Name: &name, Description: &desc, MembershipOpen: &open,
		})
		require.NoError(t, err)
		assert.Equal(t, "Valley League", updated.Name)
		assert.Equal(t, "valley", updated.Slug)
		assert.False(t, updated.MembershipOpen)

		stored, err := f.store.Organizations().GetOrganization(ctx, league.ID)
		require.NoError(t, err)
		assert.Equal(t, "spring racing", stored.Description)
		e := lastEvent(f)
		assert.Equal(t, audit.EventOrganizationUpdated, e.Type)
		assert.Equal(t, []string{"name", "description", "membership_open"}, e.Metadata["fields"])
	})

	t.Run("manager cannot edit", func(t *testing.T) {
		f := newFixture(t)
		league := f.league(t, alice, "Valley")
		f.member(t, bob, league.ID, models.PermissionManager)

		name := "Taken"
		_, err := f.mgr.UpdateOrganization(ctx, bob, league.ID, OrganizationUpdate{Name: &name})
		assert.True(t, rbac.IsUnauthorized(err))
	})

	t.Run("team with children cannot become a subgroup", func(t *testing.T) {
		f := newFixture(t)
		racing := f.team(t, alice, nil, "Racing")
		_, err := f.mgr.CreateSubOrganization(ctx, alice, racing.ID, models.OrgTypeSquad, "Varsity")
		require.NoError(t, err)
		devo := f.team(t, alice, nil, "Devo")

		squad := models.OrgTypeSquad
		_, err = f.mgr.UpdateOrganization(ctx, alice, racing.ID, OrganizationUpdate{Type: &squad, ParentID: &devo.ID})
		assert.ErrorIs(t, err, orgs.ErrSubgroupRequiresTeamParent)

		stored, err := f.store.Organizations().GetOrganization(ctx, racing.ID)
		require.NoError(t, err)
		assert.Equal(t, models.OrgTypeTeam, stored.Type)
		assert.Nil(t, stored.ParentID)
	})

	t.Run("league with teams cannot become a team", func(t *testing.T) {
		f := newFixture(t)
		league := f.league(t, alice, "Valley")
		f.team(t, alice, &league.ID, "Racing")

		team := models.OrgTypeTeam
		_, err := f.mgr.UpdateOrganization(ctx, alice, league.ID, OrganizationUpdate{Type: &team})
		assert.ErrorIs(t, err, orgs.ErrTeamParentMustBeLeagueOrNone)
	})

	t.Run("childless team becomes a club under another team", func(t *testing.T) {
		f := newFixture(t)
		racing := f.team(t, alice, nil, "Racing")
		climbers := f.team(t, alice, nil, "Climbers")

		club := models.OrgTypeClub
		updated, err := f.mgr.UpdateOrganization(ctx, alice, climbers.ID, OrganizationUpdate{Type: &club, ParentID: &racing.ID})
		require.NoError(t, err)
		assert.Equal(t, racing.ID, *updated.ParentID)
		assert.IsType(t, &models.ClubProfile{}, updated.Profile)

		e := lastEvent(f)
		assert.Equal(t, string(models.OrgTypeTeam), e.FromState)
		assert.Equal(t, string(models.OrgTypeClub), e.ToState)
	})

	t.Run("team cannot move under its own squad", func(t *testing.T) {
		f := newFixture(t)
		racing := f.team(t, alice, nil, "Racing")
		squad, err := f.mgr.CreateSubOrganization(ctx, alice, racing.ID, models.OrgTypeSquad, "Varsity")
		require.NoError(t, err)

		_, err = f.mgr.UpdateOrganization(ctx, alice, racing.ID, OrganizationUpdate{ParentID: &squad.ID})
		assert.True(t, orgs.IsHierarchyViolation(err))
	})

	t.Run("moving needs manager on the new parent", func(t *testing.T) {
		f := newFixture(t)
		league := f.league(t, alice, "Valley")
		team := f.team(t, bob, nil, "Racing")

		_, err := f.mgr.UpdateOrganization(ctx, bob, team.ID, OrganizationUpdate{ParentID: &league.ID})
		assert.True(t, rbac.IsNotAMember(err))

		f.member(t, bob, league.ID, models.PermissionManager)
		updated, err := f.mgr.UpdateOrganization(ctx, bob, team.ID, OrganizationUpdate{ParentID: &league.ID})
		require.NoError(t, err)
		assert.Equal(t, league.ID, *updated.ParentID)

		updated, err = f.mgr.UpdateOrganization(ctx, bob, team.ID, OrganizationUpdate{DetachParent: true})
		require.NoError(t, err)
		assert.Nil(t, updated.ParentID)
	})

	t.Run("empty slug", func(t *testing.T) {
		f := newFixture(t)
		league := f.league(t, alice, "Valley")
		slug := "  "
		_, err := f.mgr.UpdateOrganization(ctx, alice, league.ID, OrganizationUpdate{Slug: &slug})
		assert.ErrorIs(t, err, orgs.ErrInvalidOrganization)
	})
}

func TestDeleteOrganization(t *testing.T) {
	ctx := context.Background()

	t.Run("cascades memberships, roles and seasons", func(t *testing.T) {
		f := newFixture(t)
		team := f.team(t, alice, nil, "Racing")
		m := f.member(t, bob, team.ID, models.PermissionMember)
		_, err := f.mgr.AddRole(ctx, alice, m.ID, models.RoleAthlete, true)
		require.NoError(t, err)

		season := &models.Season{OrganizationID: team.ID, Name: "Spring"}
		require.NoError(t, f.store.Seasons().CreateSeason(ctx, season))
		reg := &models.SeasonMembership{
			MembershipID: &m.ID, UserID: bob, SeasonID: season.ID,
			RegistrationStatus: models.RegistrationApproved, PaymentStatus: models.PaymentPending,
		}
		require.NoError(t, f.store.Registrations().CreateRegistration(ctx, reg))

		require.NoError(t, f.mgr.DeleteOrganization(ctx, alice, team.ID))

		_, err = f.store.Organizations().GetOrganization(ctx, team.ID)
		assert.True(t, storage.IsNotFound(err))
		_, err = f.store.Memberships().GetMembership(ctx, m.ID)
		assert.True(t, storage.IsNotFound(err))
		roles, err := f.store.Roles().ListRoles(ctx, m.ID)
		require.NoError(t, err)
		assert.Empty(t, roles)
		_, err = f.store.Seasons().GetSeason(ctx, season.ID)
		assert.True(t, storage.IsNotFound(err))
		_, err = f.store.Registrations().GetRegistration(ctx, reg.ID)
		assert.True(t, storage.IsNotFound(err))

		types := f.rec.Types()
		assert.Equal(t, audit.EventOrganizationDeleted, types[len(types)-1])
		assert.Contains(t, f.inv.keys, [2]int64{bob, team.ID})
		assert.Contains(t, f.inv.keys, [2]int64{alice, team.ID})
	})

	t.Run("admin cannot delete", func(t *testing.T) {
		f := newFixture(t)
		team := f.team(t, alice, nil, "Racing")
		f.member(t, bob, team.ID, models.PermissionAdmin)

		err := f.mgr.DeleteOrganization(ctx, bob, team.ID)
		assert.True(t, rbac.IsUnauthorized(err))
		_, err = f.store.Organizations().GetOrganization(ctx, team.ID)
		assert.NoError(t, err)
	})

	t.Run("children block deletion", func(t *testing.T) {
		f := newFixture(t)
		league := f.league(t, alice, "Valley")
		team := f.team(t, alice, &league.ID, "Racing")

		err := f.mgr.DeleteOrganization(ctx, alice, league.ID)
		assert.ErrorIs(t, err, orgs.ErrHasChildren)

		require.NoError(t, f.mgr.DeleteOrganization(ctx, alice, team.ID))
		require.NoError(t, f.mgr.DeleteOrganization(ctx, alice, league.ID))
	})

	t.Run("unknown organization", func(t *testing.T) {
		f := newFixture(t)
		err := f.mgr.DeleteOrganization(ctx, alice, 4242)
		assert.True(t, storage.IsNotFound(err))
	})
}

func TestCreateMembership(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	league := f.league(t, alice, "Valley")
	team := f.team(t, alice, &league.ID, "Racing")
	squad, err := f.mgr.CreateSubOrganization(ctx, alice, team.ID, models.OrgTypeSquad, "Juniors")
	require.NoError(t, err)

	t.Run("duplicate", func(t *testing.T) {
		f.member(t, bob, league.ID, models.PermissionMember)
		_, err := f.mgr.CreateMembership(ctx, bob, league.ID, models.PermissionAdmin, models.MembershipActive)
		assert.True(t, IsDuplicateMembership(err))

		ms, err := f.store.Memberships().ListMemberships(ctx, league.ID, storage.MembershipFilter{})
		require.NoError(t, err)
		assert.Len(t, ms, 2)
	})

	t.Run("subgroup requires active parent team membership", func(t *testing.T) {
		_, err := f.mgr.CreateMembership(ctx, carol, squad.ID, models.PermissionMember, models.MembershipActive)
		assert.ErrorIs(t, err, ErrParentTeamMembershipRequired)

		f.member(t, carol, team.ID, models.PermissionMember)
		_, err = f.mgr.CreateMembership(ctx, carol, squad.ID, models.PermissionMember, models.MembershipActive)
		assert.NoError(t, err)
	})

	t.Run("invalid level", func(t *testing.T) {
		_, err := f.mgr.CreateMembership(ctx, dave, league.ID, "captain", models.MembershipActive)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("default status is active", func(t *testing.T) {
		m, err := f.mgr.CreateMembership(ctx, dave, league.ID, models.PermissionMember, "")
		require.NoError(t, err)
		assert.Equal(t, models.MembershipActive, m.Status)
	})
}

func TestAddMember(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	league := f.league(t, alice, "Valley")
	f.member(t, bob, league.ID, models.PermissionManager)

	_, err := f.mgr.AddMember(ctx, bob, carol, league.ID, models.PermissionMember)
	require.NoError(t, err)

	_, err = f.mgr.AddMember(ctx, bob, dave, league.ID, models.PermissionAdmin)
	assert.True(t, rbac.IsUnauthorized(err), "managers cannot grant admin")

	_, err = f.mgr.AddMember(ctx, alice, dave, league.ID, models.PermissionAdmin)
	assert.NoError(t, err)
}

func TestChangePermissionLevel(t *testing.T) {
	ctx := context.Background()

	t.Run("sole owner cannot demote themselves", func(t *testing.T) {
		f := newFixture(t)
		league := f.league(t, alice, "Valley")
		own, err := f.store.Memberships().FindMembership(ctx, alice, league.ID)
		require.NoError(t, err)
		before := len(f.rec.Events())

		_, err = f.mgr.ChangePermissionLevel(ctx, alice, own.ID, models.PermissionManager)
		assert.ErrorIs(t, err, ErrCannotDemoteLastOwner)
		assert.Len(t, f.rec.Events(), before)

		m, err := f.store.Memberships().GetMembership(ctx, own.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PermissionOwner, m.PermissionLevel)
	})

	t.Run("second owner allows demotion", func(t *testing.T) {
		f := newFixture(t)
		league := f.league(t, alice, "Valley")
		bobM := f.member(t, bob, league.ID, models.PermissionMember)
		own, err := f.store.Memberships().FindMembership(ctx, alice, league.ID)
		require.NoError(t, err)

		_, err = f.mgr.ChangePermissionLevel(ctx, alice, bobM.ID, models.PermissionOwner)
		require.NoError(t, err)

		updated, err := f.mgr.ChangePermissionLevel(ctx, alice, own.ID, models.PermissionAdmin)
		require.NoError(t, err)
		assert.Equal(t, models.PermissionAdmin, updated.PermissionLevel)

		last := f.rec.Events()[len(f.rec.Events())-1]
		assert.Equal(t, audit.EventMembershipLevelChanged, last.Type)
		assert.Equal(t, "owner", last.FromState)
		assert.Equal(t, "admin", last.ToState)
	})

	t.Run("inactive owners do not count", func(t *testing.T) {
		f := newFixture(t)
		league := f.league(t, alice, "Valley")
		_, err := f.mgr.CreateMembership(ctx, bob, league.ID, models.PermissionOwner, models.MembershipExpired)
		require.NoError(t, err)
		own, err := f.store.Memberships().FindMembership(ctx, alice, league.ID)
		require.NoError(t, err)

		_, err = f.mgr.ChangePermissionLevel(ctx, alice, own.ID, models.PermissionMember)
		assert.ErrorIs(t, err, ErrCannotDemoteLastOwner)
	})

	t.Run("authorization", func(t *testing.T) {
		f := newFixture(t)
		league := f.league(t, alice, "Valley")
		f.member(t, bob, league.ID, models.PermissionManager)
		carolM := f.member(t, carol, league.ID, models.PermissionMember)
		f.member(t, dave, league.ID, models.PermissionAdmin)

		_, err := f.mgr.ChangePermissionLevel(ctx, bob, carolM.ID, models.PermissionManager)
		assert.True(t, rbac.IsUnauthorized(err), "manager lacks assign_permissions")

		updated, err := f.mgr.ChangePermissionLevel(ctx, dave, carolM.ID, models.PermissionManager)
		require.NoError(t, err)
		assert.Equal(t, models.PermissionManager, updated.PermissionLevel)
	})

	t.Run("unknown membership", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.mgr.ChangePermissionLevel(ctx, alice, 404, models.PermissionManager)
		assert.True(t, storage.IsNotFound(err))
	})

	t.Run("concurrent demotion of the last two owners", func(t *testing.T) {
		f := newFixture(t)
		league := f.league(t, alice, "Valley")
		bobM := f.member(t, bob, league.ID, models.PermissionOwner)
		own, err := f.store.Memberships().FindMembership(ctx, alice, league.ID)
		require.NoError(t, err)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i, target := range []int64{own.ID, bobM.ID} {
			wg.Add(1)
			go func(i int, target int64) {
				defer wg.Done()
				actor := alice
				if i == 1 {
					actor = bob
				}
				_, errs[i] = f.mgr.ChangePermissionLevel(ctx, actor, target, models.PermissionMember)
			}(i, target)
		}
		wg.Wait()

		failures := 0
		for _, err := range errs {
			if err != nil {
				failures++
			}
		}
		assert.Equal(t, 1, failures)
		owners, err := f.store.Memberships().CountOwners(ctx, league.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, owners)
	})
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	league := f.league(t, alice, "Valley")
	bobM := f.member(t, bob, league.ID, models.PermissionMember)
	own, err := f.store.Memberships().FindMembership(ctx, alice, league.ID)
	require.NoError(t, err)

	updated, err := f.mgr.UpdateStatus(ctx, alice, bobM.ID, models.MembershipInactive)
	require.NoError(t, err)
	assert.Equal(t, models.MembershipInactive, updated.Status)

	_, err = f.mgr.UpdateStatus(ctx, alice, own.ID, models.MembershipExpired)
	assert.ErrorIs(t, err, ErrCannotDemoteLastOwner)

	_, err = f.mgr.UpdateStatus(ctx, bob, own.ID, models.MembershipActive)
	assert.True(t, rbac.IsNotAMember(err), "inactive members hold no permissions")
}

func TestJoinRequests(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	league := f.league(t, alice, "Valley")
	closed, err := f.mgr.CreateOrganization(ctx, alice, &models.Organization{Type: models.OrgTypeTeam, Name: "Invite Only"})
	require.NoError(t, err)

	t.Run("closed organization", func(t *testing.T) {
		_, err := f.mgr.RequestToJoin(ctx, bob, closed.ID)
		assert.ErrorIs(t, err, ErrMembershipClosed)
	})

	t.Run("approve", func(t *testing.T) {
		req, err := f.mgr.RequestToJoin(ctx, bob, league.ID)
		require.NoError(t, err)
		assert.Equal(t, models.MembershipProspect, req.Status)

		_, err = f.mgr.RequestToJoin(ctx, bob, league.ID)
		assert.True(t, IsDuplicateMembership(err))

		ok, err := rbac.NewResolver(f.store.Memberships()).Can(ctx, bob, league.ID, rbac.ActionView)
		require.NoError(t, err)
		assert.False(t, ok, "prospects hold no permissions")

		m, err := f.mgr.DecideJoinRequest(ctx, alice, req.ID, true, "")
		require.NoError(t, err)
		assert.Equal(t, models.MembershipActive, m.Status)
		assert.Equal(t, models.PermissionMember, m.PermissionLevel)
		assert.Contains(t, f.rec.Types(), audit.EventMembershipJoinApproved)

		_, err = f.mgr.DecideJoinRequest(ctx, alice, req.ID, true, "")
		assert.ErrorIs(t, err, ErrNotAJoinRequest)
	})

	t.Run("reject deletes the request", func(t *testing.T) {
		req, err := f.mgr.RequestToJoin(ctx, carol, league.ID)
		require.NoError(t, err)

		_, err = f.mgr.DecideJoinRequest(ctx, bob, req.ID, false, "")
		assert.True(t, rbac.IsUnauthorized(err), "members cannot decide")

		_, err = f.mgr.DecideJoinRequest(ctx, alice, req.ID, false, "")
		require.NoError(t, err)
		_, err = f.store.Memberships().GetMembership(ctx, req.ID)
		assert.True(t, storage.IsNotFound(err))

		_, err = f.mgr.RequestToJoin(ctx, carol, league.ID)
		assert.NoError(t, err, "a rejected user may ask again")
	})
}

func TestLeaveAndRemove(t *testing.T) {
	ctx := context.Background()

	t.Run("last owner cannot leave", func(t *testing.T) {
		f := newFixture(t)
		league := f.league(t, alice, "Valley")
		err := f.mgr.Leave(ctx, alice, league.ID)
		assert.True(t, IsCannotDemoteLastOwner(err))
	})

	t.Run("leave keeps registrations", func(t *testing.T) {
		f := newFixture(t)
		league := f.league(t, alice, "Valley")
		bobM := f.member(t, bob, league.ID, models.PermissionMember)

		season := &models.Season{OrganizationID: league.ID, Name: "2026", StartDate: time.Now(), EndDate: time.Now().AddDate(0, 6, 0)}
		require.NoError(t, f.store.Seasons().CreateSeason(ctx, season))
		reg := &models.SeasonMembership{MembershipID: &bobM.ID, UserID: bob, SeasonID: season.ID, RegistrationStatus: models.RegistrationApproved}
		require.NoError(t, f.store.Registrations().CreateRegistration(ctx, reg))

		require.NoError(t, f.mgr.Leave(ctx, bob, league.ID))

		_, err := f.store.Memberships().FindMembership(ctx, bob, league.ID)
		assert.True(t, storage.IsNotFound(err))
		kept, err := f.store.Registrations().GetRegistration(ctx, reg.ID)
		require.NoError(t, err)
		assert.Nil(t, kept.MembershipID)
		assert.Equal(t, bob, kept.UserID)
	})

	t.Run("remove deletes roles", func(t *testing.T) {
		f := newFixture(t)
		league := f.league(t, alice, "Valley")
		bobM := f.member(t, bob, league.ID, models.PermissionMember)
		_, err := f.mgr.AddRole(ctx, alice, bobM.ID, models.RoleCoach, true)
		require.NoError(t, err)

		require.NoError(t, f.mgr.RemoveMember(ctx, alice, bobM.ID))
		roles, err := f.store.Roles().ListRoles(ctx, bobM.ID)
		require.NoError(t, err)
		assert.Empty(t, roles)
		assert.Contains(t, f.inv.keys, [2]int64{bob, league.ID})
	})

	t.Run("remove requires manage_members", func(t *testing.T) {
		f := newFixture(t)
		league := f.league(t, alice, "Valley")
		f.member(t, bob, league.ID, models.PermissionMember)
		carolM := f.member(t, carol, league.ID, models.PermissionMember)
		err := f.mgr.RemoveMember(ctx, bob, carolM.ID)
		assert.True(t, rbac.IsUnauthorized(err))
	})

	t.Run("sole owner cannot be removed", func(t *testing.T) {
		f := newFixture(t)
		league := f.league(t, alice, "Valley")
		f.member(t, bob, league.ID, models.PermissionManager)
		own, err := f.store.Memberships().FindMembership(ctx, alice, league.ID)
		require.NoError(t, err)
		err = f.mgr.RemoveMember(ctx, bob, own.ID)
		assert.ErrorIs(t, err, ErrCannotDemoteLastOwner)
	})
}

func TestRunRollsBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	league := f.league(t, alice, "Valley")
	before := len(f.rec.Events())
	boom := errors.New("boom")

	err := f.mgr.Run(ctx, alice, func(ctx context.Context, tx *Tx) error {
		m, err := tx.CreateMembership(ctx, bob, league.ID, models.PermissionMember, models.MembershipActive)
		require.NoError(t, err)
		_, err = tx.AddRole(ctx, m, models.RoleAthlete, true)
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = f.store.Memberships().FindMembership(ctx, bob, league.ID)
	assert.True(t, storage.IsNotFound(err), "partial work is never visible")
	assert.Len(t, f.rec.Events(), before, "no audit trail for rolled back work")
}

func TestMembershipErrorIs(t *testing.T) {
	err := &MembershipError{Kind: CannotDemoteLastOwner, UserID: 1, OrganizationID: 2}
	assert.ErrorIs(t, err, ErrCannotDemoteLastOwner)
	assert.ErrorIs(t, err, ErrMembership)
	assert.NotErrorIs(t, err, ErrDuplicateMembership)
	assert.Contains(t, err.Error(), "last owner")
}
