package rbac

import (
	"fmt"

	"github.com/vincentdavis/league-gotta-bike/pkg/models"
)

// Action is something a user may attempt on an organization
type Action string

const (
	ActionView              Action = "view"
	ActionParticipate       Action = "participate"
	ActionEditOrg           Action = "edit_org"
	ActionDeleteOrg         Action = "delete_org"
	ActionManageMembers     Action = "manage_members"
	ActionAssignPermissions Action = "assign_permissions"
	ActionCreateEvent       Action = "create_event"
	ActionViewFinances      Action = "view_finances"
	ActionManageFinances    Action = "manage_finances"
)

type levelSet map[models.PermissionLevel]struct{}

func levels(ls ...models.PermissionLevel) levelSet {
	s := make(levelSet, len(ls))
	for _, l := range ls {
		s[l] = struct{}{}
	}
	return s
}

var (
	everyone   = levels(models.PermissionMember, models.PermissionManager, models.PermissionAdmin, models.PermissionOwner)
	staff      = levels(models.PermissionManager, models.PermissionAdmin, models.PermissionOwner)
	admins     = levels(models.PermissionAdmin, models.PermissionOwner)
	ownersOnly = levels(models.PermissionOwner)
)

// allowed is the action -> permitted levels table
var allowed = map[Action]levelSet{
	ActionView:              everyone,
	ActionParticipate:       everyone,
	ActionCreateEvent:       staff,
	ActionManageMembers:     staff,
	ActionViewFinances:      staff,
	ActionEditOrg:           admins,
	ActionAssignPermissions: admins,
	ActionManageFinances:    admins,
	ActionDeleteOrg:         ownersOnly,
}

// Actions lists every known action
func Actions() []Action {
	return []Action{
		ActionView, ActionParticipate, ActionCreateEvent, ActionManageMembers, ActionViewFinances,
		ActionEditOrg, ActionAssignPermissions, ActionManageFinances, ActionDeleteOrg,
	}
}

// Valid reports whether a is a known action
func (a Action) Valid() bool {
	_, ok := allowed[a]
	return ok
}

// ParseAction validates an action string
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if !a.Valid() {
		return "", fmt.Errorf("unknown action %q", s)
	}
	return a, nil
}

// Allowed reports whether level may perform action. Unknown actions and
// levels are never allowed.
func Allowed(level models.PermissionLevel, action Action) bool {
	set, ok := allowed[action]
	if !ok {
		return false
	}
	_, ok = set[level]
	return ok
}

// Permissions returns the actions level may perform
func Permissions(level models.PermissionLevel) []Action {
	var out []Action
	for _, a := range Actions() {
		if Allowed(level, a) {
			out = append(out, a)
		}
	}
	return out
}
