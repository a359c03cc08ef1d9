package models

import (
	"fmt"
	"time"
)

// PermissionLevel is the single authorization tier a membership carries
type PermissionLevel string

const (
	PermissionOwner   PermissionLevel = "owner"
	PermissionAdmin   PermissionLevel = "admin"
	PermissionManager PermissionLevel = "manager"
	PermissionMember  PermissionLevel = "member"
)

// PermissionLevels lists levels from highest to lowest
var PermissionLevels = []PermissionLevel{PermissionOwner, PermissionAdmin, PermissionManager, PermissionMember}

// Valid reports whether l is a known level
func (l PermissionLevel) Valid() bool {
	return l.Rank() > 0
}

// Rank orders levels member < manager < admin < owner. Unknown levels rank 0.
func (l PermissionLevel) Rank() int {
	switch l {
	case PermissionMember:
		return 1
	case PermissionManager:
		return 2
	case PermissionAdmin:
		return 3
	case PermissionOwner:
		return 4
	}
	return 0
}

// ParsePermissionLevel validates a level string
func ParsePermissionLevel(s string) (PermissionLevel, error) {
	l := PermissionLevel(s)
	if !l.Valid() {
		return "", fmt.Errorf("invalid permission level %q", s)
	}
	return l, nil
}

// MembershipStatus is the lifecycle state of a membership
type MembershipStatus string

const (
	MembershipActive         MembershipStatus = "active"
	MembershipInactive       MembershipStatus = "inactive"
	MembershipProspect       MembershipStatus = "prospect"
	MembershipExpired        MembershipStatus = "expired"
	MembershipPendingRenewal MembershipStatus = "pending_renewal"
)

// Valid reports whether s is a known status
func (s MembershipStatus) Valid() bool {
	switch s {
	case MembershipActive, MembershipInactive, MembershipProspect, MembershipExpired, MembershipPendingRenewal:
		return true
	}
	return false
}

// ParseMembershipStatus validates a status string
func ParseMembershipStatus(s string) (MembershipStatus, error) {
	st := MembershipStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("invalid membership status %q", s)
	}
	return st, nil
}

// Membership binds a user to an organization. (UserID, OrganizationID) is unique.
type Membership struct {
	ID              int64            `json:"id"`
	UserID          int64            `json:"user_id"`
	OrganizationID  int64            `json:"organization_id"`
	PermissionLevel PermissionLevel  `json:"permission_level"`
	Status          MembershipStatus `json:"status"`
	JoinedAt        time.Time        `json:"joined_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// IsActive reports whether the membership is in the active state
func (m *Membership) IsActive() bool {
	return m.Status == MembershipActive
}

// Clone returns a copy of the membership
func (m *Membership) Clone() *Membership {
	if m == nil {
		return nil
	}
	c := *m
	return &c
}

// RoleType is a descriptive tag on a membership. Roles never grant permissions.
type RoleType string

const (
	RoleAthlete      RoleType = "athlete"
	RoleCoach        RoleType = "coach"
	RoleParent       RoleType = "parent"
	RoleGuardian     RoleType = "guardian"
	RoleMedicalStaff RoleType = "medical_staff"
	RoleMechanic     RoleType = "mechanic"
	RoleVolunteer    RoleType = "volunteer"
	RoleOfficial     RoleType = "official"
	RoleSpectator    RoleType = "spectator"
	RoleTeamCaptain  RoleType = "team_captain"
)

// RoleTypes lists every role type
var RoleTypes = []RoleType{
	RoleAthlete, RoleCoach, RoleParent, RoleGuardian, RoleMedicalStaff,
	RoleMechanic, RoleVolunteer, RoleOfficial, RoleSpectator, RoleTeamCaptain,
}

// Valid reports whether r is a known role type
func (r RoleType) Valid() bool {
	for _, rt := range RoleTypes {
		if rt == r {
			return true
		}
	}
	return false
}

// ParseRoleType validates a role string
func ParseRoleType(s string) (RoleType, error) {
	r := RoleType(s)
	if !r.Valid() {
		return "", fmt.Errorf("invalid role type %q", s)
	}
	return r, nil
}

// MemberRole attaches a role type to a membership
type MemberRole struct {
	ID           int64     `json:"id"`
	MembershipID int64     `json:"membership_id"`
	RoleType     RoleType  `json:"role_type"`
	IsPrimary    bool      `json:"is_primary"`
	Notes        string    `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Clone returns a copy of the role
func (r *MemberRole) Clone() *MemberRole {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}
