package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// OrgType discriminates the kind of node an organization is in the hierarchy
type OrgType string

const (
	OrgTypeLeague        OrgType = "league"
	OrgTypeTeam          OrgType = "team"
	OrgTypeSquad         OrgType = "squad"
	OrgTypeClub          OrgType = "club"
	OrgTypePracticeGroup OrgType = "practice_group"
)

// Valid reports whether t is a known organization type
func (t OrgType) Valid() bool {
	switch t {
	case OrgTypeLeague, OrgTypeTeam, OrgTypeSquad, OrgTypeClub, OrgTypePracticeGroup:
		return true
	}
	return false
}

// IsSubgroup reports whether t is one of the types that must hang off a team
func (t OrgType) IsSubgroup() bool {
	return t == OrgTypeSquad || t == OrgTypeClub || t == OrgTypePracticeGroup
}

// DisplayName returns a human readable label
func (t OrgType) DisplayName() string {
	switch t {
	case OrgTypeLeague:
		return "League"
	case OrgTypeTeam:
		return "Team"
	case OrgTypeSquad:
		return "Squad"
	case OrgTypeClub:
		return "Club"
	case OrgTypePracticeGroup:
		return "Practice Group"
	}
	return string(t)
}

// Organization is a node in the league -> team -> subgroup tree.
// Children reference their parent by id; a parent holds no child list.
type Organization struct {
	ID             int64     `json:"id"`
	Type           OrgType   `json:"type"`
	ParentID       *int64    `json:"parent_id,omitempty"`
	Name           string    `json:"name"`
	Slug           string    `json:"slug"`
	Description    string    `json:"description,omitempty"`
	IsActive       bool      `json:"is_active"`
	MembershipOpen bool      `json:"membership_open"`
	Profile        Profile   `json:"profile,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// IsRoot reports whether the organization has no parent
func (o *Organization) IsRoot() bool {
	return o.ParentID == nil
}

// Clone returns a deep copy of the organization
func (o *Organization) Clone() *Organization {
	if o == nil {
		return nil
	}
	c := *o
	if o.ParentID != nil {
		p := *o.ParentID
		c.ParentID = &p
	}
	if o.Profile != nil {
		c.Profile = o.Profile.clone()
	}
	return &c
}

// UnmarshalJSON decodes the profile payload according to the type tag
func (o *Organization) UnmarshalJSON(data []byte) error {
	type alias Organization
	aux := struct {
		*alias
		Profile json.RawMessage `json:"profile,omitempty"`
	}{alias: (*alias)(o)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	o.Profile = nil
	if len(aux.Profile) == 0 || string(aux.Profile) == "null" {
		return nil
	}
	p, err := DecodeProfile(o.Type, aux.Profile)
	if err != nil {
		return err
	}
	o.Profile = p
	return nil
}

// ParentOf returns a pointer suitable for Organization.ParentID
func ParentOf(org *Organization) *int64 {
	if org == nil {
		return nil
	}
	id := org.ID
	return &id
}

// ProfileMismatchError is returned when a profile payload does not belong to
// the organization's type
type ProfileMismatchError struct {
	OrgType     OrgType
	ProfileType OrgType
}

func (e *ProfileMismatchError) Error() string {
	return fmt.Sprintf("profile for %s cannot be attached to a %s", e.ProfileType, e.OrgType)
}
