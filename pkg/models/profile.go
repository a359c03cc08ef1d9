package models

import (
	"encoding/json"
	"fmt"
)

// Profile is the type-specific payload attached to an organization. Exactly
// one concrete profile type exists per OrgType.
type Profile interface {
	OrgType() OrgType
	clone() Profile
}

// LeagueProfile holds league-only details
type LeagueProfile struct {
	ShortDescription       string `json:"short_description,omitempty"`
	SanctioningBody        string `json:"sanctioning_body,omitempty"`
	Region                 string `json:"region,omitempty"`
	MembershipRequirements string `json:"membership_requirements,omitempty"`
}

// TeamKind classifies a team
type TeamKind string

const (
	TeamKindHighSchool TeamKind = "high_school"
	TeamKindRacing     TeamKind = "racing"
	TeamKindDevo       TeamKind = "devo"
)

// TeamProfile holds team-only details
type TeamProfile struct {
	ShortDescription string   `json:"short_description,omitempty"`
	TeamType         TeamKind `json:"team_type,omitempty"`
}

// SquadProfile holds squad-only details
type SquadProfile struct {
	ShortDescription string `json:"short_description,omitempty"`
}

// ClubProfile holds club-only details
type ClubProfile struct {
	ShortDescription string `json:"short_description,omitempty"`
}

// PracticeGroupProfile holds practice group details
type PracticeGroupProfile struct {
	ShortDescription string `json:"short_description,omitempty"`
	Schedule         string `json:"schedule,omitempty"`
}

func (*LeagueProfile) OrgType() OrgType        { return OrgTypeLeague }
func (*TeamProfile) OrgType() OrgType          { return OrgTypeTeam }
func (*SquadProfile) OrgType() OrgType         { return OrgTypeSquad }
func (*ClubProfile) OrgType() OrgType          { return OrgTypeClub }
func (*PracticeGroupProfile) OrgType() OrgType { return OrgTypePracticeGroup }

func (p *LeagueProfile) clone() Profile        { c := *p; return &c }
func (p *TeamProfile) clone() Profile          { c := *p; return &c }
func (p *SquadProfile) clone() Profile         { c := *p; return &c }
func (p *ClubProfile) clone() Profile          { c := *p; return &c }
func (p *PracticeGroupProfile) clone() Profile { c := *p; return &c }

// Validate checks the team kind when one is set
func (p *TeamProfile) Validate() error {
	switch p.TeamType {
	case "", TeamKindHighSchool, TeamKindRacing, TeamKindDevo:
		return nil
	}
	return fmt.Errorf("unknown team type %q", p.TeamType)
}

// NewProfile returns an empty profile for the given type
func NewProfile(t OrgType) (Profile, error) {
	switch t {
	case OrgTypeLeague:
		return &LeagueProfile{}, nil
	case OrgTypeTeam:
		return &TeamProfile{}, nil
	case OrgTypeSquad:
		return &SquadProfile{}, nil
	case OrgTypeClub:
		return &ClubProfile{}, nil
	case OrgTypePracticeGroup:
		return &PracticeGroupProfile{}, nil
	}
	return nil, fmt.Errorf("unknown organization type %q", t)
}

// DecodeProfile decodes a JSON payload into the profile matching t
func DecodeProfile(t OrgType, data []byte) (Profile, error) {
	p, err := NewProfile(t)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to decode %s profile: %w", t, err)
	}
	return p, nil
}

// ValidateProfile checks that the profile attached to org matches its type
func ValidateProfile(org *Organization) error {
	if org.Profile == nil {
		return nil
	}
	if org.Profile.OrgType() != org.Type {
		return &ProfileMismatchError{OrgType: org.Type, ProfileType: org.Profile.OrgType()}
	}
	if tp, ok := org.Profile.(*TeamProfile); ok {
		return tp.Validate()
	}
	return nil
}
