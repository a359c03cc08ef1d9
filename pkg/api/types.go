package api

import (
	"encoding/json"
	"time"

	"github.com/vincentdavis/league-gotta-bike/pkg/models"
	"github.com/vincentdavis/league-gotta-bike/pkg/rbac"
)

// CreateOrganizationRequest creates a league or team
type CreateOrganizationRequest struct {
	Type           models.OrgType  `json:"type" validate:"required,oneof=league team squad club practice_group"`
	ParentID       *int64          `json:"parent_id,omitempty" validate:"omitempty,gt=0"`
	Name           string          `json:"name" validate:"required,max=200"`
	Slug           string          `json:"slug,omitempty" validate:"omitempty,max=100"`
	Description    string          `json:"description,omitempty" validate:"max=2000"`
	MembershipOpen bool            `json:"membership_open"`
	Profile        json.RawMessage `json:"profile,omitempty"`
}

// UpdateOrganizationRequest changes an organization. Omitted fields are kept.
type UpdateOrganizationRequest struct {
	Type           *models.OrgType `json:"type,omitempty" validate:"omitempty,oneof=league team squad club practice_group"`
	ParentID       *int64          `json:"parent_id,omitempty" validate:"omitempty,gt=0"`
	DetachParent   bool            `json:"detach_parent,omitempty"`
	Name           *string         `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Slug           *string         `json:"slug,omitempty" validate:"omitempty,min=1,max=100"`
	Description    *string         `json:"description,omitempty" validate:"omitempty,max=2000"`
	IsActive       *bool           `json:"is_active,omitempty"`
	MembershipOpen *bool           `json:"membership_open,omitempty"`
	Profile        json.RawMessage `json:"profile,omitempty"`
}

// CreateSubOrganizationRequest creates a squad, club or practice group
type CreateSubOrganizationRequest struct {
	Type models.OrgType `json:"type" validate:"required,oneof=squad club practice_group"`
	Name string         `json:"name" validate:"required,max=200"`
}

// AddMemberRequest adds a user to an organization
type AddMemberRequest struct {
	UserID          int64                  `json:"user_id" validate:"required,gt=0"`
	PermissionLevel models.PermissionLevel `json:"permission_level" validate:"required,oneof=owner admin manager member"`
}

// ChangeLevelRequest changes a membership's permission level
type ChangeLevelRequest struct {
	PermissionLevel models.PermissionLevel `json:"permission_level" validate:"required,oneof=owner admin manager member"`
}

// ChangeStatusRequest changes a membership's status
type ChangeStatusRequest struct {
	Status models.MembershipStatus `json:"status" validate:"required,oneof=active inactive prospect expired pending_renewal"`
}

// JoinDecisionRequest approves or rejects a join request
type JoinDecisionRequest struct {
	Approve         bool                   `json:"approve"`
	PermissionLevel models.PermissionLevel `json:"permission_level,omitempty" validate:"omitempty,oneof=owner admin manager member"`
}

// AddRoleRequest attaches a role to a membership
type AddRoleRequest struct {
	RoleType models.RoleType `json:"role_type" validate:"required"`
	Primary  bool            `json:"primary"`
}

// CreateSeasonRequest creates a season for an organization
type CreateSeasonRequest struct {
	Name                    string    `json:"name" validate:"required,max=200"`
	StartDate               time.Time `json:"start_date" validate:"required"`
	EndDate                 time.Time `json:"end_date" validate:"required"`
	RegistrationOpenDate    time.Time `json:"registration_open_date" validate:"required"`
	RegistrationCloseDate   time.Time `json:"registration_close_date" validate:"required"`
	IsActive                bool      `json:"is_active"`
	AutoApproveRegistration bool      `json:"auto_approve_registration"`
	MaxMembers              *int      `json:"max_members,omitempty" validate:"omitempty,gte=0"`
	RegistrationFee         *int64    `json:"registration_fee,omitempty" validate:"omitempty,gte=0"`
}

// RegistrationRequest registers a membership for a season
type RegistrationRequest struct {
	MembershipID int64 `json:"membership_id" validate:"required,gt=0"`
}

// PaymentRequest sets a registration's payment status
type PaymentRequest struct {
	PaymentStatus models.PaymentStatus `json:"payment_status" validate:"required"`
}

// ImportRequest carries already-parsed membership rows
type ImportRequest struct {
	Rows []ImportRow `json:"rows" validate:"required,min=1,max=5000,dive"`
}

// ImportRow mirrors importer.Row with request validation
type ImportRow struct {
	Line            int      `json:"line"`
	UserID          int64    `json:"user_id" validate:"required,gt=0"`
	PermissionLevel string   `json:"permission_level" validate:"required"`
	Status          string   `json:"status,omitempty"`
	Roles           []string `json:"roles,omitempty"`
	PrimaryRole     string   `json:"primary_role,omitempty"`
}

// MembershipResponse is a membership with its roles
type MembershipResponse struct {
	*models.Membership
	Roles       []*models.MemberRole `json:"roles"`
	PrimaryRole *models.MemberRole   `json:"primary_role,omitempty"`
}

// PermissionsResponse describes what the caller may do in an organization
type PermissionsResponse struct {
	OrganizationID  int64                  `json:"organization_id"`
	PermissionLevel models.PermissionLevel `json:"permission_level"`
	Actions         []rbac.Action          `json:"actions"`
}

// HierarchyResponse places an organization in its tree
type HierarchyResponse struct {
	Organization *models.Organization   `json:"organization"`
	League       *models.Organization   `json:"league,omitempty"`
	Team         *models.Organization   `json:"team,omitempty"`
	Ancestors    []*models.Organization `json:"ancestors"`
	Descendants  []*models.Organization `json:"descendants"`
}

// MyOrganization is one entry of the caller's organization list
type MyOrganization struct {
	OrganizationID  int64                  `json:"organization_id"`
	PermissionLevel models.PermissionLevel `json:"permission_level"`
}

// ListResponse wraps a collection
type ListResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func list[T any](items []T) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Items: items, Count: len(items)}
}
