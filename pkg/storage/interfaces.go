package storage

import (
	"context"

	"github.com/vincentdavis/league-gotta-bike/pkg/models"
)

// OrganizationRepository persists organizations
type OrganizationRepository interface {
	CreateOrganization(ctx context.Context, org *models.Organization) error
	GetOrganization(ctx context.Context, id int64) (*models.Organization, error)
	GetOrganizationBySlug(ctx context.Context, slug string) (*models.Organization, error)
	UpdateOrganization(ctx context.Context, org *models.Organization) error
	// DeleteOrganization removes the organization with its memberships, roles,
	// seasons and season registrations
	DeleteOrganization(ctx context.Context, id int64) error
	ListChildren(ctx context.Context, parentID int64) ([]*models.Organization, error)
	// LockOrganization locks the organization row until the transaction ends
	LockOrganization(ctx context.Context, id int64) (*models.Organization, error)
}

// MembershipFilter narrows ListMemberships
type MembershipFilter struct {
	Status          models.MembershipStatus
	PermissionLevel models.PermissionLevel
}

// MembershipRepository persists memberships
type MembershipRepository interface {
	CreateMembership(ctx context.Context, m *models.Membership) error
	GetMembership(ctx context.Context, id int64) (*models.Membership, error)
	FindMembership(ctx context.Context, userID, orgID int64) (*models.Membership, error)
	UpdateMembership(ctx context.Context, m *models.Membership) error
	DeleteMembership(ctx context.Context, id int64) error
	ListMemberships(ctx context.Context, orgID int64, filter MembershipFilter) ([]*models.Membership, error)
	ListUserMemberships(ctx context.Context, userID int64) ([]*models.Membership, error)
	// CountOwners counts active owners of the organization
	CountOwners(ctx context.Context, orgID int64) (int, error)
}

// RoleRepository persists member roles
type RoleRepository interface {
	ListRoles(ctx context.Context, membershipID int64) ([]*models.MemberRole, error)
	// InsertRole stores role and reports true. When the membership already
	// holds role.RoleType it fills role from the existing row and reports false.
	InsertRole(ctx context.Context, role *models.MemberRole) (bool, error)
	UpdateRole(ctx context.Context, role *models.MemberRole) error
	DeleteRole(ctx context.Context, membershipID int64, roleType models.RoleType) error
	// ClearPrimary unsets is_primary on every role of the membership except keep
	ClearPrimary(ctx context.Context, membershipID int64, keep models.RoleType) error
	DeleteRoles(ctx context.Context, membershipID int64) error
}

// SeasonRepository persists seasons
type SeasonRepository interface {
	CreateSeason(ctx context.Context, s *models.Season) error
	GetSeason(ctx context.Context, id int64) (*models.Season, error)
	UpdateSeason(ctx context.Context, s *models.Season) error
	ListSeasons(ctx context.Context, orgID int64) ([]*models.Season, error)
	// ActiveSeason returns the active season of the organization or ErrNotFound
	ActiveSeason(ctx context.Context, orgID int64) (*models.Season, error)
	ListActiveSeasons(ctx context.Context) ([]*models.Season, error)
	// LockSeason locks the season row until the transaction ends
	LockSeason(ctx context.Context, id int64) (*models.Season, error)
}

// RegistrationRepository persists season registrations
type RegistrationRepository interface {
	CreateRegistration(ctx context.Context, sm *models.SeasonMembership) error
	GetRegistration(ctx context.Context, id int64) (*models.SeasonMembership, error)
	UpdateRegistration(ctx context.Context, sm *models.SeasonMembership) error
	// FindOpenRegistration returns a non-rejected registration of the user for
	// the season, detached ones included, or ErrNotFound
	FindOpenRegistration(ctx context.Context, userID, seasonID int64) (*models.SeasonMembership, error)
	CountRegistrations(ctx context.Context, seasonID int64, status models.RegistrationStatus) (int, error)
	ListRegistrations(ctx context.Context, seasonID int64) ([]*models.SeasonMembership, error)
	HasRegistration(ctx context.Context, membershipID, seasonID int64, status models.RegistrationStatus) (bool, error)
	// DetachMembership clears membership_id on every registration of the membership
	DetachMembership(ctx context.Context, membershipID int64) error
}

// Repositories groups every repository
type Repositories interface {
	Organizations() OrganizationRepository
	Memberships() MembershipRepository
	Roles() RoleRepository
	Seasons() SeasonRepository
	Registrations() RegistrationRepository
}

// TxFunc runs inside a transaction. Returning an error rolls back.
type TxFunc func(ctx context.Context, repos Repositories) error

// Store is a transactional backend
type Store interface {
	Repositories

	// InTx runs fn in a transaction. Conflicts are retried, any other error
	// rolls back and is returned unchanged.
	InTx(ctx context.Context, fn TxFunc) error

	HealthCheck(ctx context.Context) error
	Close() error
}
