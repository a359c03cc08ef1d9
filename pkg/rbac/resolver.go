package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/vincentdavis/league-gotta-bike/pkg/models"
	"github.com/vincentdavis/league-gotta-bike/pkg/storage"
)

// LevelResolver returns the level governing userID on orgID, or a
// NotAMember *AuthorizationError
type LevelResolver interface {
	Resolve(ctx context.Context, userID, orgID int64) (models.PermissionLevel, error)
}

// Authorizer answers action questions
type Authorizer interface {
	LevelResolver
	Can(ctx context.Context, userID, orgID int64, action Action) (bool, error)
	Authorize(ctx context.Context, userID, orgID int64, action Action) error
}

// MembershipFinder loads the membership of a user in an organization
type MembershipFinder interface {
	FindMembership(ctx context.Context, userID, orgID int64) (*models.Membership, error)
}

// Resolver reads levels straight from memberships
type Resolver struct {
	memberships MembershipFinder
}

// NewResolver creates a resolver. Inside a transaction pass the transaction's
// membership repository.
func NewResolver(memberships MembershipFinder) *Resolver {
	return &Resolver{memberships: memberships}
}

// Resolve returns the level of the user's active membership in org
func (r *Resolver) Resolve(ctx context.Context, userID, orgID int64) (models.PermissionLevel, error) {
	m, err := r.memberships.FindMembership(ctx, userID, orgID)
	if err != nil {
		if storage.IsNotFound(err) {
			return "", &AuthorizationError{Kind: NotAMember, UserID: userID, OrganizationID: orgID}
		}
		return "", fmt.Errorf("failed to resolve permission level: %w", err)
	}
	if !m.IsActive() {
		return "", &AuthorizationError{Kind: NotAMember, UserID: userID, OrganizationID: orgID}
	}
	return m.PermissionLevel, nil
}

func (r *Resolver) Can(ctx context.Context, userID, orgID int64, action Action) (bool, error) {
	return can(ctx, r, userID, orgID, action)
}

func (r *Resolver) Authorize(ctx context.Context, userID, orgID int64, action Action) error {
	return authorize(ctx, r, userID, orgID, action)
}

func can(ctx context.Context, r LevelResolver, userID, orgID int64, action Action) (bool, error) {
	level, err := r.Resolve(ctx, userID, orgID)
	if err != nil {
		if IsNotAMember(err) {
			return false, nil
		}
		return false, err
	}
	return Allowed(level, action), nil
}

func authorize(ctx context.Context, r LevelResolver, userID, orgID int64, action Action) error {
	level, err := r.Resolve(ctx, userID, orgID)
	if err != nil {
		var authErr *AuthorizationError
		if errors.As(err, &authErr) {
			authErr.Action = action
		}
		return err
	}
	if !Allowed(level, action) {
		return &AuthorizationError{Kind: Unauthorized, UserID: userID, OrganizationID: orgID, Action: action, Level: level}
	}
	return nil
}

// UserMembershipLister lists every membership of a user
type UserMembershipLister interface {
	ListUserMemberships(ctx context.Context, userID int64) ([]*models.Membership, error)
}

// ResolveLevels returns the level the user holds in each organization where
// the membership is active
func ResolveLevels(ctx context.Context, memberships UserMembershipLister, userID int64) (map[int64]models.PermissionLevel, error) {
	ms, err := memberships.ListUserMemberships(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	levels := make(map[int64]models.PermissionLevel, len(ms))
	for _, m := range ms {
		if m.IsActive() {
			levels[m.OrganizationID] = m.PermissionLevel
		}
	}
	return levels, nil
}
