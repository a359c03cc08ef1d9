package rbac

import (
	"errors"
	"fmt"

	"github.com/vincentdavis/league-gotta-bike/pkg/models"
)

// ErrorKind distinguishes a denied action from a missing membership
type ErrorKind string

const (
	Unauthorized ErrorKind = "unauthorized"
	NotAMember   ErrorKind = "not_a_member"
)

// AuthorizationError is returned when a user may not act on an organization
type AuthorizationError struct {
	Kind           ErrorKind
	UserID         int64
	OrganizationID int64
	Action         Action
	Level          models.PermissionLevel
}

func (e *AuthorizationError) Error() string {
	if e.Kind == NotAMember {
		return fmt.Sprintf("user %d is not a member of organization %d", e.UserID, e.OrganizationID)
	}
	if e.Action == "" {
		return fmt.Sprintf("user %d is not authorized on organization %d", e.UserID, e.OrganizationID)
	}
	return fmt.Sprintf("user %d (%s) is not authorized to %s on organization %d", e.UserID, e.Level, e.Action, e.OrganizationID)
}

// Is matches ErrUnauthorized for both kinds and ErrNotAMember only for
// missing memberships
func (e *AuthorizationError) Is(target error) bool {
	t, ok := target.(*AuthorizationError)
	if !ok {
		return false
	}
	switch t.Kind {
	case "", Unauthorized:
		return true
	default:
		return t.Kind == e.Kind
	}
}

var (
	ErrUnauthorized = &AuthorizationError{Kind: Unauthorized}
	ErrNotAMember   = &AuthorizationError{Kind: NotAMember}
)

// IsUnauthorized checks if an error is any authorization failure
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsNotAMember checks if an error is a missing membership
func IsNotAMember(err error) bool {
	return errors.Is(err, ErrNotAMember)
}
