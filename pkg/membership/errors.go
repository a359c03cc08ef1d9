package membership

import (
	"errors"
	"fmt"

	"github.com/vincentdavis/league-gotta-bike/pkg/models"
)

// ErrorKind identifies a membership rule violation
type ErrorKind string

const (
	DuplicateMembership          ErrorKind = "duplicate_membership"
	CannotDemoteLastOwner        ErrorKind = "cannot_demote_last_owner"
	ParentTeamMembershipRequired ErrorKind = "parent_team_membership_required"
	MembershipClosed             ErrorKind = "membership_closed"
	NotAJoinRequest              ErrorKind = "not_a_join_request"
)

// MembershipError is returned when a lifecycle rule rejects an operation
type MembershipError struct {
	Kind           ErrorKind
	UserID         int64
	OrganizationID int64
}

func (e *MembershipError) Error() string {
	switch e.Kind {
	case DuplicateMembership:
		return fmt.Sprintf("user %d is already a member of organization %d", e.UserID, e.OrganizationID)
	case CannotDemoteLastOwner:
		return fmt.Sprintf("user %d is the last owner of organization %d; promote another member to owner first", e.UserID, e.OrganizationID)
	case ParentTeamMembershipRequired:
		return fmt.Sprintf("user %d must be an active member of the parent team of organization %d", e.UserID, e.OrganizationID)
	case MembershipClosed:
		return fmt.Sprintf("organization %d is not accepting membership requests", e.OrganizationID)
	case NotAJoinRequest:
		return fmt.Sprintf("membership of user %d in organization %d is not a pending join request", e.UserID, e.OrganizationID)
	}
	return fmt.Sprintf("membership error %s", e.Kind)
}

// Is matches another *MembershipError with the same kind, or any
// *MembershipError when the target has no kind
func (e *MembershipError) Is(target error) bool {
	t, ok := target.(*MembershipError)
	if !ok {
		return false
	}
	return t.Kind == "" || t.Kind == e.Kind
}

var (
	ErrMembership                   = &MembershipError{}
	ErrDuplicateMembership          = &MembershipError{Kind: DuplicateMembership}
	ErrCannotDemoteLastOwner        = &MembershipError{Kind: CannotDemoteLastOwner}
	ErrParentTeamMembershipRequired = &MembershipError{Kind: ParentTeamMembershipRequired}
	ErrMembershipClosed             = &MembershipError{Kind: MembershipClosed}
	ErrNotAJoinRequest              = &MembershipError{Kind: NotAJoinRequest}

	// ErrInvalidInput wraps malformed arguments such as unknown levels
	ErrInvalidInput = errors.New("invalid input")
)

// IsMembershipError checks if an error is any lifecycle rule violation
func IsMembershipError(err error) bool {
	return errors.Is(err, ErrMembership)
}

// IsDuplicateMembership checks if an error is a duplicate membership
func IsDuplicateMembership(err error) bool {
	return errors.Is(err, ErrDuplicateMembership)
}

// IsCannotDemoteLastOwner checks if an error is a last owner violation
func IsCannotDemoteLastOwner(err error) bool {
	return errors.Is(err, ErrCannotDemoteLastOwner)
}

func invalidLevel(l models.PermissionLevel) error {
	return fmt.Errorf("%w: unknown permission level %q", ErrInvalidInput, l)
}

func invalidStatus(s models.MembershipStatus) error {
	return fmt.Errorf("%w: unknown membership status %q", ErrInvalidInput, s)
}
