package seasons

import (
	"errors"
	"fmt"
)

// ErrorKind identifies a registration rule violation
type ErrorKind string

const (
	RegistrationWindowClosed ErrorKind = "registration_window_closed"
	AlreadyRegistered        ErrorKind = "already_registered"
	CapacityExceeded         ErrorKind = "capacity_exceeded"
	InvalidTransition        ErrorKind = "invalid_transition"
	NotEligible              ErrorKind = "not_eligible"
)

// RegistrationError is returned when a registration rule rejects an operation
type RegistrationError struct {
	Kind         ErrorKind
	SeasonID     int64
	MembershipID int64
	// From and Event are set for InvalidTransition
	From  string
	Event string
}

func (e *RegistrationError) Error() string {
	switch e.Kind {
	case RegistrationWindowClosed:
		return fmt.Sprintf("registration for season %d is closed", e.SeasonID)
	case AlreadyRegistered:
		return fmt.Sprintf("membership %d is already registered for season %d", e.MembershipID, e.SeasonID)
	case CapacityExceeded:
		return fmt.Sprintf("season %d is full", e.SeasonID)
	case InvalidTransition:
		return fmt.Sprintf("cannot %s a %s registration", e.Event, e.From)
	case NotEligible:
		return fmt.Sprintf("membership %d cannot register for season %d", e.MembershipID, e.SeasonID)
	}
	return fmt.Sprintf("registration error %s", e.Kind)
}

// Is matches another *RegistrationError with the same kind, or any
// *RegistrationError when the target has no kind
func (e *RegistrationError) Is(target error) bool {
	t, ok := target.(*RegistrationError)
	if !ok {
		return false
	}
	return t.Kind == "" || t.Kind == e.Kind
}

var (
	ErrRegistration             = &RegistrationError{}
	ErrRegistrationWindowClosed = &RegistrationError{Kind: RegistrationWindowClosed}
	ErrAlreadyRegistered        = &RegistrationError{Kind: AlreadyRegistered}
	ErrCapacityExceeded         = &RegistrationError{Kind: CapacityExceeded}
	ErrInvalidTransition        = &RegistrationError{Kind: InvalidTransition}
	ErrNotEligible              = &RegistrationError{Kind: NotEligible}

	// ErrInvalidSeason wraps season validation failures
	ErrInvalidSeason = errors.New("invalid season")
)

// IsRegistrationError checks if an error is any registration rule violation
func IsRegistrationError(err error) bool {
	return errors.Is(err, ErrRegistration)
}

// IsCapacityExceeded checks if an error is a capacity rejection
func IsCapacityExceeded(err error) bool {
	return errors.Is(err, ErrCapacityExceeded)
}

// IsWindowClosed checks if an error is a closed registration window
func IsWindowClosed(err error) bool {
	return errors.Is(err, ErrRegistrationWindowClosed)
}
