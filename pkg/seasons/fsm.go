package seasons

import (
	"context"
	"errors"

	"github.com/looplab/fsm"

	"github.com/vincentdavis/league-gotta-bike/pkg/models"
)

// stateNew is the state of a registration that has not been stored yet
const stateNew = "new"

const (
	eventSubmit      = "submit"
	eventAutoApprove = "auto_approve"
	eventWaitlist    = "waitlist"
	eventApprove     = "approve"
	eventReject      = "reject"
	eventCancel      = "cancel"
)

var (
	pending    = string(models.RegistrationPending)
	approved   = string(models.RegistrationApproved)
	rejected   = string(models.RegistrationRejected)
	waitlisted = string(models.RegistrationWaitlisted)
)

var registrationEvents = fsm.Events{
	{Name: eventSubmit, Src: []string{stateNew}, Dst: pending},
	{Name: eventAutoApprove, Src: []string{stateNew}, Dst: approved},
	{Name: eventWaitlist, Src: []string{stateNew}, Dst: waitlisted},
	{Name: eventApprove, Src: []string{pending, waitlisted}, Dst: approved},
	{Name: eventReject, Src: []string{pending, waitlisted}, Dst: rejected},
	{Name: eventCancel, Src: []string{pending, waitlisted, approved, rejected}, Dst: rejected},
}

// registrationFSM drives the status of one registration
type registrationFSM struct {
	sm  *models.SeasonMembership
	fsm *fsm.FSM
}

func newRegistrationFSM(sm *models.SeasonMembership) *registrationFSM {
	current := string(sm.RegistrationStatus)
	if current == "" {
		current = stateNew
	}
	return &registrationFSM{
		sm: sm,
		fsm: fsm.NewFSM(
			current,
			registrationEvents,
			fsm.Callbacks{
				"enter_state": func(ctx context.Context, e *fsm.Event) {
					sm.RegistrationStatus = models.RegistrationStatus(e.Dst)
				},
			},
		),
	}
}

// fire applies event. It reports false when the registration was already in
// the destination state, and an InvalidTransition error when event is not
// allowed from the current state.
func (r *registrationFSM) fire(ctx context.Context, event string) (bool, error) {
	from := r.fsm.Current()
	err := r.fsm.Event(ctx, event)
	if err == nil {
		return true, nil
	}
	var noop fsm.NoTransitionError
	if errors.As(err, &noop) {
		return false, nil
	}
	return false, &RegistrationError{
		Kind:         InvalidTransition,
		SeasonID:     r.sm.SeasonID,
		MembershipID: derefID(r.sm.MembershipID),
		From:         from,
		Event:        event,
	}
}

func derefID(id *int64) int64 {
	if id == nil {
		return 0
	}
	return *id
}
