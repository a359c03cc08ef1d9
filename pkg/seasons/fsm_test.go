package seasons

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vincentdavis/league-gotta-bike/pkg/models"
)

func TestRegistrationFSM(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		from    models.RegistrationStatus
		event   string
		want    models.RegistrationStatus
		changed bool
		invalid bool
	}{
		{from: "", event: eventSubmit, want: models.RegistrationPending, changed: true},
		{from: "", event: eventAutoApprove, want: models.RegistrationApproved, changed: true},
		{from: "", event: eventWaitlist, want: models.RegistrationWaitlisted, changed: true},
		{from: "", event: eventApprove, invalid: true},
		{from: models.RegistrationPending, event: eventApprove, want: models.RegistrationApproved, changed: true},
		{from: models.RegistrationPending, event: eventReject, want: models.RegistrationRejected, changed: true},
		{from: models.RegistrationWaitlisted, event: eventApprove, want: models.RegistrationApproved, changed: true},
		{from: models.RegistrationWaitlisted, event: eventReject, want: models.RegistrationRejected, changed: true},
		{from: models.RegistrationApproved, event: eventReject, invalid: true},
		{from: models.RegistrationApproved, event: eventApprove, invalid: true},
		{from: models.RegistrationRejected, event: eventApprove, invalid: true},
		{from: models.RegistrationApproved, event: eventCancel, want: models.RegistrationRejected, changed: true},
		{from: models.RegistrationPending, event: eventCancel, want: models.RegistrationRejected, changed: true},
		{from: models.RegistrationRejected, event: eventCancel, want: models.RegistrationRejected},
	}

	for _, tt := range tests {
		name := string(tt.from)
		if name == "" {
			name = stateNew
		}
		t.Run(name+"/"+tt.event, func(t *testing.T) {
			sm := &models.SeasonMembership{SeasonID: 7, RegistrationStatus: tt.from}
			changed, err := newRegistrationFSM(sm).fire(ctx, tt.event)
			if tt.invalid {
				require.ErrorIs(t, err, ErrInvalidTransition)
				assert.Equal(t, tt.from, sm.RegistrationStatus, "status must not move")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.changed, changed)
			assert.Equal(t, tt.want, sm.RegistrationStatus)
		})
	}
}

func TestRegistrationErrorIs(t *testing.T) {
	err := &RegistrationError{Kind: CapacityExceeded, SeasonID: 3}
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.ErrorIs(t, err, ErrRegistration)
	assert.NotErrorIs(t, err, ErrAlreadyRegistered)
	assert.True(t, IsCapacityExceeded(err))
	assert.False(t, IsWindowClosed(err))
	assert.Equal(t, "season 3 is full", err.Error())
}
