package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_TransitionTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to Status
		allowed  bool
	}{
		{StatusPending, StatusMentorApproved, true},
		{StatusPending, StatusManagerApproved, true},
		{StatusPending, StatusRejected, true},
		{StatusPending, StatusManagerRejected, true},
		{StatusMentorApproved, StatusManagerApproved, true},
		{StatusMentorApproved, StatusManagerRejected, true},
		{StatusManagerApproved, StatusCompleted, true},

		{StatusManagerApproved, StatusPending, false},
		{StatusCompleted, StatusRejected, false},
		{StatusRejected, StatusPending, false},
		{StatusManagerRejected, StatusManagerApproved, false},
		{StatusMentorApproved, StatusPending, false},
		{StatusPending, StatusPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.allowed, tt.from.CanTransition(tt.to))
			err := ValidateTransition(tt.from, tt.to)
			if tt.allowed {
				require.NoError(t, err)
				return
			}
			var illegal *ErrIllegalTransition
			require.ErrorAs(t, err, &illegal)
			assert.Equal(t, tt.from, illegal.From)
		})
	}
}

func TestStatus_Terminal(t *testing.T) {
	t.Parallel()

	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusRejected.IsTerminal())
	assert.True(t, StatusManagerRejected.IsTerminal())
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusManagerApproved.IsTerminal())
}

func TestValidateTransition_UnknownStatus(t *testing.T) {
	t.Parallel()

	require.Error(t, ValidateTransition("approved", StatusCompleted))
	assert.False(t, Status("approved").Valid())
}

func TestStatus_IsApproved(t *testing.T) {
	t.Parallel()

	for _, s := range ApprovedStatuses() {
		assert.True(t, s.IsApproved())
	}
	assert.False(t, StatusMentorApproved.IsApproved())
}
