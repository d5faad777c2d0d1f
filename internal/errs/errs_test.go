package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessages(t *testing.T) {
	cause := errors.New("exit status 1")

	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"validation", Validation(nil, "cluster %q not found", "kvm-1"), `validation failed: cluster "kvm-1" not found`},
		{"validation with cause", Validation(cause, "lookup vm %s", "i-2-3-VM"), "validation failed: lookup vm i-2-3-VM: exit status 1"},
		{"state mismatch", &StateMismatchError{Subject: "vm web01", Expected: "Stopped", Actual: "Stopping"}, "vm web01 is in state Stopping instead of Stopped"},
		{"remote with volume", &RemoteCommandError{Step: "Downloaded", Host: "10.0.0.2", VolumeID: "vol-a", Err: cause}, "step Downloaded failed for volume vol-a on host 10.0.0.2: exit status 1"},
		{"remote without volume", &RemoteCommandError{Step: "prepare-target", Host: "10.0.0.2", Err: cause}, "step prepare-target failed on host 10.0.0.2: exit status 1"},
		{"commit", &CommitError{InstanceName: "i-2-3-VM", Err: cause}, "failed to record migration of i-2-3-VM in the inventory: exit status 1"},
		{"notification", &NotificationError{Event: "completed", Err: cause}, "notification completed failed: exit status 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	wrapped := fmt.Errorf("volume transfer failed: %w", &RemoteCommandError{Step: "Placed", Err: cause})

	var remoteErr *RemoteCommandError
	require.True(t, errors.As(wrapped, &remoteErr))
	assert.Equal(t, "Placed", remoteErr.Step)
	assert.True(t, errors.Is(wrapped, cause))

	var validationErr *ValidationError
	require.ErrorAs(t, fmt.Errorf("aborted: %w", Validation(cause, "bad")), &validationErr)
	assert.ErrorIs(t, validationErr, cause)
}

func TestGuidance(t *testing.T) {
	assert.Empty(t, Guidance(nil))
	assert.Equal(t, NothingChanged, Guidance(Validation(nil, "bad")))
	assert.Equal(t, NothingChanged, Guidance(&RemoteCommandError{Step: "Fetch"}))
	assert.Equal(t, NothingChanged, Guidance(&StateMismatchError{}))
	assert.Equal(t, InvestigateCommit, Guidance(fmt.Errorf("commit: %w", &CommitError{Err: errors.New("deadlock")})))
}
