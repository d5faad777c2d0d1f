// Package errs defines the error taxonomy of a migration job and the operator guidance attached to it.
package errs

import (
	"errors"
	"fmt"
)

const (
	// NothingChanged is printed for every failure that happened before the inventory commit.
	NothingChanged = "Nothing has changed; retry or start the VM on the source platform"
	// InvestigateCommit is printed when volumes were transferred but the inventory update failed.
	InvestigateCommit = "Volumes were transferred but the inventory was not updated; the VM is stopped on the source platform. Investigate manually before retrying"
)

// ValidationError reports unresolvable identifiers, an incompatible VM state or a storage mismatch.
type ValidationError struct {
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("validation failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("validation failed: %s", e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Validation builds a ValidationError from a format string. err may be nil.
func Validation(err error, format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...), Err: err}
}

// StateMismatchError reports a VM or volume that is not in the state required to proceed.
type StateMismatchError struct {
	Subject  string
	Expected string
	Actual   string
}

func (e *StateMismatchError) Error() string {
	return fmt.Sprintf("%s is in state %s instead of %s", e.Subject, e.Actual, e.Expected)
}

// RemoteCommandError reports a failed adapter operation.
type RemoteCommandError struct {
	Step     string
	Host     string
	VolumeID string
	Err      error
}

func (e *RemoteCommandError) Error() string {
	if e.VolumeID != "" {
		return fmt.Sprintf("step %s failed for volume %s on host %s: %v", e.Step, e.VolumeID, e.Host, e.Err)
	}
	return fmt.Sprintf("step %s failed on host %s: %v", e.Step, e.Host, e.Err)
}

func (e *RemoteCommandError) Unwrap() error { return e.Err }

// CommitError reports an inventory update that failed after a successful transfer.
type CommitError struct {
	InstanceName string
	Err          error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("failed to record migration of %s in the inventory: %v", e.InstanceName, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// NotificationError reports a failed notification. It is always swallowed by the caller.
type NotificationError struct {
	Event string
	Err   error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notification %s failed: %v", e.Event, e.Err)
}

func (e *NotificationError) Unwrap() error { return e.Err }

// Guidance returns the safe-state reminder for an aborted job.
func Guidance(err error) string {
	if err == nil {
		return ""
	}
	var commitErr *CommitError
	if errors.As(err, &commitErr) {
		return InvestigateCommit
	}
	return NothingChanged
}
