// Package notify delivers job lifecycle events to operators.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/codebypatrickleung/hvshift/internal/errs"
	"github.com/codebypatrickleung/hvshift/internal/logger"
)

// EventKind identifies a point in the job lifecycle.
type EventKind string

const (
	JobStarted         EventKind = "job_started"
	VMStopped          EventKind = "vm_stopped"
	StopFailed         EventKind = "stop_failed"
	MigrationAborted   EventKind = "migration_aborted"
	MigrationCompleted EventKind = "migration_completed"
	VMStarted          EventKind = "vm_started"
	StartFailed        EventKind = "start_failed"
)

// Event is a single lifecycle notification.
type Event struct {
	Kind         EventKind
	JobID        string
	VMName       string
	InstanceName string
	Message      string
	Err          error
}

// Problem reports whether the event needs operator attention.
func (e Event) Problem() bool {
	switch e.Kind {
	case StopFailed, MigrationAborted, StartFailed:
		return true
	}
	return false
}

// Subject returns a one-line summary of the event.
func (e Event) Subject() string {
	if e.Problem() {
		return fmt.Sprintf("Warning: problem with maintenance for VM %s / %s", e.VMName, e.InstanceName)
	}
	return fmt.Sprintf("%s for VM %s / %s", e.Kind, e.VMName, e.InstanceName)
}

// Body returns the event message followed by the error, if any.
func (e Event) Body() string {
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Message + ": " + e.Err.Error()
}

// Notifier delivers events. Delivery is best effort and callers never abort on failure.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// LogNotifier writes events to the job log.
type LogNotifier struct {
	logger *logger.Logger
}

// NewLogNotifier creates a notifier that logs every event.
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{logger: log}
}

func (n *LogNotifier) Notify(_ context.Context, event Event) error {
	log := n.logger.With("event", string(event.Kind))
	if event.Problem() {
		log.Warningf("%s: %s", event.Subject(), event.Body())
		return nil
	}
	log.Debugf("%s: %s", event.Subject(), event.Body())
	return nil
}

type multiNotifier []Notifier

// Multi fans an event out to every notifier. Each failure is wrapped in *errs.NotificationError.
func Multi(notifiers ...Notifier) Notifier {
	return multiNotifier(notifiers)
}

func (m multiNotifier) Notify(ctx context.Context, event Event) error {
	var errList []error
	for _, n := range m {
		if err := n.Notify(ctx, event); err != nil {
			errList = append(errList, &errs.NotificationError{Event: string(event.Kind), Err: err})
		}
	}
	return errors.Join(errList...)
}
