// internal/domain/notification/scheduler.go
package notification

import (
	"context"
	"time"

	"petcare_reminders/internal/domain/reminder"
)

// Handle identifies one outstanding device trigger. It has no meaning outside the scheduler.
type Handle string

// Request describes what to schedule. Only Title, FireAt and Recurrence affect firing;
// ReminderID and OwnerID travel with the delivery.
type Request struct {
	ReminderID string
	OwnerID    string
	Title      string
	FireAt     time.Time
	Recurrence reminder.Recurrence
}

// RequestFor builds the schedule request for a stored reminder.
func RequestFor(r *reminder.Reminder) Request {
	return Request{
		ReminderID: r.ID,
		OwnerID:    r.OwnerID,
		Title:      r.Title,
		FireAt:     r.FireAt,
		Recurrence: r.Recurrence,
	}
}

// Scheduler maps a request to exactly one outstanding trigger.
type Scheduler interface {
	// Schedule fails with reminder.ErrPastDue for a one-shot that is not in the future and
	// with reminder.ErrPermissionDenied when the owner has not granted notifications.
	Schedule(ctx context.Context, req Request) (Handle, error)
	// Cancel is a no-op for unknown or already fired handles.
	Cancel(ctx context.Context, h Handle) error
	// CancelAll clears every trigger; used on sign-out or full reset only.
	CancelAll(ctx context.Context) error
	// Exists reports whether h is still outstanding.
	Exists(h Handle) bool
}
