package app

import (
	"context"
	"errors"
	"fmt"

	"petcare_reminders/internal/domain/notification"
	"petcare_reminders/internal/domain/pet"
	"petcare_reminders/internal/domain/reminder"

	"github.com/sirupsen/logrus"
)

// ReconcileReport summarizes one reconciliation pass.
type ReconcileReport struct {
	Checked        int
	Rescheduled    int
	HandlesCleared int
	OrphansRemoved int
	PastDue        int
	Failed         map[string]error // by reminder id
}

// Reconcile brings stored handles and scheduler state back in line. It removes reminders whose
// pet is gone, schedules open reminders without a live trigger and clears handles of one-shots
// that already fired. It runs as a system job and does not consult the authenticator.
func (s *ReminderService) Reconcile(ctx context.Context) (ReconcileReport, error) {
	report := ReconcileReport{Failed: make(map[string]error)}

	all, err := s.store.ListAll(ctx)
	if err != nil {
		return report, fmt.Errorf("list reminders: %w", err)
	}

	petExists := make(map[string]bool)
	for _, r := range all {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++

		exists, known := petExists[r.PetID]
		if !known {
			_, err := s.pets.GetByID(ctx, r.PetID)
			switch {
			case err == nil:
				exists = true
			case errors.Is(err, pet.ErrNotFound):
				exists = false
			default:
				report.Failed[r.ID] = fmt.Errorf("check pet %s: %w", r.PetID, err)
				continue
			}
			petExists[r.PetID] = exists
		}

		if err := s.reconcileOne(ctx, r.ID, exists, &report); err != nil {
			report.Failed[r.ID] = err
		}
	}

	s.logger.WithFields(logrus.Fields{
		"checked":         report.Checked,
		"rescheduled":     report.Rescheduled,
		"handles_cleared": report.HandlesCleared,
		"orphans_removed": report.OrphansRemoved,
		"past_due":        report.PastDue,
		"failed":          len(report.Failed),
	}).Info("Reconciliation pass finished")
	return report, nil
}

func (s *ReminderService) reconcileOne(ctx context.Context, id string, petExists bool, report *ReconcileReport) error {
	unlock := s.lockReminder(id)
	defer unlock()

	// Re-read under the lock; the listed copy may be stale.
	r, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, reminder.ErrNotFound) {
			return nil
		}
		return err
	}

	if !petExists {
		if err := s.deleteLocked(ctx, r); err != nil {
			return err
		}
		report.OrphansRemoved++
		return nil
	}

	live := r.Scheduled() && s.scheduler.Exists(notification.Handle(r.NotificationHandle))

	if r.Done {
		if !r.Scheduled() {
			return nil
		}
		if live {
			if err := s.cancel(ctx, notification.Handle(r.NotificationHandle)); err != nil {
				return err
			}
		}
		return s.clearHandle(ctx, r.ID, report)
	}

	if live {
		return nil
	}

	if r.Recurrence == reminder.RecurrenceOnce && !r.FireAt.After(s.now()) {
		if r.Scheduled() {
			// Fired one-shot.
			return s.clearHandle(ctx, r.ID, report)
		}
		report.PastDue++
		return nil
	}

	handle, err := s.schedule(ctx, notification.RequestFor(r))
	if err != nil {
		return err
	}
	if _, err := s.store.Update(ctx, r.ID, reminder.Patch{}.WithHandle(string(handle))); err != nil {
		s.cancelQuietly(handle, s.logger.WithField("reminder_id", r.ID))
		return err
	}
	report.Rescheduled++
	return nil
}

func (s *ReminderService) clearHandle(ctx context.Context, id string, report *ReconcileReport) error {
	if _, err := s.store.Update(ctx, id, reminder.Patch{}.WithHandle("")); err != nil {
		return err
	}
	report.HandlesCleared++
	return nil
}
