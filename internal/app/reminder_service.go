// internal/app/reminder_service.go
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"petcare_reminders/internal/domain/auth"
	"petcare_reminders/internal/domain/notification"
	"petcare_reminders/internal/domain/pet"
	"petcare_reminders/internal/domain/reminder"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultSchedulerTimeout bounds every scheduler call when no timeout is configured.
const DefaultSchedulerTimeout = 10 * time.Second

// CreateReminderInput is the payload of an add-reminder submission.
type CreateReminderInput struct {
	OwnerID    string // optional; must match the signed-in owner when set
	PetID      string
	Title      string
	Category   reminder.Category
	FireAt     time.Time
	Recurrence reminder.Recurrence
	Notes      string
}

// ReminderService is the lifecycle coordinator: the only component that talks to both the
// reminder store and the notification scheduler, keeping one live handle per reminder.
type ReminderService struct {
	store        reminder.Repository
	pets         pet.Repository
	scheduler    notification.Scheduler
	auth         auth.Authenticator
	adminOwnerID string
	logger       *logrus.Entry
	timeout      time.Duration
	now          func() time.Time

	// resetGate is held for reading by every per-reminder operation and for writing by
	// ResetSchedules. Take it before any per-id lock.
	resetGate sync.RWMutex
	locks     *keyedLock
}

func NewReminderService(
	store reminder.Repository,
	pets pet.Repository,
	scheduler notification.Scheduler,
	authenticator auth.Authenticator,
	adminOwnerID string,
	logger *logrus.Entry,
	schedulerTimeout time.Duration,
) *ReminderService {
	if schedulerTimeout <= 0 {
		schedulerTimeout = DefaultSchedulerTimeout
	}
	return &ReminderService{
		store:        store,
		pets:         pets,
		scheduler:    scheduler,
		auth:         authenticator,
		adminOwnerID: adminOwnerID,
		logger:       logger,
		timeout:      schedulerTimeout,
		now:          time.Now,
		locks:        newKeyedLock(),
	}
}

// lockReminder takes the reset gate for reading and then the reminder's own lock.
func (s *ReminderService) lockReminder(id string) func() {
	s.resetGate.RLock()
	unlock := s.locks.Lock(id)
	return func() {
		unlock()
		s.resetGate.RUnlock()
	}
}

// CreateReminder persists the reminder, schedules its notification and writes the handle back.
// The document is written before scheduling so that a failure in between leaves a visible,
// unscheduled reminder rather than an invisible notification. When scheduling fails the
// persisted reminder is returned together with the error so the caller can offer a retry.
func (s *ReminderService) CreateReminder(ctx context.Context, in CreateReminderInput) (*reminder.Reminder, error) {
	ownerID, err := s.owner(ctx, in.OwnerID)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(in.Title)
	petID := strings.TrimSpace(in.PetID)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", reminder.ErrValidation)
	}
	if petID == "" {
		return nil, fmt.Errorf("%w: pet is required", reminder.ErrValidation)
	}
	rec, ok := reminder.ParseRecurrence(string(in.Recurrence))
	if !ok {
		return nil, fmt.Errorf("%w: unknown recurrence %q", reminder.ErrValidation, in.Recurrence)
	}
	if !in.Category.Valid() {
		return nil, fmt.Errorf("%w: unknown category %q", reminder.ErrValidation, in.Category)
	}
	if in.FireAt.IsZero() {
		return nil, fmt.Errorf("%w: fire time is required", reminder.ErrValidation)
	}
	if err := s.checkNotPastDue(in.FireAt, rec); err != nil {
		return nil, err
	}
	if err := s.checkPetOwner(ctx, petID, ownerID); err != nil {
		return nil, err
	}

	// The id is fixed up front so the reminder is locked before it becomes visible to Reconcile.
	r := &reminder.Reminder{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		PetID:      petID,
		Title:      title,
		Category:   in.Category,
		FireAt:     in.FireAt,
		Recurrence: rec,
		Notes:      in.Notes,
	}
	unlock := s.lockReminder(r.ID)
	defer unlock()

	if err := s.store.Create(ctx, r); err != nil {
		s.logger.WithError(err).WithField("pet_id", petID).Error("Failed to persist new reminder")
		return nil, fmt.Errorf("create reminder: %w", err)
	}
	log := s.logger.WithFields(logrus.Fields{"reminder_id": r.ID, "owner_id": ownerID})

	handle, err := s.schedule(ctx, notification.RequestFor(r))
	if err != nil {
		log.WithError(err).Warn("Reminder persisted but not scheduled")
		return r, fmt.Errorf("schedule reminder %s: %w", r.ID, err)
	}

	updated, err := s.store.Update(ctx, r.ID, reminder.Patch{}.WithHandle(string(handle)))
	if err != nil {
		// The handle never reached the document; drop the trigger so nothing fires unseen.
		s.cancelQuietly(handle, log)
		log.WithError(err).Error("Failed to store notification handle")
		return r, fmt.Errorf("store notification handle for reminder %s: %w", r.ID, err)
	}

	log.WithField("recurrence", rec).Info("Reminder created and scheduled")
	return updated, nil
}

// UpdateReminder applies a partial edit. Only changes to title, fire time or recurrence
// cancel and reschedule the notification; other fields are written straight through.
func (s *ReminderService) UpdateReminder(ctx context.Context, id string, patch reminder.Patch) (*reminder.Reminder, error) {
	ownerID, err := s.owner(ctx, "")
	if err != nil {
		return nil, err
	}
	if err := validatePatch(patch); err != nil {
		return nil, err
	}

	unlock := s.lockReminder(id)
	defer unlock()

	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load reminder %s: %w", id, err)
	}
	if current.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: reminder %s belongs to another owner", reminder.ErrAuth, id)
	}
	log := s.logger.WithFields(logrus.Fields{"reminder_id": id, "owner_id": ownerID})

	if !patch.TouchesSchedule(current) {
		if patch.Empty() {
			return current, nil
		}
		updated, err := s.store.Update(ctx, id, patch)
		if err != nil {
			return nil, fmt.Errorf("update reminder %s: %w", id, err)
		}
		log.Debug("Reminder updated without rescheduling")
		return updated, nil
	}

	merged := current.Clone()
	patch.Apply(merged)
	if err := s.checkNotPastDue(merged.FireAt, merged.Recurrence); err != nil {
		return nil, err
	}

	if current.Scheduled() {
		if err := s.cancel(ctx, notification.Handle(current.NotificationHandle)); err != nil {
			return nil, fmt.Errorf("cancel previous notification for reminder %s: %w", id, err)
		}
	}

	handle, err := s.schedule(ctx, notification.RequestFor(merged))
	if err != nil {
		if current.Scheduled() {
			// The old trigger is gone; do not leave the document pointing at it.
			if _, clearErr := s.store.Update(ctx, id, reminder.Patch{}.WithHandle("")); clearErr != nil {
				log.WithError(clearErr).Error("Failed to clear cancelled handle")
			}
		}
		log.WithError(err).Warn("Reschedule failed")
		return nil, fmt.Errorf("reschedule reminder %s: %w", id, err)
	}

	if current.Done {
		reopened := false
		patch.Done = &reopened
	}
	updated, err := s.store.Update(ctx, id, patch.WithHandle(string(handle)))
	if err != nil {
		s.cancelQuietly(handle, log)
		log.WithError(err).Error("Failed to store rescheduled reminder")
		return nil, fmt.Errorf("update reminder %s: %w", id, err)
	}

	log.Info("Reminder rescheduled")
	return updated, nil
}

// DeleteReminder cancels the reminder's notification and then deletes the document.
// A reminder that is already gone counts as deleted.
func (s *ReminderService) DeleteReminder(ctx context.Context, id string) error {
	ownerID, err := s.owner(ctx, "")
	if err != nil {
		return err
	}

	unlock := s.lockReminder(id)
	defer unlock()

	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, reminder.ErrNotFound) {
			s.logger.WithField("reminder_id", id).Debug("Reminder already deleted")
			return nil
		}
		return fmt.Errorf("load reminder %s: %w", id, err)
	}
	if current.OwnerID != ownerID {
		return fmt.Errorf("%w: reminder %s belongs to another owner", reminder.ErrAuth, id)
	}
	return s.deleteLocked(ctx, current)
}

// deleteLocked runs cancel-then-delete. The caller holds the reminder's lock.
func (s *ReminderService) deleteLocked(ctx context.Context, r *reminder.Reminder) error {
	log := s.logger.WithFields(logrus.Fields{"reminder_id": r.ID, "pet_id": r.PetID})
	if r.Scheduled() {
		if err := s.cancel(ctx, notification.Handle(r.NotificationHandle)); err != nil {
			log.WithError(err).Error("Failed to cancel notification, keeping document")
			return fmt.Errorf("cancel notification for reminder %s: %w", r.ID, err)
		}
	}
	if err := s.store.Delete(ctx, r.ID); err != nil && !errors.Is(err, reminder.ErrNotFound) {
		log.WithError(err).Error("Failed to delete reminder document")
		return fmt.Errorf("delete reminder %s: %w", r.ID, err)
	}
	log.Info("Reminder deleted")
	return nil
}

// CompleteReminder marks the reminder done and cancels its notification.
func (s *ReminderService) CompleteReminder(ctx context.Context, id string) (*reminder.Reminder, error) {
	ownerID, err := s.owner(ctx, "")
	if err != nil {
		return nil, err
	}

	unlock := s.lockReminder(id)
	defer unlock()

	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load reminder %s: %w", id, err)
	}
	if current.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: reminder %s belongs to another owner", reminder.ErrAuth, id)
	}
	if current.Done && !current.Scheduled() {
		return current, nil
	}
	if current.Scheduled() {
		if err := s.cancel(ctx, notification.Handle(current.NotificationHandle)); err != nil {
			return nil, fmt.Errorf("cancel notification for reminder %s: %w", id, err)
		}
	}

	done := true
	updated, err := s.store.Update(ctx, id, reminder.Patch{Done: &done}.WithHandle(""))
	if err != nil {
		return nil, fmt.Errorf("complete reminder %s: %w", id, err)
	}
	s.logger.WithField("reminder_id", id).Info("Reminder completed")
	return updated, nil
}

// ResetSchedules cancels every outstanding trigger and clears all stored handles.
// It is the full-reset path for the admin owner; Reconcile rebuilds the triggers afterwards.
// No other reminder operation runs while it is in progress.
func (s *ReminderService) ResetSchedules(ctx context.Context) error {
	ownerID, err := s.owner(ctx, "")
	if err != nil {
		return err
	}
	if s.adminOwnerID == "" || ownerID != s.adminOwnerID {
		return fmt.Errorf("%w: resetting schedules is admin only", reminder.ErrAuth)
	}

	s.resetGate.Lock()
	defer s.resetGate.Unlock()

	if _, err := s.callScheduler(ctx, "cancel all", func(ctx context.Context) (notification.Handle, error) {
		return "", s.scheduler.CancelAll(ctx)
	}); err != nil {
		return fmt.Errorf("cancel all notifications: %w", err)
	}

	all, err := s.store.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list reminders: %w", err)
	}
	var failed int
	for _, r := range all {
		if !r.Scheduled() {
			continue
		}
		_, err := s.store.Update(ctx, r.ID, reminder.Patch{}.WithHandle(""))
		if err != nil && !errors.Is(err, reminder.ErrNotFound) {
			failed++
			s.logger.WithError(err).WithField("reminder_id", r.ID).Error("Failed to clear handle during reset")
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: could not clear %d handles", reminder.ErrStore, failed)
	}
	s.logger.WithField("reminders", len(all)).Warn("All notification schedules reset")
	return nil
}

func (s *ReminderService) owner(ctx context.Context, requested string) (string, error) {
	current, ok := s.auth.CurrentOwnerID(ctx)
	if !ok {
		return "", reminder.ErrAuth
	}
	if requested != "" && requested != current {
		return "", fmt.Errorf("%w: cannot act on behalf of another owner", reminder.ErrAuth)
	}
	return current, nil
}

// checkPetOwner makes sure the pet exists and belongs to ownerID. Reconcile removes reminders
// of unknown pets, so one must never be created.
func (s *ReminderService) checkPetOwner(ctx context.Context, petID, ownerID string) error {
	p, err := s.pets.GetByID(ctx, petID)
	if err != nil {
		if errors.Is(err, pet.ErrNotFound) {
			return fmt.Errorf("%w: unknown pet %s", reminder.ErrValidation, petID)
		}
		return fmt.Errorf("load pet %s: %w", petID, err)
	}
	if p.OwnerID != ownerID {
		return fmt.Errorf("%w: pet %s belongs to another owner", reminder.ErrAuth, petID)
	}
	return nil
}

func (s *ReminderService) checkNotPastDue(fireAt time.Time, rec reminder.Recurrence) error {
	if rec == reminder.RecurrenceOnce && !fireAt.After(s.now()) {
		return fmt.Errorf("%w: %s", reminder.ErrPastDue, fireAt.Format(time.RFC3339))
	}
	return nil
}

func validatePatch(p reminder.Patch) error {
	if p.NotificationHandle != nil {
		return fmt.Errorf("%w: notification handle is managed by the coordinator", reminder.ErrValidation)
	}
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return fmt.Errorf("%w: title cannot be empty", reminder.ErrValidation)
	}
	if p.Recurrence != nil && !p.Recurrence.Valid() {
		return fmt.Errorf("%w: unknown recurrence %q", reminder.ErrValidation, *p.Recurrence)
	}
	if p.Category != nil && !p.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", reminder.ErrValidation, *p.Category)
	}
	if p.FireAt != nil && p.FireAt.IsZero() {
		return fmt.Errorf("%w: fire time cannot be empty", reminder.ErrValidation)
	}
	return nil
}
