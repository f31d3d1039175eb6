package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"petcare_reminders/internal/domain/auth"
	"petcare_reminders/internal/domain/pet"
	"petcare_reminders/internal/domain/record"
	"petcare_reminders/internal/domain/reminder"

	"github.com/sirupsen/logrus"
)

// CascadeError reports the parts of a pet deletion that failed. Everything else was removed.
type CascadeError struct {
	PetID     string
	Reminders map[string]error // by reminder id
	Records   error
	Pet       error
}

func (e *CascadeError) Error() string {
	var parts []string
	if n := len(e.Reminders); n > 0 {
		parts = append(parts, fmt.Sprintf("%d reminders not deleted (%s)", n, strings.Join(e.FailedReminderIDs(), ", ")))
	}
	if e.Records != nil {
		parts = append(parts, "records: "+e.Records.Error())
	}
	if e.Pet != nil {
		parts = append(parts, "pet: "+e.Pet.Error())
	}
	return fmt.Sprintf("cascade delete of pet %s incomplete: %s", e.PetID, strings.Join(parts, "; "))
}

func (e *CascadeError) Unwrap() []error {
	errs := make([]error, 0, len(e.Reminders)+2)
	for _, id := range e.FailedReminderIDs() {
		errs = append(errs, e.Reminders[id])
	}
	if e.Records != nil {
		errs = append(errs, e.Records)
	}
	if e.Pet != nil {
		errs = append(errs, e.Pet)
	}
	return errs
}

// FailedReminderIDs returns the ids of reminders that survived the cascade, sorted.
func (e *CascadeError) FailedReminderIDs() []string {
	ids := make([]string, 0, len(e.Reminders))
	for id := range e.Reminders {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (e *CascadeError) empty() bool {
	return len(e.Reminders) == 0 && e.Records == nil && e.Pet == nil
}

// CascadeService removes a pet together with everything that hangs off it.
type CascadeService struct {
	pets      pet.Repository
	records   record.Repository
	store     reminder.Repository
	reminders *ReminderService
	auth      auth.Authenticator
	logger    *logrus.Entry
}

func NewCascadeService(
	pets pet.Repository,
	records record.Repository,
	store reminder.Repository,
	reminders *ReminderService,
	authenticator auth.Authenticator,
	logger *logrus.Entry,
) *CascadeService {
	return &CascadeService{
		pets:      pets,
		records:   records,
		store:     store,
		reminders: reminders,
		auth:      authenticator,
		logger:    logger,
	}
}

// CascadeDeletePet deletes every reminder of the pet through the lifecycle coordinator, then the
// pet's medical records, then the pet itself. It is best effort: one failure never stops the rest,
// and the pet is deleted even when some dependents could not be. Leftovers are reported in a
// *CascadeError and removed later by Reconcile.
func (s *CascadeService) CascadeDeletePet(ctx context.Context, petID string) error {
	ownerID, ok := s.auth.CurrentOwnerID(ctx)
	if !ok {
		return reminder.ErrAuth
	}
	log := s.logger.WithFields(logrus.Fields{"pet_id": petID, "owner_id": ownerID})

	petGone := false
	p, err := s.pets.GetByID(ctx, petID)
	switch {
	case errors.Is(err, pet.ErrNotFound):
		petGone = true
		log.Info("Pet already deleted, removing orphaned dependents")
	case err != nil:
		return fmt.Errorf("load pet %s: %w", petID, err)
	case p.OwnerID != ownerID:
		return fmt.Errorf("%w: pet %s belongs to another owner", reminder.ErrAuth, petID)
	}

	reminders, err := s.store.ListByPet(ctx, petID)
	if err != nil {
		return fmt.Errorf("list reminders of pet %s: %w", petID, err)
	}

	cerr := &CascadeError{PetID: petID, Reminders: make(map[string]error)}
	deleted := 0
	for _, r := range reminders {
		if petGone && r.OwnerID != ownerID {
			continue
		}
		if err := s.reminders.DeleteReminder(ctx, r.ID); err != nil {
			log.WithError(err).WithField("reminder_id", r.ID).Warn("Failed to delete reminder during cascade")
			cerr.Reminders[r.ID] = err
			continue
		}
		deleted++
	}

	removedRecords, err := s.deleteRecords(ctx, petID, ownerID, petGone)
	if err != nil {
		log.WithError(err).Warn("Failed to delete medical records during cascade")
		cerr.Records = err
	}

	if !petGone {
		if err := s.pets.Delete(ctx, petID); err != nil && !errors.Is(err, pet.ErrNotFound) {
			log.WithError(err).Error("Failed to delete pet document")
			cerr.Pet = fmt.Errorf("delete pet %s: %w", petID, err)
		}
	}

	log.WithFields(logrus.Fields{
		"reminders_deleted": deleted,
		"reminders_failed":  len(cerr.Reminders),
		"records_deleted":   removedRecords,
	}).Info("Pet cascade finished")

	if cerr.empty() {
		return nil
	}
	return cerr
}

func (s *CascadeService) deleteRecords(ctx context.Context, petID, ownerID string, petGone bool) (int, error) {
	if petGone {
		// Without the pet document ownership comes from the records themselves.
		recs, err := s.records.ListByPet(ctx, petID)
		if err != nil {
			return 0, fmt.Errorf("list records of pet %s: %w", petID, err)
		}
		if len(recs) == 0 {
			return 0, nil
		}
		for _, rec := range recs {
			if rec.OwnerID != ownerID {
				return 0, fmt.Errorf("%w: records of pet %s belong to another owner", reminder.ErrAuth, petID)
			}
		}
	}
	n, err := s.records.DeleteByPet(ctx, petID)
	if err != nil {
		return n, fmt.Errorf("delete records of pet %s: %w", petID, err)
	}
	return n, nil
}
