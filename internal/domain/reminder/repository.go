package reminder

import (
	"context"
	"fmt"
)

// Repository is the persistence boundary for reminder documents. It has no scheduling knowledge.
type Repository interface {
	// Create assigns ID and timestamps. Fails with ErrValidation when title or pet is empty
	// and with ErrAuth when the owner is empty.
	Create(ctx context.Context, r *Reminder) error
	GetByID(ctx context.Context, id string) (*Reminder, error)
	// Update applies a partial update and returns the stored document. ErrNotFound if absent.
	Update(ctx context.Context, id string, patch Patch) (*Reminder, error)
	// Delete returns ErrNotFound for an absent id; lifecycle callers treat that as success.
	Delete(ctx context.Context, id string) error

	// Point-in-time reads; ordering is not guaranteed.
	ListByOwner(ctx context.Context, ownerID string) ([]*Reminder, error)
	ListByPet(ctx context.Context, petID string) ([]*Reminder, error)
	ListAll(ctx context.Context) ([]*Reminder, error)

	// Subscribe delivers the full result set for scope on every change to a matching
	// document. The current state is delivered once before Subscribe returns.
	Subscribe(ctx context.Context, scope Scope, onChange func([]*Reminder)) (Subscription, error)
}

// Subscription is a live query. Stop releases it and may be called more than once.
type Subscription interface {
	Stop()
}

// ValidateNew checks the fields every store requires on create.
func ValidateNew(r *Reminder) error {
	if r.OwnerID == "" {
		return ErrAuth
	}
	if r.Title == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if r.PetID == "" {
		return fmt.Errorf("%w: pet is required", ErrValidation)
	}
	return nil
}
