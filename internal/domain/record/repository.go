package record

import "context"

// Repository exposes the record operations needed when a pet is removed.
type Repository interface {
	ListByPet(ctx context.Context, petID string) ([]*Record, error)
	// DeleteByPet removes every record of the pet and reports how many were removed.
	DeleteByPet(ctx context.Context, petID string) (int, error)
}
