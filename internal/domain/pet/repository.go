package pet

import (
	"context"
)

// Repository defines the pet operations the reminder engine depends on.
// Full pet profile editing lives outside this module.
type Repository interface {
	Create(ctx context.Context, p *Pet) error
	GetByID(ctx context.Context, id string) (*Pet, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*Pet, error)
	Delete(ctx context.Context, id string) error // ErrNotFound if absent
}
