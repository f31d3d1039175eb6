package pet

import (
	"errors"
	"time"
)

// ErrNotFound is returned by pet repositories for an unknown id.
var ErrNotFound = errors.New("pet not found")

// Pet is the entity reminders and medical records hang off.
type Pet struct {
	ID        string
	OwnerID   string
	Name      string
	Species   string
	CreatedAt time.Time
	UpdatedAt time.Time
}
