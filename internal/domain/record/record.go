package record

import "time"

// Record is a medical record entry for a pet (vaccination, checkup, prescription...).
type Record struct {
	ID         string
	OwnerID    string
	PetID      string
	Title      string
	Kind       string
	RecordedAt time.Time
	CreatedAt  time.Time
}
