// internal/domain/reminder/reminder.go
package reminder

import (
	"strings"
	"time"
)

// Recurrence is the repeat policy of a reminder.
type Recurrence string

const (
	RecurrenceOnce   Recurrence = "once"
	RecurrenceDaily  Recurrence = "daily"
	RecurrenceWeekly Recurrence = "weekly"
)

// Valid reports whether r is one of the known recurrence values.
func (r Recurrence) Valid() bool {
	switch r {
	case RecurrenceOnce, RecurrenceDaily, RecurrenceWeekly:
		return true
	}
	return false
}

// ParseRecurrence normalizes user input. Empty input means once.
func ParseRecurrence(s string) (Recurrence, bool) {
	r := Recurrence(strings.ToLower(strings.TrimSpace(s)))
	if r == "" {
		return RecurrenceOnce, true
	}
	return r, r.Valid()
}

// Category is advisory only; it never influences scheduling.
type Category string

const (
	CategoryVaccine    Category = "vaccine"
	CategoryMedication Category = "medication"
	CategoryWalk       Category = "walk"
	CategoryVetVisit   Category = "vet-visit"
	CategoryGrooming   Category = "grooming"
	CategoryOther      Category = "other"
)

// Valid reports whether c is a known category. The empty category is allowed.
func (c Category) Valid() bool {
	switch c {
	case "", CategoryVaccine, CategoryMedication, CategoryWalk, CategoryVetVisit, CategoryGrooming, CategoryOther:
		return true
	}
	return false
}

// Reminder is a pet-care task owned by a user, optionally backed by a scheduled device notification.
type Reminder struct {
	ID         string
	OwnerID    string
	PetID      string
	Title      string
	Category   Category
	FireAt     time.Time // one-shot instant, or the reference for daily/weekly triggers
	Recurrence Recurrence
	Notes      string
	Done       bool

	// NotificationHandle is empty when nothing is scheduled for this reminder.
	NotificationHandle string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Scheduled reports whether the reminder currently holds a notification handle.
func (r *Reminder) Scheduled() bool {
	return r.NotificationHandle != ""
}

// Clone returns a copy safe to hand across goroutines.
func (r *Reminder) Clone() *Reminder {
	if r == nil {
		return nil
	}
	cp := *r
	return &cp
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Title      *string
	Category   *Category
	FireAt     *time.Time
	Recurrence *Recurrence
	Notes      *string
	Done       *bool

	// NotificationHandle is written by the lifecycle coordinator only.
	// A pointer to "" clears the handle.
	NotificationHandle *string
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Category == nil && p.FireAt == nil && p.Recurrence == nil &&
		p.Notes == nil && p.Done == nil && p.NotificationHandle == nil
}

// TouchesSchedule reports whether applying p to current changes title, fireAt or recurrence.
func (p Patch) TouchesSchedule(current *Reminder) bool {
	if p.Title != nil && *p.Title != current.Title {
		return true
	}
	if p.FireAt != nil && !p.FireAt.Equal(current.FireAt) {
		return true
	}
	if p.Recurrence != nil && *p.Recurrence != current.Recurrence {
		return true
	}
	return false
}

// Apply writes the patch onto r. Timestamps are the store's concern.
func (p Patch) Apply(r *Reminder) {
	if p.Title != nil {
		r.Title = *p.Title
	}
	if p.Category != nil {
		r.Category = *p.Category
	}
	if p.FireAt != nil {
		r.FireAt = *p.FireAt
	}
	if p.Recurrence != nil {
		r.Recurrence = *p.Recurrence
	}
	if p.Notes != nil {
		r.Notes = *p.Notes
	}
	if p.Done != nil {
		r.Done = *p.Done
	}
	if p.NotificationHandle != nil {
		r.NotificationHandle = *p.NotificationHandle
	}
}

// WithHandle returns a copy of p that sets the notification handle ("" clears it).
func (p Patch) WithHandle(handle string) Patch {
	p.NotificationHandle = &handle
	return p
}

// Scope selects the reminders a live query or listing covers.
type Scope struct {
	OwnerID       string
	PetID         string // optional
	OrderByFireAt bool
}

// Matches reports whether r falls inside the scope.
func (s Scope) Matches(r *Reminder) bool {
	if s.OwnerID != "" && r.OwnerID != s.OwnerID {
		return false
	}
	if s.PetID != "" && r.PetID != s.PetID {
		return false
	}
	return true
}

// Less orders reminders by fire time, then ID, for scopes that request ordering.
func Less(a, b *Reminder) bool {
	if !a.FireAt.Equal(b.FireAt) {
		return a.FireAt.Before(b.FireAt)
	}
	return a.ID < b.ID
}
