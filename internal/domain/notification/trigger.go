package notification

import (
	"fmt"
	"time"

	"petcare_reminders/internal/domain/reminder"
)

// Trigger is the firing rule derived from a reminder's fire time and recurrence.
// Daily and weekly triggers keep only the time of day (and weekday) of FireAt;
// the date part is irrelevant to when they fire.
type Trigger struct {
	Recurrence reminder.Recurrence
	At         time.Time // one-shot instant
	Hour       int
	Minute     int
	Weekday    time.Weekday // weekly only
	Location   *time.Location
}

// TriggerFor derives the trigger for fireAt in fireAt's own location.
func TriggerFor(fireAt time.Time, rec reminder.Recurrence) (Trigger, error) {
	if fireAt.IsZero() {
		return Trigger{}, fmt.Errorf("%w: fire time is required", reminder.ErrValidation)
	}
	if rec == "" {
		rec = reminder.RecurrenceOnce
	}
	if !rec.Valid() {
		return Trigger{}, fmt.Errorf("%w: unknown recurrence %q", reminder.ErrValidation, rec)
	}
	return Trigger{
		Recurrence: rec,
		At:         fireAt,
		Hour:       fireAt.Hour(),
		Minute:     fireAt.Minute(),
		Weekday:    fireAt.Weekday(),
		Location:   fireAt.Location(),
	}, nil
}

// Repeats reports whether the trigger loops back to scheduled after firing.
func (t Trigger) Repeats() bool {
	return t.Recurrence == reminder.RecurrenceDaily || t.Recurrence == reminder.RecurrenceWeekly
}

// CronSpec renders the repeating trigger in standard five-field cron syntax.
// One-shot triggers have no cron form.
func (t Trigger) CronSpec() string {
	switch t.Recurrence {
	case reminder.RecurrenceDaily:
		return fmt.Sprintf("%d %d * * *", t.Minute, t.Hour)
	case reminder.RecurrenceWeekly:
		return fmt.Sprintf("%d %d * * %d", t.Minute, t.Hour, int(t.Weekday))
	default:
		return ""
	}
}

// Next returns the first firing strictly after the given instant, or the zero time
// when a one-shot has already passed.
func (t Trigger) Next(after time.Time) time.Time {
	if t.Recurrence == reminder.RecurrenceOnce {
		if t.At.After(after) {
			return t.At
		}
		return time.Time{}
	}

	loc := t.Location
	if loc == nil {
		loc = time.Local
	}
	local := after.In(loc)
	offset := 0
	if t.Recurrence == reminder.RecurrenceWeekly {
		offset = (int(t.Weekday) - int(local.Weekday()) + 7) % 7
	}
	step := 1
	if t.Recurrence == reminder.RecurrenceWeekly {
		step = 7
	}

	candidate := time.Date(local.Year(), local.Month(), local.Day()+offset, t.Hour, t.Minute, 0, 0, loc)
	if !candidate.After(after) {
		candidate = time.Date(local.Year(), local.Month(), local.Day()+offset+step, t.Hour, t.Minute, 0, 0, loc)
	}
	return candidate
}
