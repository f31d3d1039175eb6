package firestore

import (
	"testing"
	"time"

	"petcare_reminders/internal/domain/reminder"

	"cloud.google.com/go/firestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReminderDoc_RoundTripKeepsZone(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	at := time.Date(2026, 3, 29, 8, 30, 0, 0, loc)

	in := &reminder.Reminder{
		OwnerID: "u1", PetID: "p1", Title: "Deworm", Category: reminder.CategoryMedication,
		FireAt: at, Recurrence: reminder.RecurrenceWeekly, NotificationHandle: "h-1",
	}
	d := toReminderDoc(in)
	assert.Equal(t, "u1", d.UserID)
	assert.Equal(t, "weekly", d.Repeat)
	assert.Equal(t, "Europe/Berlin", d.DateZone)

	// Firestore hands timestamps back in UTC.
	d.Date = d.Date.UTC()
	out := d.toReminder("r1")
	assert.Equal(t, "r1", out.ID)
	assert.True(t, out.FireAt.Equal(at))
	assert.Equal(t, "Europe/Berlin", out.FireAt.Location().String())
	assert.Equal(t, 8, out.FireAt.Hour())
	assert.Equal(t, "h-1", out.NotificationHandle)
}

func TestReminderDoc_LegacyRepeatValues(t *testing.T) {
	for _, repeat := range []string{"", "none"} {
		r := reminderDoc{Repeat: repeat, Date: time.Now().UTC()}.toReminder("x")
		assert.Equal(t, reminder.RecurrenceOnce, r.Recurrence, "repeat %q", repeat)
	}
	r := reminderDoc{Repeat: "daily", Date: time.Now().UTC()}.toReminder("x")
	assert.Equal(t, reminder.RecurrenceDaily, r.Recurrence)
}

func TestPatchUpdates(t *testing.T) {
	title := "Walk"
	at := time.Date(2026, 5, 1, 7, 0, 0, 0, time.FixedZone("UTC+3", 3*3600))
	done := true

	ups := patchUpdates(reminder.Patch{Title: &title, FireAt: &at, Done: &done}.WithHandle(""))

	byPath := map[string]any{}
	for _, u := range ups {
		byPath[u.Path] = u.Value
	}
	assert.Equal(t, "Walk", byPath["title"])
	assert.Equal(t, at, byPath["date"])
	assert.Equal(t, "UTC+3", byPath["dateZone"])
	assert.Equal(t, 3*3600, byPath["dateOffset"])
	assert.Equal(t, true, byPath["done"])
	assert.Equal(t, "", byPath["notificationId"])
	assert.Equal(t, firestore.ServerTimestamp, byPath["updatedAt"])
	assert.NotContains(t, byPath, "repeat")
	assert.NotContains(t, byPath, "notes")
}

func TestPatchUpdates_EmptyPatchOnlyTouchesUpdatedAt(t *testing.T) {
	ups := patchUpdates(reminder.Patch{})
	require.Len(t, ups, 1)
	assert.Equal(t, "updatedAt", ups[0].Path)
}
