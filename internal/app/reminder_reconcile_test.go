package app

import (
	"context"
	"testing"
	"time"

	"petcare_reminders/internal/app/apptest"
	"petcare_reminders/internal/domain/reminder"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcile_AfterRestart(t *testing.T) {
	h := newHarness(t)
	ctx := as(alice)
	rex := h.addPet(t, alice, "Rex")
	now := time.Now()

	h.scheduler.FailNext(apptest.OpSchedule, reminder.ErrPermissionDenied)
	unscheduled, err := h.svc.CreateReminder(ctx, CreateReminderInput{PetID: rex.ID, Title: "Ear drops", FireAt: now.Add(time.Hour)})
	require.Error(t, err)
	h.scheduler.FailNext(apptest.OpSchedule, nil)

	daily := h.addReminder(t, alice, rex.ID, "Walk", reminder.RecurrenceDaily)
	soon, err := h.svc.CreateReminder(ctx, CreateReminderInput{PetID: rex.ID, Title: "Pill", FireAt: now.Add(time.Hour)})
	require.NoError(t, err)
	later, err := h.svc.CreateReminder(ctx, CreateReminderInput{PetID: rex.ID, Title: "Vet", FireAt: now.Add(3 * time.Hour)})
	require.NoError(t, err)
	doneWithHandle := h.addReminder(t, alice, rex.ID, "Bath", reminder.RecurrenceOnce)
	_, err = h.mem.Update(context.Background(), doneWithHandle.ID, reminder.Patch{Done: ptr(true)})
	require.NoError(t, err)

	// Restart: the scheduler forgot every trigger and 90 minutes passed.
	h.scheduler.Forget()
	h.svc.now = func() time.Time { return now.Add(90 * time.Minute) }

	report, err := h.svc.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, report.Checked)
	assert.Equal(t, 2, report.Rescheduled)
	assert.Equal(t, 2, report.HandlesCleared)
	assert.Equal(t, 1, report.PastDue)
	assert.Zero(t, report.OrphansRemoved)
	assert.Empty(t, report.Failed)

	for _, id := range []string{unscheduled.ID, daily.ID, soon.ID, later.ID, doneWithHandle.ID} {
		h.assertSingleHandle(t, id)
	}
	stored, _ := h.mem.GetByID(context.Background(), soon.ID)
	assert.False(t, stored.Scheduled(), "fired one-shot handle is cleared")
	stored, _ = h.mem.GetByID(context.Background(), later.ID)
	assert.True(t, stored.Scheduled())

	// A second pass has nothing left to do.
	report, err = h.svc.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Rescheduled)
	assert.Zero(t, report.HandlesCleared)
}

func TestReconcile_LiveHandlesAreLeftAlone(t *testing.T) {
	h := newHarness(t)
	rex := h.addPet(t, alice, "Rex")
	r := h.addReminder(t, alice, rex.ID, "Walk", reminder.RecurrenceWeekly)
	ops := len(h.scheduler.Ops())

	report, err := h.svc.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Checked)
	assert.Len(t, h.scheduler.Ops(), ops)
	h.assertSingleHandle(t, r.ID)
}

func TestReconcile_RecordsFailures(t *testing.T) {
	h := newHarness(t)
	rex := h.addPet(t, alice, "Rex")
	r := h.addReminder(t, alice, rex.ID, "Walk", reminder.RecurrenceDaily)
	h.scheduler.Forget()
	h.scheduler.FailNext(apptest.OpSchedule, reminder.ErrPermissionDenied)

	report, err := h.svc.Reconcile(context.Background())
	require.NoError(t, err)
	require.Contains(t, report.Failed, r.ID)
	assert.ErrorIs(t, report.Failed[r.ID], reminder.ErrPermissionDenied)
}
