package app

import (
	"context"
	"testing"
	"time"

	"petcare_reminders/internal/domain/reminder"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func titles(list []*reminder.Reminder) []string {
	out := make([]string, len(list))
	for i, r := range list {
		out[i] = r.Title
	}
	return out
}

func TestLiveView_ObserveDeliversCurrentAndUpdates(t *testing.T) {
	h := newHarness(t)
	rex := h.addPet(t, alice, "Rex")
	h.addReminder(t, alice, rex.ID, "Walk", reminder.RecurrenceDaily)
	tom := h.addPet(t, bob, "Tom")
	h.addReminder(t, bob, tom.ID, "Not mine", reminder.RecurrenceDaily)

	view, err := h.live.Observe(as(alice), reminder.Scope{OrderByFireAt: true})
	require.NoError(t, err)
	defer view.Close()

	assert.Equal(t, []string{"Walk"}, titles(view.Current()))
	initial := <-view.Updates()
	assert.Equal(t, []string{"Walk"}, titles(initial))

	_, err = h.svc.CreateReminder(as(alice), CreateReminderInput{PetID: rex.ID, Title: "Pill", FireAt: time.Now().Add(time.Hour)})
	require.NoError(t, err)

	select {
	case list := <-view.Updates():
		assert.Equal(t, []string{"Pill", "Walk"}, titles(list))
	case <-time.After(time.Second):
		t.Fatal("no update after create")
	}
	assert.Equal(t, []string{"Pill", "Walk"}, titles(view.Current()))
}

func TestLiveView_SlowReaderSeesLatestList(t *testing.T) {
	h := newHarness(t)
	rex := h.addPet(t, alice, "Rex")

	view, err := h.live.Observe(as(alice), reminder.Scope{PetID: rex.ID})
	require.NoError(t, err)
	defer view.Close()

	// Create writes twice per reminder (document, then handle); nobody reads in between.
	h.addReminder(t, alice, rex.ID, "A", reminder.RecurrenceOnce)
	h.addReminder(t, alice, rex.ID, "B", reminder.RecurrenceOnce)
	h.addReminder(t, alice, rex.ID, "C", reminder.RecurrenceOnce)

	list := <-view.Updates()
	require.Len(t, list, 3)
	for _, r := range list {
		assert.True(t, r.Scheduled())
	}
	select {
	case extra := <-view.Updates():
		t.Fatalf("unexpected queued update: %v", titles(extra))
	default:
	}
}

func TestLiveView_CloseIsIdempotent(t *testing.T) {
	h := newHarness(t)
	rex := h.addPet(t, alice, "Rex")
	view, err := h.live.Observe(as(alice), reminder.Scope{})
	require.NoError(t, err)

	view.Close()
	view.Close()

	// Drain the initial list; the channel must then be closed.
	for range view.Updates() {
	}
	h.addReminder(t, alice, rex.ID, "After close", reminder.RecurrenceDaily)
	assert.Empty(t, view.Current())
}

func TestLiveView_RequiresOwner(t *testing.T) {
	h := newHarness(t)

	_, err := h.live.Observe(context.Background(), reminder.Scope{})
	assert.ErrorIs(t, err, reminder.ErrAuth)

	_, err = h.live.Observe(as(alice), reminder.Scope{OwnerID: bob})
	assert.ErrorIs(t, err, reminder.ErrAuth)
}
