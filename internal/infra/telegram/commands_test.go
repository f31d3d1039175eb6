package telegram

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"petcare_reminders/internal/app"
	"petcare_reminders/internal/app/apptest"
	"petcare_reminders/internal/domain/auth"
	"petcare_reminders/internal/domain/pet"
	"petcare_reminders/internal/domain/reminder"
	"petcare_reminders/internal/infra/memstore"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	owner = "1001"
	admin = "9000"
)

type botFixture struct {
	h         *Handlers
	store     *memstore.ReminderStore
	pets      *memstore.PetStore
	scheduler *apptest.RecordingScheduler
}

func newBotFixture(t *testing.T) *botFixture {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	entry := logrus.NewEntry(logger)

	store := memstore.NewReminderStore()
	pets := memstore.NewPetStore()
	records := memstore.NewRecordStore()
	sched := apptest.NewRecordingScheduler()
	authn := auth.ContextAuthenticator{}

	svc := app.NewReminderService(store, pets, sched, authn, admin, entry, time.Second)
	h := NewHandlers(
		svc,
		app.NewCascadeService(pets, records, store, svc, authn, entry),
		app.NewLiveView(store, authn, entry),
		pets,
		memstore.NewPermissionStore(true),
		admin,
		time.UTC,
		entry,
	)
	return &botFixture{h: h, store: store, pets: pets, scheduler: sched}
}

func ownerCtx(id string) context.Context {
	return auth.WithOwner(context.Background(), id)
}

func (f *botFixture) pet(t *testing.T, name string) *pet.Pet {
	t.Helper()
	p := &pet.Pet{OwnerID: owner, Name: name}
	require.NoError(t, f.pets.Create(context.Background(), p))
	return p
}

func future() (string, string) {
	at := time.Now().UTC().Add(48 * time.Hour)
	return at.Format("2006-01-02"), at.Format("15:04")
}

func TestParseAddArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		title   string
		rec     reminder.Recurrence
		wantErr bool
	}{
		{name: "one-shot", args: []string{"p1", "2030-01-02", "09:30", "Vet", "checkup"}, title: "Vet checkup", rec: reminder.RecurrenceOnce},
		{name: "daily", args: []string{"p1", "2030-01-02", "09:30", "daily", "Pill"}, title: "Pill", rec: reminder.RecurrenceDaily},
		{name: "recurrence word as whole title", args: []string{"p1", "2030-01-02", "09:30", "weekly"}, title: "weekly", rec: reminder.RecurrenceOnce},
		{name: "bad time", args: []string{"p1", "2030-01-02", "9h", "Walk"}, wantErr: true},
		{name: "too short", args: []string{"p1", "2030-01-02", "09:30"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := parseAddArgs(tt.args, time.UTC)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, reminder.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "p1", in.PetID)
			assert.Equal(t, tt.title, in.Title)
			assert.Equal(t, tt.rec, in.Recurrence)
			assert.Equal(t, time.Date(2030, 1, 2, 9, 30, 0, 0, time.UTC), in.FireAt)
		})
	}
}

func TestParseEditArgs(t *testing.T) {
	id, p, err := parseEditArgs([]string{"r1", "title", "Evening", "walk"}, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "r1", id)
	require.NotNil(t, p.Title)
	assert.Equal(t, "Evening walk", *p.Title)

	_, p, err = parseEditArgs([]string{"r1", "at", "2030-03-04", "18:00"}, time.UTC)
	require.NoError(t, err)
	require.NotNil(t, p.FireAt)
	assert.Equal(t, 18, p.FireAt.Hour())

	_, p, err = parseEditArgs([]string{"r1", "repeat", "Weekly"}, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, reminder.RecurrenceWeekly, *p.Recurrence)

	for _, bad := range [][]string{
		{"r1", "repeat", "monthly"},
		{"r1", "at", "2030-03-04"},
		{"r1", "colour", "red"},
		{"r1"},
	} {
		_, _, err := parseEditArgs(bad, time.UTC)
		assert.ErrorIs(t, err, reminder.ErrValidation, "%v", bad)
	}
}

func TestCommands_AddListDone(t *testing.T) {
	f := newBotFixture(t)
	ctx := ownerCtx(owner)
	rex := f.pet(t, "Rex")
	date, clock := future()

	reply, err := f.h.add(ctx, owner, []string{rex.ID, date, clock, "daily", "Heart", "pill"})
	require.NoError(t, err)
	assert.Contains(t, reply, "Reminder set: Heart pill")

	list, err := f.store.ListByOwner(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 1)
	id := list[0].ID
	assert.Len(t, f.scheduler.OutstandingFor(id), 1)

	reply, err = f.h.list(ctx, owner, nil)
	require.NoError(t, err)
	assert.Contains(t, reply, "Heart pill")
	assert.Contains(t, reply, "(daily)")

	reply, err = f.h.done(ctx, owner, []string{id})
	require.NoError(t, err)
	assert.Equal(t, "Done: Heart pill", reply)
	assert.Empty(t, f.scheduler.OutstandingFor(id))

	reply, err = f.h.list(ctx, owner, []string{rex.ID})
	require.NoError(t, err)
	assert.Contains(t, reply, "[done]")
}

func TestCommands_AddPastDue(t *testing.T) {
	f := newBotFixture(t)
	rex := f.pet(t, "Rex")

	_, err := f.h.add(ownerCtx(owner), owner, []string{rex.ID, "2001-01-01", "08:00", "Old"})
	require.Error(t, err)
	assert.Equal(t, "That time is already in the past.", userMessage(err))
}

func TestCommands_AddReportsUnscheduledReminder(t *testing.T) {
	f := newBotFixture(t)
	rex := f.pet(t, "Rex")
	f.scheduler.FailNext(apptest.OpSchedule, reminder.ErrPermissionDenied)
	date, clock := future()

	reply, err := f.h.add(ownerCtx(owner), owner, []string{rex.ID, date, clock, "Bath"})
	require.NoError(t, err)
	assert.Contains(t, reply, "not scheduled")
	assert.Contains(t, reply, "/notifications on")
}

func TestCommands_DeletePetCascades(t *testing.T) {
	f := newBotFixture(t)
	ctx := ownerCtx(owner)
	rex := f.pet(t, "Rex")
	date, clock := future()
	_, err := f.h.add(ctx, owner, []string{rex.ID, date, clock, "Walk"})
	require.NoError(t, err)

	reply, err := f.h.deletePet(ctx, owner, []string{rex.ID})
	require.NoError(t, err)
	assert.Contains(t, reply, "Pet deleted")

	left, err := f.store.ListByPet(ctx, rex.ID)
	require.NoError(t, err)
	assert.Empty(t, left)
	assert.Empty(t, f.scheduler.Outstanding())
}

func TestCommands_Notifications(t *testing.T) {
	f := newBotFixture(t)
	ctx := ownerCtx(owner)

	reply, err := f.h.notifications(ctx, owner, []string{"off"})
	require.NoError(t, err)
	assert.Contains(t, reply, "now off")

	reply, err = f.h.notifications(ctx, owner, nil)
	require.NoError(t, err)
	assert.Equal(t, "Notifications are off.", reply)

	_, err = f.h.notifications(ctx, owner, []string{"maybe"})
	assert.ErrorIs(t, err, reminder.ErrValidation)
}

func TestCommands_ResetSchedulesIsAdminOnly(t *testing.T) {
	f := newBotFixture(t)
	rex := f.pet(t, "Rex")
	date, clock := future()
	_, err := f.h.add(ownerCtx(owner), owner, []string{rex.ID, date, clock, "daily", "Feed"})
	require.NoError(t, err)

	_, err = f.h.resetSchedules(ownerCtx(owner), owner, nil)
	assert.ErrorIs(t, err, reminder.ErrAuth)
	assert.Zero(t, f.scheduler.Count(apptest.OpCancelAll))

	reply, err := f.h.resetSchedules(ownerCtx(admin), admin, nil)
	require.NoError(t, err)
	assert.Contains(t, reply, "rescheduled 1")
	assert.Equal(t, 1, f.scheduler.Count(apptest.OpCancelAll))
	assert.Len(t, f.scheduler.Outstanding(), 1)
}

func TestHelp_ShowsAdminSection(t *testing.T) {
	f := newBotFixture(t)
	reply, err := f.h.help(context.Background(), owner, nil)
	require.NoError(t, err)
	assert.NotContains(t, reply, "/reset_schedules")

	reply, err = f.h.help(context.Background(), admin, nil)
	require.NoError(t, err)
	assert.Contains(t, reply, "/reset_schedules")
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{usageError("/done <id>"), "Usage: /done <id>"},
		{fmt.Errorf("load: %w", reminder.ErrNotFound), "Not found."},
		{pet.ErrNotFound, "Not found."},
		{reminder.ErrAuth, "You are not allowed to do that."},
		{fmt.Errorf("x: %w", reminder.ErrTimeout), "The scheduler did not answer in time. Please try again."},
		{&app.CascadeError{PetID: "p", Reminders: map[string]error{"r": errors.New("boom")}}, "The pet is deleted, but some of its reminders or records are left. Run /deletepet again to finish."},
		{errors.New("disk on fire"), "Something went wrong. Please try again later."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, userMessage(tt.err), tt.err.Error())
	}
}
