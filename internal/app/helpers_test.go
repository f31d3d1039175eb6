package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"petcare_reminders/internal/app/apptest"
	"petcare_reminders/internal/domain/auth"
	"petcare_reminders/internal/domain/pet"
	"petcare_reminders/internal/domain/reminder"
	"petcare_reminders/internal/infra/memstore"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

const (
	alice = "owner-alice"
	bob   = "owner-bob"
	admin = "owner-admin"
)

type harness struct {
	store     *flakyStore
	mem       *memstore.ReminderStore
	pets      *memstore.PetStore
	records   *memstore.RecordStore
	scheduler *apptest.RecordingScheduler
	svc       *ReminderService
	cascade   *CascadeService
	live      *LiveView
	logs      *logtest.Hook
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	entry := logrus.NewEntry(logger)

	mem := memstore.NewReminderStore()
	store := &flakyStore{Repository: mem, failDelete: make(map[string]error)}
	pets := memstore.NewPetStore()
	records := memstore.NewRecordStore()
	sched := apptest.NewRecordingScheduler()
	authn := auth.ContextAuthenticator{}

	svc := NewReminderService(store, pets, sched, authn, admin, entry, time.Second)
	return &harness{
		store:     store,
		mem:       mem,
		pets:      pets,
		records:   records,
		scheduler: sched,
		svc:       svc,
		cascade:   NewCascadeService(pets, records, store, svc, authn, entry),
		live:      NewLiveView(store, authn, entry),
		logs:      hook,
	}
}

func as(owner string) context.Context {
	return auth.WithOwner(context.Background(), owner)
}

func (h *harness) addPet(t *testing.T, owner, name string) *pet.Pet {
	t.Helper()
	p := &pet.Pet{OwnerID: owner, Name: name, Species: "dog"}
	require.NoError(t, h.pets.Create(context.Background(), p))
	return p
}

func (h *harness) addReminder(t *testing.T, owner, petID, title string, rec reminder.Recurrence) *reminder.Reminder {
	t.Helper()
	r, err := h.svc.CreateReminder(as(owner), CreateReminderInput{
		PetID:      petID,
		Title:      title,
		FireAt:     time.Now().Add(24 * time.Hour),
		Recurrence: rec,
	})
	require.NoError(t, err)
	require.True(t, r.Scheduled())
	return r
}

// assertSingleHandle checks that the stored handle is the only outstanding trigger for the reminder.
func (h *harness) assertSingleHandle(t *testing.T, id string) {
	t.Helper()
	stored, err := h.mem.GetByID(context.Background(), id)
	require.NoError(t, err)
	live := h.scheduler.OutstandingFor(id)
	if stored.NotificationHandle == "" {
		require.Empty(t, live, "unscheduled reminder still has triggers")
		return
	}
	require.Len(t, live, 1)
	require.Equal(t, stored.NotificationHandle, string(live[0]))
}

// flakyStore injects store failures around a working repository.
type flakyStore struct {
	reminder.Repository

	mu          sync.Mutex
	failDelete  map[string]error
	failUpdate  error
	afterCreate func(id string)
}

// AfterCreate runs fn once the document is written and before Create returns.
func (f *flakyStore) AfterCreate(fn func(id string)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.afterCreate = fn
}

func (f *flakyStore) Create(ctx context.Context, r *reminder.Reminder) error {
	if err := f.Repository.Create(ctx, r); err != nil {
		return err
	}
	f.mu.Lock()
	fn := f.afterCreate
	f.mu.Unlock()
	if fn != nil {
		fn(r.ID)
	}
	return nil
}

func (f *flakyStore) FailDelete(id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failDelete, id)
		return
	}
	f.failDelete[id] = err
}

func (f *flakyStore) FailUpdate(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failUpdate = err
}

func (f *flakyStore) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	err := f.failDelete[id]
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Repository.Delete(ctx, id)
}

func (f *flakyStore) Update(ctx context.Context, id string, patch reminder.Patch) (*reminder.Reminder, error) {
	f.mu.Lock()
	err := f.failUpdate
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.Repository.Update(ctx, id, patch)
}

// holders counts the goroutines holding or waiting for key.
func (k *keyedLock) holders(key string) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	if m, ok := k.locks[key]; ok {
		return m.refs
	}
	return 0
}
