package database

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"testing"
	"time"

	"petcare_reminders/internal/domain/pet"
	"petcare_reminders/internal/domain/record"
	"petcare_reminders/internal/domain/reminder"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestDB connects to TEST_DATABASE_URL and applies the schema; the test is skipped without it.
func openTestDB(t *testing.T) (*sql.DB, string) {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := NewPostgresConnection(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, EnsureSchema(context.Background(), db))
	return db, dsn
}

func TestPostgresReminderRepository_CRUD(t *testing.T) {
	db, _ := openTestDB(t)
	repo := NewPostgresReminderRepository(db, nil)
	ctx := context.Background()
	owner := "it-" + uuid.NewString()

	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	at := time.Date(2031, 3, 10, 8, 30, 0, 0, berlin)

	r := &reminder.Reminder{OwnerID: owner, PetID: "p1", Title: "Walk", FireAt: at, Recurrence: reminder.RecurrenceWeekly}
	require.NoError(t, repo.Create(ctx, r))
	t.Cleanup(func() { _ = repo.Delete(ctx, r.ID) })

	got, err := repo.GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, got.FireAt.Equal(at))
	assert.Equal(t, "Europe/Berlin", got.FireAt.Location().String())
	assert.Equal(t, reminder.RecurrenceWeekly, got.Recurrence)

	updated, err := repo.Update(ctx, r.ID, reminder.Patch{Notes: ptr("bring treats")}.WithHandle("h1"))
	require.NoError(t, err)
	assert.Equal(t, "bring treats", updated.Notes)
	assert.Equal(t, "h1", updated.NotificationHandle)
	assert.Equal(t, "Walk", updated.Title)

	list, err := repo.ListByOwner(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, repo.Delete(ctx, r.ID))
	assert.ErrorIs(t, repo.Delete(ctx, r.ID), reminder.ErrNotFound)
	_, err = repo.GetByID(ctx, r.ID)
	assert.ErrorIs(t, err, reminder.ErrNotFound)
	_, err = repo.Update(ctx, r.ID, reminder.Patch{Notes: ptr("x")})
	assert.ErrorIs(t, err, reminder.ErrNotFound)
}

func TestPostgresReminderRepository_Subscribe(t *testing.T) {
	db, dsn := openTestDB(t)
	logger, _ := logtest.NewNullLogger()
	hub, err := NewChangeHub(dsn, logrus.NewEntry(logger))
	require.NoError(t, err)
	t.Cleanup(func() { hub.Close() })

	repo := NewPostgresReminderRepository(db, hub)
	ctx := context.Background()
	owner := "it-" + uuid.NewString()

	var mu sync.Mutex
	var last []*reminder.Reminder
	calls := 0
	sub, err := repo.Subscribe(ctx, reminder.Scope{OwnerID: owner, OrderByFireAt: true}, func(list []*reminder.Reminder) {
		mu.Lock()
		defer mu.Unlock()
		last = list
		calls++
	})
	require.NoError(t, err)
	defer sub.Stop()

	mu.Lock()
	assert.Equal(t, 1, calls)
	assert.Empty(t, last)
	mu.Unlock()

	r := &reminder.Reminder{OwnerID: owner, PetID: "p1", Title: "Pill", FireAt: time.Now().Add(time.Hour)}
	require.NoError(t, repo.Create(ctx, r))
	t.Cleanup(func() { _ = repo.Delete(ctx, r.ID) })

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(last) == 1 && last[0].ID == r.ID
	}, 5*time.Second, 50*time.Millisecond)
}

func TestPostgresPetAndRecordRepositories(t *testing.T) {
	db, _ := openTestDB(t)
	pets := NewPostgresPetRepository(db)
	records := NewPostgresRecordRepository(db)
	ctx := context.Background()
	owner := "it-" + uuid.NewString()

	p := &pet.Pet{OwnerID: owner, Name: "Rex", Species: "dog"}
	require.NoError(t, pets.Create(ctx, p))

	require.NoError(t, records.Create(ctx, &record.Record{OwnerID: owner, PetID: p.ID, Title: "Rabies", Kind: "vaccination"}))
	require.NoError(t, records.Create(ctx, &record.Record{OwnerID: owner, PetID: p.ID, Title: "Checkup", Kind: "visit"}))

	recs, err := records.ListByPet(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	n, err := records.DeleteByPet(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, pets.Delete(ctx, p.ID))
	assert.ErrorIs(t, pets.Delete(ctx, p.ID), pet.ErrNotFound)
	_, err = pets.GetByID(ctx, p.ID)
	assert.ErrorIs(t, err, pet.ErrNotFound)
}

func TestPostgresPermissionRepository(t *testing.T) {
	db, _ := openTestDB(t)
	perms := NewPostgresPermissionRepository(db, true)
	ctx := context.Background()
	owner := "it-" + uuid.NewString()

	ok, err := perms.HasNotificationPermission(ctx, owner)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = perms.RequestNotificationPermission(ctx, owner)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, perms.SetNotificationPermission(ctx, owner, false))
	ok, err = perms.RequestNotificationPermission(ctx, owner)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, perms.RegisterDeviceToken(ctx, owner, "tok-1"))
	require.NoError(t, perms.RegisterDeviceToken(ctx, owner, "tok-1"))
	tokens, err := perms.DeviceTokens(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, []string{"tok-1"}, tokens)
}
