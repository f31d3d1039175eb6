// Package memstore keeps every repository in process memory. It backs the dev mode
// (STORE_BACKEND=memory) and the service tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"petcare_reminders/internal/domain/reminder"

	"github.com/google/uuid"
)

// ReminderStore implements reminder.Repository. Subscribers are notified synchronously,
// in mutation order, after every write.
type ReminderStore struct {
	// fanMu serializes write+fan-out so subscribers never see an older list after a newer one.
	fanMu sync.Mutex
	mu    sync.RWMutex
	items map[string]*reminder.Reminder
	subs  map[int]*subscription
	next  int

	now func() time.Time
}

func NewReminderStore() *ReminderStore {
	return &ReminderStore{
		items: make(map[string]*reminder.Reminder),
		subs:  make(map[int]*subscription),
		now:   time.Now,
	}
}

func (s *ReminderStore) Create(ctx context.Context, r *reminder.Reminder) error {
	if err := reminder.ValidateNew(r); err != nil {
		return err
	}
	s.fanMu.Lock()
	defer s.fanMu.Unlock()

	s.mu.Lock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Recurrence == "" {
		r.Recurrence = reminder.RecurrenceOnce
	}
	now := s.now()
	r.CreatedAt, r.UpdatedAt = now, now
	s.items[r.ID] = r.Clone()
	s.mu.Unlock()

	s.fanOut(r)
	return nil
}

func (s *ReminderStore) GetByID(ctx context.Context, id string) (*reminder.Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.items[id]
	if !ok {
		return nil, reminder.ErrNotFound
	}
	return r.Clone(), nil
}

func (s *ReminderStore) Update(ctx context.Context, id string, patch reminder.Patch) (*reminder.Reminder, error) {
	s.fanMu.Lock()
	defer s.fanMu.Unlock()

	s.mu.Lock()
	r, ok := s.items[id]
	if !ok {
		s.mu.Unlock()
		return nil, reminder.ErrNotFound
	}
	before := r.Clone()
	patch.Apply(r)
	r.UpdatedAt = s.now()
	out := r.Clone()
	s.mu.Unlock()

	s.fanOut(before, out)
	return out, nil
}

func (s *ReminderStore) Delete(ctx context.Context, id string) error {
	s.fanMu.Lock()
	defer s.fanMu.Unlock()

	s.mu.Lock()
	r, ok := s.items[id]
	if !ok {
		s.mu.Unlock()
		return reminder.ErrNotFound
	}
	delete(s.items, id)
	s.mu.Unlock()

	s.fanOut(r)
	return nil
}

func (s *ReminderStore) ListByOwner(ctx context.Context, ownerID string) ([]*reminder.Reminder, error) {
	return s.list(reminder.Scope{OwnerID: ownerID}), nil
}

func (s *ReminderStore) ListByPet(ctx context.Context, petID string) ([]*reminder.Reminder, error) {
	return s.list(reminder.Scope{PetID: petID}), nil
}

func (s *ReminderStore) ListAll(ctx context.Context) ([]*reminder.Reminder, error) {
	return s.list(reminder.Scope{}), nil
}

func (s *ReminderStore) list(scope reminder.Scope) []*reminder.Reminder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*reminder.Reminder, 0)
	for _, r := range s.items {
		if scope.Matches(r) {
			out = append(out, r.Clone())
		}
	}
	if scope.OrderByFireAt {
		sort.Slice(out, func(i, j int) bool { return reminder.Less(out[i], out[j]) })
	}
	return out
}

type subscription struct {
	scope    reminder.Scope
	onChange func([]*reminder.Reminder)
	stop     func()
}

func (s *subscription) Stop() { s.stop() }

func (s *ReminderStore) Subscribe(ctx context.Context, scope reminder.Scope, onChange func([]*reminder.Reminder)) (reminder.Subscription, error) {
	s.fanMu.Lock()
	defer s.fanMu.Unlock()

	s.mu.Lock()
	id := s.next
	s.next++
	sub := &subscription{scope: scope, onChange: onChange}
	var once sync.Once
	sub.stop = func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
	s.subs[id] = sub
	s.mu.Unlock()

	onChange(s.list(scope))
	return sub, nil
}

// fanOut re-delivers the full list to every subscription whose scope covers one of changed.
// Callers hold fanMu but not mu.
func (s *ReminderStore) fanOut(changed ...*reminder.Reminder) {
	s.mu.RLock()
	targets := make([]*subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		for _, r := range changed {
			if sub.scope.Matches(r) {
				targets = append(targets, sub)
				break
			}
		}
	}
	s.mu.RUnlock()

	for _, sub := range targets {
		sub.onChange(s.list(sub.scope))
	}
}
