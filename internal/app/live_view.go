package app

import (
	"context"
	"fmt"
	"sync"

	"petcare_reminders/internal/domain/auth"
	"petcare_reminders/internal/domain/reminder"

	"github.com/sirupsen/logrus"
)

// LiveView hands out live, owner-scoped reminder lists to UI surfaces.
type LiveView struct {
	store  reminder.Repository
	auth   auth.Authenticator
	logger *logrus.Entry
}

func NewLiveView(store reminder.Repository, authenticator auth.Authenticator, logger *logrus.Entry) *LiveView {
	return &LiveView{store: store, auth: authenticator, logger: logger}
}

// View is one live query. Updates never blocks the store: a slow reader only sees the latest list.
type View struct {
	mu      sync.Mutex
	current []*reminder.Reminder
	updates chan []*reminder.Reminder
	closed  bool

	sub       reminder.Subscription
	closeOnce sync.Once
}

// Observe starts a live query. The scope is always narrowed to the signed-in owner.
// Current is populated when Observe returns.
func (lv *LiveView) Observe(ctx context.Context, scope reminder.Scope) (*View, error) {
	ownerID, ok := lv.auth.CurrentOwnerID(ctx)
	if !ok {
		return nil, reminder.ErrAuth
	}
	if scope.OwnerID != "" && scope.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: cannot observe another owner's reminders", reminder.ErrAuth)
	}
	scope.OwnerID = ownerID

	v := &View{updates: make(chan []*reminder.Reminder, 1)}
	sub, err := lv.store.Subscribe(ctx, scope, v.publish)
	if err != nil {
		return nil, fmt.Errorf("subscribe to reminders: %w", err)
	}
	v.sub = sub

	lv.logger.WithFields(logrus.Fields{"owner_id": ownerID, "pet_id": scope.PetID}).Debug("Live view opened")
	return v, nil
}

func (v *View) publish(list []*reminder.Reminder) {
	snapshot := make([]*reminder.Reminder, len(list))
	for i, r := range list {
		snapshot[i] = r.Clone()
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.current = snapshot
	select {
	case <-v.updates:
	default:
	}
	v.updates <- snapshot
}

// Current returns the most recent full list.
func (v *View) Current() []*reminder.Reminder {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// Updates yields every new list; the channel is closed by Close.
func (v *View) Updates() <-chan []*reminder.Reminder {
	return v.updates
}

// Close stops the live query. Safe to call more than once.
func (v *View) Close() {
	v.closeOnce.Do(func() {
		if v.sub != nil {
			v.sub.Stop()
		}
		v.mu.Lock()
		v.closed = true
		close(v.updates)
		v.mu.Unlock()
	})
}
