package database

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"petcare_reminders/internal/domain/reminder"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// ReminderChannel is the NOTIFY channel written by the reminders trigger.
const ReminderChannel = "reminder_changes"

const (
	minReconnectInterval = 10 * time.Second
	maxReconnectInterval = time.Minute
	listenerPingInterval = 90 * time.Second
	refreshTimeout       = 15 * time.Second
)

type changePayload struct {
	OwnerID string `json:"owner_id"`
	PetID   string `json:"pet_id"`
}

func parsePayload(extra string) (changePayload, error) {
	var p changePayload
	if err := json.Unmarshal([]byte(extra), &p); err != nil {
		return p, fmt.Errorf("invalid %s payload %q: %w", ReminderChannel, extra, err)
	}
	return p, nil
}

// ChangeHub owns one LISTEN connection and fans reminder change notifications out to
// live queries, which re-run their query on each relevant change.
type ChangeHub struct {
	listener *pq.Listener
	logger   *logrus.Entry

	mu   sync.Mutex
	subs map[int]*pgSubscription
	next int

	done chan struct{}
	wg   sync.WaitGroup
}

func NewChangeHub(dataSourceName string, logger *logrus.Entry) (*ChangeHub, error) {
	h := &ChangeHub{
		logger: logger,
		subs:   make(map[int]*pgSubscription),
		done:   make(chan struct{}),
	}
	h.listener = pq.NewListener(dataSourceName, minReconnectInterval, maxReconnectInterval, h.onEvent)
	if err := h.listener.Listen(ReminderChannel); err != nil {
		h.listener.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", ReminderChannel, err)
	}
	h.wg.Add(1)
	go h.run()
	return h, nil
}

func (h *ChangeHub) onEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnected:
		h.logger.Info("Reminder change listener connected")
	case pq.ListenerEventDisconnected:
		h.logger.WithError(err).Warn("Reminder change listener disconnected")
	case pq.ListenerEventReconnected:
		h.logger.Info("Reminder change listener reconnected")
	case pq.ListenerEventConnectionAttemptFailed:
		h.logger.WithError(err).Error("Reminder change listener connection attempt failed")
	}
}

func (h *ChangeHub) run() {
	defer h.wg.Done()
	for {
		select {
		case <-h.done:
			return
		case n, ok := <-h.listener.Notify:
			if !ok {
				return
			}
			if n == nil {
				// Reconnected: notifications may have been lost, refresh everything.
				h.pokeAll()
				continue
			}
			p, err := parsePayload(n.Extra)
			if err != nil {
				h.logger.WithError(err).Warn("Ignoring malformed reminder notification")
				h.pokeAll()
				continue
			}
			h.poke(p)
		case <-time.After(listenerPingInterval):
			go func() {
				if err := h.listener.Ping(); err != nil {
					h.logger.WithError(err).Debug("Reminder change listener ping failed")
				}
			}()
		}
	}
}

func (h *ChangeHub) poke(p changePayload) {
	probe := &reminder.Reminder{OwnerID: p.OwnerID, PetID: p.PetID}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.subs {
		if s.scope.Matches(probe) {
			s.markDirty()
		}
	}
}

func (h *ChangeHub) pokeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.subs {
		s.markDirty()
	}
}

func (h *ChangeHub) register(scope reminder.Scope, query func(context.Context) ([]*reminder.Reminder, error), onChange func([]*reminder.Reminder)) *pgSubscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.next
	h.next++
	s := &pgSubscription{
		scope:    scope,
		query:    query,
		onChange: onChange,
		dirty:    make(chan struct{}, 1),
		stopped:  make(chan struct{}),
		logger:   h.logger,
	}
	s.unregister = func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
	h.subs[id] = s
	return s
}

// Close stops the listener and every live query.
func (h *ChangeHub) Close() error {
	close(h.done)
	err := h.listener.Close()
	h.wg.Wait()

	h.mu.Lock()
	subs := make([]*pgSubscription, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()
	for _, s := range subs {
		s.Stop()
	}
	return err
}

// pgSubscription coalesces change pokes: a burst of writes causes at most one extra query.
type pgSubscription struct {
	scope    reminder.Scope
	query    func(context.Context) ([]*reminder.Reminder, error)
	onChange func([]*reminder.Reminder)
	logger   *logrus.Entry

	dirty      chan struct{}
	stopped    chan struct{}
	stopOnce   sync.Once
	unregister func()
}

func (s *pgSubscription) markDirty() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

func (s *pgSubscription) start() {
	go func() {
		for {
			select {
			case <-s.stopped:
				return
			case <-s.dirty:
				s.refresh()
			}
		}
	}()
}

func (s *pgSubscription) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()
	list, err := s.query(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Live query refresh failed")
		return
	}
	select {
	case <-s.stopped:
		return
	default:
	}
	s.onChange(list)
}

func (s *pgSubscription) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopped)
		s.unregister()
	})
}
