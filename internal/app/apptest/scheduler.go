// Package apptest holds test doubles shared by service and transport tests.
package apptest

import (
	"context"
	"sync"
	"time"

	"petcare_reminders/internal/domain/notification"
	"petcare_reminders/internal/domain/reminder"

	"github.com/google/uuid"
)

type OpKind string

const (
	OpSchedule  OpKind = "schedule"
	OpCancel    OpKind = "cancel"
	OpCancelAll OpKind = "cancel_all"
)

// Op is one recorded scheduler call.
type Op struct {
	Kind    OpKind
	Handle  notification.Handle
	Request notification.Request
}

// RecordingScheduler is an in-memory notification.Scheduler that logs every call and tracks
// which handles are outstanding. Errors and blocking can be injected per operation.
type RecordingScheduler struct {
	mu          sync.Mutex
	ops         []Op
	outstanding map[notification.Handle]notification.Request
	failures    map[OpKind]error
	block       map[OpKind]chan struct{}

	Now func() time.Time
}

func NewRecordingScheduler() *RecordingScheduler {
	return &RecordingScheduler{
		outstanding: make(map[notification.Handle]notification.Request),
		failures:    make(map[OpKind]error),
		block:       make(map[OpKind]chan struct{}),
		Now:         time.Now,
	}
}

// FailNext makes every following call of kind return err until cleared with FailNext(kind, nil).
func (s *RecordingScheduler) FailNext(kind OpKind, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, kind)
		return
	}
	s.failures[kind] = err
}

// Block holds calls of kind until the returned release func is called. The call still
// completes normally once released, which lets tests produce late answers.
func (s *RecordingScheduler) Block(kind OpKind) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.block[kind] = ch
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.block, kind)
			s.mu.Unlock()
			close(ch)
		})
	}
}

func (s *RecordingScheduler) wait(kind OpKind) error {
	s.mu.Lock()
	ch := s.block[kind]
	err := s.failures[kind]
	s.mu.Unlock()
	if ch != nil {
		<-ch
	}
	return err
}

func (s *RecordingScheduler) Schedule(ctx context.Context, req notification.Request) (notification.Handle, error) {
	if err := s.wait(OpSchedule); err != nil {
		return "", err
	}
	if _, err := notification.TriggerFor(req.FireAt, req.Recurrence); err != nil {
		return "", err
	}
	if (req.Recurrence == reminder.RecurrenceOnce || req.Recurrence == "") && !req.FireAt.After(s.Now()) {
		return "", reminder.ErrPastDue
	}

	h := notification.Handle(uuid.NewString())
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outstanding[h] = req
	s.ops = append(s.ops, Op{Kind: OpSchedule, Handle: h, Request: req})
	return h, nil
}

func (s *RecordingScheduler) Cancel(ctx context.Context, h notification.Handle) error {
	if err := s.wait(OpCancel); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.outstanding, h)
	s.ops = append(s.ops, Op{Kind: OpCancel, Handle: h})
	return nil
}

func (s *RecordingScheduler) CancelAll(ctx context.Context) error {
	if err := s.wait(OpCancelAll); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outstanding = make(map[notification.Handle]notification.Request)
	s.ops = append(s.ops, Op{Kind: OpCancelAll})
	return nil
}

func (s *RecordingScheduler) Exists(h notification.Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.outstanding[h]
	return ok
}

// Fire simulates a one-shot trigger firing: its handle becomes stale.
func (s *RecordingScheduler) Fire(h notification.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.outstanding, h)
}

// Forget drops every outstanding handle without recording an op, as a process restart would.
func (s *RecordingScheduler) Forget() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outstanding = make(map[notification.Handle]notification.Request)
}

func (s *RecordingScheduler) Ops() []Op {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Op(nil), s.ops...)
}

// Outstanding returns the requests of every live handle.
func (s *RecordingScheduler) Outstanding() map[notification.Handle]notification.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[notification.Handle]notification.Request, len(s.outstanding))
	for h, r := range s.outstanding {
		out[h] = r
	}
	return out
}

// OutstandingFor returns the live handles scheduled for one reminder.
func (s *RecordingScheduler) OutstandingFor(reminderID string) []notification.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	var hs []notification.Handle
	for h, r := range s.outstanding {
		if r.ReminderID == reminderID {
			hs = append(hs, h)
		}
	}
	return hs
}

func (s *RecordingScheduler) Count(kind OpKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, op := range s.ops {
		if op.Kind == kind {
			n++
		}
	}
	return n
}
