package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"petcare_reminders/internal/domain/notification"
	"petcare_reminders/internal/domain/reminder"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const deliveryTimeout = 30 * time.Second

type entry struct {
	id      cron.EntryID
	request notification.Request
	repeats bool
}

// CronScheduler is the notification.Scheduler backed by a robfig/cron engine. Each handle maps
// to one cron entry; maintenance jobs share the same engine but are not handles.
type CronScheduler struct {
	cronEngine  *cron.Cron
	permissions notification.Permissions
	dispatcher  notification.Dispatcher
	logger      *logrus.Entry
	now         func() time.Time

	mu      sync.Mutex
	entries map[notification.Handle]entry
}

func NewCronScheduler(
	permissions notification.Permissions,
	dispatcher notification.Dispatcher,
	logger *logrus.Entry,
	loc *time.Location,
) *CronScheduler {
	if loc == nil {
		loc = time.Local
	}
	cl := cronLogger{logger}
	return &CronScheduler{
		cronEngine: cron.New(
			cron.WithLocation(loc), // maintenance jobs; reminder triggers carry their own location
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
		permissions: permissions,
		dispatcher:  dispatcher,
		logger:      logger,
		now:         time.Now,
		entries:     make(map[notification.Handle]entry),
	}
}

func (s *CronScheduler) Schedule(ctx context.Context, req notification.Request) (notification.Handle, error) {
	trig, err := notification.TriggerFor(req.FireAt, req.Recurrence)
	if err != nil {
		return "", err
	}
	if !trig.Repeats() && !req.FireAt.After(s.now()) {
		return "", fmt.Errorf("%w: %s", reminder.ErrPastDue, req.FireAt.Format(time.RFC3339))
	}

	granted, err := s.permissions.HasNotificationPermission(ctx, req.OwnerID)
	if err != nil {
		return "", fmt.Errorf("%w: permission lookup: %v", reminder.ErrScheduler, err)
	}
	if !granted {
		return "", reminder.ErrPermissionDenied
	}

	sched, err := scheduleFor(trig)
	if err != nil {
		return "", fmt.Errorf("%w: %v", reminder.ErrScheduler, err)
	}

	h := notification.Handle(uuid.NewString())
	repeats := trig.Repeats()
	job := cron.FuncJob(func() { s.fire(h, req, repeats) })

	// Held across engine.Schedule so a trigger that fires immediately finds its entry.
	s.mu.Lock()
	id := s.cronEngine.Schedule(sched, job)
	s.entries[h] = entry{id: id, request: req, repeats: repeats}
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"handle":      h,
		"reminder_id": req.ReminderID,
		"recurrence":  trig.Recurrence,
		"next":        sched.Next(s.now()).Format(time.RFC3339),
	}).Debug("Notification scheduled")
	return h, nil
}

func (s *CronScheduler) Cancel(ctx context.Context, h notification.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[h]
	if !ok {
		return nil
	}
	s.cronEngine.Remove(e.id)
	delete(s.entries, h)
	s.logger.WithFields(logrus.Fields{"handle": h, "reminder_id": e.request.ReminderID}).Debug("Notification cancelled")
	return nil
}

func (s *CronScheduler) CancelAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for h, e := range s.entries {
		s.cronEngine.Remove(e.id)
		delete(s.entries, h)
	}
	s.logger.Warn("All notifications cancelled")
	return nil
}

func (s *CronScheduler) Exists(h notification.Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[h]
	return ok
}

// Pending reports how many reminder triggers are outstanding.
func (s *CronScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// nextFire is the engine's own view of the next firing of h after t.
func (s *CronScheduler) nextFire(h notification.Handle, t time.Time) (time.Time, bool) {
	s.mu.Lock()
	e, ok := s.entries[h]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	ce := s.cronEngine.Entry(e.id)
	if !ce.Valid() {
		return time.Time{}, false
	}
	return ce.Schedule.Next(t), true
}

func (s *CronScheduler) fire(h notification.Handle, req notification.Request, repeats bool) {
	if !repeats {
		// A fired one-shot is terminal: its handle goes stale.
		s.mu.Lock()
		if e, ok := s.entries[h]; ok {
			s.cronEngine.Remove(e.id)
			delete(s.entries, h)
		}
		s.mu.Unlock()
	}

	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	log := s.logger.WithFields(logrus.Fields{"handle": h, "reminder_id": req.ReminderID, "owner_id": req.OwnerID})
	d := notification.Delivery{
		Handle:     h,
		ReminderID: req.ReminderID,
		OwnerID:    req.OwnerID,
		Title:      req.Title,
		FiredAt:    s.now(),
	}
	if err := s.dispatcher.Deliver(ctx, d); err != nil {
		log.WithError(err).Error("Failed to deliver notification")
		return
	}
	log.Info("Notification delivered")
}

// AddMaintenanceJob registers a periodic job (e.g. reconciliation) on the same engine.
func (s *CronScheduler) AddMaintenanceJob(spec, name string, timeout time.Duration, fn func(ctx context.Context) error) error {
	_, err := s.cronEngine.AddFunc(spec, func() {
		s.logger.WithField("job", name).Debug("Cron job triggered")
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			s.logger.WithError(err).WithField("job", name).Error("Cron job failed")
		}
	})
	if err != nil {
		return fmt.Errorf("add %s job with spec %q: %w", name, spec, err)
	}
	return nil
}

func (s *CronScheduler) Start() {
	s.logger.Info("Starting notification scheduler...")
	s.cronEngine.Start()
}

func (s *CronScheduler) Stop() {
	s.logger.Info("Stopping notification scheduler...")
	ctx := s.cronEngine.Stop() // waits for running jobs
	<-ctx.Done()
	s.logger.Info("Notification scheduler gracefully stopped.")
}

func scheduleFor(trig notification.Trigger) (cron.Schedule, error) {
	if !trig.Repeats() {
		return oneShot{at: trig.At}, nil
	}
	parsed, err := cron.ParseStandard(trig.CronSpec())
	if err != nil {
		return nil, err
	}
	spec, ok := parsed.(*cron.SpecSchedule)
	if !ok {
		return nil, fmt.Errorf("unexpected schedule type %T", parsed)
	}
	spec.Location = trig.Location
	return spec, nil
}

// oneShot fires once at an absolute instant and never again.
type oneShot struct {
	at time.Time
}

func (o oneShot) Next(t time.Time) time.Time {
	if t.Before(o.at) {
		return o.at
	}
	return time.Time{}
}

// cronLogger routes cron's own logging through logrus.
type cronLogger struct {
	entry *logrus.Entry
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(kvFields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.entry.WithError(err).WithFields(kvFields(keysAndValues)).Error(msg)
}

func kvFields(kv []interface{}) logrus.Fields {
	f := make(logrus.Fields, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		f[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return f
}
