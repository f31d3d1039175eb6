package app

import (
	"context"
	"errors"
	"fmt"

	"petcare_reminders/internal/domain/notification"
	"petcare_reminders/internal/domain/reminder"

	"github.com/sirupsen/logrus"
)

type scheduleResult struct {
	handle notification.Handle
	err    error
}

// callScheduler runs fn under the configured timeout. If the deadline passes first the call
// reports ErrTimeout, and a handle that still arrives later is cancelled so no trigger leaks.
func (s *ReminderService) callScheduler(
	ctx context.Context,
	op string,
	fn func(ctx context.Context) (notification.Handle, error),
) (notification.Handle, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)

	done := make(chan scheduleResult, 1)
	go func() {
		h, err := fn(ctx)
		done <- scheduleResult{handle: h, err: err}
	}()

	select {
	case res := <-done:
		cancel()
		if res.err != nil {
			return "", classifySchedulerError(res.err)
		}
		return res.handle, nil
	case <-ctx.Done():
		err := ctx.Err()
		cancel()
		go s.dropLateHandle(op, done)
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %s after %s", reminder.ErrTimeout, op, s.timeout)
		}
		return "", err
	}
}

func (s *ReminderService) dropLateHandle(op string, done <-chan scheduleResult) {
	res := <-done
	if res.err != nil || res.handle == "" {
		return
	}
	log := s.logger.WithFields(logrus.Fields{"op": op, "handle": res.handle})
	log.Warn("Scheduler answered after timeout, cancelling late handle")
	s.cancelQuietly(res.handle, log)
}

func (s *ReminderService) schedule(ctx context.Context, req notification.Request) (notification.Handle, error) {
	return s.callScheduler(ctx, "schedule", func(ctx context.Context) (notification.Handle, error) {
		return s.scheduler.Schedule(ctx, req)
	})
}

func (s *ReminderService) cancel(ctx context.Context, h notification.Handle) error {
	_, err := s.callScheduler(ctx, "cancel", func(ctx context.Context) (notification.Handle, error) {
		return "", s.scheduler.Cancel(ctx, h)
	})
	return err
}

// cancelQuietly is the compensation path: failures are logged, never returned.
func (s *ReminderService) cancelQuietly(h notification.Handle, log *logrus.Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.scheduler.Cancel(ctx, h); err != nil {
		log.WithError(err).WithField("handle", h).Error("Failed to cancel orphaned notification")
	}
}

func classifySchedulerError(err error) error {
	switch {
	case errors.Is(err, reminder.ErrPastDue),
		errors.Is(err, reminder.ErrPermissionDenied),
		errors.Is(err, reminder.ErrValidation),
		errors.Is(err, reminder.ErrScheduler),
		errors.Is(err, reminder.ErrTimeout):
		return err
	}
	return fmt.Errorf("%w: %v", reminder.ErrScheduler, err)
}
