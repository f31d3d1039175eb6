package scheduler

import (
	"context"

	"petcare_reminders/internal/domain/notification"

	"github.com/sirupsen/logrus"
)

// LogDispatcher delivers notifications to the log only. Used in development.
type LogDispatcher struct {
	logger *logrus.Entry
}

func NewLogDispatcher(logger *logrus.Entry) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Deliver(ctx context.Context, n notification.Delivery) error {
	d.logger.WithFields(logrus.Fields{
		"reminder_id": n.ReminderID,
		"owner_id":    n.OwnerID,
		"fired_at":    n.FiredAt,
	}).Infof("Reminder: %s", n.Title)
	return nil
}
