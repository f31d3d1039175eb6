package telegram

import (
	"context"
	"fmt"
	"strconv"

	"petcare_reminders/internal/domain/notification"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// doneUnique is the callback id of the inline "Done" button.
const doneUnique = "done"

// Dispatcher delivers fired reminders as chat messages. Owners of the bot are Telegram
// users, so the owner id is the chat id.
type Dispatcher struct {
	client Client
	logger *logrus.Entry
}

func NewDispatcher(client Client, logger *logrus.Entry) *Dispatcher {
	return &Dispatcher{client: client, logger: logger}
}

func (d *Dispatcher) Deliver(ctx context.Context, n notification.Delivery) error {
	chatID, err := strconv.ParseInt(n.OwnerID, 10, 64)
	if err != nil {
		return fmt.Errorf("owner %q is not a Telegram user: %w", n.OwnerID, err)
	}

	markup := &telebot.ReplyMarkup{}
	markup.Inline(markup.Row(markup.Data("Done", doneUnique, n.ReminderID)))

	text := fmt.Sprintf("Reminder: %s", n.Title)
	if err := d.client.SendMessage(chatID, text, &telebot.SendOptions{ReplyMarkup: markup}); err != nil {
		return fmt.Errorf("error sending reminder message: %w", err)
	}
	d.logger.WithFields(logrus.Fields{
		"reminder_id": n.ReminderID,
		"chat_id":     chatID,
	}).Info("Reminder delivered to chat")
	return nil
}
