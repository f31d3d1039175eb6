// internal/infra/telegram/handlers.go
package telegram

import (
	"context"
	"strconv"
	"time"

	"petcare_reminders/internal/app"
	"petcare_reminders/internal/domain/auth"
	"petcare_reminders/internal/domain/notification"
	"petcare_reminders/internal/domain/pet"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// Handlers serves the chat commands. The sender's Telegram id is the owner id.
type Handlers struct {
	reminders    *app.ReminderService
	cascade      *app.CascadeService
	live         *app.LiveView
	pets         pet.Repository
	permissions  notification.PermissionStore
	adminOwnerID string
	loc          *time.Location
	logger       *logrus.Entry
}

func NewHandlers(
	reminders *app.ReminderService,
	cascade *app.CascadeService,
	live *app.LiveView,
	pets pet.Repository,
	permissions notification.PermissionStore,
	adminOwnerID string,
	loc *time.Location,
	logger *logrus.Entry,
) *Handlers {
	if loc == nil {
		loc = time.Local
	}
	return &Handlers{
		reminders:    reminders,
		cascade:      cascade,
		live:         live,
		pets:         pets,
		permissions:  permissions,
		adminOwnerID: adminOwnerID,
		loc:          loc,
		logger:       logger,
	}
}

type commandFunc func(ctx context.Context, ownerID string, args []string) (string, error)

// Register wires every command and the "Done" button into the bot.
func (h *Handlers) Register(ctx context.Context, b *telebot.Bot) {
	b.Handle("/start", h.command(ctx, "/start", h.start))
	b.Handle("/help", h.command(ctx, "/help", h.help))
	b.Handle("/pet", h.command(ctx, "/pet", h.addPet))
	b.Handle("/pets", h.command(ctx, "/pets", h.listPets))
	b.Handle("/add", h.command(ctx, "/add", h.add))
	b.Handle("/edit", h.command(ctx, "/edit", h.edit))
	b.Handle("/reminders", h.command(ctx, "/reminders", h.list))
	b.Handle("/done", h.command(ctx, "/done", h.done))
	b.Handle("/delete", h.command(ctx, "/delete", h.remove))
	b.Handle("/deletepet", h.command(ctx, "/deletepet", h.deletePet))
	b.Handle("/notifications", h.command(ctx, "/notifications", h.notifications))
	b.Handle("/reset_schedules", h.command(ctx, "/reset_schedules", h.resetSchedules))

	b.Handle(&telebot.Btn{Unique: doneUnique}, h.onDoneButton(ctx))
}

func (h *Handlers) command(ctx context.Context, name string, fn commandFunc) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		senderID := c.Sender().ID
		ownerID := strconv.FormatInt(senderID, 10)
		log := h.logger.WithFields(logrus.Fields{
			"handler":   name,
			"sender_id": senderID,
		})
		log.Info("Command received")

		reply, err := fn(auth.WithOwner(ctx, ownerID), ownerID, c.Args())
		if err != nil {
			log.WithError(err).Warn("Command failed")
			return c.Send(userMessage(err))
		}
		return c.Send(reply)
	}
}

func (h *Handlers) onDoneButton(ctx context.Context) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		ownerID := strconv.FormatInt(c.Sender().ID, 10)
		reminderID := c.Callback().Data
		log := h.logger.WithFields(logrus.Fields{
			"handler":     "done_button",
			"sender_id":   c.Sender().ID,
			"reminder_id": reminderID,
		})

		r, err := h.reminders.CompleteReminder(auth.WithOwner(ctx, ownerID), reminderID)
		if err != nil {
			log.WithError(err).Warn("Done button failed")
			return c.Respond(&telebot.CallbackResponse{Text: userMessage(err)})
		}
		log.Info("Reminder completed from chat")
		return c.Respond(&telebot.CallbackResponse{Text: "Done: " + r.Title})
	}
}
