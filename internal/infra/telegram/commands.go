package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"petcare_reminders/internal/app"
	"petcare_reminders/internal/domain/pet"
	"petcare_reminders/internal/domain/reminder"
)

const whenLayout = "2006-01-02 15:04"

const helpText = "Commands:\n\n" +
	"/pet <name> [species] - add a pet\n" +
	"/pets - list your pets\n" +
	"/add <pet-id> <YYYY-MM-DD> <HH:MM> [once|daily|weekly] <title> - add a reminder\n" +
	"/edit <id> title|at|repeat|notes|category <value> - change a reminder\n" +
	"/reminders [pet-id] - list reminders\n" +
	"/done <id> - mark a reminder done\n" +
	"/delete <id> - delete a reminder\n" +
	"/deletepet <pet-id> - delete a pet with its reminders and records\n" +
	"/notifications [on|off] - show or change notification permission\n" +
	"/help - show this message"

func (h *Handlers) start(ctx context.Context, ownerID string, args []string) (string, error) {
	granted, err := h.permissions.RequestNotificationPermission(ctx, ownerID)
	if err != nil {
		return "", err
	}
	msg := "Hi! I keep track of your pets' care reminders and ping you when they are due."
	if !granted {
		msg += "\nNotifications are off for you; use /notifications on to enable them."
	}
	return msg + "\nUse /help for the list of commands.", nil
}

func (h *Handlers) help(ctx context.Context, ownerID string, args []string) (string, error) {
	if h.isAdmin(ownerID) {
		return helpText + "\n\nAdmin:\n/reset_schedules - cancel every trigger and rebuild from stored reminders", nil
	}
	return helpText, nil
}

func (h *Handlers) addPet(ctx context.Context, ownerID string, args []string) (string, error) {
	if len(args) < 1 || len(args) > 2 {
		return "", usageError("/pet <name> [species]")
	}
	p := &pet.Pet{OwnerID: ownerID, Name: args[0]}
	if len(args) == 2 {
		p.Species = args[1]
	}
	if err := h.pets.Create(ctx, p); err != nil {
		return "", err
	}
	return fmt.Sprintf("Added %s (id %s).", p.Name, p.ID), nil
}

func (h *Handlers) listPets(ctx context.Context, ownerID string, args []string) (string, error) {
	pets, err := h.pets.ListByOwner(ctx, ownerID)
	if err != nil {
		return "", err
	}
	if len(pets) == 0 {
		return "You have no pets yet. Add one with /pet <name>.", nil
	}
	var b strings.Builder
	for _, p := range pets {
		fmt.Fprintf(&b, "%s %s (id %s)\n", p.Name, p.Species, p.ID)
	}
	return strings.TrimSpace(b.String()), nil
}

func (h *Handlers) add(ctx context.Context, ownerID string, args []string) (string, error) {
	in, err := parseAddArgs(args, h.loc)
	if err != nil {
		return "", err
	}
	r, err := h.reminders.CreateReminder(ctx, in)
	if err != nil {
		if r != nil {
			// Stored but unscheduled: the reminder exists and reconcile will retry.
			h.logger.WithError(err).WithField("reminder_id", r.ID).Warn("Reminder saved without notification")
			return fmt.Sprintf("Saved %q (id %s), but its notification is not scheduled: %s", r.Title, r.ID, userMessage(err)), nil
		}
		return "", err
	}
	return fmt.Sprintf("Reminder set: %s", formatReminder(r)), nil
}

func (h *Handlers) edit(ctx context.Context, ownerID string, args []string) (string, error) {
	id, patch, err := parseEditArgs(args, h.loc)
	if err != nil {
		return "", err
	}
	r, err := h.reminders.UpdateReminder(ctx, id, patch)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Updated: %s", formatReminder(r)), nil
}

func (h *Handlers) list(ctx context.Context, ownerID string, args []string) (string, error) {
	if len(args) > 1 {
		return "", usageError("/reminders [pet-id]")
	}
	scope := reminder.Scope{OrderByFireAt: true}
	if len(args) == 1 {
		scope.PetID = args[0]
	}
	view, err := h.live.Observe(ctx, scope)
	if err != nil {
		return "", err
	}
	defer view.Close()

	list := view.Current()
	if len(list) == 0 {
		return "No reminders.", nil
	}
	var b strings.Builder
	for _, r := range list {
		b.WriteString(formatReminder(r))
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String()), nil
}

func (h *Handlers) done(ctx context.Context, ownerID string, args []string) (string, error) {
	if len(args) != 1 {
		return "", usageError("/done <id>")
	}
	r, err := h.reminders.CompleteReminder(ctx, args[0])
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Done: %s", r.Title), nil
}

func (h *Handlers) remove(ctx context.Context, ownerID string, args []string) (string, error) {
	if len(args) != 1 {
		return "", usageError("/delete <id>")
	}
	if err := h.reminders.DeleteReminder(ctx, args[0]); err != nil {
		return "", err
	}
	return "Reminder deleted.", nil
}

func (h *Handlers) deletePet(ctx context.Context, ownerID string, args []string) (string, error) {
	if len(args) != 1 {
		return "", usageError("/deletepet <pet-id>")
	}
	if err := h.cascade.CascadeDeletePet(ctx, args[0]); err != nil {
		return "", err
	}
	return "Pet deleted together with its reminders and records.", nil
}

func (h *Handlers) notifications(ctx context.Context, ownerID string, args []string) (string, error) {
	if len(args) == 0 {
		granted, err := h.permissions.HasNotificationPermission(ctx, ownerID)
		if err != nil {
			return "", err
		}
		return "Notifications are " + onOff(granted) + ".", nil
	}
	var granted bool
	switch strings.ToLower(args[0]) {
	case "on":
		granted = true
	case "off":
	default:
		return "", usageError("/notifications [on|off]")
	}
	if err := h.permissions.SetNotificationPermission(ctx, ownerID, granted); err != nil {
		return "", err
	}
	return "Notifications are now " + onOff(granted) + ". Reminders scheduled from now on follow this setting.", nil
}

func (h *Handlers) resetSchedules(ctx context.Context, ownerID string, args []string) (string, error) {
	if !h.isAdmin(ownerID) {
		return "", fmt.Errorf("%w: admin only", reminder.ErrAuth)
	}
	if err := h.reminders.ResetSchedules(ctx); err != nil {
		return "", err
	}
	report, err := h.reminders.Reconcile(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("All schedules reset. Checked %d reminders, rescheduled %d, %d failed.",
		report.Checked, report.Rescheduled, len(report.Failed)), nil
}

func (h *Handlers) isAdmin(ownerID string) bool {
	return h.adminOwnerID != "" && ownerID == h.adminOwnerID
}

func parseAddArgs(args []string, loc *time.Location) (app.CreateReminderInput, error) {
	const usage = "/add <pet-id> <YYYY-MM-DD> <HH:MM> [once|daily|weekly] <title>"
	if len(args) < 4 {
		return app.CreateReminderInput{}, usageError(usage)
	}
	at, err := parseWhen(args[1], args[2], loc)
	if err != nil {
		return app.CreateReminderInput{}, err
	}
	rest := args[3:]
	rec := reminder.RecurrenceOnce
	if r, ok := reminder.ParseRecurrence(rest[0]); ok && len(rest) > 1 {
		rec = r
		rest = rest[1:]
	}
	return app.CreateReminderInput{
		PetID:      args[0],
		Title:      strings.Join(rest, " "),
		FireAt:     at,
		Recurrence: rec,
	}, nil
}

func parseEditArgs(args []string, loc *time.Location) (string, reminder.Patch, error) {
	const usage = "/edit <id> title|at|repeat|notes|category <value>"
	var p reminder.Patch
	if len(args) < 3 {
		return "", p, usageError(usage)
	}
	id, field, value := args[0], strings.ToLower(args[1]), args[2:]
	switch field {
	case "title":
		title := strings.Join(value, " ")
		p.Title = &title
	case "notes":
		notes := strings.Join(value, " ")
		p.Notes = &notes
	case "at":
		if len(value) != 2 {
			return "", p, usageError("/edit <id> at <YYYY-MM-DD> <HH:MM>")
		}
		at, err := parseWhen(value[0], value[1], loc)
		if err != nil {
			return "", p, err
		}
		p.FireAt = &at
	case "repeat":
		rec, ok := reminder.ParseRecurrence(value[0])
		if !ok || len(value) != 1 {
			return "", p, usageError("/edit <id> repeat once|daily|weekly")
		}
		p.Recurrence = &rec
	case "category":
		cat := reminder.Category(strings.ToLower(value[0]))
		p.Category = &cat
	default:
		return "", p, usageError(usage)
	}
	return id, p, nil
}

func parseWhen(date, clock string, loc *time.Location) (time.Time, error) {
	at, err := time.ParseInLocation(whenLayout, date+" "+clock, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: expected date and time as YYYY-MM-DD HH:MM", reminder.ErrValidation)
	}
	return at, nil
}

func formatReminder(r *reminder.Reminder) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s, %s", r.Title, r.FireAt.Format(whenLayout))
	if r.Recurrence != reminder.RecurrenceOnce {
		fmt.Fprintf(&b, " (%s)", r.Recurrence)
	}
	if r.Done {
		b.WriteString(" [done]")
	} else if !r.Scheduled() {
		b.WriteString(" [not scheduled]")
	}
	fmt.Fprintf(&b, " id %s", r.ID)
	return b.String()
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

type usageErr string

func (u usageErr) Error() string { return "usage: " + string(u) }

func (u usageErr) Unwrap() error { return reminder.ErrValidation }

func usageError(usage string) error { return usageErr(usage) }

// userMessage turns an engine error into a chat reply.
func userMessage(err error) string {
	var usage usageErr
	var cascade *app.CascadeError
	switch {
	case errors.As(err, &usage):
		return "Usage: " + string(usage)
	case errors.As(err, &cascade):
		if cascade.Pet != nil {
			return "Could not delete the pet. Please try again."
		}
		return "The pet is deleted, but some of its reminders or records are left. Run /deletepet again to finish."
	case errors.Is(err, reminder.ErrAuth):
		return "You are not allowed to do that."
	case errors.Is(err, reminder.ErrNotFound), errors.Is(err, pet.ErrNotFound):
		return "Not found."
	case errors.Is(err, reminder.ErrPastDue):
		return "That time is already in the past."
	case errors.Is(err, reminder.ErrPermissionDenied):
		return "Notifications are off. Turn them on with /notifications on."
	case errors.Is(err, reminder.ErrTimeout):
		return "The scheduler did not answer in time. Please try again."
	case errors.Is(err, reminder.ErrValidation):
		return "Invalid input: " + err.Error()
	default:
		return "Something went wrong. Please try again later."
	}
}
