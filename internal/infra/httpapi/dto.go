package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"petcare_reminders/internal/app"
	"petcare_reminders/internal/domain/pet"
	"petcare_reminders/internal/domain/reminder"
)

type reminderJSON struct {
	ID             string    `json:"id"`
	OwnerID        string    `json:"ownerId"`
	PetID          string    `json:"petId"`
	Title          string    `json:"title"`
	Category       string    `json:"category,omitempty"`
	FireAt         time.Time `json:"fireAt"`
	Recurrence     string    `json:"recurrence"`
	Notes          string    `json:"notes,omitempty"`
	Done           bool      `json:"done"`
	NotificationID string    `json:"notificationId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func toJSON(r *reminder.Reminder) reminderJSON {
	return reminderJSON{
		ID:             r.ID,
		OwnerID:        r.OwnerID,
		PetID:          r.PetID,
		Title:          r.Title,
		Category:       string(r.Category),
		FireAt:         r.FireAt,
		Recurrence:     string(r.Recurrence),
		Notes:          r.Notes,
		Done:           r.Done,
		NotificationID: r.NotificationHandle,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func toJSONList(list []*reminder.Reminder) []reminderJSON {
	out := make([]reminderJSON, len(list))
	for i, r := range list {
		out[i] = toJSON(r)
	}
	return out
}

type createRequest struct {
	PetID      string    `json:"petId"`
	Title      string    `json:"title"`
	Category   string    `json:"category"`
	FireAt     time.Time `json:"fireAt"`
	Recurrence string    `json:"recurrence"`
	Notes      string    `json:"notes"`
}

func (c createRequest) input() app.CreateReminderInput {
	return app.CreateReminderInput{
		PetID:      c.PetID,
		Title:      c.Title,
		Category:   reminder.Category(c.Category),
		FireAt:     c.FireAt,
		Recurrence: reminder.Recurrence(c.Recurrence),
		Notes:      c.Notes,
	}
}

// patchRequest has no notification id: the handle is never client-writable.
type patchRequest struct {
	Title      *string    `json:"title"`
	Category   *string    `json:"category"`
	FireAt     *time.Time `json:"fireAt"`
	Recurrence *string    `json:"recurrence"`
	Notes      *string    `json:"notes"`
	Done       *bool      `json:"done"`
}

func (p patchRequest) patch() reminder.Patch {
	out := reminder.Patch{Title: p.Title, FireAt: p.FireAt, Notes: p.Notes, Done: p.Done}
	if p.Category != nil {
		c := reminder.Category(*p.Category)
		out.Category = &c
	}
	if p.Recurrence != nil {
		r := reminder.Recurrence(*p.Recurrence)
		out.Recurrence = &r
	}
	return out
}

type errorBody struct {
	Error           string   `json:"error"`
	FailedReminders []string `json:"failedReminders,omitempty"`
}

// scheduleFailure is returned with 202 when the reminder was stored but not scheduled.
type scheduleFailure struct {
	Reminder reminderJSON `json:"reminder"`
	Error    string       `json:"error"`
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", reminder.ErrValidation, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(err error) int {
	var cascade *app.CascadeError
	switch {
	case errors.As(err, &cascade):
		return http.StatusInternalServerError
	case errors.Is(err, reminder.ErrAuth):
		return http.StatusForbidden
	case errors.Is(err, reminder.ErrNotFound), errors.Is(err, pet.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, reminder.ErrPastDue):
		return http.StatusUnprocessableEntity
	case errors.Is(err, reminder.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, reminder.ErrPermissionDenied):
		return http.StatusConflict
	case errors.Is(err, reminder.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, reminder.ErrScheduler):
		return http.StatusBadGateway
	case errors.Is(err, reminder.ErrStore):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
