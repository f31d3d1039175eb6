// Package firestore stores pets, reminders and medical records in Cloud Firestore,
// using the collection layout of the mobile app.
package firestore

import (
	"time"

	"petcare_reminders/internal/domain/pet"
	"petcare_reminders/internal/domain/record"
	"petcare_reminders/internal/domain/reminder"

	"cloud.google.com/go/firestore"
)

const (
	remindersCollection   = "reminders"
	petsCollection        = "pets"
	recordsCollection     = "records"
	permissionsCollection = "notificationPermissions"
	tokensCollection      = "deviceTokens"
)

type reminderDoc struct {
	UserID         string    `firestore:"userId"`
	PetID          string    `firestore:"petId"`
	Title          string    `firestore:"title"`
	Category       string    `firestore:"category"`
	Date           time.Time `firestore:"date"`
	DateZone       string    `firestore:"dateZone"`
	DateOffset     int       `firestore:"dateOffset"`
	Repeat         string    `firestore:"repeat"`
	Notes          string    `firestore:"notes"`
	Done           bool      `firestore:"done"`
	NotificationID string    `firestore:"notificationId"`
	CreatedAt      time.Time `firestore:"createdAt,serverTimestamp"`
	UpdatedAt      time.Time `firestore:"updatedAt,serverTimestamp"`
}

func toReminderDoc(r *reminder.Reminder) reminderDoc {
	zone, offset := reminder.ZoneOf(r.FireAt)
	return reminderDoc{
		UserID:         r.OwnerID,
		PetID:          r.PetID,
		Title:          r.Title,
		Category:       string(r.Category),
		Date:           r.FireAt,
		DateZone:       zone,
		DateOffset:     offset,
		Repeat:         string(r.Recurrence),
		Notes:          r.Notes,
		Done:           r.Done,
		NotificationID: r.NotificationHandle,
	}
}

func (d reminderDoc) toReminder(id string) *reminder.Reminder {
	rec := reminder.Recurrence(d.Repeat)
	if d.Repeat == "" || d.Repeat == "none" {
		// Older documents written by the app use "none".
		rec = reminder.RecurrenceOnce
	}
	return &reminder.Reminder{
		ID:                 id,
		OwnerID:            d.UserID,
		PetID:              d.PetID,
		Title:              d.Title,
		Category:           reminder.Category(d.Category),
		FireAt:             d.Date.In(reminder.RestoreZone(d.DateZone, d.DateOffset)),
		Recurrence:         rec,
		Notes:              d.Notes,
		Done:               d.Done,
		NotificationHandle: d.NotificationID,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
}

// patchUpdates maps a partial update onto Firestore field paths.
func patchUpdates(p reminder.Patch) []firestore.Update {
	var ups []firestore.Update
	if p.Title != nil {
		ups = append(ups, firestore.Update{Path: "title", Value: *p.Title})
	}
	if p.Category != nil {
		ups = append(ups, firestore.Update{Path: "category", Value: string(*p.Category)})
	}
	if p.FireAt != nil {
		zone, offset := reminder.ZoneOf(*p.FireAt)
		ups = append(ups,
			firestore.Update{Path: "date", Value: *p.FireAt},
			firestore.Update{Path: "dateZone", Value: zone},
			firestore.Update{Path: "dateOffset", Value: offset},
		)
	}
	if p.Recurrence != nil {
		ups = append(ups, firestore.Update{Path: "repeat", Value: string(*p.Recurrence)})
	}
	if p.Notes != nil {
		ups = append(ups, firestore.Update{Path: "notes", Value: *p.Notes})
	}
	if p.Done != nil {
		ups = append(ups, firestore.Update{Path: "done", Value: *p.Done})
	}
	if p.NotificationHandle != nil {
		ups = append(ups, firestore.Update{Path: "notificationId", Value: *p.NotificationHandle})
	}
	return append(ups, firestore.Update{Path: "updatedAt", Value: firestore.ServerTimestamp})
}

type petDoc struct {
	UserID    string    `firestore:"userId"`
	Name      string    `firestore:"name"`
	Species   string    `firestore:"species"`
	CreatedAt time.Time `firestore:"createdAt,serverTimestamp"`
	UpdatedAt time.Time `firestore:"updatedAt,serverTimestamp"`
}

func (d petDoc) toPet(id string) *pet.Pet {
	return &pet.Pet{ID: id, OwnerID: d.UserID, Name: d.Name, Species: d.Species, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt}
}

type recordDoc struct {
	UserID     string    `firestore:"userId"`
	PetID      string    `firestore:"petId"`
	Title      string    `firestore:"title"`
	Kind       string    `firestore:"kind"`
	RecordedAt time.Time `firestore:"recordedAt"`
	CreatedAt  time.Time `firestore:"createdAt,serverTimestamp"`
}

func (d recordDoc) toRecord(id string) *record.Record {
	return &record.Record{ID: id, OwnerID: d.UserID, PetID: d.PetID, Title: d.Title, Kind: d.Kind, RecordedAt: d.RecordedAt, CreatedAt: d.CreatedAt}
}
