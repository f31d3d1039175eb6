package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"petcare_reminders/internal/domain/reminder"

	"github.com/google/uuid"
)

const reminderColumns = `id, owner_id, pet_id, title, category, fire_at, fire_zone, fire_offset,
	recurrence, notes, done, notification_handle, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

type PostgresReminderRepository struct {
	db  *sql.DB
	hub *ChangeHub // nil disables Subscribe
}

func NewPostgresReminderRepository(db *sql.DB, hub *ChangeHub) *PostgresReminderRepository {
	return &PostgresReminderRepository{db: db, hub: hub}
}

func (r *PostgresReminderRepository) Create(ctx context.Context, rem *reminder.Reminder) error {
	if err := reminder.ValidateNew(rem); err != nil {
		return err
	}
	if rem.ID == "" {
		rem.ID = uuid.NewString()
	}
	if rem.Recurrence == "" {
		rem.Recurrence = reminder.RecurrenceOnce
	}
	zone, offset := reminder.ZoneOf(rem.FireAt)

	query := `INSERT INTO reminders (id, owner_id, pet_id, title, category, fire_at, fire_zone, fire_offset,
	                recurrence, notes, done, notification_handle)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	          RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		rem.ID, rem.OwnerID, rem.PetID, rem.Title, string(rem.Category), rem.FireAt, zone, offset,
		string(rem.Recurrence), rem.Notes, rem.Done, rem.NotificationHandle,
	).Scan(&rem.CreatedAt, &rem.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: error creating reminder: %w", reminder.ErrStore, err)
	}
	return nil
}

func (r *PostgresReminderRepository) GetByID(ctx context.Context, id string) (*reminder.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders WHERE id = $1`
	rem, err := scanReminder(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, reminder.ErrNotFound
		}
		return nil, fmt.Errorf("%w: error getting reminder by ID: %w", reminder.ErrStore, err)
	}
	return rem, nil
}

func (r *PostgresReminderRepository) Update(ctx context.Context, id string, patch reminder.Patch) (*reminder.Reminder, error) {
	query, args := buildReminderUpdate(id, patch)
	rem, err := scanReminder(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, reminder.ErrNotFound
		}
		return nil, fmt.Errorf("%w: error updating reminder: %w", reminder.ErrStore, err)
	}
	return rem, nil
}

// buildReminderUpdate renders the partial update. An empty patch still bumps updated_at
// so the row is returned and subscribers hear about it.
func buildReminderUpdate(id string, p reminder.Patch) (string, []any) {
	var sets []string
	var args []any
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if p.Title != nil {
		add("title", *p.Title)
	}
	if p.Category != nil {
		add("category", string(*p.Category))
	}
	if p.FireAt != nil {
		zone, offset := reminder.ZoneOf(*p.FireAt)
		add("fire_at", *p.FireAt)
		add("fire_zone", zone)
		add("fire_offset", offset)
	}
	if p.Recurrence != nil {
		add("recurrence", string(*p.Recurrence))
	}
	if p.Notes != nil {
		add("notes", *p.Notes)
	}
	if p.Done != nil {
		add("done", *p.Done)
	}
	if p.NotificationHandle != nil {
		add("notification_handle", *p.NotificationHandle)
	}
	sets = append(sets, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE reminders SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), reminderColumns)
	return query, args
}

func (r *PostgresReminderRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reminders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%w: error deleting reminder: %w", reminder.ErrStore, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: error checking rows affected: %w", reminder.ErrStore, err)
	}
	if n == 0 {
		return reminder.ErrNotFound
	}
	return nil
}

func (r *PostgresReminderRepository) ListByOwner(ctx context.Context, ownerID string) ([]*reminder.Reminder, error) {
	return r.list(ctx, reminder.Scope{OwnerID: ownerID})
}

func (r *PostgresReminderRepository) ListByPet(ctx context.Context, petID string) ([]*reminder.Reminder, error) {
	return r.list(ctx, reminder.Scope{PetID: petID})
}

func (r *PostgresReminderRepository) ListAll(ctx context.Context) ([]*reminder.Reminder, error) {
	return r.list(ctx, reminder.Scope{})
}

func buildScopeQuery(scope reminder.Scope) (string, []any) {
	var where []string
	var args []any
	if scope.OwnerID != "" {
		args = append(args, scope.OwnerID)
		where = append(where, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if scope.PetID != "" {
		args = append(args, scope.PetID)
		where = append(where, fmt.Sprintf("pet_id = $%d", len(args)))
	}
	query := `SELECT ` + reminderColumns + ` FROM reminders`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	if scope.OrderByFireAt {
		query += ` ORDER BY fire_at ASC, id ASC`
	}
	return query, args
}

func (r *PostgresReminderRepository) list(ctx context.Context, scope reminder.Scope) ([]*reminder.Reminder, error) {
	query, args := buildScopeQuery(scope)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: error listing reminders: %w", reminder.ErrStore, err)
	}
	defer rows.Close()

	out := make([]*reminder.Reminder, 0)
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: error scanning reminder row: %w", reminder.ErrStore, err)
		}
		out = append(out, rem)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating reminder rows: %w", reminder.ErrStore, err)
	}
	return out, nil
}

// Subscribe registers a live query with the change hub. The initial list is delivered
// before Subscribe returns; later lists follow every matching NOTIFY.
func (r *PostgresReminderRepository) Subscribe(ctx context.Context, scope reminder.Scope, onChange func([]*reminder.Reminder)) (reminder.Subscription, error) {
	if r.hub == nil {
		return nil, fmt.Errorf("%w: live queries need a change listener", reminder.ErrStore)
	}
	sub := r.hub.register(scope, func(ctx context.Context) ([]*reminder.Reminder, error) {
		return r.list(ctx, scope)
	}, onChange)

	initial, err := r.list(ctx, scope)
	if err != nil {
		sub.Stop()
		return nil, err
	}
	onChange(initial)
	sub.start()
	return sub, nil
}

func scanReminder(row rowScanner) (*reminder.Reminder, error) {
	rem := &reminder.Reminder{}
	var category, recurrence, zone string
	var offset int
	err := row.Scan(&rem.ID, &rem.OwnerID, &rem.PetID, &rem.Title, &category, &rem.FireAt, &zone, &offset,
		&recurrence, &rem.Notes, &rem.Done, &rem.NotificationHandle, &rem.CreatedAt, &rem.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rem.Category = reminder.Category(category)
	rem.Recurrence = reminder.Recurrence(recurrence)
	rem.FireAt = rem.FireAt.In(reminder.RestoreZone(zone, offset))
	return rem, nil
}
