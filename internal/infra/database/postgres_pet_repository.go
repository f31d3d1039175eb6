package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"petcare_reminders/internal/domain/pet"
	"petcare_reminders/internal/domain/record"

	"github.com/google/uuid"
)

type PostgresPetRepository struct {
	db *sql.DB
}

func NewPostgresPetRepository(db *sql.DB) *PostgresPetRepository {
	return &PostgresPetRepository{db: db}
}

func (r *PostgresPetRepository) Create(ctx context.Context, p *pet.Pet) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	query := `INSERT INTO pets (id, owner_id, name, species)
	          VALUES ($1, $2, $3, $4)
	          RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, p.ID, p.OwnerID, p.Name, p.Species).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating pet: %w", err)
	}
	return nil
}

func (r *PostgresPetRepository) GetByID(ctx context.Context, id string) (*pet.Pet, error) {
	query := `SELECT id, owner_id, name, species, created_at, updated_at FROM pets WHERE id = $1`
	p := &pet.Pet{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.OwnerID, &p.Name, &p.Species, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, pet.ErrNotFound
		}
		return nil, fmt.Errorf("error getting pet by ID: %w", err)
	}
	return p, nil
}

func (r *PostgresPetRepository) ListByOwner(ctx context.Context, ownerID string) ([]*pet.Pet, error) {
	query := `SELECT id, owner_id, name, species, created_at, updated_at
	          FROM pets WHERE owner_id = $1 ORDER BY name ASC`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("error listing pets: %w", err)
	}
	defer rows.Close()

	pets := make([]*pet.Pet, 0)
	for rows.Next() {
		p := &pet.Pet{}
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Species, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning pet row: %w", err)
		}
		pets = append(pets, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pet rows: %w", err)
	}
	return pets, nil
}

func (r *PostgresPetRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM pets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting pet: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking rows affected: %w", err)
	}
	if n == 0 {
		return pet.ErrNotFound
	}
	return nil
}

type PostgresRecordRepository struct {
	db *sql.DB
}

func NewPostgresRecordRepository(db *sql.DB) *PostgresRecordRepository {
	return &PostgresRecordRepository{db: db}
}

func (r *PostgresRecordRepository) Create(ctx context.Context, rec *record.Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	query := `INSERT INTO medical_records (id, owner_id, pet_id, title, kind, recorded_at)
	          VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))
	          RETURNING recorded_at, created_at`
	var recordedAt sql.NullTime
	if !rec.RecordedAt.IsZero() {
		recordedAt = sql.NullTime{Time: rec.RecordedAt, Valid: true}
	}
	err := r.db.QueryRowContext(ctx, query, rec.ID, rec.OwnerID, rec.PetID, rec.Title, rec.Kind, recordedAt).
		Scan(&rec.RecordedAt, &rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("error creating medical record: %w", err)
	}
	return nil
}

func (r *PostgresRecordRepository) ListByPet(ctx context.Context, petID string) ([]*record.Record, error) {
	query := `SELECT id, owner_id, pet_id, title, kind, recorded_at, created_at
	          FROM medical_records WHERE pet_id = $1 ORDER BY recorded_at DESC`
	rows, err := r.db.QueryContext(ctx, query, petID)
	if err != nil {
		return nil, fmt.Errorf("error listing medical records: %w", err)
	}
	defer rows.Close()

	out := make([]*record.Record, 0)
	for rows.Next() {
		rec := &record.Record{}
		if err := rows.Scan(&rec.ID, &rec.OwnerID, &rec.PetID, &rec.Title, &rec.Kind, &rec.RecordedAt, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning medical record row: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating medical record rows: %w", err)
	}
	return out, nil
}

func (r *PostgresRecordRepository) DeleteByPet(ctx context.Context, petID string) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM medical_records WHERE pet_id = $1`, petID)
	if err != nil {
		return 0, fmt.Errorf("error deleting medical records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error checking rows affected: %w", err)
	}
	return int(n), nil
}
