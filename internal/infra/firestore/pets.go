package firestore

import (
	"context"
	"fmt"
	"sort"

	"petcare_reminders/internal/domain/pet"
	"petcare_reminders/internal/domain/record"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type PetStore struct {
	client *firestore.Client
}

func NewPetStore(client *firestore.Client) *PetStore {
	return &PetStore{client: client}
}

func (s *PetStore) Create(ctx context.Context, p *pet.Pet) error {
	col := s.client.Collection(petsCollection)
	ref := col.NewDoc()
	if p.ID != "" {
		ref = col.Doc(p.ID)
	}
	wr, err := ref.Create(ctx, petDoc{UserID: p.OwnerID, Name: p.Name, Species: p.Species})
	if err != nil {
		return fmt.Errorf("error creating pet: %w", err)
	}
	p.ID = ref.ID
	p.CreatedAt, p.UpdatedAt = wr.UpdateTime, wr.UpdateTime
	return nil
}

func (s *PetStore) GetByID(ctx context.Context, id string) (*pet.Pet, error) {
	snap, err := s.client.Collection(petsCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, pet.ErrNotFound
		}
		return nil, fmt.Errorf("error getting pet by ID: %w", err)
	}
	var d petDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, fmt.Errorf("error decoding pet %s: %w", id, err)
	}
	return d.toPet(snap.Ref.ID), nil
}

func (s *PetStore) ListByOwner(ctx context.Context, ownerID string) ([]*pet.Pet, error) {
	snaps, err := s.client.Collection(petsCollection).Where("userId", "==", ownerID).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("error listing pets: %w", err)
	}
	pets := make([]*pet.Pet, 0, len(snaps))
	for _, snap := range snaps {
		var d petDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, fmt.Errorf("error decoding pet %s: %w", snap.Ref.ID, err)
		}
		pets = append(pets, d.toPet(snap.Ref.ID))
	}
	sort.Slice(pets, func(i, j int) bool { return pets[i].Name < pets[j].Name })
	return pets, nil
}

func (s *PetStore) Delete(ctx context.Context, id string) error {
	if _, err := s.client.Collection(petsCollection).Doc(id).Delete(ctx, firestore.Exists); err != nil {
		if status.Code(err) == codes.NotFound {
			return pet.ErrNotFound
		}
		return fmt.Errorf("error deleting pet: %w", err)
	}
	return nil
}

type RecordStore struct {
	client *firestore.Client
}

func NewRecordStore(client *firestore.Client) *RecordStore {
	return &RecordStore{client: client}
}

func (s *RecordStore) byPet(petID string) firestore.Query {
	return s.client.Collection(recordsCollection).Where("petId", "==", petID)
}

func (s *RecordStore) ListByPet(ctx context.Context, petID string) ([]*record.Record, error) {
	snaps, err := s.byPet(petID).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("error listing records: %w", err)
	}
	out := make([]*record.Record, 0, len(snaps))
	for _, snap := range snaps {
		var d recordDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, fmt.Errorf("error decoding record %s: %w", snap.Ref.ID, err)
		}
		out = append(out, d.toRecord(snap.Ref.ID))
	}
	return out, nil
}

// DeleteByPet removes the pet's records with a BulkWriter. It reports how many deletes
// succeeded; a partial failure returns the first error.
func (s *RecordStore) DeleteByPet(ctx context.Context, petID string) (int, error) {
	refs, err := s.byPet(petID).Documents(ctx).GetAll()
	if err != nil {
		return 0, fmt.Errorf("error listing records: %w", err)
	}
	if len(refs) == 0 {
		return 0, nil
	}

	bw := s.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(refs))
	for _, snap := range refs {
		job, err := bw.Delete(snap.Ref)
		if err != nil {
			bw.End()
			return 0, fmt.Errorf("error queueing record delete: %w", err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	deleted := 0
	var firstErr error
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		deleted++
	}
	if firstErr != nil {
		return deleted, fmt.Errorf("error deleting records: %w", firstErr)
	}
	return deleted, nil
}
