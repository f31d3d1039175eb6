package memstore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"petcare_reminders/internal/domain/pet"
	"petcare_reminders/internal/domain/record"

	"github.com/google/uuid"
)

type PetStore struct {
	mu    sync.RWMutex
	items map[string]*pet.Pet
}

func NewPetStore() *PetStore {
	return &PetStore{items: make(map[string]*pet.Pet)}
}

func (s *PetStore) Create(ctx context.Context, p *pet.Pet) error {
	if p.OwnerID == "" || p.Name == "" {
		return errors.New("pet requires owner and name")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	cp := *p
	s.items[p.ID] = &cp
	return nil
}

func (s *PetStore) GetByID(ctx context.Context, id string) (*pet.Pet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.items[id]
	if !ok {
		return nil, pet.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *PetStore) ListByOwner(ctx context.Context, ownerID string) ([]*pet.Pet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*pet.Pet, 0)
	for _, p := range s.items {
		if p.OwnerID == ownerID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *PetStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return pet.ErrNotFound
	}
	delete(s.items, id)
	return nil
}

type RecordStore struct {
	mu    sync.RWMutex
	items map[string]*record.Record
}

func NewRecordStore() *RecordStore {
	return &RecordStore{items: make(map[string]*record.Record)}
}

// Create is used by seeding and tests; record editing lives outside the engine.
func (s *RecordStore) Create(ctx context.Context, r *record.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.CreatedAt = time.Now()
	cp := *r
	s.items[r.ID] = &cp
	return nil
}

func (s *RecordStore) ListByPet(ctx context.Context, petID string) ([]*record.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*record.Record, 0)
	for _, r := range s.items {
		if r.PetID == petID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *RecordStore) DeleteByPet(ctx context.Context, petID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, r := range s.items {
		if r.PetID == petID {
			delete(s.items, id)
			n++
		}
	}
	return n, nil
}
