package firestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"petcare_reminders/internal/domain/reminder"

	"cloud.google.com/go/firestore"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ReminderStore implements reminder.Repository on the "reminders" collection.
type ReminderStore struct {
	client *firestore.Client
	logger *logrus.Entry
}

func NewReminderStore(client *firestore.Client, logger *logrus.Entry) *ReminderStore {
	return &ReminderStore{client: client, logger: logger}
}

func (s *ReminderStore) col() *firestore.CollectionRef {
	return s.client.Collection(remindersCollection)
}

func (s *ReminderStore) Create(ctx context.Context, r *reminder.Reminder) error {
	if err := reminder.ValidateNew(r); err != nil {
		return err
	}
	if r.Recurrence == "" {
		r.Recurrence = reminder.RecurrenceOnce
	}
	ref := s.col().NewDoc()
	if r.ID != "" {
		ref = s.col().Doc(r.ID)
	}
	wr, err := ref.Create(ctx, toReminderDoc(r))
	if err != nil {
		return fmt.Errorf("%w: error creating reminder: %w", reminder.ErrStore, err)
	}
	r.ID = ref.ID
	r.CreatedAt, r.UpdatedAt = wr.UpdateTime, wr.UpdateTime
	return nil
}

func (s *ReminderStore) GetByID(ctx context.Context, id string) (*reminder.Reminder, error) {
	snap, err := s.col().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, reminder.ErrNotFound
		}
		return nil, fmt.Errorf("%w: error getting reminder by ID: %w", reminder.ErrStore, err)
	}
	return decodeReminder(snap)
}

func (s *ReminderStore) Update(ctx context.Context, id string, patch reminder.Patch) (*reminder.Reminder, error) {
	if _, err := s.col().Doc(id).Update(ctx, patchUpdates(patch)); err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, reminder.ErrNotFound
		}
		return nil, fmt.Errorf("%w: error updating reminder: %w", reminder.ErrStore, err)
	}
	return s.GetByID(ctx, id)
}

func (s *ReminderStore) Delete(ctx context.Context, id string) error {
	if _, err := s.col().Doc(id).Delete(ctx, firestore.Exists); err != nil {
		if status.Code(err) == codes.NotFound {
			return reminder.ErrNotFound
		}
		return fmt.Errorf("%w: error deleting reminder: %w", reminder.ErrStore, err)
	}
	return nil
}

func (s *ReminderStore) ListByOwner(ctx context.Context, ownerID string) ([]*reminder.Reminder, error) {
	return s.list(ctx, reminder.Scope{OwnerID: ownerID})
}

func (s *ReminderStore) ListByPet(ctx context.Context, petID string) ([]*reminder.Reminder, error) {
	return s.list(ctx, reminder.Scope{PetID: petID})
}

func (s *ReminderStore) ListAll(ctx context.Context) ([]*reminder.Reminder, error) {
	return s.list(ctx, reminder.Scope{})
}

func (s *ReminderStore) query(scope reminder.Scope) firestore.Query {
	q := s.col().Query
	if scope.OwnerID != "" {
		q = q.Where("userId", "==", scope.OwnerID)
	}
	if scope.PetID != "" {
		q = q.Where("petId", "==", scope.PetID)
	}
	return q
}

func (s *ReminderStore) list(ctx context.Context, scope reminder.Scope) ([]*reminder.Reminder, error) {
	snaps, err := s.query(scope).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("%w: error listing reminders: %w", reminder.ErrStore, err)
	}
	return decodeAll(snaps, scope)
}

// decodeAll converts a result set. Ordering is applied client-side so that owner+pet
// queries need no composite index.
func decodeAll(snaps []*firestore.DocumentSnapshot, scope reminder.Scope) ([]*reminder.Reminder, error) {
	out := make([]*reminder.Reminder, 0, len(snaps))
	for _, snap := range snaps {
		r, err := decodeReminder(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if scope.OrderByFireAt {
		sort.Slice(out, func(i, j int) bool { return reminder.Less(out[i], out[j]) })
	}
	return out, nil
}

func decodeReminder(snap *firestore.DocumentSnapshot) (*reminder.Reminder, error) {
	var d reminderDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, fmt.Errorf("%w: error decoding reminder %s: %w", reminder.ErrStore, snap.Ref.ID, err)
	}
	return d.toReminder(snap.Ref.ID), nil
}

type snapshotSubscription struct {
	it       *firestore.QuerySnapshotIterator
	stopOnce sync.Once
}

func (s *snapshotSubscription) Stop() {
	s.stopOnce.Do(s.it.Stop)
}

// Subscribe streams query snapshots. The first snapshot is the current state and is
// delivered before Subscribe returns.
func (s *ReminderStore) Subscribe(ctx context.Context, scope reminder.Scope, onChange func([]*reminder.Reminder)) (reminder.Subscription, error) {
	it := s.query(scope).Snapshots(context.WithoutCancel(ctx))

	first, err := it.Next()
	if err != nil {
		it.Stop()
		return nil, fmt.Errorf("%w: error opening live query: %w", reminder.ErrStore, err)
	}
	list, err := snapshotList(first, scope)
	if err != nil {
		it.Stop()
		return nil, err
	}
	onChange(list)

	go func() {
		for {
			snap, err := it.Next()
			if err != nil {
				if errors.Is(err, iterator.Done) || status.Code(err) == codes.Canceled {
					return
				}
				s.logger.WithError(err).Error("Reminder live query stopped")
				return
			}
			list, err := snapshotList(snap, scope)
			if err != nil {
				s.logger.WithError(err).Warn("Skipping undecodable reminder snapshot")
				continue
			}
			onChange(list)
		}
	}()
	return &snapshotSubscription{it: it}, nil
}

func snapshotList(snap *firestore.QuerySnapshot, scope reminder.Scope) ([]*reminder.Reminder, error) {
	docs, err := snap.Documents.GetAll()
	if err != nil {
		return nil, fmt.Errorf("%w: error reading snapshot: %w", reminder.ErrStore, err)
	}
	return decodeAll(docs, scope)
}
