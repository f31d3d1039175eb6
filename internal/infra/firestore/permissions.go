package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type permissionDoc struct {
	Granted bool `firestore:"granted"`
}

// PermissionStore implements notification.PermissionStore and notification.DeviceTokens.
// Permissions are keyed by owner id; tokens live in a flat collection tagged with userId.
type PermissionStore struct {
	client         *firestore.Client
	defaultGranted bool
}

func NewPermissionStore(client *firestore.Client, defaultGranted bool) *PermissionStore {
	return &PermissionStore{client: client, defaultGranted: defaultGranted}
}

func (s *PermissionStore) HasNotificationPermission(ctx context.Context, ownerID string) (bool, error) {
	snap, err := s.client.Collection(permissionsCollection).Doc(ownerID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return false, nil
		}
		return false, fmt.Errorf("error getting notification permission: %w", err)
	}
	var d permissionDoc
	if err := snap.DataTo(&d); err != nil {
		return false, fmt.Errorf("error decoding notification permission: %w", err)
	}
	return d.Granted, nil
}

func (s *PermissionStore) RequestNotificationPermission(ctx context.Context, ownerID string) (bool, error) {
	ref := s.client.Collection(permissionsCollection).Doc(ownerID)
	var granted bool
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err == nil {
			var d permissionDoc
			if err := snap.DataTo(&d); err != nil {
				return err
			}
			granted = d.Granted
			return nil
		}
		if status.Code(err) != codes.NotFound {
			return err
		}
		granted = s.defaultGranted
		return tx.Create(ref, permissionDoc{Granted: granted})
	})
	if err != nil {
		return false, fmt.Errorf("error requesting notification permission: %w", err)
	}
	return granted, nil
}

func (s *PermissionStore) SetNotificationPermission(ctx context.Context, ownerID string, granted bool) error {
	if _, err := s.client.Collection(permissionsCollection).Doc(ownerID).Set(ctx, permissionDoc{Granted: granted}); err != nil {
		return fmt.Errorf("error setting notification permission: %w", err)
	}
	return nil
}

type tokenDoc struct {
	UserID string `firestore:"userId"`
	Token  string `firestore:"token"`
}

func (s *PermissionStore) RegisterDeviceToken(ctx context.Context, ownerID, token string) error {
	id := ownerID + "_" + token
	if _, err := s.client.Collection(tokensCollection).Doc(id).Set(ctx, tokenDoc{UserID: ownerID, Token: token}); err != nil {
		return fmt.Errorf("error registering device token: %w", err)
	}
	return nil
}

func (s *PermissionStore) DeviceTokens(ctx context.Context, ownerID string) ([]string, error) {
	snaps, err := s.client.Collection(tokensCollection).Where("userId", "==", ownerID).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("error listing device tokens: %w", err)
	}
	tokens := make([]string, 0, len(snaps))
	for _, snap := range snaps {
		var d tokenDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, fmt.Errorf("error decoding device token: %w", err)
		}
		tokens = append(tokens, d.Token)
	}
	return tokens, nil
}
