package memstore

import (
	"context"
	"sync"
)

// PermissionStore implements notification.PermissionStore. Owners that were never asked
// have no permission until RequestNotificationPermission records the default.
type PermissionStore struct {
	mu             sync.RWMutex
	granted        map[string]bool
	defaultGranted bool
}

func NewPermissionStore(defaultGranted bool) *PermissionStore {
	return &PermissionStore{granted: make(map[string]bool), defaultGranted: defaultGranted}
}

func (s *PermissionStore) HasNotificationPermission(ctx context.Context, ownerID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.granted[ownerID], nil
}

func (s *PermissionStore) RequestNotificationPermission(ctx context.Context, ownerID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.granted[ownerID]; ok {
		return v, nil
	}
	s.granted[ownerID] = s.defaultGranted
	return s.defaultGranted, nil
}

func (s *PermissionStore) SetNotificationPermission(ctx context.Context, ownerID string, granted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.granted[ownerID] = granted
	return nil
}

// DeviceTokenStore implements notification.DeviceTokens.
type DeviceTokenStore struct {
	mu     sync.RWMutex
	tokens map[string][]string
}

func NewDeviceTokenStore() *DeviceTokenStore {
	return &DeviceTokenStore{tokens: make(map[string][]string)}
}

func (s *DeviceTokenStore) RegisterDeviceToken(ctx context.Context, ownerID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tokens[ownerID] {
		if t == token {
			return nil
		}
	}
	s.tokens[ownerID] = append(s.tokens[ownerID], token)
	return nil
}

func (s *DeviceTokenStore) DeviceTokens(ctx context.Context, ownerID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.tokens[ownerID]...), nil
}
