package notification

import "context"

// Permissions is the notification-permission collaborator. The UI asks for permission
// before scheduling; the scheduler checks again on every Schedule call.
type Permissions interface {
	HasNotificationPermission(ctx context.Context, ownerID string) (bool, error)
	RequestNotificationPermission(ctx context.Context, ownerID string) (bool, error)
}

// PermissionStore persists the owner's explicit choice.
type PermissionStore interface {
	Permissions
	SetNotificationPermission(ctx context.Context, ownerID string, granted bool) error
}
