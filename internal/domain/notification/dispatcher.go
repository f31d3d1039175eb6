package notification

import (
	"context"
	"time"
)

// Delivery is what reaches the owner when a trigger fires.
type Delivery struct {
	Handle     Handle
	ReminderID string
	OwnerID    string
	Title      string
	FiredAt    time.Time
}

// Dispatcher hands a fired trigger to a delivery channel (chat, push, log).
type Dispatcher interface {
	Deliver(ctx context.Context, d Delivery) error
}

// DeviceTokens resolves the push tokens registered for an owner.
// Token registration itself happens outside this module.
type DeviceTokens interface {
	DeviceTokens(ctx context.Context, ownerID string) ([]string, error)
}
