package reminder

import "errors"

// Error taxonomy shared by the store, the scheduler and the coordinator.
// Callers classify failures with errors.Is.
var (
	ErrValidation       = errors.New("validation failed")
	ErrAuth             = errors.New("no authenticated owner")
	ErrNotFound         = errors.New("reminder not found")
	ErrPermissionDenied = errors.New("notification permission denied")
	ErrPastDue          = errors.New("one-shot fire time is in the past")
	ErrScheduler        = errors.New("scheduler failure")
	ErrStore            = errors.New("store failure")
	ErrTimeout          = errors.New("operation timed out")
)
