package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresPermissionRepository implements notification.PermissionStore and notification.DeviceTokens.
type PostgresPermissionRepository struct {
	db             *sql.DB
	defaultGranted bool
}

func NewPostgresPermissionRepository(db *sql.DB, defaultGranted bool) *PostgresPermissionRepository {
	return &PostgresPermissionRepository{db: db, defaultGranted: defaultGranted}
}

func (r *PostgresPermissionRepository) HasNotificationPermission(ctx context.Context, ownerID string) (bool, error) {
	var granted bool
	err := r.db.QueryRowContext(ctx, `SELECT granted FROM notification_permissions WHERE owner_id = $1`, ownerID).Scan(&granted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("error getting notification permission: %w", err)
	}
	return granted, nil
}

// RequestNotificationPermission records the configured default on first ask and returns
// the stored choice afterwards.
func (r *PostgresPermissionRepository) RequestNotificationPermission(ctx context.Context, ownerID string) (bool, error) {
	query := `INSERT INTO notification_permissions (owner_id, granted)
	          VALUES ($1, $2)
	          ON CONFLICT (owner_id) DO UPDATE SET owner_id = EXCLUDED.owner_id
	          RETURNING granted`
	var granted bool
	if err := r.db.QueryRowContext(ctx, query, ownerID, r.defaultGranted).Scan(&granted); err != nil {
		return false, fmt.Errorf("error requesting notification permission: %w", err)
	}
	return granted, nil
}

func (r *PostgresPermissionRepository) SetNotificationPermission(ctx context.Context, ownerID string, granted bool) error {
	query := `INSERT INTO notification_permissions (owner_id, granted)
	          VALUES ($1, $2)
	          ON CONFLICT (owner_id) DO UPDATE SET granted = EXCLUDED.granted, updated_at = NOW()`
	if _, err := r.db.ExecContext(ctx, query, ownerID, granted); err != nil {
		return fmt.Errorf("error setting notification permission: %w", err)
	}
	return nil
}

func (r *PostgresPermissionRepository) RegisterDeviceToken(ctx context.Context, ownerID, token string) error {
	query := `INSERT INTO device_tokens (owner_id, token) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, ownerID, token); err != nil {
		return fmt.Errorf("error registering device token: %w", err)
	}
	return nil
}

func (r *PostgresPermissionRepository) DeviceTokens(ctx context.Context, ownerID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT token FROM device_tokens WHERE owner_id = $1 ORDER BY created_at`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("error listing device tokens: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("error scanning device token: %w", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating device tokens: %w", err)
	}
	return tokens, nil
}
