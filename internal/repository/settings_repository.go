package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// SettingsRepository is the dumb per-user key-value store behind the timer
// engine: the recovery snapshot and the durable settings copy live here. It
// never interprets values.
type SettingsRepository struct {
	db *sql.DB
}

func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

func (r *SettingsRepository) Get(ctx context.Context, userID, key string) (string, bool, error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT value FROM settings WHERE user_id = ? AND key = ?`,
		userID,
		key,
	)

	var value string
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, true, nil
}

func (r *SettingsRepository) Set(ctx context.Context, userID, key, value string) error {
	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO settings (user_id, key, value) VALUES (?, ?, ?)
		 ON CONFLICT(user_id, key) DO UPDATE SET value = excluded.value`,
		userID,
		key,
		value,
	)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}
