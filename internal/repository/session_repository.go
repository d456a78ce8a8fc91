package repository

import (
	"context"
	"database/sql"
	"fmt"

	"focusd/internal/model"
)

// SessionRepository is the append-only ledger of completed focus sessions.
// Rows are never mutated or deleted; reads serve history and streak
// analytics.
type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Append(ctx context.Context, userID string, record model.SessionRecord) error {
	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO pomodoro_sessions (id, user_id, duration_minutes, label, completed_at)
		 VALUES (?, ?, ?, ?, ?)`,
		record.ID,
		userID,
		record.DurationMinutes,
		record.Label,
		record.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("append session: %w", err)
	}
	return nil
}

func (r *SessionRepository) List(ctx context.Context, userID string, limit int) ([]model.SessionRecord, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT id, duration_minutes, label, completed_at
		 FROM pomodoro_sessions
		 WHERE user_id = ?
		 ORDER BY completed_at DESC
		 LIMIT ?`,
		userID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	records := make([]model.SessionRecord, 0, limit)
	for rows.Next() {
		var record model.SessionRecord
		if err := rows.Scan(&record.ID, &record.DurationMinutes, &record.Label, &record.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return records, nil
}

// DistinctActiveDays returns the calendar-day keys with at least one
// completed session. completed_at is stored local-naive, so date() buckets
// by the user's local day.
func (r *SessionRepository) DistinctActiveDays(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT DISTINCT date(completed_at) FROM pomodoro_sessions WHERE user_id = ?`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("distinct session days: %w", err)
	}
	defer rows.Close()

	var days []string
	for rows.Next() {
		var day string
		if err := rows.Scan(&day); err != nil {
			return nil, fmt.Errorf("scan session day: %w", err)
		}
		days = append(days, day)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session days: %w", err)
	}
	return days, nil
}

// Totals returns the summed focus minutes and the session count.
func (r *SessionRepository) Totals(ctx context.Context, userID string) (minutes int, sessions int, err error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT COALESCE(SUM(duration_minutes), 0), COUNT(*)
		 FROM pomodoro_sessions
		 WHERE user_id = ?`,
		userID,
	)
	if err := row.Scan(&minutes, &sessions); err != nil {
		return 0, 0, fmt.Errorf("session totals: %w", err)
	}
	return minutes, sessions, nil
}
