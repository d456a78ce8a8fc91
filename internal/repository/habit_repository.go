package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"focusd/internal/model"
)

// HabitRepository stores habits and their per-day completion log. Completed
// log days are the second qualifying-activity stream for streaks, alongside
// finished focus sessions.
type HabitRepository struct {
	db *sql.DB
}

func NewHabitRepository(db *sql.DB) *HabitRepository {
	return &HabitRepository{db: db}
}

func (r *HabitRepository) Create(ctx context.Context, habit *model.Habit) error {
	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO habits (id, user_id, title, frequency, color, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		habit.ID,
		habit.UserID,
		habit.Title,
		habit.Frequency,
		habit.Color,
		habit.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("create habit: %w", err)
	}
	return nil
}

// List returns the user's habits with completion status for the given day.
func (r *HabitRepository) List(ctx context.Context, userID, day string) ([]model.Habit, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT h.id, h.title, h.frequency, h.color, h.created_at,
		        EXISTS (
		            SELECT 1 FROM habit_logs l
		            WHERE l.habit_id = h.id AND l.date = ? AND l.completed = 1
		        )
		 FROM habits h
		 WHERE h.user_id = ?
		 ORDER BY h.created_at`,
		day,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}
	defer rows.Close()

	var habits []model.Habit
	for rows.Next() {
		var habit model.Habit
		var createdAt string
		if err := rows.Scan(&habit.ID, &habit.Title, &habit.Frequency, &habit.Color, &createdAt, &habit.CompletedToday); err != nil {
			return nil, fmt.Errorf("scan habit: %w", err)
		}
		parsedCreatedAt, parseErr := parseTime(createdAt)
		if parseErr != nil {
			return nil, fmt.Errorf("parse habit created_at: %w", parseErr)
		}
		habit.UserID = userID
		habit.CreatedAt = parsedCreatedAt
		habits = append(habits, habit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate habits: %w", err)
	}
	return habits, nil
}

func (r *HabitRepository) Get(ctx context.Context, userID, habitID string) (*model.Habit, error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT id, title, frequency, color, created_at
		 FROM habits
		 WHERE user_id = ? AND id = ?`,
		userID,
		habitID,
	)

	var habit model.Habit
	var createdAt string
	if err := row.Scan(&habit.ID, &habit.Title, &habit.Frequency, &habit.Color, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get habit: %w", err)
	}
	parsedCreatedAt, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse habit created_at: %w", err)
	}
	habit.UserID = userID
	habit.CreatedAt = parsedCreatedAt
	return &habit, nil
}

// Delete removes a habit; its log rows go with it via ON DELETE CASCADE.
func (r *HabitRepository) Delete(ctx context.Context, userID, habitID string) error {
	result, err := r.db.ExecContext(
		ctx,
		`DELETE FROM habits WHERE user_id = ? AND id = ?`,
		userID,
		habitID,
	)
	if err != nil {
		return fmt.Errorf("delete habit: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete habit rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *HabitRepository) IsCompleted(ctx context.Context, habitID, day string) (bool, error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM habit_logs WHERE habit_id = ? AND date = ? AND completed = 1`,
		habitID,
		day,
	)
	var count int
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("check habit log: %w", err)
	}
	return count > 0, nil
}

func (r *HabitRepository) MarkCompleted(ctx context.Context, userID, habitID, day string) error {
	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO habit_logs (habit_id, user_id, date, completed) VALUES (?, ?, ?, 1)
		 ON CONFLICT(habit_id, date) DO UPDATE SET completed = 1`,
		habitID,
		userID,
		day,
	)
	if err != nil {
		return fmt.Errorf("mark habit completed: %w", err)
	}
	return nil
}

func (r *HabitRepository) ClearCompleted(ctx context.Context, habitID, day string) error {
	_, err := r.db.ExecContext(
		ctx,
		`DELETE FROM habit_logs WHERE habit_id = ? AND date = ?`,
		habitID,
		day,
	)
	if err != nil {
		return fmt.Errorf("clear habit log: %w", err)
	}
	return nil
}

// DistinctCompletedDays returns the calendar-day keys with at least one
// completed habit.
func (r *HabitRepository) DistinctCompletedDays(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT DISTINCT date FROM habit_logs WHERE user_id = ? AND completed = 1`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("distinct habit days: %w", err)
	}
	defer rows.Close()

	var days []string
	for rows.Next() {
		var day string
		if err := rows.Scan(&day); err != nil {
			return nil, fmt.Errorf("scan habit day: %w", err)
		}
		days = append(days, day)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate habit days: %w", err)
	}
	return days, nil
}

func (r *HabitRepository) CountCompleted(ctx context.Context, userID string) (int, error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT COUNT(*) FROM habit_logs WHERE user_id = ? AND completed = 1`,
		userID,
	)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count habit completions: %w", err)
	}
	return count, nil
}
