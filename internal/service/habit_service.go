package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"focusd/internal/clock"
	apperrors "focusd/internal/errors"
	"focusd/internal/model"
	"focusd/internal/repository"
)

type HabitService struct {
	habitRepo *repository.HabitRepository
	clk       clock.Clock
}

func NewHabitService(habitRepo *repository.HabitRepository, clk clock.Clock) *HabitService {
	return &HabitService{habitRepo: habitRepo, clk: clk}
}

func (s *HabitService) Create(ctx context.Context, userID, title, color string) (*model.Habit, *apperrors.APIError) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperrors.BadRequest("invalid_title", "title is required")
	}
	if color == "" {
		color = model.DefaultHabitColor
	}

	habit := model.Habit{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Frequency: model.FrequencyDaily,
		Color:     color,
		CreatedAt: s.clk.Now().UTC(),
	}
	if err := s.habitRepo.Create(ctx, &habit); err != nil {
		return nil, apperrors.Internal("failed to create habit")
	}
	return &habit, nil
}

func (s *HabitService) List(ctx context.Context, userID string) ([]model.Habit, *apperrors.APIError) {
	today := s.clk.Now().Format(model.DayKeyLayout)
	habits, err := s.habitRepo.List(ctx, userID, today)
	if err != nil {
		return nil, apperrors.Internal("failed to list habits")
	}
	if habits == nil {
		habits = []model.Habit{}
	}
	return habits, nil
}

func (s *HabitService) Delete(ctx context.Context, userID, habitID string) *apperrors.APIError {
	err := s.habitRepo.Delete(ctx, userID, habitID)
	if err == repository.ErrNotFound {
		return apperrors.NotFound("habit_not_found", "habit not found")
	}
	if err != nil {
		return apperrors.Internal("failed to delete habit")
	}
	return nil
}

// ToggleToday flips today's completion log for a habit and returns the habit
// with its new status.
func (s *HabitService) ToggleToday(ctx context.Context, userID, habitID string) (*model.Habit, *apperrors.APIError) {
	habit, err := s.habitRepo.Get(ctx, userID, habitID)
	if err == repository.ErrNotFound {
		return nil, apperrors.NotFound("habit_not_found", "habit not found")
	}
	if err != nil {
		return nil, apperrors.Internal("failed to get habit")
	}

	today := s.clk.Now().Format(model.DayKeyLayout)
	completed, err := s.habitRepo.IsCompleted(ctx, habitID, today)
	if err != nil {
		return nil, apperrors.Internal("failed to read habit log")
	}

	if completed {
		err = s.habitRepo.ClearCompleted(ctx, habitID, today)
	} else {
		err = s.habitRepo.MarkCompleted(ctx, userID, habitID, today)
	}
	if err != nil {
		return nil, apperrors.Internal("failed to update habit log")
	}

	habit.CompletedToday = !completed
	return habit, nil
}
