package service

import (
	"context"

	"focusd/internal/clock"
	apperrors "focusd/internal/errors"
	"focusd/internal/repository"
	"focusd/internal/streak"
)

// StatsService aggregates the activity history: streaks over the union of
// session-ledger days and habit-completion days, plus lifetime totals.
type StatsService struct {
	sessionRepo *repository.SessionRepository
	habitRepo   *repository.HabitRepository
	clk         clock.Clock
}

type StatsView struct {
	TotalFocusMinutes    int `json:"totalFocusMinutes"`
	TotalSessions        int `json:"totalSessions"`
	TotalHabitsCompleted int `json:"totalHabitsCompleted"`
	CurrentStreak        int `json:"currentStreak"`
	LongestStreak        int `json:"longestStreak"`
}

func NewStatsService(
	sessionRepo *repository.SessionRepository,
	habitRepo *repository.HabitRepository,
	clk clock.Clock,
) *StatsService {
	return &StatsService{
		sessionRepo: sessionRepo,
		habitRepo:   habitRepo,
		clk:         clk,
	}
}

func (s *StatsService) GetStats(ctx context.Context, userID string) (*StatsView, *apperrors.APIError) {
	sessionDays, err := s.sessionRepo.DistinctActiveDays(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("failed to read session days")
	}
	habitDays, err := s.habitRepo.DistinctCompletedDays(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("failed to read habit days")
	}

	streaks := streak.Compute(append(sessionDays, habitDays...), s.clk.Now())

	minutes, sessions, err := s.sessionRepo.Totals(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("failed to read session totals")
	}
	habitsCompleted, err := s.habitRepo.CountCompleted(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("failed to count habit completions")
	}

	return &StatsView{
		TotalFocusMinutes:    minutes,
		TotalSessions:        sessions,
		TotalHabitsCompleted: habitsCompleted,
		CurrentStreak:        streaks.Current,
		LongestStreak:        streaks.Longest,
	}, nil
}
