package model

import "time"

const (
	FrequencyDaily  = "daily"
	FrequencyWeekly = "weekly"

	DefaultHabitColor = "#3b82f6"
)

// Habit is a recurring activity whose daily completions feed the streak
// computation alongside completed focus sessions.
type Habit struct {
	ID             string    `json:"id"`
	UserID         string    `json:"-"`
	Title          string    `json:"title"`
	Frequency      string    `json:"frequency"`
	Color          string    `json:"color"`
	CreatedAt      time.Time `json:"createdAt"`
	CompletedToday bool      `json:"completedToday"`
}
