// Package streak computes consecutive-day activity streaks from calendar-day
// keys. It is a pure function of its input and is recomputed on every read.
package streak

import (
	"sort"
	"time"

	"focusd/internal/model"
)

// Result holds the two streak figures the dashboard shows.
type Result struct {
	Current int `json:"current"`
	Longest int `json:"longest"`
}

// Compute takes day keys (YYYY-MM-DD, local dates) on which at least one
// qualifying activity was logged, plus the current time, and returns the
// current and longest consecutive-day streaks.
//
// The current streak counts back from the most recent active day, but only
// if that day is today or yesterday: a day with no activity yet does not
// break the streak while it is still in progress, whereas a full missed day
// does. The longest streak scans the whole history regardless.
//
// All arithmetic happens on date-only values so daylight-saving shifts can
// never make two adjacent calendar days look non-consecutive.
func Compute(dayKeys []string, now time.Time) Result {
	days := parseDays(dayKeys)
	if len(days) == 0 {
		return Result{}
	}

	// Most recent first.
	sort.Slice(days, func(i, j int) bool { return days[i].After(days[j]) })

	result := Result{Longest: longestRun(days)}

	today := dateOnly(now)
	yesterday := today.AddDate(0, 0, -1)
	if !days[0].Equal(today) && !days[0].Equal(yesterday) {
		return result
	}

	result.Current = 1
	for i := 0; i < len(days)-1; i++ {
		if !days[i].AddDate(0, 0, -1).Equal(days[i+1]) {
			break
		}
		result.Current++
	}
	return result
}

func longestRun(days []time.Time) int {
	longest := 1
	run := 1
	for i := 0; i < len(days)-1; i++ {
		if days[i].AddDate(0, 0, -1).Equal(days[i+1]) {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}
	return longest
}

// parseDays decodes and deduplicates day keys, dropping anything malformed.
func parseDays(dayKeys []string) []time.Time {
	seen := make(map[string]struct{}, len(dayKeys))
	days := make([]time.Time, 0, len(dayKeys))
	for _, key := range dayKeys {
		if _, ok := seen[key]; ok {
			continue
		}
		day, err := time.ParseInLocation(model.DayKeyLayout, key, time.UTC)
		if err != nil {
			continue
		}
		seen[key] = struct{}{}
		days = append(days, day)
	}
	return days
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
