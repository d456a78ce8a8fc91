package model

import (
	"errors"
	"time"
)

// SessionKind identifies which configured duration a countdown uses.
type SessionKind string

const (
	KindWork       SessionKind = "work"
	KindShortBreak SessionKind = "short_break"
	KindLongBreak  SessionKind = "long_break"
)

func (k SessionKind) Valid() bool {
	return k == KindWork || k == KindShortBreak || k == KindLongBreak
}

const (
	DefaultWorkMinutes           = 25
	DefaultShortBreakMinutes     = 5
	DefaultLongBreakMinutes      = 15
	DefaultRoundsBeforeLongBreak = 4
)

// LocalTimestampLayout is the naive local-time format session completions are
// stored with. Keeping the timestamp local-naive means day bucketing for
// streaks never shifts across the UTC boundary.
const LocalTimestampLayout = "2006-01-02T15:04:05"

// DayKeyLayout is the calendar-day key used by the streak computation.
const DayKeyLayout = "2006-01-02"

// SessionSettings is the full per-user timer configuration. It is replaced
// wholesale on update, never mutated field by field.
type SessionSettings struct {
	WorkMinutes           int  `json:"workMinutes"`
	ShortBreakMinutes     int  `json:"shortBreakMinutes"`
	LongBreakMinutes      int  `json:"longBreakMinutes"`
	RoundsBeforeLongBreak int  `json:"roundsBeforeLongBreak"`
	AutoStartBreaks       bool `json:"autoStartBreaks"`
	AutoStartWork         bool `json:"autoStartWork"`
}

func DefaultSettings() SessionSettings {
	return SessionSettings{
		WorkMinutes:           DefaultWorkMinutes,
		ShortBreakMinutes:     DefaultShortBreakMinutes,
		LongBreakMinutes:      DefaultLongBreakMinutes,
		RoundsBeforeLongBreak: DefaultRoundsBeforeLongBreak,
	}
}

var (
	ErrNonPositiveDuration = errors.New("all session durations must be positive minutes")
	ErrInvalidRounds       = errors.New("roundsBeforeLongBreak must be at least 1")
)

func (s SessionSettings) Validate() error {
	if s.WorkMinutes <= 0 || s.ShortBreakMinutes <= 0 || s.LongBreakMinutes <= 0 {
		return ErrNonPositiveDuration
	}
	if s.RoundsBeforeLongBreak < 1 {
		return ErrInvalidRounds
	}
	return nil
}

// DurationSeconds returns the configured full countdown length for a kind.
func (s SessionSettings) DurationSeconds(kind SessionKind) int {
	switch kind {
	case KindShortBreak:
		return s.ShortBreakMinutes * 60
	case KindLongBreak:
		return s.LongBreakMinutes * 60
	default:
		return s.WorkMinutes * 60
	}
}

// SettingsPatch is a partial settings update; nil fields keep their current
// value.
type SettingsPatch struct {
	WorkMinutes           *int  `json:"workMinutes"`
	ShortBreakMinutes     *int  `json:"shortBreakMinutes"`
	LongBreakMinutes      *int  `json:"longBreakMinutes"`
	RoundsBeforeLongBreak *int  `json:"roundsBeforeLongBreak"`
	AutoStartBreaks       *bool `json:"autoStartBreaks"`
	AutoStartWork         *bool `json:"autoStartWork"`
}

// Apply merges a patch over the receiver and returns the merged settings. The
// result is not validated; callers must Validate before adopting it.
func (s SessionSettings) Apply(p SettingsPatch) SessionSettings {
	merged := s
	if p.WorkMinutes != nil {
		merged.WorkMinutes = *p.WorkMinutes
	}
	if p.ShortBreakMinutes != nil {
		merged.ShortBreakMinutes = *p.ShortBreakMinutes
	}
	if p.LongBreakMinutes != nil {
		merged.LongBreakMinutes = *p.LongBreakMinutes
	}
	if p.RoundsBeforeLongBreak != nil {
		merged.RoundsBeforeLongBreak = *p.RoundsBeforeLongBreak
	}
	if p.AutoStartBreaks != nil {
		merged.AutoStartBreaks = *p.AutoStartBreaks
	}
	if p.AutoStartWork != nil {
		merged.AutoStartWork = *p.AutoStartWork
	}
	return merged
}

// SessionRecord is one completed work session in the append-only ledger.
type SessionRecord struct {
	ID              string `json:"id"`
	DurationMinutes int    `json:"durationMinutes"`
	Label           string `json:"label"`
	CompletedAt     string `json:"completedAt"`
}

// CompletedDay returns the calendar-day key of the completion timestamp.
func (r SessionRecord) CompletedDay() (string, error) {
	t, err := time.Parse(LocalTimestampLayout, r.CompletedAt)
	if err != nil {
		return "", err
	}
	return t.Format(DayKeyLayout), nil
}
