// Package engine implements the focus-session countdown state machine.
//
// While a session is running the engine keeps a single absolute deadline and
// derives the remaining time from it on every read. It never counts ticks
// down: decrement counters drift under scheduler delay, background throttling
// and suspend/resume, whereas deadline arithmetic survives all three. The
// deadline is also what gets persisted, so a killed and relaunched process
// recovers the countdown exactly where the wall clock says it should be.
package engine

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"focusd/internal/clock"
	"focusd/internal/model"
	"focusd/internal/notify"
)

const (
	// SettingsKey is the key-value slot the durable settings copy lives in.
	SettingsKey = "pomodoro_settings"
	// StateKey is the key-value slot for the recovery snapshot.
	StateKey = "timer_state"

	workSessionLabel = "Work Session"

	progressInterval = time.Second
)

// Store is the minimal durable key-value surface the engine needs for its
// recovery snapshot and settings copy. Read and write failures are tolerated.
type Store interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
}

// Ledger receives exactly one record per completed work session. A failed
// append is queued inside the engine and retried on later ticks so the
// historical record the streak computation depends on is not silently lost.
type Ledger interface {
	Append(record model.SessionRecord) error
}

// Engine owns the live timer state for a single scope (one user, or one
// shared space behind an external synchronization boundary). It is not safe
// for concurrent mutation by multiple actors beyond its own mutex: callers
// are expected to funnel writes through a single logical owner.
type Engine struct {
	mu       sync.Mutex
	clk      clock.Clock
	store    Store
	ledger   Ledger
	notifier notify.Notifier
	logger   *log.Logger

	settings  model.SessionSettings
	kind      model.SessionKind
	remaining int
	running   bool
	deadline  time.Time // zero iff not running

	completedWork int

	completing   bool
	pending      []model.SessionRecord
	lastProgress time.Time
}

// recoverySnapshot is the minimal persisted state sufficient to reconstruct
// the timer after a restart. Encoding is a private detail of the engine.
type recoverySnapshot struct {
	Kind                  model.SessionKind `json:"kind"`
	Running               bool              `json:"running"`
	DeadlineEpochMillis   int64             `json:"deadlineEpochMillis,omitempty"`
	RemainingSeconds      int               `json:"remainingSeconds"`
	CompletedWorkSessions int               `json:"completedWorkSessions"`
}

// New builds an engine and immediately restores any persisted state. A
// session whose deadline elapsed while the process was down is completed on
// the spot, so the ledger never loses a session to a restart. Persistence
// failures during restore are logged and treated as a fresh start.
func New(clk clock.Clock, store Store, ledger Ledger, notifier notify.Notifier, logger *log.Logger) *Engine {
	e := &Engine{
		clk:      clk,
		store:    store,
		ledger:   ledger,
		notifier: notifier,
		logger:   logger,
		settings: model.DefaultSettings(),
		kind:     model.KindWork,
	}
	e.loadSettings()
	e.remaining = e.settings.DurationSeconds(e.kind)
	e.restore()
	return e
}

func (e *Engine) loadSettings() {
	raw, ok, err := e.store.Get(SettingsKey)
	if err != nil {
		e.logger.Printf("load settings: %v", err)
		return
	}
	if !ok {
		return
	}
	loaded := e.settings
	if err := json.Unmarshal([]byte(raw), &loaded); err != nil {
		e.logger.Printf("decode settings: %v", err)
		return
	}
	if err := loaded.Validate(); err != nil {
		e.logger.Printf("stored settings rejected: %v", err)
		return
	}
	e.settings = loaded
}

func (e *Engine) restore() {
	raw, ok, err := e.store.Get(StateKey)
	if err != nil {
		e.logger.Printf("load timer state: %v", err)
		return
	}
	if !ok {
		return
	}

	var snap recoverySnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		e.logger.Printf("decode timer state: %v", err)
		return
	}
	if !snap.Kind.Valid() {
		return
	}

	e.kind = snap.Kind
	if snap.CompletedWorkSessions > 0 {
		e.completedWork = snap.CompletedWorkSessions
	}

	if !snap.Running {
		e.remaining = snap.RemainingSeconds
		if e.remaining < 0 {
			e.remaining = 0
		}
		return
	}

	deadline := time.UnixMilli(snap.DeadlineEpochMillis)
	now := e.clk.Now()
	if deadline.After(now) {
		// The countdown catches up silently, as if the process never stopped.
		e.running = true
		e.deadline = deadline
		e.remaining = remainingAt(deadline, now)
		return
	}

	// The session elapsed while we were down. Credit it rather than drop it.
	e.remaining = 0
	e.complete()
}

// Start anchors the countdown at now + remaining. No-op while running.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.start()
}

func (e *Engine) start() {
	if e.running {
		return
	}
	now := e.clk.Now()
	e.deadline = now.Add(time.Duration(e.remaining) * time.Second)
	e.running = true
	e.persist()
	e.notifier.Notify(notify.Event{
		Type:             notify.EventStarted,
		Kind:             e.kind,
		RemainingSeconds: e.remaining,
		EndsAt:           e.deadline,
	})
}

// Pause freezes the countdown, converting the deadline back into a remaining
// duration. No-op while not running; calling it twice equals calling it once.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return
	}
	e.remaining = remainingAt(e.deadline, e.clk.Now())
	e.stop()
	e.persist()
}

// Reset stops the timer and restores the full configured duration for the
// current kind. The kind itself is unchanged.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stop()
	e.remaining = e.settings.DurationSeconds(e.kind)
	e.persist()
}

// ChangeKind always interrupts an active countdown: explicit navigation
// between work and breaks wins over whatever was running.
func (e *Engine) ChangeKind(kind model.SessionKind) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !kind.Valid() {
		return
	}
	e.switchKind(kind)
	e.persist()
}

// UpdateSettings merges a partial update over the current settings. An
// invalid result is rejected and the previous settings stay in force. While
// a countdown is running the new durations only take effect at the next
// natural stop, so an in-flight session is never truncated or extended.
func (e *Engine) UpdateSettings(patch model.SettingsPatch) (model.SessionSettings, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	merged := e.settings.Apply(patch)
	if err := merged.Validate(); err != nil {
		return e.settings, err
	}
	e.settings = merged

	encoded, err := json.Marshal(merged)
	if err == nil {
		err = e.store.Set(SettingsKey, string(encoded))
	}
	if err != nil {
		e.logger.Printf("persist settings: %v", err)
	}

	if !e.running {
		e.remaining = e.settings.DurationSeconds(e.kind)
		e.persist()
	}
	return e.settings, nil
}

// Tick recomputes the remaining time from the deadline anchor and runs the
// completion protocol when it reaches zero. It is meant to be driven by a
// recurring scheduler at one-second cadence or faster.
func (e *Engine) Tick() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.completing {
		return
	}
	e.flushPending()

	if !e.running {
		return
	}

	now := e.clk.Now()
	rem := remainingAt(e.deadline, now)
	if rem > 0 {
		e.remaining = rem
		if now.Sub(e.lastProgress) >= progressInterval {
			e.lastProgress = now
			e.notifier.Notify(notify.Event{
				Type:             notify.EventProgress,
				Kind:             e.kind,
				RemainingSeconds: rem,
			})
		}
		return
	}

	e.completing = true
	e.complete()
	e.completing = false
}

// complete runs the completion protocol: stop, notify, credit a finished
// work session to the ledger, advance to the next kind and auto-continue if
// configured. Caller holds the lock.
func (e *Engine) complete() {
	e.stop()
	e.remaining = 0
	finished := e.kind

	e.notifier.Notify(notify.Event{Type: notify.EventCompleted, Kind: finished})

	if finished == model.KindWork {
		// The configured duration is credited, not wall-clock elapsed: a
		// process that lost scheduling for a while must not inflate the record.
		e.appendRecord(model.SessionRecord{
			ID:              uuid.NewString(),
			DurationMinutes: e.settings.WorkMinutes,
			Label:           workSessionLabel,
			CompletedAt:     e.clk.Now().Format(model.LocalTimestampLayout),
		})
		e.completedWork++

		next := model.KindShortBreak
		if e.completedWork%e.settings.RoundsBeforeLongBreak == 0 {
			next = model.KindLongBreak
		}
		e.switchKind(next)
		e.persist()
		if e.settings.AutoStartBreaks {
			e.start()
		}
		return
	}

	e.switchKind(model.KindWork)
	e.persist()
	if e.settings.AutoStartWork {
		e.start()
	}
}

func (e *Engine) stop() {
	e.running = false
	e.deadline = time.Time{}
}

func (e *Engine) switchKind(kind model.SessionKind) {
	e.stop()
	e.kind = kind
	e.remaining = e.settings.DurationSeconds(kind)
}

func (e *Engine) appendRecord(record model.SessionRecord) {
	e.flushPending()
	if len(e.pending) > 0 {
		e.pending = append(e.pending, record)
		return
	}
	if err := e.ledger.Append(record); err != nil {
		e.logger.Printf("append session record: %v", err)
		e.pending = append(e.pending, record)
	}
}

// flushPending retries ledger appends that failed earlier, in order. Caller
// holds the lock.
func (e *Engine) flushPending() {
	for len(e.pending) > 0 {
		if err := e.ledger.Append(e.pending[0]); err != nil {
			e.logger.Printf("retry session record: %v", err)
			return
		}
		e.pending = e.pending[1:]
	}
}

func (e *Engine) persist() {
	snap := recoverySnapshot{
		Kind:                  e.kind,
		Running:               e.running,
		RemainingSeconds:      e.remaining,
		CompletedWorkSessions: e.completedWork,
	}
	if e.running {
		snap.DeadlineEpochMillis = e.deadline.UnixMilli()
	}
	encoded, err := json.Marshal(snap)
	if err == nil {
		err = e.store.Set(StateKey, string(encoded))
	}
	if err != nil {
		// Best effort: the countdown stays correct, the next write catches up.
		e.logger.Printf("persist timer state: %v", err)
	}
}

// State is a point-in-time view of the engine.
type State struct {
	Kind                  model.SessionKind
	RemainingSeconds      int
	Running               bool
	Deadline              time.Time
	CompletedWorkSessions int
	Settings              model.SessionSettings
}

// State derives the remaining time from the deadline at the instant of the
// call, so two reads a second apart while running differ by one second.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	rem := e.remaining
	if e.running {
		rem = remainingAt(e.deadline, e.clk.Now())
	}
	return State{
		Kind:                  e.kind,
		RemainingSeconds:      rem,
		Running:               e.running,
		Deadline:              e.deadline,
		CompletedWorkSessions: e.completedWork,
		Settings:              e.settings,
	}
}

// remainingAt is ceil((deadline-now)/1s), floored at zero.
func remainingAt(deadline, now time.Time) int {
	d := deadline.Sub(now)
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
