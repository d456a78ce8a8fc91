package engine_test

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"focusd/internal/engine"
	"focusd/internal/model"
	"focusd/internal/notify"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

type memStore struct {
	data    map[string]string
	failSet bool
}

func newMemStore() *memStore { return &memStore{data: make(map[string]string)} }

func (s *memStore) Get(key string) (string, bool, error) {
	value, ok := s.data[key]
	return value, ok, nil
}

func (s *memStore) Set(key, value string) error {
	if s.failSet {
		return errors.New("disk full")
	}
	s.data[key] = value
	return nil
}

type memLedger struct {
	records []model.SessionRecord
	fail    bool
}

func (l *memLedger) Append(record model.SessionRecord) error {
	if l.fail {
		return errors.New("database is locked")
	}
	l.records = append(l.records, record)
	return nil
}

type recordingNotifier struct {
	events []notify.Event
}

func (n *recordingNotifier) Notify(event notify.Event) {
	n.events = append(n.events, event)
}

func (n *recordingNotifier) ofType(t notify.EventType) []notify.Event {
	var out []notify.Event
	for _, e := range n.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	clk      *fakeClock
	store    *memStore
	ledger   *memLedger
	notifier *recordingNotifier
}

func newFixture() *fixture {
	return &fixture{
		clk:      &fakeClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.Local)},
		store:    newMemStore(),
		ledger:   &memLedger{},
		notifier: &recordingNotifier{},
	}
}

func (f *fixture) newEngine() *engine.Engine {
	return engine.New(f.clk, f.store, f.ledger, f.notifier, log.New(io.Discard, "", 0))
}

func checkInvariant(t *testing.T, eng *engine.Engine) {
	t.Helper()
	state := eng.State()
	if state.Running != !state.Deadline.IsZero() {
		t.Fatalf("invariant violated: running=%v deadline=%v", state.Running, state.Deadline)
	}
}

func TestStartAnchorsDeadline(t *testing.T) {
	f := newFixture()
	eng := f.newEngine()

	eng.Start()

	state := eng.State()
	if !state.Running {
		t.Fatal("expected running after start")
	}
	if state.RemainingSeconds != 25*60 {
		t.Fatalf("expected 1500 remaining, got %d", state.RemainingSeconds)
	}
	want := f.clk.now.Add(25 * time.Minute)
	if !state.Deadline.Equal(want) {
		t.Fatalf("expected deadline %v, got %v", want, state.Deadline)
	}
	checkInvariant(t, eng)

	if len(f.notifier.ofType(notify.EventStarted)) != 1 {
		t.Fatalf("expected one started event, got %d", len(f.notifier.ofType(notify.EventStarted)))
	}
	if _, ok := f.store.data[engine.StateKey]; !ok {
		t.Fatal("expected snapshot persisted on start")
	}

	// Starting again is a no-op.
	eng.Start()
	if got := len(f.notifier.ofType(notify.EventStarted)); got != 1 {
		t.Fatalf("second start should be a no-op, got %d started events", got)
	}
}

func TestRemainingDerivesFromDeadline(t *testing.T) {
	f := newFixture()
	eng := f.newEngine()

	eng.Start()
	f.clk.advance(100 * time.Second)
	if got := eng.State().RemainingSeconds; got != 1400 {
		t.Fatalf("expected 1400 after 100s, got %d", got)
	}

	// Half a second left rounds up, never down.
	f.clk.advance(1399*time.Second + 500*time.Millisecond)
	if got := eng.State().RemainingSeconds; got != 1 {
		t.Fatalf("expected 1 with half a second left, got %d", got)
	}
}

func TestPauseIsIdempotent(t *testing.T) {
	f := newFixture()
	eng := f.newEngine()

	eng.Start()
	f.clk.advance(10 * time.Second)
	eng.Pause()

	state := eng.State()
	if state.Running {
		t.Fatal("expected stopped after pause")
	}
	if state.RemainingSeconds != 1490 {
		t.Fatalf("expected 1490 remaining, got %d", state.RemainingSeconds)
	}
	checkInvariant(t, eng)

	f.clk.advance(time.Hour)
	eng.Pause()
	if got := eng.State().RemainingSeconds; got != 1490 {
		t.Fatalf("second pause changed remaining to %d", got)
	}
}

func TestResetRestoresFullDuration(t *testing.T) {
	f := newFixture()
	eng := f.newEngine()

	eng.Start()
	f.clk.advance(5 * time.Minute)
	eng.Reset()

	state := eng.State()
	if state.Running {
		t.Fatal("expected stopped after reset")
	}
	if state.RemainingSeconds != 25*60 {
		t.Fatalf("expected full duration after reset, got %d", state.RemainingSeconds)
	}
	if state.Kind != model.KindWork {
		t.Fatalf("reset must not change kind, got %s", state.Kind)
	}
	checkInvariant(t, eng)
}

func TestChangeKindInterruptsCountdown(t *testing.T) {
	f := newFixture()
	eng := f.newEngine()

	eng.Start()
	f.clk.advance(time.Minute)
	eng.ChangeKind(model.KindLongBreak)

	state := eng.State()
	if state.Running {
		t.Fatal("expected changeKind to stop the countdown")
	}
	if state.Kind != model.KindLongBreak {
		t.Fatalf("expected long_break, got %s", state.Kind)
	}
	if state.RemainingSeconds != 15*60 {
		t.Fatalf("expected 900 remaining, got %d", state.RemainingSeconds)
	}
	checkInvariant(t, eng)
}

func TestBasicCycle(t *testing.T) {
	f := newFixture()
	eng := f.newEngine()

	eng.Start()
	f.clk.advance(25 * time.Minute)
	eng.Tick()

	if len(f.ledger.records) != 1 {
		t.Fatalf("expected one session record, got %d", len(f.ledger.records))
	}
	record := f.ledger.records[0]
	if record.DurationMinutes != 25 {
		t.Fatalf("expected duration 25, got %d", record.DurationMinutes)
	}
	if record.CompletedAt != f.clk.now.Format(model.LocalTimestampLayout) {
		t.Fatalf("unexpected completion timestamp %q", record.CompletedAt)
	}

	state := eng.State()
	if state.CompletedWorkSessions != 1 {
		t.Fatalf("expected 1 completed session, got %d", state.CompletedWorkSessions)
	}
	if state.Kind != model.KindShortBreak {
		t.Fatalf("expected short_break next, got %s", state.Kind)
	}
	if state.RemainingSeconds != 300 {
		t.Fatalf("expected 300 remaining, got %d", state.RemainingSeconds)
	}
	if state.Running {
		t.Fatal("expected stopped with autoStartBreaks off")
	}

	// A second tick at the same instant must not complete again.
	eng.Tick()
	if len(f.ledger.records) != 1 {
		t.Fatalf("completion fired twice: %d records", len(f.ledger.records))
	}

	completed := f.notifier.ofType(notify.EventCompleted)
	if len(completed) != 1 || completed[0].Kind != model.KindWork {
		t.Fatalf("expected one work completion event, got %+v", completed)
	}
}

func TestLongBreakAfterConfiguredRounds(t *testing.T) {
	f := newFixture()
	eng := f.newEngine()

	for i := 1; i <= 4; i++ {
		eng.ChangeKind(model.KindWork)
		eng.Start()
		f.clk.advance(25 * time.Minute)
		eng.Tick()

		state := eng.State()
		want := model.KindShortBreak
		if i == 4 {
			want = model.KindLongBreak
		}
		if state.Kind != want {
			t.Fatalf("after %d sessions expected %s, got %s", i, want, state.Kind)
		}
	}
	if got := eng.State().CompletedWorkSessions; got != 4 {
		t.Fatalf("expected 4 completed sessions, got %d", got)
	}
}

func TestBreakCompletionReturnsToWork(t *testing.T) {
	f := newFixture()
	eng := f.newEngine()

	eng.ChangeKind(model.KindShortBreak)
	eng.Start()
	f.clk.advance(5 * time.Minute)
	eng.Tick()

	state := eng.State()
	if state.Kind != model.KindWork {
		t.Fatalf("expected work after break, got %s", state.Kind)
	}
	if state.Running {
		t.Fatal("expected stopped with autoStartWork off")
	}
	if len(f.ledger.records) != 0 {
		t.Fatal("breaks must not be recorded in the ledger")
	}
}

func TestAutoStartChaining(t *testing.T) {
	f := newFixture()
	eng := f.newEngine()

	on := true
	if _, err := eng.UpdateSettings(model.SettingsPatch{AutoStartBreaks: &on, AutoStartWork: &on}); err != nil {
		t.Fatalf("update settings: %v", err)
	}

	eng.Start()
	f.clk.advance(25 * time.Minute)
	eng.Tick()

	state := eng.State()
	if !state.Running || state.Kind != model.KindShortBreak {
		t.Fatalf("expected running short_break, got running=%v kind=%s", state.Running, state.Kind)
	}
	if state.RemainingSeconds != 300 {
		t.Fatalf("expected 300 remaining, got %d", state.RemainingSeconds)
	}

	f.clk.advance(5 * time.Minute)
	eng.Tick()

	state = eng.State()
	if !state.Running || state.Kind != model.KindWork {
		t.Fatalf("expected running work after break, got running=%v kind=%s", state.Running, state.Kind)
	}
	checkInvariant(t, eng)
}

func TestSettingsChangeWhileRunningIsDeferred(t *testing.T) {
	f := newFixture()
	eng := f.newEngine()

	eng.Start()
	f.clk.advance(time.Minute)

	fifty := 50
	if _, err := eng.UpdateSettings(model.SettingsPatch{WorkMinutes: &fifty}); err != nil {
		t.Fatalf("update settings: %v", err)
	}

	if got := eng.State().RemainingSeconds; got != 24*60 {
		t.Fatalf("in-flight countdown must not change, got %d", got)
	}

	// The new duration applies at the next natural reset.
	eng.Reset()
	if got := eng.State().RemainingSeconds; got != 50*60 {
		t.Fatalf("expected 3000 after reset, got %d", got)
	}
}

func TestSettingsChangeWhileStoppedRecomputes(t *testing.T) {
	f := newFixture()
	eng := f.newEngine()

	ten := 10
	if _, err := eng.UpdateSettings(model.SettingsPatch{WorkMinutes: &ten}); err != nil {
		t.Fatalf("update settings: %v", err)
	}
	if got := eng.State().RemainingSeconds; got != 600 {
		t.Fatalf("expected 600 after settings change, got %d", got)
	}
}

func TestInvalidSettingsRejected(t *testing.T) {
	f := newFixture()
	eng := f.newEngine()

	zero := 0
	if _, err := eng.UpdateSettings(model.SettingsPatch{WorkMinutes: &zero}); err == nil {
		t.Fatal("expected error for non-positive duration")
	}
	if got := eng.State().Settings.WorkMinutes; got != 25 {
		t.Fatalf("settings must keep previous value, got %d", got)
	}
}

func TestRecoveryWhileStillRunning(t *testing.T) {
	f := newFixture()

	ten := 10
	eng := f.newEngine()
	if _, err := eng.UpdateSettings(model.SettingsPatch{WorkMinutes: &ten}); err != nil {
		t.Fatalf("update settings: %v", err)
	}
	eng.Start()

	// Process dies; 100 seconds pass before relaunch.
	f.clk.advance(100 * time.Second)
	restored := f.newEngine()

	state := restored.State()
	if !state.Running {
		t.Fatal("expected countdown still running after restore")
	}
	if state.RemainingSeconds != 500 {
		t.Fatalf("expected 500 remaining, got %d", state.RemainingSeconds)
	}
	if state.Kind != model.KindWork {
		t.Fatalf("expected work, got %s", state.Kind)
	}
	checkInvariant(t, restored)
}

func TestRecoveryCreditsMissedSession(t *testing.T) {
	f := newFixture()

	one := 1
	eng := f.newEngine()
	if _, err := eng.UpdateSettings(model.SettingsPatch{WorkMinutes: &one}); err != nil {
		t.Fatalf("update settings: %v", err)
	}
	eng.Start()

	// The 60s session elapsed long before the relaunch.
	f.clk.advance(300 * time.Second)
	restored := f.newEngine()

	if len(f.ledger.records) != 1 {
		t.Fatalf("expected missed session credited, got %d records", len(f.ledger.records))
	}
	state := restored.State()
	if state.Running {
		t.Fatal("expected stopped after crediting missed session")
	}
	if state.Kind != model.KindShortBreak {
		t.Fatalf("expected short_break next, got %s", state.Kind)
	}
	if state.RemainingSeconds != 300 {
		t.Fatalf("expected full break duration, got %d", state.RemainingSeconds)
	}
	if state.CompletedWorkSessions != 1 {
		t.Fatalf("expected 1 completed session, got %d", state.CompletedWorkSessions)
	}
}

func TestRecoveryOfPausedState(t *testing.T) {
	f := newFixture()

	eng := f.newEngine()
	eng.Start()
	f.clk.advance(40 * time.Second)
	eng.Pause()

	f.clk.advance(24 * time.Hour)
	restored := f.newEngine()

	state := restored.State()
	if state.Running {
		t.Fatal("expected paused state to stay paused")
	}
	if state.RemainingSeconds != 1460 {
		t.Fatalf("expected 1460 remaining, got %d", state.RemainingSeconds)
	}
}

func TestRecoveryIgnoresCorruptSnapshot(t *testing.T) {
	f := newFixture()
	f.store.data[engine.StateKey] = "{not json"

	eng := f.newEngine()
	state := eng.State()
	if state.Running || state.Kind != model.KindWork || state.RemainingSeconds != 1500 {
		t.Fatalf("expected fresh defaults, got %+v", state)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	f := newFixture()
	eng := f.newEngine()
	eng.Start()

	raw, ok := f.store.data[engine.StateKey]
	if !ok {
		t.Fatal("expected snapshot written")
	}
	var snap struct {
		Kind                string `json:"kind"`
		Running             bool   `json:"running"`
		DeadlineEpochMillis int64  `json:"deadlineEpochMillis"`
	}
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if !snap.Running || snap.Kind != "work" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if snap.DeadlineEpochMillis != f.clk.now.Add(25*time.Minute).UnixMilli() {
		t.Fatalf("unexpected deadline %d", snap.DeadlineEpochMillis)
	}

	// Restoring at the same instant reproduces the state exactly.
	restored := f.newEngine()
	state := restored.State()
	if !state.Running || state.RemainingSeconds != 1500 || state.Kind != model.KindWork {
		t.Fatalf("round trip mismatch: %+v", state)
	}
}

func TestPersistenceWriteFailureDoesNotStallCountdown(t *testing.T) {
	f := newFixture()
	f.store.failSet = true
	eng := f.newEngine()

	eng.Start()
	f.clk.advance(10 * time.Second)

	state := eng.State()
	if !state.Running || state.RemainingSeconds != 1490 {
		t.Fatalf("countdown must survive write failures, got %+v", state)
	}
}

func TestLedgerAppendRetriedOnLaterTick(t *testing.T) {
	f := newFixture()
	f.ledger.fail = true
	eng := f.newEngine()

	eng.Start()
	f.clk.advance(25 * time.Minute)
	eng.Tick()

	if len(f.ledger.records) != 0 {
		t.Fatal("append should have failed")
	}
	state := eng.State()
	if state.Kind != model.KindShortBreak {
		t.Fatal("completion must proceed despite ledger failure")
	}

	f.ledger.fail = false
	f.clk.advance(time.Second)
	eng.Tick()

	if len(f.ledger.records) != 1 {
		t.Fatalf("expected queued record retried, got %d", len(f.ledger.records))
	}
	if f.ledger.records[0].DurationMinutes != 25 {
		t.Fatalf("retried record corrupted: %+v", f.ledger.records[0])
	}
}

func TestProgressNotificationsThrottled(t *testing.T) {
	f := newFixture()
	eng := f.newEngine()
	eng.Start()

	f.clk.advance(time.Second)
	eng.Tick()
	eng.Tick() // same instant, must be suppressed
	f.clk.advance(500 * time.Millisecond)
	eng.Tick() // under a second since the last one
	f.clk.advance(500 * time.Millisecond)
	eng.Tick()

	if got := len(f.notifier.ofType(notify.EventProgress)); got != 2 {
		t.Fatalf("expected 2 progress events, got %d", got)
	}
}
