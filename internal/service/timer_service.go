package service

import (
	"context"
	"log"
	"sync"
	"time"

	"focusd/internal/clock"
	"focusd/internal/engine"
	apperrors "focusd/internal/errors"
	"focusd/internal/model"
	"focusd/internal/notify"
	"focusd/internal/repository"
)

// TimerService owns one timer engine per user. Engines are created lazily on
// first touch, which is also when crash recovery runs: a countdown that was
// live when the process died resumes (or completes, if it elapsed) before
// the first state read returns.
type TimerService struct {
	mu      sync.Mutex
	engines map[string]*engine.Engine

	clk          clock.Clock
	settingsRepo *repository.SettingsRepository
	sessionRepo  *repository.SessionRepository
	notifier     notify.Notifier
	logger       *log.Logger
}

// StateView is the wire shape of the engine state.
type StateView struct {
	Kind                  model.SessionKind     `json:"kind"`
	RemainingSeconds      int                   `json:"remainingSeconds"`
	IsRunning             bool                  `json:"isRunning"`
	CompletedWorkSessions int                   `json:"completedWorkSessions"`
	EndsAt                *time.Time            `json:"endsAt,omitempty"`
	Settings              model.SessionSettings `json:"settings"`
	ServerTime            time.Time             `json:"serverTime"`
}

func NewTimerService(
	clk clock.Clock,
	settingsRepo *repository.SettingsRepository,
	sessionRepo *repository.SessionRepository,
	notifier notify.Notifier,
	logger *log.Logger,
) *TimerService {
	return &TimerService{
		engines:      make(map[string]*engine.Engine),
		clk:          clk,
		settingsRepo: settingsRepo,
		sessionRepo:  sessionRepo,
		notifier:     notifier,
		logger:       logger,
	}
}

func (s *TimerService) GetState(userID string) (*StateView, *apperrors.APIError) {
	view := s.view(s.engineFor(userID))
	return &view, nil
}

func (s *TimerService) Start(userID string) (*StateView, *apperrors.APIError) {
	eng := s.engineFor(userID)
	eng.Start()
	view := s.view(eng)
	return &view, nil
}

func (s *TimerService) Pause(userID string) (*StateView, *apperrors.APIError) {
	eng := s.engineFor(userID)
	eng.Pause()
	view := s.view(eng)
	return &view, nil
}

func (s *TimerService) Reset(userID string) (*StateView, *apperrors.APIError) {
	eng := s.engineFor(userID)
	eng.Reset()
	view := s.view(eng)
	return &view, nil
}

func (s *TimerService) ChangeKind(userID, kind string) (*StateView, *apperrors.APIError) {
	sessionKind := model.SessionKind(kind)
	if !sessionKind.Valid() {
		return nil, apperrors.BadRequest("invalid_kind", "kind must be one of work, short_break, long_break")
	}
	eng := s.engineFor(userID)
	eng.ChangeKind(sessionKind)
	view := s.view(eng)
	return &view, nil
}

func (s *TimerService) UpdateSettings(userID string, patch model.SettingsPatch) (*StateView, *apperrors.APIError) {
	eng := s.engineFor(userID)
	if _, err := eng.UpdateSettings(patch); err != nil {
		return nil, apperrors.BadRequest("invalid_settings", err.Error())
	}
	view := s.view(eng)
	return &view, nil
}

func (s *TimerService) GetHistory(ctx context.Context, userID string, limit int) ([]model.SessionRecord, *apperrors.APIError) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	records, err := s.sessionRepo.List(ctx, userID, limit)
	if err != nil {
		return nil, apperrors.Internal("failed to get history")
	}
	return records, nil
}

// TickAll advances every live engine. Driven by the server's ticker loop.
func (s *TimerService) TickAll() {
	s.mu.Lock()
	engines := make([]*engine.Engine, 0, len(s.engines))
	for _, eng := range s.engines {
		engines = append(engines, eng)
	}
	s.mu.Unlock()

	for _, eng := range engines {
		eng.Tick()
	}
}

func (s *TimerService) engineFor(userID string) *engine.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	if eng, ok := s.engines[userID]; ok {
		return eng
	}
	eng := engine.New(
		s.clk,
		userStore{repo: s.settingsRepo, userID: userID},
		userLedger{repo: s.sessionRepo, userID: userID},
		userNotifier{next: s.notifier, userID: userID},
		s.logger,
	)
	s.engines[userID] = eng
	return eng
}

func (s *TimerService) view(eng *engine.Engine) StateView {
	state := eng.State()
	view := StateView{
		Kind:                  state.Kind,
		RemainingSeconds:      state.RemainingSeconds,
		IsRunning:             state.Running,
		CompletedWorkSessions: state.CompletedWorkSessions,
		Settings:              state.Settings,
		ServerTime:            s.clk.Now(),
	}
	if state.Running {
		deadline := state.Deadline
		view.EndsAt = &deadline
	}
	return view
}

// userStore binds the shared settings table to one user for the engine's
// key-value interface. Engine operations are synchronous and local, so the
// adapter supplies its own context.
type userStore struct {
	repo   *repository.SettingsRepository
	userID string
}

func (s userStore) Get(key string) (string, bool, error) {
	return s.repo.Get(context.Background(), s.userID, key)
}

func (s userStore) Set(key, value string) error {
	return s.repo.Set(context.Background(), s.userID, key, value)
}

type userLedger struct {
	repo   *repository.SessionRepository
	userID string
}

func (l userLedger) Append(record model.SessionRecord) error {
	return l.repo.Append(context.Background(), l.userID, record)
}

// userNotifier stamps the owning user onto engine events.
type userNotifier struct {
	next   notify.Notifier
	userID string
}

func (n userNotifier) Notify(event notify.Event) {
	event.UserID = n.userID
	n.next.Notify(event)
}
