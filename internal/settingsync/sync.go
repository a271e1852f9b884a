package settingsync

import (
	"context"
	"errors"
	"fmt"
	"moriportal/internal/models"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

const defaultTimeout = 5 * time.Second

type AuthEventType int

const (
	SignedIn AuthEventType = iota
	SignedOut
)

// AuthEvent is published by whatever owns the session.
type AuthEvent struct {
	Type  AuthEventType
	Token string
}

type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeWarning
)

// Notice is a user-facing message about a sync outcome.
type Notice struct {
	Level   NoticeLevel
	Message string
	Err     error
}

// SettingsAPI is the server side of the sync.
type SettingsAPI interface {
	FetchSettings(ctx context.Context, token string) (*models.UserSettings, error)
	PushSettings(ctx context.Context, token string, patch *models.SettingsPatch) (*models.UserSettings, error)
}

// Quota is the part of the timer engine the sync drives.
type Quota interface {
	SetDailyLimit(minutes int) error
	ApplyServerLimit(minutes int)
	ClearServerLimit()
	SetWeekendLimit(minutes int)
	SetRestReminder(minutes int)
}

type Sync struct {
	api     SettingsAPI
	quota   Quota
	log     zerolog.Logger
	timeout time.Duration

	mu    sync.Mutex
	token string
	// edits counts local limit changes so a slow fetch cannot overwrite a
	// newer edit.
	edits atomic.Uint64

	notices chan Notice
}

func New(api SettingsAPI, quota Quota, logger zerolog.Logger) *Sync {
	return &Sync{
		api:     api,
		quota:   quota,
		log:     logger,
		timeout: defaultTimeout,
		notices: make(chan Notice, 16),
	}
}

// Notices delivers sync notifications. Notices are dropped when nobody reads.
func (s *Sync) Notices() <-chan Notice {
	return s.notices
}

func (s *Sync) SignedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token != ""
}

// Run handles auth events until ctx is done or events is closed.
func (s *Sync) Run(ctx context.Context, events <-chan AuthEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.Handle(ctx, ev)
		}
	}
}

func (s *Sync) Handle(ctx context.Context, ev AuthEvent) {
	switch ev.Type {
	case SignedIn:
		s.signIn(ctx, ev.Token)
	case SignedOut:
		s.signOut()
	}
}

func (s *Sync) signIn(ctx context.Context, token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()

	seq := s.edits.Load()
	fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	settings, err := s.api.FetchSettings(fetchCtx, token)
	if err != nil {
		s.log.Warn().Err(err).Msg("fetch settings failed, keeping local limit")
		s.notify(NoticeWarning, "Could not load your saved settings; using this device's limit.", err)
		return
	}
	if settings == nil {
		s.log.Debug().Msg("no server settings stored")
		return
	}
	if s.edits.Load() != seq || !s.holds(token) {
		s.log.Debug().Msg("discarding fetched settings superseded during fetch")
		return
	}

	s.quota.ApplyServerLimit(settings.DailyLimitMinutes)
	s.quota.SetWeekendLimit(settings.WeekendLimitMinutes)
	if settings.RestReminderMinutes != nil {
		s.quota.SetRestReminder(*settings.RestReminderMinutes)
	}
	s.log.Info().Int("limit", settings.DailyLimitMinutes).Msg("server settings applied")
}

func (s *Sync) signOut() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()

	s.quota.ClearServerLimit()
	s.quota.SetWeekendLimit(0)
	s.log.Info().Msg("signed out, local limit restored")
}

func (s *Sync) holds(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token == token
}

// SaveLimit applies minutes locally, then pushes it when signed in. A failed
// push keeps the local change and returns an error wrapping
// models.ErrNetwork. Nothing is retried until the next call.
func (s *Sync) SaveLimit(ctx context.Context, minutes int) error {
	// A local write failure leaves the new limit in effect; only a
	// rejected value stops here.
	if err := s.quota.SetDailyLimit(minutes); errors.Is(err, models.ErrValidation) {
		return err
	}
	s.edits.Inc()

	s.mu.Lock()
	token := s.token
	s.mu.Unlock()
	if token == "" {
		return nil
	}

	pushCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	limit := minutes
	if _, err := s.api.PushSettings(pushCtx, token, &models.SettingsPatch{DailyLimitMinutes: &limit}); err != nil {
		s.log.Warn().Err(err).Int("limit", minutes).Msg("push settings failed")
		s.notify(NoticeWarning, "Saved on this device only; the server could not be reached.", err)
		return fmt.Errorf("%w: push settings: %w", models.ErrNetwork, err)
	}
	s.notify(NoticeInfo, "Settings saved.", nil)
	return nil
}

func (s *Sync) notify(level NoticeLevel, msg string, err error) {
	select {
	case s.notices <- Notice{Level: level, Message: msg, Err: err}:
	default:
	}
}
