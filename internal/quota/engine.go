package quota

import (
	"fmt"
	"moriportal/internal/models"
	"strconv"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cast"
	"go.uber.org/atomic"
)

const dateLayout = "2006-01-02"

type Options struct {
	Store     LocalStore
	Clock     Clock
	NewTicker func(time.Duration) Ticker
	// Location decides where the tracking day rolls over. Defaults to the
	// device's local zone.
	Location            *time.Location
	Logger              zerolog.Logger
	RestReminderMinutes int
	WeekendLimitMinutes int
}

// State is a point-in-time copy of the engine.
type State struct {
	DailyLimitMinutes     int
	EffectiveLimitMinutes int
	ServerOverride        bool
	TimeUsedSeconds       int
	TrackingDate          string
	IsPlaying             bool
	IsLocked              bool
}

// Engine tracks play time against a daily limit. All transitions run under
// one mutex; the tick goroutine of a Playing period only ever calls back
// into the engine.
type Engine struct {
	mu        sync.Mutex
	store     LocalStore
	clock     Clock
	newTicker func(time.Duration) Ticker
	loc       *time.Location
	log       zerolog.Logger

	localLimit   int
	serverLimit  *int
	weekendLimit int
	restEvery    int

	date   string
	used   int
	locked bool

	playing     atomic.Bool
	gen         uint64
	ticker      Ticker
	stopCh      chan struct{}
	game        string
	startedAt   time.Time
	sessionSecs int

	sessions []PlaySession
	subs     []chan Event
	closed   bool
}

func NewEngine(opts Options) *Engine {
	e := &Engine{
		store:        opts.Store,
		clock:        opts.Clock,
		newTicker:    opts.NewTicker,
		loc:          opts.Location,
		log:          opts.Logger,
		weekendLimit: max(opts.WeekendLimitMinutes, 0),
		restEvery:    max(opts.RestReminderMinutes, 0),
		localLimit:   models.DefaultDailyLimitMinutes,
	}
	if e.store == nil {
		e.store = NewMemoryStore()
	}
	if e.clock == nil {
		e.clock = systemClock{}
	}
	if e.newTicker == nil {
		e.newTicker = newSystemTicker
	}
	if e.loc == nil {
		e.loc = time.Local
	}

	e.load()

	e.mu.Lock()
	e.evaluateLocked(e.clock.Now())
	e.mu.Unlock()
	return e
}

func (e *Engine) load() {
	e.date, _ = e.store.Get(KeyDate)
	if raw, ok := e.store.Get(KeyUsedSeconds); ok {
		e.used = max(cast.ToInt(raw), 0)
	}
	if raw, ok := e.store.Get(KeyLimitMinutes); ok {
		if n, err := cast.ToIntE(raw); err == nil && n >= 0 {
			e.localLimit = min(n, models.MaxLimitMinutes)
		}
	}
	if raw, ok := e.store.Get(KeySessions); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &e.sessions); err != nil {
			e.log.Warn().Err(err).Msg("discarding unreadable play history")
			e.sessions = nil
		}
	}
}

// Subscribe returns a channel of future events. Slow readers miss events
// rather than stall the engine.
func (e *Engine) Subscribe(buffer int) <-chan Event {
	ch := make(chan Event, max(buffer, 1))
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		close(ch)
		return ch
	}
	e.subs = append(e.subs, ch)
	return ch
}

// Start enters Playing. It reports false when the quota is locked.
func (e *Engine) Start(game string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	e.evaluateLocked(now)
	if e.locked || e.closed {
		return false
	}
	if e.playing.Load() {
		return true
	}

	e.playing.Store(true)
	e.gen++
	e.game = game
	e.startedAt = now
	e.sessionSecs = 0
	e.ticker = e.newTicker(time.Second)
	e.stopCh = make(chan struct{})
	go e.loop(e.gen, e.ticker, e.stopCh)

	e.emit(EventStarted, now)
	return true
}

func (e *Engine) loop(gen uint64, t Ticker, stop <-chan struct{}) {
	for {
		select {
		case <-t.C():
			e.mu.Lock()
			// A tick raced with Stop; the period it belongs to is over.
			if gen == e.gen && e.playing.Load() {
				e.tickLocked(e.clock.Now())
			}
			e.mu.Unlock()
		case <-stop:
			return
		}
	}
}

// Stop leaves Playing. Only completed seconds have been counted.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked(e.clock.Now())
}

// Tick counts one second of play. It is what the tick goroutine runs and is
// exported so callers can drive the engine with their own clock.
func (e *Engine) Tick() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.playing.Load() {
		return
	}
	e.tickLocked(e.clock.Now())
}

// Evaluate re-checks the day rollover and the lock predicate.
func (e *Engine) Evaluate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.evaluateLocked(e.clock.Now())
}

// SetDailyLimit stores minutes as the local limit and, while a server
// override is active, as the override too. The lock is re-checked before
// returning. A persistence error leaves the new limit in effect.
func (e *Engine) SetDailyLimit(minutes int) error {
	if minutes < 0 || minutes > models.MaxLimitMinutes {
		return fmt.Errorf("%w: daily limit must be between 0 and %d minutes", models.ErrValidation, models.MaxLimitMinutes)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.localLimit = minutes
	if e.serverLimit != nil {
		v := minutes
		e.serverLimit = &v
	}
	err := e.store.Set(KeyLimitMinutes, strconv.Itoa(minutes))
	if err != nil {
		e.log.Warn().Err(err).Msg("persist daily limit failed")
	}
	e.evaluateLocked(e.clock.Now())
	return err
}

// ApplyServerLimit makes minutes authoritative until ClearServerLimit.
// It is not written to local storage.
func (e *Engine) ApplyServerLimit(minutes int) {
	v := min(max(minutes, 0), models.MaxLimitMinutes)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.serverLimit = &v
	e.evaluateLocked(e.clock.Now())
}

func (e *Engine) ClearServerLimit() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.serverLimit = nil
	e.evaluateLocked(e.clock.Now())
}

// SetWeekendLimit sets the Saturday and Sunday limit. Zero uses the daily
// limit on weekends as well.
func (e *Engine) SetWeekendLimit(minutes int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.weekendLimit = min(max(minutes, 0), models.MaxLimitMinutes)
	e.evaluateLocked(e.clock.Now())
}

// SetRestReminder sets the continuous play interval between reminders. Zero disables them.
func (e *Engine) SetRestReminder(minutes int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.restEvery = max(minutes, 0)
}

func (e *Engine) IsPlaying() bool {
	return e.playing.Load()
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return State{
		DailyLimitMinutes:     e.localLimit,
		EffectiveLimitMinutes: e.effectiveLimit(e.clock.Now()),
		ServerOverride:        e.serverLimit != nil,
		TimeUsedSeconds:       e.used,
		TrackingDate:          e.date,
		IsPlaying:             e.playing.Load(),
		IsLocked:              e.locked,
	}
}

// Sessions returns the recorded play history, oldest first.
func (e *Engine) Sessions() []PlaySession {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]PlaySession, len(e.sessions))
	copy(out, e.sessions)
	return out
}

// Close stops any Playing period and closes every subscription.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.stopLocked(e.clock.Now())
	for _, ch := range e.subs {
		close(ch)
	}
	e.subs = nil
	e.closed = true
}

func (e *Engine) tickLocked(now time.Time) {
	e.rolloverLocked(now)

	e.used++
	e.sessionSecs++
	e.persistUsage()

	if e.restEvery > 0 && e.sessionSecs%(e.restEvery*60) == 0 {
		e.emit(EventRestReminder, now)
	}
	if e.used >= e.effectiveLimit(now)*60 {
		e.locked = true
		e.stopLocked(now)
		e.emit(EventLocked, now)
	}
}

func (e *Engine) stopLocked(now time.Time) {
	if !e.playing.Load() {
		return
	}
	e.playing.Store(false)
	e.gen++
	e.ticker.Stop()
	close(e.stopCh)
	e.ticker = nil
	e.stopCh = nil

	if e.sessionSecs > 0 {
		e.recordSession()
	}
	e.emit(EventStopped, now)
}

func (e *Engine) evaluateLocked(now time.Time) {
	e.rolloverLocked(now)

	limitSecs := e.effectiveLimit(now) * 60
	switch {
	case e.used >= limitSecs && !e.locked:
		e.locked = true
		e.stopLocked(now)
		e.emit(EventLocked, now)
	case e.used < limitSecs && e.locked:
		e.locked = false
		e.emit(EventUnlocked, now)
	}
}

// rolloverLocked starts a new tracking day when the calendar date in the
// engine's location has moved.
func (e *Engine) rolloverLocked(now time.Time) {
	today := now.In(e.loc).Format(dateLayout)
	if e.date == today {
		return
	}
	known := e.date != ""
	e.date = today
	e.used = 0
	e.persistUsage()
	if known {
		e.emit(EventReset, now)
	}
}

func (e *Engine) effectiveLimit(now time.Time) int {
	limit := e.localLimit
	if e.serverLimit != nil {
		limit = *e.serverLimit
	}
	if e.weekendLimit > 0 {
		switch now.In(e.loc).Weekday() {
		case time.Saturday, time.Sunday:
			return e.weekendLimit
		}
	}
	return limit
}

func (e *Engine) persistUsage() {
	if err := e.store.Set(KeyDate, e.date); err != nil {
		e.log.Warn().Err(err).Str("key", KeyDate).Msg("persist failed")
	}
	if err := e.store.Set(KeyUsedSeconds, strconv.Itoa(e.used)); err != nil {
		e.log.Warn().Err(err).Str("key", KeyUsedSeconds).Msg("persist failed")
	}
}

func (e *Engine) recordSession() {
	e.sessions = append(e.sessions, PlaySession{
		ID:        uuid.NewString(),
		Game:      e.game,
		StartedAt: e.startedAt,
		Seconds:   e.sessionSecs,
	})
	if len(e.sessions) > maxSessions {
		e.sessions = e.sessions[len(e.sessions)-maxSessions:]
	}

	raw, err := json.Marshal(e.sessions)
	if err != nil {
		return
	}
	if err := e.store.Set(KeySessions, string(raw)); err != nil {
		e.log.Warn().Err(err).Str("key", KeySessions).Msg("persist failed")
	}
	e.log.Debug().Str("game", e.game).Int("seconds", e.sessionSecs).Msg("play session recorded")
}

func (e *Engine) emit(t EventType, now time.Time) {
	ev := Event{
		Type:         t,
		UsedSeconds:  e.used,
		LimitMinutes: e.effectiveLimit(now),
		At:           now,
	}
	for _, ch := range e.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
