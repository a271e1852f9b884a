package quota

import (
	"errors"
	"moriportal/internal/models"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeTicker struct {
	ch      chan time.Time
	mu      sync.Mutex
	stopped bool
}

func (f *fakeTicker) C() <-chan time.Time { return f.ch }
func (f *fakeTicker) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}
func (f *fakeTicker) isStopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

type tickerFactory struct {
	mu      sync.Mutex
	tickers []*fakeTicker
}

func (f *tickerFactory) New(time.Duration) Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTicker{ch: make(chan time.Time, 1)}
	f.tickers = append(f.tickers, t)
	return t
}

func (f *tickerFactory) last() *fakeTicker {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tickers[len(f.tickers)-1]
}

// Wednesday, so weekend rules stay out of the way unless a test moves the clock.
var wednesday = time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, store LocalStore) (*Engine, *fakeClock, *tickerFactory) {
	t.Helper()
	clock := &fakeClock{now: wednesday}
	tickers := &tickerFactory{}
	if store == nil {
		store = NewMemoryStore()
	}
	e := NewEngine(Options{
		Store:     store,
		Clock:     clock,
		NewTicker: tickers.New,
		Location:  time.UTC,
	})
	t.Cleanup(e.Close)
	return e, clock, tickers
}

func seeded(date string, used, limit int) *MemoryStore {
	s := NewMemoryStore()
	_ = s.Set(KeyDate, date)
	_ = s.Set(KeyUsedSeconds, strconv.Itoa(used))
	_ = s.Set(KeyLimitMinutes, strconv.Itoa(limit))
	return s
}

func drain(ch <-chan Event) []EventType {
	var out []EventType
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev.Type)
		default:
			return out
		}
	}
}

// --- properties ---

func TestEngine_SixtyTicksAtOneMinuteLocks(t *testing.T) {
	e, _, tickers := newTestEngine(t, seeded("2026-03-04", 0, 1))
	events := e.Subscribe(16)

	require.True(t, e.Start("memory"))
	for i := 0; i < 59; i++ {
		e.Tick()
	}
	assert.False(t, e.State().IsLocked)
	assert.True(t, e.IsPlaying())

	e.Tick()

	st := e.State()
	assert.True(t, st.IsLocked)
	assert.False(t, st.IsPlaying)
	assert.Equal(t, 60, st.TimeUsedSeconds)
	assert.True(t, tickers.last().isStopped())
	assert.Equal(t, []EventType{EventStarted, EventStopped, EventLocked}, drain(events))

	e.Tick()
	assert.Equal(t, 60, e.State().TimeUsedSeconds, "ticks after lock are ignored")
}

func TestEngine_DayRolloverUnlocks(t *testing.T) {
	e, clock, _ := newTestEngine(t, seeded("2026-03-04", 10*60, 10))
	require.True(t, e.State().IsLocked)
	events := e.Subscribe(8)

	clock.Advance(24 * time.Hour)
	e.Evaluate()

	st := e.State()
	assert.False(t, st.IsLocked)
	assert.Equal(t, 0, st.TimeUsedSeconds)
	assert.Equal(t, "2026-03-05", st.TrackingDate)
	assert.Equal(t, []EventType{EventReset, EventUnlocked}, drain(events))
}

func TestEngine_RaisingLimitUnlocksSynchronously(t *testing.T) {
	store := seeded("2026-03-04", 11*60, 10)
	e, _, _ := newTestEngine(t, store)
	require.True(t, e.State().IsLocked)

	require.NoError(t, e.SetDailyLimit(20))

	assert.False(t, e.State().IsLocked)
	v, _ := store.Get(KeyLimitMinutes)
	assert.Equal(t, "20", v)
}

func TestEngine_StartRejectedWhenLocked(t *testing.T) {
	e, _, tickers := newTestEngine(t, seeded("2026-03-04", 30*60, 30))

	assert.False(t, e.Start("memory"))
	assert.False(t, e.IsPlaying())
	assert.Empty(t, tickers.tickers)
}

func TestEngine_ZeroLimitLocksImmediately(t *testing.T) {
	e, _, _ := newTestEngine(t, nil)
	require.NoError(t, e.SetDailyLimit(0))
	assert.True(t, e.State().IsLocked)
}

func TestEngine_LoweringLimitWhilePlayingStops(t *testing.T) {
	e, _, _ := newTestEngine(t, seeded("2026-03-04", 5*60, 30))
	require.True(t, e.Start("snake"))

	require.NoError(t, e.SetDailyLimit(5))

	st := e.State()
	assert.True(t, st.IsLocked)
	assert.False(t, st.IsPlaying)
}

func TestEngine_SetDailyLimitValidation(t *testing.T) {
	e, _, _ := newTestEngine(t, nil)
	assert.ErrorIs(t, e.SetDailyLimit(-1), models.ErrValidation)
	assert.ErrorIs(t, e.SetDailyLimit(models.MaxLimitMinutes+1), models.ErrValidation)
	assert.Equal(t, models.DefaultDailyLimitMinutes, e.State().DailyLimitMinutes)
}

func TestEngine_PersistFailureKeepsLimit(t *testing.T) {
	store := NewMemoryStore()
	e, _, _ := newTestEngine(t, store)
	store.Err = errors.New("disk full")

	assert.Error(t, e.SetDailyLimit(45))
	assert.Equal(t, 45, e.State().DailyLimitMinutes)
}

// --- server override ---

func TestEngine_ServerOverride(t *testing.T) {
	store := seeded("2026-03-04", 20*60, 30)
	e, _, _ := newTestEngine(t, store)

	e.ApplyServerLimit(15)
	st := e.State()
	assert.True(t, st.ServerOverride)
	assert.Equal(t, 15, st.EffectiveLimitMinutes)
	assert.True(t, st.IsLocked)

	e.ClearServerLimit()
	st = e.State()
	assert.False(t, st.ServerOverride)
	assert.Equal(t, 30, st.EffectiveLimitMinutes)
	assert.False(t, st.IsLocked)

	v, _ := store.Get(KeyLimitMinutes)
	assert.Equal(t, "30", v, "server value never reaches local storage")
}

func TestEngine_SetDailyLimitUpdatesActiveOverride(t *testing.T) {
	e, _, _ := newTestEngine(t, nil)
	e.ApplyServerLimit(15)

	require.NoError(t, e.SetDailyLimit(50))
	assert.Equal(t, 50, e.State().EffectiveLimitMinutes)

	e.ClearServerLimit()
	assert.Equal(t, 50, e.State().EffectiveLimitMinutes)
}

func TestEngine_WeekendLimit(t *testing.T) {
	e, clock, _ := newTestEngine(t, seeded("2026-03-04", 0, 30))
	e.SetWeekendLimit(90)
	assert.Equal(t, 30, e.State().EffectiveLimitMinutes)

	clock.Advance(3 * 24 * time.Hour) // Saturday
	e.Evaluate()
	assert.Equal(t, 90, e.State().EffectiveLimitMinutes)
}

// --- tick loop ---

func TestEngine_TickLoopCountsAndStopReleases(t *testing.T) {
	e, _, tickers := newTestEngine(t, nil)
	require.True(t, e.Start("tetris"))
	tk := tickers.last()

	tk.ch <- wednesday
	assert.Eventually(t, func() bool { return e.State().TimeUsedSeconds == 1 }, time.Second, 5*time.Millisecond)

	e.Stop()
	assert.True(t, tk.isStopped())
	assert.False(t, e.IsPlaying())

	select {
	case tk.ch <- wednesday:
	default:
	}
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, e.State().TimeUsedSeconds, "ticks after Stop are not counted")
}

func TestEngine_StartTwiceKeepsOneTicker(t *testing.T) {
	e, _, tickers := newTestEngine(t, nil)
	require.True(t, e.Start("a"))
	require.True(t, e.Start("a"))
	assert.Len(t, tickers.tickers, 1)
}

func TestEngine_TickRefreshesDateAcrossMidnight(t *testing.T) {
	e, clock, _ := newTestEngine(t, seeded("2026-03-04", 100, 30))
	require.True(t, e.Start("a"))

	clock.Advance(14 * time.Hour)
	e.Tick()

	st := e.State()
	assert.Equal(t, "2026-03-05", st.TrackingDate)
	assert.Equal(t, 1, st.TimeUsedSeconds)
	assert.True(t, st.IsPlaying)
}

func TestEngine_RestReminder(t *testing.T) {
	clock := &fakeClock{now: wednesday}
	tickers := &tickerFactory{}
	e := NewEngine(Options{Clock: clock, NewTicker: tickers.New, Location: time.UTC, RestReminderMinutes: 1})
	defer e.Close()
	events := e.Subscribe(16)

	require.True(t, e.Start("a"))
	for i := 0; i < 120; i++ {
		e.Tick()
	}

	var reminders int
	for _, ev := range drain(events) {
		if ev == EventRestReminder {
			reminders++
		}
	}
	assert.Equal(t, 2, reminders)
}

// --- sessions and persistence ---

func TestEngine_StopRecordsSession(t *testing.T) {
	store := NewMemoryStore()
	e, _, _ := newTestEngine(t, store)

	require.True(t, e.Start("2048"))
	for i := 0; i < 5; i++ {
		e.Tick()
	}
	e.Stop()

	sessions := e.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, "2048", sessions[0].Game)
	assert.Equal(t, 5, sessions[0].Seconds)
	assert.NotEmpty(t, sessions[0].ID)

	raw, ok := store.Get(KeySessions)
	require.True(t, ok)
	assert.Contains(t, raw, `"game":"2048"`)
}

func TestEngine_EmptySessionNotRecorded(t *testing.T) {
	e, _, _ := newTestEngine(t, nil)
	require.True(t, e.Start("a"))
	e.Stop()
	assert.Empty(t, e.Sessions())
}

func TestEngine_RestoresFromFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quota.json")
	fs, err := NewFileStore(path)
	require.NoError(t, err)

	e, _, _ := newTestEngine(t, fs)
	require.NoError(t, e.SetDailyLimit(12))
	require.True(t, e.Start("a"))
	e.Tick()
	e.Tick()
	e.Stop()

	reopened, err := NewFileStore(path)
	require.NoError(t, err)
	e2, _, _ := newTestEngine(t, reopened)

	st := e2.State()
	assert.Equal(t, 12, st.DailyLimitMinutes)
	assert.Equal(t, 2, st.TimeUsedSeconds)
	assert.Len(t, e2.Sessions(), 1)
}

func TestEngine_IgnoresGarbageLocalValues(t *testing.T) {
	s := NewMemoryStore()
	_ = s.Set(KeyDate, "2026-03-04")
	_ = s.Set(KeyUsedSeconds, "lots")
	_ = s.Set(KeyLimitMinutes, "-5")
	_ = s.Set(KeySessions, "{")

	e, _, _ := newTestEngine(t, s)
	st := e.State()
	assert.Equal(t, 0, st.TimeUsedSeconds)
	assert.Equal(t, models.DefaultDailyLimitMinutes, st.DailyLimitMinutes)
	assert.Empty(t, e.Sessions())
}

func TestEngine_CloseClosesSubscriptions(t *testing.T) {
	e, _, _ := newTestEngine(t, nil)
	ch := e.Subscribe(1)
	e.Close()

	_, ok := <-ch
	assert.False(t, ok)
	assert.False(t, e.Start("a"))
}
