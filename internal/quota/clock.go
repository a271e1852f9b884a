package quota

import "time"

type Clock interface {
	Now() time.Time
}

// Ticker is the tick source of one Playing period.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type systemTicker struct {
	t *time.Ticker
}

func (s *systemTicker) C() <-chan time.Time { return s.t.C }
func (s *systemTicker) Stop()               { s.t.Stop() }

func newSystemTicker(d time.Duration) Ticker {
	return &systemTicker{t: time.NewTicker(d)}
}
