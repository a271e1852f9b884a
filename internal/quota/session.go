package quota

import "time"

const maxSessions = 50

// PlaySession is one finished Playing period.
type PlaySession struct {
	ID        string    `json:"id"`
	Game      string    `json:"game,omitempty"`
	StartedAt time.Time `json:"startedAt"`
	Seconds   int       `json:"seconds"`
}
