package quota

import "time"

type EventType int

const (
	EventStarted EventType = iota
	EventStopped
	EventLocked
	EventUnlocked
	EventReset
	EventRestReminder
)

func (t EventType) String() string {
	switch t {
	case EventStarted:
		return "started"
	case EventStopped:
		return "stopped"
	case EventLocked:
		return "locked"
	case EventUnlocked:
		return "unlocked"
	case EventReset:
		return "reset"
	case EventRestReminder:
		return "rest_reminder"
	}
	return "unknown"
}

type Event struct {
	Type         EventType
	UsedSeconds  int
	LimitMinutes int
	At           time.Time
}
