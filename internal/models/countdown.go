package models

import "time"

// CountdownMode represents a focus-timer cycle.
type CountdownMode string

const (
	ModeWork       CountdownMode = "work"
	ModeShortBreak CountdownMode = "short"
	ModeLongBreak  CountdownMode = "long"
)

// CountdownState represents the lifecycle state of the countdown.
type CountdownState string

const (
	CountdownIdle    CountdownState = "idle"
	CountdownRunning CountdownState = "running"
	CountdownExpired CountdownState = "expired"
)

// CountdownSession is the persisted focus-timer state. EndTime is the
// single source of truth; remaining time is always recomputed from it
// so the session survives process reloads and suspended ticks.
type CountdownSession struct {
	Mode    CountdownMode `json:"mode"`
	EndTime time.Time     `json:"endTime"`
}

// Remaining returns the whole seconds left at the given instant,
// rounded to the nearest second.
func (s CountdownSession) Remaining(now time.Time) int {
	d := s.EndTime.Sub(now)
	return int((d + 500*time.Millisecond) / time.Second)
}

// Expired reports whether the session has reached zero at now.
func (s CountdownSession) Expired(now time.Time) bool {
	return s.Remaining(now) <= 0
}
