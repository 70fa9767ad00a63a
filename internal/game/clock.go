package game

import "time"

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	Stop() bool
}

// Clock supplies wall time and delayed callbacks. Tests swap in a manual clock
// so debounce windows, the session rate limit and the turn spin are deterministic.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemClock is the Clock backed by package time.
var SystemClock Clock = systemClock{}

func stopTimer(t Timer) {
	if t != nil {
		t.Stop()
	}
}
