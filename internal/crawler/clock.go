package crawler

import "time"

// Timer is a pending delayed call that can be cancelled.
// *time.Timer satisfies it.
type Timer interface {
	Stop() bool
}

// Clock schedules delayed calls. Retries go through a Clock so tests can
// observe and fire them without real time passing.
type Clock interface {
	// AfterFunc calls f in its own goroutine once d has elapsed.
	AfterFunc(d time.Duration, f func()) Timer
}

// systemClock is the wall-clock implementation backed by time.AfterFunc.
type systemClock struct{}

// AfterFunc implements Clock.
func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemClock returns the Clock backed by the runtime timer.
func SystemClock() Clock {
	return systemClock{}
}
