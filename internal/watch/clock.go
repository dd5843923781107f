package watch

import "time"

// Clock abstracts the time source driving the poll loop, so tests can run
// the watcher against virtual time instead of sleeping.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// RealClock returns the wall-clock Clock.
func RealClock() Clock {
	return realClock{}
}
