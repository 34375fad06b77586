// Package clock abstracts the wall clock so time-dependent rules can be tested.
package clock

import "time"

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func System() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}

type fixedClock struct {
	t time.Time
}

// Fixed returns a clock that always reports t.
func Fixed(t time.Time) Clock {
	return fixedClock{t: t}
}

func (c fixedClock) Now() time.Time {
	return c.t
}
