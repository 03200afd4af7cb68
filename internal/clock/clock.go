// Package clock supplies "now" to the engine. The engine never reads
// the wall clock directly, so tests can simulate arbitrary elapsed time.
package clock

import (
	"sync"
	"time"
)

// Clock is the time source injected into every time-dependent operation.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// System returns the real wall clock in UTC.
func System() Clock { return systemClock{} }

// Fake is a controllable clock for tests.
type Fake struct {
	mu      sync.Mutex
	current time.Time
}

// NewFake returns a fake clock initialised to the supplied time.
func NewFake(start time.Time) *Fake {
	return &Fake{current: start}
}

// Now returns the current instant tracked by the clock.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// Set updates the clock to the provided time.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	f.current = t
	f.mu.Unlock()
}

// Advance moves the clock forward by d and returns the updated time.
func (f *Fake) Advance(d time.Duration) time.Time {
	f.mu.Lock()
	f.current = f.current.Add(d)
	updated := f.current
	f.mu.Unlock()
	return updated
}
