package clock

import (
	"sync"
	"time"
)

// Clock supplies the current wall-clock time.
type Clock interface {
	Now() time.Time
}

// System reads the real clock in a fixed location.
type System struct {
	Loc *time.Location
}

// NewSystem returns a system clock for the named IANA zone, falling back to local time.
func NewSystem(zone string) (System, error) {
	if zone == "" {
		return System{Loc: time.Local}, nil
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return System{Loc: time.Local}, err
	}
	return System{Loc: loc}, nil
}

// Now returns the current time in the clock's location.
func (s System) Now() time.Time {
	if s.Loc == nil {
		return time.Now()
	}
	return time.Now().In(s.Loc)
}

// Manual is a settable clock for tests.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual creates a manual clock starting at t.
func NewManual(t time.Time) *Manual {
	return &Manual{now: t}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set moves the clock to t.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}
