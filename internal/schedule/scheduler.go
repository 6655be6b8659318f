package schedule

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnknownPeriod = errors.New("invalid period")
	ErrLunchBreak    = errors.New("cannot mark attendance during lunch break")
	ErrNotYetOpen    = errors.New("period not yet open")
	ErrAlreadyClosed = errors.New("period already closed")
)

// WindowError reports a mark attempted outside a period's window.
// It unwraps to ErrNotYetOpen or ErrAlreadyClosed.
type WindowError struct {
	Reason error
	Period ClassPeriod
}

func (e *WindowError) Error() string {
	if errors.Is(e.Reason, ErrNotYetOpen) {
		return fmt.Sprintf("class starts at %s, please wait", e.Period.Start)
	}
	return fmt.Sprintf("class ended at %s, too late to mark attendance", e.Period.End)
}

func (e *WindowError) Unwrap() error { return e.Reason }

// Scheduler answers period questions against one table.
// It holds no mutable state and is safe for concurrent use.
type Scheduler struct {
	table    Table
	byNumber map[int]ClassPeriod
}

// New validates the table and builds a scheduler over a private copy of it.
func New(t Table) (*Scheduler, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	periods := make([]ClassPeriod, len(t.Periods))
	copy(periods, t.Periods)
	s := &Scheduler{
		table:    Table{Version: t.Version, Periods: periods},
		byNumber: make(map[int]ClassPeriod, len(periods)),
	}
	for _, p := range periods {
		s.byNumber[p.Number] = p
	}
	return s, nil
}

// Version identifies the active table.
func (s *Scheduler) Version() string { return s.table.Version }

// Periods returns the table in period order.
func (s *Scheduler) Periods() []ClassPeriod {
	out := make([]ClassPeriod, len(s.table.Periods))
	copy(out, s.table.Periods)
	return out
}

// Lookup finds a period by number.
func (s *Scheduler) Lookup(number int) (ClassPeriod, bool) {
	p, ok := s.byNumber[number]
	return p, ok
}

// ResolveCurrentPeriod returns the first period whose window holds now.
// When two periods abut, the shared minute resolves to the earlier one.
func (s *Scheduler) ResolveCurrentPeriod(now time.Time) (ClassPeriod, bool) {
	at := TimeOfDayOf(now)
	for _, p := range s.table.Periods {
		if p.Contains(at) {
			return p, true
		}
	}
	return ClassPeriod{}, false
}

// ValidatePeriodForMarking checks that number names an open teaching period at now.
func (s *Scheduler) ValidatePeriodForMarking(number int, now time.Time) (ClassPeriod, error) {
	p, ok := s.byNumber[number]
	if !ok {
		return ClassPeriod{}, ErrUnknownPeriod
	}
	if p.Lunch {
		return ClassPeriod{}, ErrLunchBreak
	}
	at := TimeOfDayOf(now)
	if at < p.Start {
		return ClassPeriod{}, &WindowError{Reason: ErrNotYetOpen, Period: p}
	}
	if at > p.End {
		return ClassPeriod{}, &WindowError{Reason: ErrAlreadyClosed, Period: p}
	}
	return p, nil
}

// DateOf returns the calendar day of t as midnight UTC, the form stored for records.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
