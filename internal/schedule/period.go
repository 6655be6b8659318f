package schedule

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock time in minutes since midnight.
type TimeOfDay int

// ParseTimeOfDay parses a zero-padded 24-hour "HH:MM" value.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	return TimeOfDay(t.Hour()*60 + t.Minute()), nil
}

// MustTimeOfDay is ParseTimeOfDay for literals.
func MustTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

// TimeOfDayOf truncates t to the minute in t's own location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*60 + t.Minute())
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// MarshalText renders the value as "HH:MM".
func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// ClassPeriod is one slot of the daily timetable.
type ClassPeriod struct {
	Number int       `json:"period_number"`
	Start  TimeOfDay `json:"start_time"`
	End    TimeOfDay `json:"end_time"`
	Lunch  bool      `json:"is_lunch"`
	Label  string    `json:"subject"`
}

// Contains reports whether at lies inside the period, both bounds included.
func (p ClassPeriod) Contains(at TimeOfDay) bool {
	return p.Start <= at && at <= p.End
}

// Table is an immutable, versioned set of periods.
type Table struct {
	Version string
	Periods []ClassPeriod
}

// DefaultTable is the college's six teaching periods around a half-hour lunch.
func DefaultTable() Table {
	return Table{
		Version: "v1",
		Periods: []ClassPeriod{
			{Number: 1, Start: MustTimeOfDay("10:00"), End: MustTimeOfDay("11:00"), Label: "Period 1"},
			{Number: 2, Start: MustTimeOfDay("11:00"), End: MustTimeOfDay("12:00"), Label: "Period 2"},
			{Number: 3, Start: MustTimeOfDay("12:00"), End: MustTimeOfDay("13:00"), Label: "Period 3"},
			{Number: 4, Start: MustTimeOfDay("13:00"), End: MustTimeOfDay("13:30"), Lunch: true, Label: "Lunch Break"},
			{Number: 5, Start: MustTimeOfDay("13:30"), End: MustTimeOfDay("14:30"), Label: "Period 4"},
			{Number: 6, Start: MustTimeOfDay("14:30"), End: MustTimeOfDay("15:30"), Label: "Period 5"},
			{Number: 7, Start: MustTimeOfDay("15:30"), End: MustTimeOfDay("16:30"), Label: "Period 6"},
		},
	}
}

// ParseTable reads a comma separated list of "N=HH:MM-HH:MM" entries.
// A "/lunch" suffix marks the lunch slot, e.g. "4=13:00-13:30/lunch".
func ParseTable(version, list string) (Table, error) {
	var periods []ClassPeriod
	for _, raw := range strings.Split(list, ",") {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		num, window, ok := strings.Cut(entry, "=")
		if !ok {
			return Table{}, fmt.Errorf("period entry %q: missing '='", entry)
		}
		n, err := strconv.Atoi(strings.TrimSpace(num))
		if err != nil {
			return Table{}, fmt.Errorf("period entry %q: %w", entry, err)
		}
		window, lunch := strings.CutSuffix(strings.TrimSpace(window), "/lunch")
		from, to, ok := strings.Cut(window, "-")
		if !ok {
			return Table{}, fmt.Errorf("period entry %q: missing '-'", entry)
		}
		start, err := ParseTimeOfDay(from)
		if err != nil {
			return Table{}, err
		}
		end, err := ParseTimeOfDay(to)
		if err != nil {
			return Table{}, err
		}
		periods = append(periods, ClassPeriod{Number: n, Start: start, End: end, Lunch: lunch})
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].Number < periods[j].Number })
	teaching := 0
	for i := range periods {
		if periods[i].Lunch {
			periods[i].Label = "Lunch Break"
			continue
		}
		teaching++
		periods[i].Label = fmt.Sprintf("Period %d", teaching)
	}
	t := Table{Version: version, Periods: periods}
	return t, t.Validate()
}

// Validate checks numbering and window ordering.
// Adjacent periods may share a boundary minute.
func (t Table) Validate() error {
	if len(t.Periods) == 0 {
		return errors.New("period table is empty")
	}
	for i, p := range t.Periods {
		if p.Number <= 0 {
			return fmt.Errorf("period %d: number must be positive", p.Number)
		}
		if p.Start >= p.End {
			return fmt.Errorf("period %d: start %s not before end %s", p.Number, p.Start, p.End)
		}
		if i == 0 {
			continue
		}
		prev := t.Periods[i-1]
		if p.Number <= prev.Number {
			return fmt.Errorf("period %d: numbers must be unique and ascending", p.Number)
		}
		if p.Start < prev.End {
			return fmt.Errorf("period %d overlaps period %d", p.Number, prev.Number)
		}
	}
	return nil
}
