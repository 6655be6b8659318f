package schedule

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hhmm string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", "2024-09-02 "+hhmm)
	if err != nil {
		panic(err)
	}
	return t
}

func newDefault(t *testing.T) *Scheduler {
	t.Helper()
	s, err := New(DefaultTable())
	require.NoError(t, err)
	return s
}

func TestDefaultTableShape(t *testing.T) {
	s := newDefault(t)
	periods := s.Periods()
	require.Len(t, periods, 7)

	want := []struct {
		start, end string
		lunch      bool
	}{
		{"10:00", "11:00", false},
		{"11:00", "12:00", false},
		{"12:00", "13:00", false},
		{"13:00", "13:30", true},
		{"13:30", "14:30", false},
		{"14:30", "15:30", false},
		{"15:30", "16:30", false},
	}
	for i, w := range want {
		p := periods[i]
		assert.Equal(t, i+1, p.Number)
		assert.Equal(t, w.start, p.Start.String())
		assert.Equal(t, w.end, p.End.String())
		assert.Equal(t, w.lunch, p.Lunch)
	}
}

func TestValidatePeriodForMarking_Boundaries(t *testing.T) {
	s := newDefault(t)

	p, err := s.ValidatePeriodForMarking(1, at("10:00"))
	require.NoError(t, err)
	assert.Equal(t, 1, p.Number)

	_, err = s.ValidatePeriodForMarking(1, at("09:59"))
	require.ErrorIs(t, err, ErrNotYetOpen)
	var werr *WindowError
	require.True(t, errors.As(err, &werr))
	assert.Equal(t, "10:00", werr.Period.Start.String())

	_, err = s.ValidatePeriodForMarking(1, at("11:01"))
	require.ErrorIs(t, err, ErrAlreadyClosed)
	assert.Contains(t, err.Error(), "11:00")
}

// At an exact shared boundary both neighbouring periods accept marks.
// This double eligibility is kept on purpose.
func TestValidatePeriodForMarking_SharedBoundaryQuirk(t *testing.T) {
	s := newDefault(t)

	_, err := s.ValidatePeriodForMarking(1, at("11:00"))
	assert.NoError(t, err)
	_, err = s.ValidatePeriodForMarking(2, at("11:00"))
	assert.NoError(t, err)
}

func TestValidatePeriodForMarking_SecondsTruncated(t *testing.T) {
	s := newDefault(t)
	_, err := s.ValidatePeriodForMarking(1, at("11:00").Add(59*time.Second))
	assert.NoError(t, err)
}

func TestValidatePeriodForMarking_Lunch(t *testing.T) {
	s := newDefault(t)
	for _, hhmm := range []string{"08:00", "13:00", "13:15", "13:30", "20:00"} {
		_, err := s.ValidatePeriodForMarking(4, at(hhmm))
		assert.ErrorIs(t, err, ErrLunchBreak, hhmm)
	}
}

func TestValidatePeriodForMarking_Unknown(t *testing.T) {
	s := newDefault(t)
	for _, n := range []int{0, -1, 8, 99} {
		_, err := s.ValidatePeriodForMarking(n, at("10:30"))
		assert.ErrorIs(t, err, ErrUnknownPeriod)
	}
}

func TestResolveCurrentPeriod(t *testing.T) {
	s := newDefault(t)

	cases := []struct {
		at   string
		want int
	}{
		{"09:59", 0},
		{"10:00", 1},
		{"10:30", 1},
		{"11:00", 1},
		{"11:01", 2},
		{"13:15", 4},
		{"13:30", 4},
		{"13:31", 5},
		{"16:30", 7},
		{"16:31", 0},
		{"00:00", 0},
	}
	for _, tc := range cases {
		p, ok := s.ResolveCurrentPeriod(at(tc.at))
		if tc.want == 0 {
			assert.False(t, ok, tc.at)
			continue
		}
		require.True(t, ok, tc.at)
		assert.Equal(t, tc.want, p.Number, tc.at)
	}
}

func TestResolveCurrentPeriod_TotalAndDeterministic(t *testing.T) {
	s := newDefault(t)
	base := at("00:00")
	for m := 0; m < 24*60; m++ {
		now := base.Add(time.Duration(m) * time.Minute)
		p1, ok1 := s.ResolveCurrentPeriod(now)
		p2, ok2 := s.ResolveCurrentPeriod(now)
		require.Equal(t, ok1, ok2)
		require.Equal(t, p1, p2)

		matches := 0
		for _, p := range s.Periods() {
			if p.Contains(TimeOfDayOf(now)) {
				matches++
			}
		}
		if matches == 0 {
			assert.False(t, ok1)
		} else {
			assert.True(t, ok1)
			assert.True(t, p1.Contains(TimeOfDayOf(now)))
		}
	}
}

func TestParseTable(t *testing.T) {
	tbl, err := ParseTable("v2", "2=09:00-10:00, 1=08:00-09:00 ,3=10:00-10:20/lunch,4=10:20-11:20")
	require.NoError(t, err)
	require.Len(t, tbl.Periods, 4)
	assert.Equal(t, "v2", tbl.Version)
	assert.Equal(t, 1, tbl.Periods[0].Number)
	assert.Equal(t, "Period 1", tbl.Periods[0].Label)
	assert.True(t, tbl.Periods[2].Lunch)
	assert.Equal(t, "Lunch Break", tbl.Periods[2].Label)
	assert.Equal(t, "Period 3", tbl.Periods[3].Label)
}

func TestParseTable_Rejects(t *testing.T) {
	bad := []string{
		"",
		"1=10:00",
		"x=10:00-11:00",
		"1=11:00-10:00",
		"1=10:00-11:00,1=11:00-12:00",
		"1=10:00-11:30,2=11:00-12:00",
		"0=10:00-11:00",
		"1=25:00-26:00",
	}
	for _, entry := range bad {
		_, err := ParseTable("v", entry)
		assert.Error(t, err, entry)
	}
}

func TestSchedulerCopiesTable(t *testing.T) {
	tbl := DefaultTable()
	s, err := New(tbl)
	require.NoError(t, err)
	tbl.Periods[0].Start = MustTimeOfDay("06:00")
	p, _ := s.Lookup(1)
	assert.Equal(t, "10:00", p.Start.String())
	assert.Equal(t, "v1", s.Version())
}

func TestDateOf(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	now := time.Date(2024, 9, 2, 23, 45, 0, 0, loc)
	assert.Equal(t, time.Date(2024, 9, 2, 0, 0, 0, 0, time.UTC), DateOf(now))
}
