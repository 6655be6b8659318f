package attendance

import (
	"context"
	"errors"
	"math"
	"time"
)

// Status of an attendance record. Only StatusPresent is written today.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusLate    Status = "late"
)

// ErrDuplicateForPeriod means the student already has a record for that date and period.
var ErrDuplicateForPeriod = errors.New("attendance already marked for this period today")

// Record is one attendance mark.
type Record struct {
	ID           string    `json:"id"`
	StudentID    string    `json:"student_id"`
	Date         time.Time `json:"date"`
	PeriodNumber int       `json:"period"`
	MarkedAt     time.Time `json:"marked_at"`
	Status       Status    `json:"status"`
	Subject      string    `json:"subject"`
}

// Filter narrows admin listings. Zero values match everything.
type Filter struct {
	StudentID string
	Date      time.Time
	Period    int
	Limit     int
	Offset    int
}

// Store persists records. Insert must be atomic per (StudentID, Date, PeriodNumber)
// and report a taken key as ErrDuplicateForPeriod.
type Store interface {
	Insert(ctx context.Context, rec Record) (Record, error)
	Counts(ctx context.Context, studentID string) (present, total int, err error)
	Recent(ctx context.Context, studentID string, limit int) ([]Record, error)
	List(ctx context.Context, f Filter) ([]Record, error)
}

// Stats summarises a student's attendance.
type Stats struct {
	Present    int     `json:"present"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// Percentage is present/total*100 rounded to one decimal, 0 when total is 0.
func Percentage(present, total int) float64 {
	if total <= 0 {
		return 0.0
	}
	return math.Round(float64(present)/float64(total)*1000) / 10
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}
