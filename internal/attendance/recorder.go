package attendance

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"campusattend/internal/clock"
	"campusattend/internal/schedule"
)

// Recorder validates and persists attendance marks.
type Recorder struct {
	store Store
	sched *schedule.Scheduler
	clock clock.Clock
	log   *zap.Logger
}

// NewRecorder creates a recorder backed by a store.
func NewRecorder(store Store, sched *schedule.Scheduler, clk clock.Clock, log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{store: store, sched: sched, clock: clk, log: log}
}

// Mark records the student present for a period of today.
// Schedule failures wrap the schedule package's sentinel errors.
func (r *Recorder) Mark(ctx context.Context, studentID string, period int, subject string) (Record, error) {
	if studentID == "" {
		return Record{}, errors.New("student id required")
	}
	now := r.clock.Now()
	if _, err := r.sched.ValidatePeriodForMarking(period, now); err != nil {
		return Record{}, fmt.Errorf("period %d: %w", period, err)
	}

	rec, err := r.store.Insert(ctx, Record{
		ID:           uuid.NewString(),
		StudentID:    studentID,
		Date:         schedule.DateOf(now),
		PeriodNumber: period,
		MarkedAt:     now,
		Status:       StatusPresent,
		Subject:      strings.TrimSpace(subject),
	})
	if err != nil {
		return Record{}, err
	}
	r.log.Info("attendance marked",
		zap.String("student_id", studentID),
		zap.Int("period", period),
		zap.String("schedule_version", r.sched.Version()))
	return rec, nil
}

// Stats returns the student's present/total counts and percentage.
func (r *Recorder) Stats(ctx context.Context, studentID string) (Stats, error) {
	present, total, err := r.store.Counts(ctx, studentID)
	if err != nil {
		return Stats{}, err
	}
	return Stats{Present: present, Total: total, Percentage: Percentage(present, total)}, nil
}

// Recent returns the student's latest records, newest first.
func (r *Recorder) Recent(ctx context.Context, studentID string, limit int) ([]Record, error) {
	return r.store.Recent(ctx, studentID, normalizeLimit(limit, 10))
}

// List returns records for auditing, newest first.
func (r *Recorder) List(ctx context.Context, f Filter) ([]Record, error) {
	f.Limit = normalizeLimit(f.Limit, 50)
	if f.Offset < 0 {
		f.Offset = 0
	}
	return r.store.List(ctx, f)
}
