package attendance

import (
	"context"
	"sort"
	"sync"
	"time"
)

type recordKey struct {
	studentID string
	date      time.Time
	period    int
}

// MemoryStore keeps records in process, for development and tests.
// Check and insert happen under one lock.
type MemoryStore struct {
	mu      sync.Mutex
	records []Record
	keys    map[recordKey]struct{}
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[recordKey]struct{})}
}

func (m *MemoryStore) Insert(_ context.Context, rec Record) (Record, error) {
	key := recordKey{studentID: rec.StudentID, date: rec.Date, period: rec.PeriodNumber}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.keys[key]; taken {
		return Record{}, ErrDuplicateForPeriod
	}
	m.keys[key] = struct{}{}
	m.records = append(m.records, rec)
	return rec, nil
}

func (m *MemoryStore) Counts(_ context.Context, studentID string) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var present, total int
	for _, rec := range m.records {
		if rec.StudentID != studentID {
			continue
		}
		total++
		if rec.Status == StatusPresent {
			present++
		}
	}
	return present, total, nil
}

func (m *MemoryStore) Recent(ctx context.Context, studentID string, limit int) ([]Record, error) {
	return m.List(ctx, Filter{StudentID: studentID, Limit: limit})
}

func (m *MemoryStore) List(_ context.Context, f Filter) ([]Record, error) {
	m.mu.Lock()
	matched := make([]Record, 0, len(m.records))
	for _, rec := range m.records {
		if f.StudentID != "" && rec.StudentID != f.StudentID {
			continue
		}
		if !f.Date.IsZero() && !rec.Date.Equal(f.Date) {
			continue
		}
		if f.Period > 0 && rec.PeriodNumber != f.Period {
			continue
		}
		matched = append(matched, rec)
	}
	m.mu.Unlock()

	sort.SliceStable(matched, func(i, j int) bool { return matched[i].MarkedAt.After(matched[j].MarkedAt) })
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.Offset >= len(matched) {
		return nil, nil
	}
	matched = matched[f.Offset:]
	if limit := normalizeLimit(f.Limit, 50); len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}
