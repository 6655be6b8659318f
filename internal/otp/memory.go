package otp

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps challenges in process. Selection and consumption share one lock.
type MemoryStore struct {
	mu         sync.Mutex
	challenges []*Challenge
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Create(_ context.Context, c Challenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.challenges = append(m.challenges, &c)
	return nil
}

func (m *MemoryStore) ConsumeLatest(_ context.Context, email, code string, validAfter, usedAt time.Time) (Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *Challenge
	for _, c := range m.challenges {
		if c.Used || c.Email != email || c.Code != code || !c.CreatedAt.After(validAfter) {
			continue
		}
		if best == nil || c.CreatedAt.After(best.CreatedAt) {
			best = c
		}
	}
	if best == nil {
		return Challenge{}, ErrInvalidOrExpired
	}
	best.Used = true
	at := usedAt
	best.UsedAt = &at
	return *best, nil
}

func (m *MemoryStore) PurgeExpired(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.challenges[:0]
	var removed int64
	for _, c := range m.challenges {
		if c.Used || !c.CreatedAt.After(cutoff) {
			removed++
			continue
		}
		kept = append(kept, c)
	}
	m.challenges = kept
	return removed, nil
}
