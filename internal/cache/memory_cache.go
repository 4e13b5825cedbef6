package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/moabank/ledger-service/internal/domain"
)

// MemoryPipeline is an in-process Pipeline implementation with the same
// contract as the Redis one, including key expiry. Stage tests run against
// it; it is also usable as a degraded single-process fallback.
type MemoryPipeline struct {
	mu       sync.Mutex
	hashes   map[string]memoryHash
	statuses map[string]memoryStatus
	now      func() time.Time
}

type memoryHash struct {
	fields    map[string]int
	expected  int
	expiresAt time.Time
}

type memoryStatus struct {
	status    domain.PipelineStatus
	expiresAt time.Time
}

// NewMemoryPipeline creates an empty in-memory pipeline cache.
func NewMemoryPipeline() *MemoryPipeline {
	return &MemoryPipeline{
		hashes:   make(map[string]memoryHash),
		statuses: make(map[string]memoryStatus),
		now:      time.Now,
	}
}

// SetClock overrides the time source, for expiry tests.
func (m *MemoryPipeline) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryPipeline) liveHash(key string) memoryHash {
	h, ok := m.hashes[key]
	if !ok {
		return memoryHash{fields: make(map[string]int)}
	}
	if !h.expiresAt.IsZero() && m.now().After(h.expiresAt) {
		delete(m.hashes, key)
		return memoryHash{fields: make(map[string]int)}
	}
	return h
}

func (m *MemoryPipeline) PutCategory(_ context.Context, accountID uuid.UUID, description string, categoryID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := categoryKey(accountID)
	h := m.liveHash(key)
	h.fields[description] = categoryID
	m.hashes[key] = h
	return nil
}

func (m *MemoryPipeline) GetCategories(_ context.Context, accountID uuid.UUID) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h := m.liveHash(categoryKey(accountID))
	out := make(map[string]int, len(h.fields))
	for desc, id := range h.fields {
		out[desc] = id
	}
	return out, nil
}

func (m *MemoryPipeline) SetExpectedTotal(_ context.Context, accountID uuid.UUID, total int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := categoryKey(accountID)
	h := m.liveHash(key)
	h.expected = total
	h.expiresAt = m.now().Add(CategoryTTL)
	m.hashes[key] = h
	return nil
}

func (m *MemoryPipeline) Progress(_ context.Context, accountID uuid.UUID) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h := m.liveHash(categoryKey(accountID))
	return len(h.fields), h.expected, nil
}

func (m *MemoryPipeline) AcquireRunLock(_ context.Context, memberID uuid.UUID, accountNumber string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := statusKey(memberID, accountNumber)
	if _, ok := m.liveStatus(key); ok {
		return false, nil
	}
	m.statuses[key] = memoryStatus{status: domain.StatusFetching, expiresAt: m.now().Add(StatusTTL)}
	return true, nil
}

// SetStatus validates and writes the transition under one lock hold, matching
// the atomicity of the redis implementation's WATCH transaction.
func (m *MemoryPipeline) SetStatus(_ context.Context, memberID uuid.UUID, accountNumber string, status domain.PipelineStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := statusKey(memberID, accountNumber)
	current, ok := m.liveStatus(key)
	if ok && !current.CanTransitionTo(status) {
		return &IllegalTransitionError{From: current, To: status}
	}
	if !ok && status != domain.StatusFetching && status != domain.StatusFailed {
		return &IllegalTransitionError{To: status}
	}

	m.statuses[key] = memoryStatus{
		status:    status,
		expiresAt: m.now().Add(StatusTTL),
	}
	return nil
}

func (m *MemoryPipeline) GetStatus(_ context.Context, memberID uuid.UUID, accountNumber string) (domain.PipelineStatus, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	status, ok := m.liveStatus(statusKey(memberID, accountNumber))
	return status, ok, nil
}

// liveStatus returns the unexpired status for key; callers hold m.mu.
func (m *MemoryPipeline) liveStatus(key string) (domain.PipelineStatus, bool) {
	s, ok := m.statuses[key]
	if !ok {
		return "", false
	}
	if m.now().After(s.expiresAt) {
		delete(m.statuses, key)
		return "", false
	}
	return s.status, true
}

var _ Pipeline = (*MemoryPipeline)(nil)

// IllegalTransitionError reports a rejected pipeline status write.
type IllegalTransitionError struct {
	From domain.PipelineStatus
	To   domain.PipelineStatus
}

func (e *IllegalTransitionError) Error() string {
	if e.From == "" {
		return "illegal initial status " + string(e.To)
	}
	return "illegal status transition " + string(e.From) + " -> " + string(e.To)
}
