package idempotency

import (
	"context"
	"sync"
	"time"

	"github.com/dmehra2102/volt-storefront/pkg/clock"
)

// Memory is a process-local Guard with the same expiry semantics as Store.
type Memory struct {
	clock clock.Clock
	ttl   time.Duration

	mu       sync.Mutex
	keys     map[string]time.Time
	prunedAt time.Time
}

func NewMemory(c clock.Clock, ttl time.Duration) *Memory {
	return &Memory{clock: c, ttl: ttl, keys: make(map[string]time.Time)}
}

func (m *Memory) Seen(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	if exp, ok := m.keys[key]; ok && (m.ttl <= 0 || now.Before(exp)) {
		return true, nil
	}
	m.prune(now)
	m.keys[key] = now.Add(m.ttl)
	return false, nil
}

func (m *Memory) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

// Len reports how many claims are held, expired ones included until the
// next claim prunes them.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.keys)
}

// prune drops expired claims at most once per ttl. Caller holds mu.
func (m *Memory) prune(now time.Time) {
	if m.ttl <= 0 || now.Sub(m.prunedAt) < m.ttl {
		return
	}
	m.prunedAt = now
	for k, exp := range m.keys {
		if !now.Before(exp) {
			delete(m.keys, k)
		}
	}
}
