package outbox

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MemoryStore is an in-process outbox used when no database is configured.
// Failed events are retried on the next batch. Sent events are dropped.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	events []Event
	leases map[int64]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{leases: make(map[int64]time.Time)}
}

func (s *MemoryStore) Enqueue(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	event.ID = s.nextID
	event.Status = StatusPending
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	s.events = append(s.events, event)
	return nil
}

func (s *MemoryStore) LockBatch(_ context.Context, relayID string, batchSize int, lease time.Duration) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var out []Event
	for i := range s.events {
		if len(out) >= batchSize {
			break
		}
		e := &s.events[i]
		expired := e.Status == StatusInProgress && now.After(s.leases[e.ID])
		if e.Status != StatusPending && e.Status != StatusFailed && !expired {
			continue
		}
		e.Status = StatusInProgress
		e.RelayID = relayID
		s.leases[e.ID] = now.Add(lease)
		out = append(out, *e)
	}
	return out, nil
}

// MarkSent drops delivered events so the store only holds undelivered ones.
func (s *MemoryStore) MarkSent(_ context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	done := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		done[id] = struct{}{}
	}
	kept := s.events[:0]
	for _, e := range s.events {
		if _, ok := done[e.ID]; ok {
			delete(s.leases, e.ID)
			continue
		}
		kept = append(kept, e)
	}
	removed := len(s.events) - len(kept)
	clear(s.events[len(kept):])
	s.events = kept
	if removed == 0 {
		return errors.New("no rows updated")
	}
	return nil
}

func (s *MemoryStore) MarkFailed(_ context.Context, id int64, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e := s.find(id); e != nil {
		e.Status = StatusFailed
		e.LastError = &errMsg
		e.RetryCount++
		delete(s.leases, id)
	}
	return nil
}

func (s *MemoryStore) ExtendLease(_ context.Context, relayID string, ids []int64, lease time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	until := time.Now().Add(lease)
	for _, id := range ids {
		if e := s.find(id); e != nil && e.RelayID == relayID {
			s.leases[id] = until
		}
	}
	return nil
}

// Events returns a copy of every event not yet delivered.
func (s *MemoryStore) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func (s *MemoryStore) find(id int64) *Event {
	for i := range s.events {
		if s.events[i].ID == id {
			return &s.events[i]
		}
	}
	return nil
}
