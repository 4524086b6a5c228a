package usage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps the most recent entries in memory. Older entries are
// dropped once capacity is reached.
type MemoryStore struct {
	mu       sync.Mutex
	entries  []Entry
	capacity int
	clock    func() time.Time
}

// NewMemoryStore returns a store retaining up to capacity entries. A
// non-positive capacity uses DefaultCapacity.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryStore{
		entries:  make([]Entry, 0, capacity),
		capacity: capacity,
		clock:    time.Now,
	}
}

func (s *MemoryStore) Log(_ context.Context, e Entry) (Entry, int, error) {
	e, err := Normalize(e, s.clock(), uuid.NewString)
	if err != nil {
		return Entry{}, 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) == s.capacity {
		copy(s.entries, s.entries[1:])
		s.entries = s.entries[:len(s.entries)-1]
	}
	s.entries = append(s.entries, e)
	return e, len(s.entries), nil
}

func (s *MemoryStore) Stats(context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{TotalSessions: len(s.entries)}
	if len(s.entries) == 0 {
		return st, nil
	}
	var steps int
	for _, e := range s.entries {
		steps += e.StepsCompleted
	}
	st.AverageStepsCompleted = float64(steps) / float64(len(s.entries))
	last := s.entries[len(s.entries)-1].Timestamp
	st.LastActivity = &last
	return st, nil
}

// Entries returns a copy of the retained entries, oldest first.
func (s *MemoryStore) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s *MemoryStore) Close() error { return nil }
