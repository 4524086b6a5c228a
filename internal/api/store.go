package api

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/samcharles93/explora/internal/inference"
	"github.com/samcharles93/explora/internal/logits"
	"github.com/samcharles93/explora/internal/session"
)

// Session is one stored exploration. mu guards the state and serialises use
// of the session's sampler; it is only held for short updates. gen serialises
// generation runs, which execute without mu so readers are never blocked by a
// slow stream.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu      sync.Mutex
	gen     sync.Mutex
	state   session.State
	machine *session.Machine
}

// State returns the current state.
func (s *Session) State() session.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Apply reduces the session state with a.
func (s *Session) Apply(a session.Action) (session.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := s.machine.Reduce(s.state, a)
	if err != nil {
		return s.state, err
	}
	s.state = next
	return next, nil
}

// Generate runs up to steps generation steps with g and stores the result.
// fn observes every token without the session lock held. Tokens produced
// before an error are kept. If an action replaces the snapshot while the run
// is in progress, the run's result is discarded and an error returned.
func (s *Session) Generate(ctx context.Context, g *inference.Generator, steps int, fn inference.StepFunc) (session.State, inference.Stats, error) {
	s.gen.Lock()
	defer s.gen.Unlock()

	start := s.State()
	if start.Snapshot == nil {
		return start, inference.Stats{}, newInvalidRequest("session has no input")
	}
	snap, stats, err := g.Generate(ctx, start.Snapshot, steps, fn)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Snapshot != start.Snapshot {
		return s.state, stats, newInvalidRequest("session changed during generation")
	}
	if snap != nil {
		s.state.Snapshot = snap
		if stats.TokensGenerated > 0 {
			s.state.Step = session.StepGeneration
		}
	}
	return s.state, stats, err
}

// DefaultSessionCapacity bounds how many sessions a store keeps.
const DefaultSessionCapacity = 1000

// SessionStore keeps sessions in memory. Once full, creating a session evicts
// the oldest one.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	order    []string
	capacity int
	clock    func() time.Time
}

func NewSessionStore() *SessionStore {
	return NewSessionStoreSize(DefaultSessionCapacity)
}

// NewSessionStoreSize returns a store holding at most capacity sessions.
// A non-positive capacity uses DefaultSessionCapacity.
func NewSessionStoreSize(capacity int) *SessionStore {
	if capacity <= 0 {
		capacity = DefaultSessionCapacity
	}
	return &SessionStore{
		sessions: make(map[string]*Session),
		capacity: capacity,
		clock:    time.Now,
	}
}

// Create stores a new session in its initial state.
func (s *SessionStore) Create(runner *inference.Runner, sampler *logits.Sampler) *Session {
	sess := &Session{
		ID:        newSessionID(),
		CreatedAt: s.clock(),
		state:     session.Initial(),
		machine:   session.NewMachine(runner, sampler),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.order) >= s.capacity {
		delete(s.sessions, s.order[0])
		s.order = s.order[1:]
	}
	s.sessions[sess.ID] = sess
	s.order = append(s.order, sess.ID)
	return sess
}

func (s *SessionStore) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

func (s *SessionStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	s.order = slices.DeleteFunc(s.order, func(o string) bool { return o == id })
	return true
}

func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func newSessionID() string {
	return "sess_" + uuid.NewString()
}
