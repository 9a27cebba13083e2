package prescription

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is one open editor addressed by a draft id. Owner is the user
// that opened it; only that user may touch the draft.
type Session struct {
	ID        uuid.UUID `json:"draft_id"`
	Owner     string    `json:"-"`
	Editor    *Editor   `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	lastSeen  time.Time
}

// Sessions holds open editors in memory. A session not touched for ttl is
// treated as gone and removed by the next Sweep.
type Sessions struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	items map[uuid.UUID]*Session
}

func NewSessions(ttl time.Duration) *Sessions {
	return &Sessions{
		ttl:   ttl,
		now:   time.Now,
		items: make(map[uuid.UUID]*Session),
	}
}

func (s *Sessions) Add(owner string, ed *Editor) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	sess := &Session{ID: uuid.New(), Owner: owner, Editor: ed, CreatedAt: now, lastSeen: now}
	s.items[sess.ID] = sess
	return sess
}

// Get returns a live session and refreshes its idle timer.
func (s *Sessions) Get(id uuid.UUID) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.items[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	now := s.now()
	if s.expired(sess, now) {
		delete(s.items, id)
		return nil, ErrSessionNotFound
	}
	sess.lastSeen = now
	return sess, nil
}

func (s *Sessions) Remove(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
}

// expired never reports a session with a submit in flight.
func (s *Sessions) expired(sess *Session, now time.Time) bool {
	if now.Sub(sess.lastSeen) < s.ttl {
		return false
	}
	return sess.Editor.State() != StateSubmitting
}

// Sweep drops idle sessions and returns how many were removed.
func (s *Sessions) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for id, sess := range s.items {
		if s.expired(sess, now) {
			delete(s.items, id)
			removed++
		}
	}
	return removed
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
