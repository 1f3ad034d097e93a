package engine

import (
	"sort"
	"sync"
)

// Store maps session ids to sessions. Insert and Remove are the serialization
// point for every other operation: once Remove returns a session, later
// lookups of that id fail.
type Store struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
	lastID   int64
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[int64]*Session),
	}
}

// NextID reserves a fresh id. Ids are never reused, even after removal.
func (s *Store) NextID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastID++
	return s.lastID
}

func (s *Store) Insert(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
}

func (s *Store) Get(id int64) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// Remove deletes the session, marks it removed and returns it. Only one
// concurrent caller can observe ok == true for a given id.
func (s *Store) Remove(id int64) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
		sess.removed.Store(true)
	}
	return sess, ok
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Snapshot returns the stored sessions ordered by id.
func (s *Store) Snapshot() []*Session {
	s.mu.RLock()
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
