package survey

import "sync"

// Store is the session storage capability required by the Engine. The
// in-memory implementation is authoritative; the interface exists so a
// durable backing store can replace it without touching the state machine.
type Store interface {
	Get(userID string) (*Session, bool)
	Upsert(s *Session)
	Delete(userID string)
}

// MemoryStore is a map-backed session store. The map itself is guarded by a
// mutex; mutation of an individual Session is serialized by the Engine's
// per-user lock.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

// Get returns the session for userID, if any.
func (m *MemoryStore) Get(userID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[userID]
	return s, ok
}

// Upsert inserts or replaces the session for its user.
func (m *MemoryStore) Upsert(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.UserID] = s
}

// Delete removes the session for userID. Deleting an absent session is a
// no-op.
func (m *MemoryStore) Delete(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}

// keyedMutex serializes survey transitions per user key so that users
// proceed fully in parallel while operations for one user never interleave.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

// lock acquires the mutex for key and returns its unlock function.
func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()
	l.Lock()
	return l.Unlock
}
