// Package repository implements the Session Repository port (spec §4.2,
// C3): session lookup, creation, and lifecycle, with per-session
// serialization so concurrent requests against the same session never
// interleave (spec §5).
package repository

import (
	"sync"

	"github.com/atlaschat/core/internal/domain"
)

// Repository is the Session Repository port.
type Repository interface {
	// Get returns the session for id, or (nil, false) if it doesn't exist.
	Get(id string) (*domain.Session, bool)
	// GetOrCreate returns the existing session for id, creating one if
	// absent. Creation and lookup are atomic with respect to other
	// GetOrCreate/Delete calls.
	GetOrCreate(id string) *domain.Session
	// Exists reports whether a session exists for id.
	Exists(id string) bool
	// Delete removes a session. A no-op if it doesn't exist.
	Delete(id string)
	// Reset clears a session's history and files in place without
	// removing it from the repository (spec's session_reset operation).
	Reset(id string)
}

// InMemory is the default Repository: sessions live only for the process
// lifetime, keyed by session ID, guarded by a single map mutex. Each
// domain.Session additionally carries its own embedded mutex (spec §5's
// per-session serialization), so callers hold Session.Lock for the
// duration of a single request's mutations rather than locking the whole
// repository.
//
// Grounded on the teacher's internal/session state map (deleted —
// coding-session specific) generalized to the plain get/create/delete
// contract this spec's Session Repository port requires.
type InMemory struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
}

// NewInMemory creates an empty in-memory Repository.
func NewInMemory() *InMemory {
	return &InMemory{sessions: make(map[string]*domain.Session)}
}

func (r *InMemory) Get(id string) (*domain.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

func (r *InMemory) GetOrCreate(id string) *domain.Session {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if ok {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		return s
	}
	s = domain.NewSession(id)
	r.sessions[id] = s
	return s
}

func (r *InMemory) Exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[id]
	return ok
}

func (r *InMemory) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

func (r *InMemory) Reset(id string) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return
	}
	s.Lock()
	defer s.Unlock()
	s.ClearHistory()
	delete(s.Context, "files")
}

// Files returns the session's current file map for id, satisfying
// internal/tool.SessionFiles so the Tool Executor can resolve a filename
// argument against the right session without the tool package importing
// this one's full Repository interface.
func (r *InMemory) Files(id string) (map[string]*domain.FileRef, bool) {
	s, ok := r.Get(id)
	if !ok {
		return nil, false
	}
	return s.Files(), true
}

var _ Repository = (*InMemory)(nil)
