package rtp

import "sync"

// registry is the process-wide, mutex-guarded list of live RtpSession
// instances the Design Notes (spec §9) ask for in place of raw-pointer
// identity: a session is looked up and refcounted by its Key, never by
// pointer equality.
type registry struct {
	mu       sync.Mutex
	sessions map[Key]*Session
}

var defaultRegistry = &registry{sessions: make(map[Key]*Session)}

// GetInstance returns the existing session registered under cfg.Key with
// its refcount incremented, or creates and registers a new one with
// refcount 1 if none exists (spec §4.3 "instance sharing").
func GetInstance(cfg SessionConfig) (*Session, error) {
	return defaultRegistry.getInstance(cfg)
}

func (r *registry) getInstance(cfg SessionConfig) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.sessions[cfg.Key]; ok {
		existing.mu.Lock()
		existing.refCount++
		existing.mu.Unlock()
		return existing, nil
	}

	session, err := newSession(cfg)
	if err != nil {
		return nil, err
	}
	r.sessions[cfg.Key] = session
	return session, nil
}

// Release decrements the session's refcount, tearing it down (stopping
// RTCP, removing it from the registry) only when the count reaches zero.
func Release(s *Session) {
	defaultRegistry.release(s)
}

func (r *registry) release(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s.mu.Lock()
	s.refCount--
	remaining := s.refCount
	s.mu.Unlock()

	if remaining > 0 {
		return
	}

	s.Stop()
	delete(r.sessions, s.key)
}

// Count returns the number of distinct sessions currently registered.
// Intended for tests and diagnostics.
func Count() int {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	return len(defaultRegistry.sessions)
}
