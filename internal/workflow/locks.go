package workflow

import "sync"

// sessionLocks serializes transitions per session so concurrent actions on
// the same session execute in some total order. Different sessions never
// block each other.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*sync.Mutex)}
}

// acquire locks the mutex for sessionID and returns its unlock function.
func (l *sessionLocks) acquire(sessionID string) func() {
	l.mu.Lock()
	m, ok := l.locks[sessionID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[sessionID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
