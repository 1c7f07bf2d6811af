package stager

import "sync"

// slugLocks hands out one mutex per slug. Slugs are few and long lived,
// so entries are never released.
type slugLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (l *slugLocks) lock(slug string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*sync.Mutex)
	}
	m, ok := l.locks[slug]
	if !ok {
		m = &sync.Mutex{}
		l.locks[slug] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
