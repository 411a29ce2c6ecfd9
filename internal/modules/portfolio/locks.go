package portfolio

import "sync"

// Locks serializes mutations per portfolio. Operations on different
// portfolios proceed fully in parallel; the price synchronizer acquires the
// same lock as request-path mutations.
type Locks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLocks creates a new per-portfolio lock registry
func NewLocks() *Locks {
	return &Locks{
		locks: make(map[string]*sync.Mutex),
	}
}

// Lock acquires the mutex for one portfolio and returns its unlock func.
func (l *Locks) Lock(portfolioID string) func() {
	l.mu.Lock()
	m, ok := l.locks[portfolioID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[portfolioID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
