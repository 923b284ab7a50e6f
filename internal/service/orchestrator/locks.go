package orchestrator

import "sync"

// convLocks serializes work per conversation key. Different keys run
// fully concurrently; the same key holds its lock across collaborator
// I/O, which is safe because nothing global is held.
type convLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newConvLocks() *convLocks {
	return &convLocks{locks: make(map[string]*sync.Mutex)}
}

// get returns the mutex for a key, creating it on first use. Entries
// are never removed: the set is bounded by the number of conversations
// ever seen by this process.
func (c *convLocks) get(key string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[key]
	if !ok {
		l = &sync.Mutex{}
		c.locks[key] = l
	}
	return l
}
