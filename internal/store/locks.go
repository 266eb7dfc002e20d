package store

import "sync"

// keyedMutexes hands out a per-key mutex from a process-local map,
// guarded by one coarse mutex only while the map itself is touched --
// the same pattern behavior.InMemoryStore uses to keep unrelated keys
// from contending with each other.
type keyedMutexes struct {
	mu    sync.Mutex
	perKey map[string]*sync.Mutex
}

func newKeyedMutexes() *keyedMutexes {
	return &keyedMutexes{perKey: make(map[string]*sync.Mutex)}
}

// lock acquires the mutex for key, creating it on first use, and
// returns a function that releases it.
func (k *keyedMutexes) lock(key string) func() {
	k.mu.Lock()
	m, ok := k.perKey[key]
	if !ok {
		m = &sync.Mutex{}
		k.perKey[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
