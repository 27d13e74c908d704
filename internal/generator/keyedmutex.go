package generator

import "sync"

// keyedMutex serializes work per generation key so at most one generation
// runs for a key at a time. Entries are reference counted and removed when
// the last holder releases, keeping the map bounded by in-flight keys.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedLock)}
}

// Lock acquires the lock for a key, blocking while another holder has it.
// The returned func releases the lock.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()

	lock, ok := k.locks[key]
	if !ok {
		lock = &keyedLock{}
		k.locks[key] = lock
	}

	lock.refs++
	k.mu.Unlock()

	lock.mu.Lock()

	return func() {
		lock.mu.Unlock()

		k.mu.Lock()

		lock.refs--
		if lock.refs == 0 {
			delete(k.locks, key)
		}

		k.mu.Unlock()
	}
}
