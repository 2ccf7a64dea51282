package blob

import "sync"

// lockTable hands out one RWMutex per key and forgets it once nobody holds or
// waits for it.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	sync.RWMutex
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*refLock)}
}

func (t *lockTable) acquire(key string, exclusive bool) func() {
	t.mu.Lock()

	lock, ok := t.locks[key]
	if !ok {
		lock = new(refLock)
		t.locks[key] = lock
	}

	lock.refs++
	t.mu.Unlock()

	if exclusive {
		lock.Lock()
	} else {
		lock.RLock()
	}

	var once sync.Once

	return func() {
		once.Do(func() {
			if exclusive {
				lock.Unlock()
			} else {
				lock.RUnlock()
			}

			t.mu.Lock()
			defer t.mu.Unlock()

			if lock.refs--; lock.refs == 0 {
				delete(t.locks, key)
			}
		})
	}
}

func (t *lockTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.locks)
}
