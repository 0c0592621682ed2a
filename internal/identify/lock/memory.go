package lock

import (
	"context"
	"sync"
)

// KeyedMutex is an in-process Locker backed by one channel-based mutex per
// key. Entries are reference counted and removed once unused.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	ch   chan struct{}
	refs int
}

// NewKeyedMutex constructs an empty in-process key locker.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{entries: make(map[string]*entry)}
}

func (k *KeyedMutex) Acquire(ctx context.Context, keys []string) (func(), error) {
	sorted := sortedUnique(keys)
	acquired := make([]*entry, 0, len(sorted))
	names := make([]string, 0, len(sorted))

	for _, key := range sorted {
		e := k.retain(key)
		select {
		case e.ch <- struct{}{}:
			acquired = append(acquired, e)
			names = append(names, key)
		case <-ctx.Done():
			k.put(key, e)
			k.releaseAll(names, acquired)
			return nil, ctx.Err()
		}
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			k.releaseAll(names, acquired)
		})
	}
	return release, nil
}

func (k *KeyedMutex) retain(key string) *entry {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, ok := k.entries[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		k.entries[key] = e
	}
	e.refs++
	return e
}

// put drops a reference without unlocking, used when acquisition fails.
func (k *KeyedMutex) put(key string, e *entry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
}

func (k *KeyedMutex) releaseAll(names []string, acquired []*entry) {
	// Unlock in reverse acquisition order.
	for i := len(acquired) - 1; i >= 0; i-- {
		<-acquired[i].ch
		k.put(names[i], acquired[i])
	}
}
