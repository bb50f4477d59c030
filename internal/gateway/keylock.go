package gateway

import (
	"sort"
	"sync"
)

// keyLock serializes work per contact/company key. Keys are acquired
// in sorted order so two goroutines locking overlapping key sets can
// never deadlock.
type keyLock struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyLock() *keyLock {
	return &keyLock{locks: make(map[string]*sync.Mutex)}
}

// acquire locks every key and returns the unlock function.
// Empty and duplicate keys are dropped.
func (k *keyLock) acquire(keys ...string) func() {
	uniq := make(map[string]bool, len(keys))
	var sorted []string
	for _, key := range keys {
		if key == "" || uniq[key] {
			continue
		}
		uniq[key] = true
		sorted = append(sorted, key)
	}
	sort.Strings(sorted)

	held := make([]*sync.Mutex, 0, len(sorted))
	for _, key := range sorted {
		k.mu.Lock()
		m, ok := k.locks[key]
		if !ok {
			m = &sync.Mutex{}
			k.locks[key] = m
		}
		k.mu.Unlock()
		m.Lock()
		held = append(held, m)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}
