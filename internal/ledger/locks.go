package ledger

import (
	"slices"
	"sync"

	"github.com/mmynk/splitledger/internal/models"
)

// scopeLocks hands out one RWMutex per scope key. Entries live only while
// someone holds or waits for them.
type scopeLocks struct {
	mu    sync.Mutex
	locks map[string]*scopeLock
}

type scopeLock struct {
	sync.RWMutex
	refs int
}

func newScopeLocks() *scopeLocks {
	return &scopeLocks{locks: make(map[string]*scopeLock)}
}

func (l *scopeLocks) acquire(key string) *scopeLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk, ok := l.locks[key]
	if !ok {
		lk = &scopeLock{}
		l.locks[key] = lk
	}
	lk.refs++
	return lk
}

func (l *scopeLocks) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk := l.locks[key]
	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, key)
	}
}

// Lock write-locks every scope in key order and returns the unlock function.
func (l *scopeLocks) Lock(scopes ...models.Scope) func() {
	keys := make([]string, 0, len(scopes))
	for _, s := range scopes {
		keys = append(keys, s.Key())
	}
	slices.Sort(keys)
	keys = slices.Compact(keys)

	held := make([]*scopeLock, len(keys))
	for i, k := range keys {
		held[i] = l.acquire(k)
		held[i].Lock()
	}
	return func() {
		for i := len(keys) - 1; i >= 0; i-- {
			held[i].Unlock()
			l.release(keys[i])
		}
	}
}

// RLock read-locks one scope and returns the unlock function.
func (l *scopeLocks) RLock(scope models.Scope) func() {
	key := scope.Key()
	lk := l.acquire(key)
	lk.RLock()
	return func() {
		lk.RUnlock()
		l.release(key)
	}
}

// size returns the number of live lock entries.
func (l *scopeLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
