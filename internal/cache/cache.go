// Package cache stores versioned snapshots of derived balance views so reads
// can skip replaying the fact log while the scope has not moved.
package cache

import (
	"context"
	"errors"
	"maps"
	"sync"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/storage"
)

// ErrMiss is returned when no snapshot is cached for a scope and currency.
var ErrMiss = errors.New("cache miss")

// Snapshot is a derived view of one scope and currency as of Version.
// Group scopes cache net positions; pair scopes cache the pairwise balance as
// {UserA: +b, UserB: -b}.
type Snapshot struct {
	Version   storage.Version
	Positions map[string]money.Amount
}

// Snapshots is a versioned snapshot cache. Callers compare Version with the
// scope's current version and treat an older snapshot as a miss.
type Snapshots interface {
	Get(ctx context.Context, scope models.Scope, currency string) (Snapshot, error)
	Put(ctx context.Context, scope models.Scope, currency string, snap Snapshot) error
	// Invalidate drops every currency cached for the scope.
	Invalidate(ctx context.Context, scope models.Scope) error
}

// Ensure Memory implements Snapshots
var _ Snapshots = (*Memory)(nil)

// Memory is an in-process Snapshots implementation.
type Memory struct {
	mu    sync.RWMutex
	snaps map[string]map[string]Snapshot
}

// NewMemory creates an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{snaps: make(map[string]map[string]Snapshot)}
}

func (m *Memory) Get(ctx context.Context, scope models.Scope, currency string) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap, ok := m.snaps[scope.Key()][currency]
	if !ok {
		return Snapshot{}, ErrMiss
	}
	return Snapshot{Version: snap.Version, Positions: maps.Clone(snap.Positions)}, nil
}

// Put stores snap unless a newer version is already cached.
func (m *Memory) Put(ctx context.Context, scope models.Scope, currency string, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	byCurrency, ok := m.snaps[scope.Key()]
	if !ok {
		byCurrency = make(map[string]Snapshot)
		m.snaps[scope.Key()] = byCurrency
	}
	if cur, ok := byCurrency[currency]; ok && cur.Version > snap.Version {
		return nil
	}
	byCurrency[currency] = Snapshot{Version: snap.Version, Positions: maps.Clone(snap.Positions)}
	return nil
}

func (m *Memory) Invalidate(ctx context.Context, scope models.Scope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snaps, scope.Key())
	return nil
}
