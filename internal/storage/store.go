// Package storage provides abstractions for the append-only ledger fact log.
package storage

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/mmynk/splitledger/internal/models"
)

var (
	// ErrVersionConflict is returned by AppendFacts when the home scope moved
	// past the expected version.
	ErrVersionConflict = errors.New("scope version conflict")

	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
)

// Version counts the appends that touched a scope. A scope that has never
// been written is at version 0.
type Version int64

// FactLog is the ordered list of facts visible in one scope and currency,
// together with the scope version it was read at.
type FactLog struct {
	Facts   []models.Fact
	Version Version
}

// Store defines the interface for the ledger fact log.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL,
// memory) without changing the ledger service.
type Store interface {
	// ListFacts returns every fact visible in scope for the currency, in append
	// order. Group scopes see the group's facts; pair scopes see every fact
	// involving both users, grouped or not.
	ListFacts(ctx context.Context, scope models.Scope, currency string) (FactLog, error)

	// AppendFacts atomically appends facts whose home scope is home, provided
	// home is still at expected. It assigns missing fact IDs and timestamps,
	// bumps the version of every scope the facts affect, and returns the new
	// home version. Returns ErrVersionConflict if home moved.
	AppendFacts(ctx context.Context, home models.Scope, expected Version, facts ...models.Fact) (Version, error)

	// CurrentVersion returns the version of a scope.
	CurrentVersion(ctx context.Context, scope models.Scope) (Version, error)

	// ListEntityFacts returns every fact about one expense or settlement in
	// append order. Returns ErrNotFound if there are none.
	ListEntityFacts(ctx context.Context, entityID string) ([]models.Fact, error)

	// ListCounterparties returns the sorted users that share at least one fact
	// with userID in the currency.
	ListCounterparties(ctx context.Context, userID, currency string) ([]string, error)

	// ListUserFacts returns every fact in the currency that names userID as a
	// payer, participant, sender or receiver, in append order.
	ListUserFacts(ctx context.Context, userID, currency string) ([]models.Fact, error)

	// Close releases any resources held by the store.
	Close() error
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewFactID returns a time-ordered unique fact identifier.
func NewFactID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// PrepareAppend validates a batch against its home scope, fills in IDs and
// timestamps, and returns the stamped facts plus every scope they affect with
// home first. Backends call it before writing anything.
func PrepareAppend(home models.Scope, facts []models.Fact) ([]models.Fact, []models.Scope, error) {
	if len(facts) == 0 {
		return nil, nil, fmt.Errorf("append needs at least one fact")
	}
	if !home.Valid() {
		return nil, nil, fmt.Errorf("invalid home scope %s", home)
	}

	now := time.Now().Unix()
	stamped := make([]models.Fact, len(facts))
	affected := []models.Scope{home}
	seen := map[string]bool{home.Key(): true}

	for i, f := range facts {
		scopes, err := f.AffectedScopes()
		if err != nil {
			return nil, nil, fmt.Errorf("fact %d: %w", i, err)
		}
		if scopes[0] != home {
			return nil, nil, fmt.Errorf("fact %d belongs to %s, not %s", i, scopes[0], home)
		}
		for _, s := range scopes[1:] {
			if !seen[s.Key()] {
				seen[s.Key()] = true
				affected = append(affected, s)
			}
		}

		f = f.Clone()
		if f.ID == "" {
			f.ID = NewFactID()
		}
		if f.RecordedAt == 0 {
			f.RecordedAt = now
		}
		stamped[i] = f
	}

	return stamped, affected, nil
}
