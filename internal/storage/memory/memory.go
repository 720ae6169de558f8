// Package memory provides an in-process implementation of storage.Store.
// It backs tests and single-process deployments that do not need durability.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// Ensure Store implements storage.Store
var _ storage.Store = (*Store)(nil)

// Store keeps the fact log in memory.
type Store struct {
	mu       sync.RWMutex
	facts    []models.Fact
	byEntity map[string][]int
	versions map[string]storage.Version
	closed   bool
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		byEntity: make(map[string][]int),
		versions: make(map[string]storage.Version),
	}
}

// Close marks the store closed. Further calls fail.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) checkOpen(ctx context.Context) error {
	if s.closed {
		return fmt.Errorf("memory store is closed")
	}
	return ctx.Err()
}

// ListFacts returns the facts visible in scope for the currency.
func (s *Store) ListFacts(ctx context.Context, scope models.Scope, currency string) (storage.FactLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(ctx); err != nil {
		return storage.FactLog{}, err
	}

	log := storage.FactLog{Version: s.versions[scope.Key()]}
	for _, f := range s.facts {
		if f.Currency() == currency && f.Involves(scope) {
			log.Facts = append(log.Facts, f.Clone())
		}
	}
	return log, nil
}

// AppendFacts appends facts if home is still at expected.
func (s *Store) AppendFacts(ctx context.Context, home models.Scope, expected storage.Version, facts ...models.Fact) (storage.Version, error) {
	stamped, affected, err := storage.PrepareAppend(home, facts)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(ctx); err != nil {
		return 0, err
	}

	if current := s.versions[home.Key()]; current != expected {
		return 0, fmt.Errorf("%w: %s is at %d, expected %d", storage.ErrVersionConflict, home, current, expected)
	}

	for _, f := range stamped {
		s.byEntity[f.EntityID()] = append(s.byEntity[f.EntityID()], len(s.facts))
		s.facts = append(s.facts, f)
	}
	for _, scope := range affected {
		s.versions[scope.Key()]++
	}

	return s.versions[home.Key()], nil
}

// CurrentVersion returns the version of a scope.
func (s *Store) CurrentVersion(ctx context.Context, scope models.Scope) (storage.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(ctx); err != nil {
		return 0, err
	}
	return s.versions[scope.Key()], nil
}

// ListEntityFacts returns every fact about one expense or settlement.
func (s *Store) ListEntityFacts(ctx context.Context, entityID string) ([]models.Fact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(ctx); err != nil {
		return nil, err
	}

	idx := s.byEntity[entityID]
	if len(idx) == 0 {
		return nil, fmt.Errorf("%w: entity %s", storage.ErrNotFound, entityID)
	}
	facts := make([]models.Fact, len(idx))
	for i, j := range idx {
		facts[i] = s.facts[j].Clone()
	}
	return facts, nil
}

// ListUserFacts returns every fact involving userID in the currency.
func (s *Store) ListUserFacts(ctx context.Context, userID, currency string) ([]models.Fact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(ctx); err != nil {
		return nil, err
	}

	var facts []models.Fact
	for _, f := range s.facts {
		if f.Currency() == currency && slices.Contains(f.Participants(), userID) {
			facts = append(facts, f.Clone())
		}
	}
	return facts, nil
}

// ListCounterparties returns the users sharing a fact with userID in the currency.
func (s *Store) ListCounterparties(ctx context.Context, userID, currency string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(ctx); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	for _, f := range s.facts {
		if f.Currency() != currency {
			continue
		}
		users := f.Participants()
		if !slices.Contains(users, userID) {
			continue
		}
		for _, u := range users {
			if u != userID {
				seen[u] = true
			}
		}
	}

	out := make([]string, 0, len(seen))
	for u := range seen {
		out = append(out, u)
	}
	sort.Strings(out)
	return out, nil
}
