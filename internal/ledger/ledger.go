// Package ledger is the balance engine: it validates expenses and
// settlements, appends them to the fact log under per-scope optimistic
// concurrency, and answers balance, position and settlement-plan queries from
// versioned snapshots of the log.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/splitledger/internal/cache"
	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/events"
	"github.com/mmynk/splitledger/internal/metrics"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/storage"
)

// DefaultMaxRetries is how many times a write is attempted when its scope
// keeps moving.
const DefaultMaxRetries = 3

// Service is the ledger query service.
type Service struct {
	store      storage.Store
	snapshots  cache.Snapshots
	publisher  events.Publisher
	locks      *scopeLocks
	maxRetries int
	now        func() time.Time
	newID      func() string
}

// Option configures a Service.
type Option func(*Service)

// WithSnapshots enables the snapshot cache.
func WithSnapshots(c cache.Snapshots) Option {
	return func(s *Service) { s.snapshots = c }
}

// WithPublisher sets where change events are sent.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithMaxRetries bounds write attempts on version conflicts.
func WithMaxRetries(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides how expense and settlement IDs are minted.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// New creates a Service on top of store.
func New(store storage.Store, opts ...Option) *Service {
	s := &Service{
		store:      store,
		publisher:  events.Nop{},
		locks:      newScopeLocks(),
		maxRetries: DefaultMaxRetries,
		now:        time.Now,
		newID:      func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// mutation is the set of facts one write appends to its home scope.
type mutation struct {
	home     models.Scope
	currency string
	facts    []models.Fact
	event    events.Type
	entityID string
}

func (m *mutation) scopes() ([]models.Scope, error) {
	scopes := []models.Scope{m.home}
	for _, f := range m.facts {
		affected, err := f.AffectedScopes()
		if err != nil {
			return nil, err
		}
		for _, sc := range affected {
			if !slices.Contains(scopes, sc) {
				scopes = append(scopes, sc)
			}
		}
	}
	return scopes, nil
}

// planFunc decides what to append from the current state of the log. It may
// return a nil mutation when there is nothing to do.
type planFunc func(ctx context.Context) (*mutation, error)

var errScopesMoved = errors.New("affected scopes changed while locking")

// commit runs plan and appends its facts, retrying the whole cycle when the
// home scope moves underneath it.
func (s *Service) commit(ctx context.Context, op string, plan planFunc) (*mutation, error) {
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		m, err := plan(ctx)
		if err != nil || m == nil {
			recordOutcome(op, err)
			return nil, err
		}
		scopes, err := m.scopes()
		if err != nil {
			recordOutcome(op, err)
			return nil, fmt.Errorf("%w: %w", ErrInvalidScope, err)
		}

		unlock := s.locks.Lock(scopes...)
		done, version, positions, err := s.tryCommit(ctx, m, scopes, plan)
		unlock()

		if errors.Is(err, storage.ErrVersionConflict) || errors.Is(err, errScopesMoved) {
			metrics.VersionConflicts.Inc()
			slog.Debug("Retrying ledger write", "op", op, "scope", m.home.Key(), "attempt", attempt, "error", err)
			continue
		}
		if err != nil || done == nil {
			recordOutcome(op, err)
			return nil, err
		}

		s.afterCommit(ctx, done, scopes, version, positions)
		recordOutcome(op, nil)
		return done, nil
	}

	metrics.LedgerOps.WithLabelValues(op, "conflict").Inc()
	return nil, fmt.Errorf("%w: %s gave up after %d attempts", ErrConcurrentModification, op, s.maxRetries)
}

// tryCommit runs under the write locks of every affected scope. It reads the
// home log first so the append is conditional on the state plan saw.
func (s *Service) tryCommit(ctx context.Context, first *mutation, locked []models.Scope, plan planFunc) (*mutation, storage.Version, map[string]money.Amount, error) {
	log, err := s.store.ListFacts(ctx, first.home, first.currency)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("failed to read %s: %w", first.home, err)
	}

	m, err := plan(ctx)
	if err != nil || m == nil {
		return nil, 0, nil, err
	}
	scopes, err := m.scopes()
	if err != nil {
		return nil, 0, nil, fmt.Errorf("%w: %w", ErrInvalidScope, err)
	}
	if m.home != first.home || m.currency != first.currency || !sameScopes(scopes, locked) {
		return nil, 0, nil, errScopesMoved
	}

	// Project the new state before writing so an unbalanced log is refused
	// rather than appended to.
	next := slices.Clone(log.Facts)
	for _, f := range m.facts {
		if f.Currency() == m.currency {
			next = append(next, f)
		}
	}
	positions, err := project(m.home, m.currency, next)
	if err != nil {
		return nil, 0, nil, err
	}

	version, err := s.store.AppendFacts(ctx, m.home, log.Version, m.facts...)
	if err != nil {
		return nil, 0, nil, err
	}
	return m, version, positions, nil
}

// afterCommit refreshes the home snapshot, invalidates the other scopes and
// publishes the change. Failures here are logged; the write already happened.
func (s *Service) afterCommit(ctx context.Context, m *mutation, scopes []models.Scope, version storage.Version, positions map[string]money.Amount) {
	if s.snapshots != nil {
		if err := s.snapshots.Put(ctx, m.home, m.currency, cache.Snapshot{Version: version, Positions: positions}); err != nil {
			slog.Warn("Failed to store snapshot", "scope", m.home.Key(), "error", err)
		}
		for _, sc := range scopes[1:] {
			if err := s.snapshots.Invalidate(ctx, sc); err != nil {
				slog.Warn("Failed to invalidate snapshot", "scope", sc.Key(), "error", err)
			}
		}
	}

	keys := make([]string, len(scopes))
	for i, sc := range scopes {
		keys[i] = sc.Key()
	}
	evt := events.ScopeChanged{
		Type:           m.event,
		Scope:          m.home.Key(),
		Version:        int64(version),
		Currency:       m.currency,
		EntityID:       m.entityID,
		AffectedScopes: keys,
		OccurredAt:     s.now().UTC(),
	}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		metrics.EventPublishErrors.Inc()
		slog.Error("Failed to publish ledger event", "type", evt.Type, "scope", evt.Scope, "error", err)
	}

	slog.Info("Ledger updated",
		"event", m.event,
		"entity_id", m.entityID,
		"scope", m.home.Key(),
		"version", version,
		"facts", len(m.facts),
	)
}

func recordOutcome(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.LedgerOps.WithLabelValues(op, outcome).Inc()
}

func sameScopes(a, b []models.Scope) bool {
	if len(a) != len(b) {
		return false
	}
	for _, sc := range a {
		if !slices.Contains(b, sc) {
			return false
		}
	}
	return true
}

// project derives the cached view of a scope: net positions for groups, the
// pairwise balance as {UserA: +b, UserB: -b} for pairs.
func project(scope models.Scope, currency string, facts []models.Fact) (map[string]money.Amount, error) {
	switch scope.Kind {
	case models.ScopeGroup:
		return calculator.ComputeNetPositions(scope, currency, facts)
	case models.ScopePair:
		b, err := calculator.ComputePairwiseBalance(scope.UserA, scope.UserB, currency, facts)
		if err != nil {
			return nil, err
		}
		positions := make(map[string]money.Amount, 2)
		if b != 0 {
			positions[scope.UserA] = b
			positions[scope.UserB] = -b
		}
		return positions, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrInvalidScope, scope)
}

// view returns the derived view of a scope, from the snapshot cache when it
// is current and by replaying the log otherwise.
func (s *Service) view(ctx context.Context, scope models.Scope, currency string) (map[string]money.Amount, error) {
	if s.snapshots != nil {
		version, err := s.store.CurrentVersion(ctx, scope)
		if err != nil {
			return nil, fmt.Errorf("failed to read version of %s: %w", scope, err)
		}
		snap, err := s.snapshots.Get(ctx, scope, currency)
		switch {
		case err == nil && snap.Version == version:
			metrics.SnapshotLookups.WithLabelValues("hit").Inc()
			return snap.Positions, nil
		case err == nil:
			metrics.SnapshotLookups.WithLabelValues("stale").Inc()
		case errors.Is(err, cache.ErrMiss):
			metrics.SnapshotLookups.WithLabelValues("miss").Inc()
		default:
			metrics.SnapshotLookups.WithLabelValues("error").Inc()
			slog.Warn("Snapshot cache unavailable", "scope", scope.Key(), "error", err)
		}
	}

	log, err := s.store.ListFacts(ctx, scope, currency)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", scope, err)
	}
	positions, err := project(scope, currency, log.Facts)
	if err != nil {
		return nil, err
	}

	if s.snapshots != nil {
		snap := cache.Snapshot{Version: log.Version, Positions: maps.Clone(positions)}
		if err := s.snapshots.Put(ctx, scope, currency, snap); err != nil {
			slog.Warn("Failed to store snapshot", "scope", scope.Key(), "error", err)
		}
	}
	return positions, nil
}
