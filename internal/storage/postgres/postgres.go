// Package postgres provides a PostgreSQL-backed implementation of the
// storage.Store interface for deployments that share one ledger between
// several server processes.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// Ensure PostgresStore implements storage.Store
var _ storage.Store = (*PostgresStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS facts (
    seq BIGSERIAL PRIMARY KEY,
    id TEXT NOT NULL UNIQUE,
    scope_key TEXT NOT NULL,
    group_id TEXT,
    kind TEXT NOT NULL,
    reversal BOOLEAN NOT NULL DEFAULT FALSE,
    entity_id TEXT NOT NULL,
    currency TEXT NOT NULL,
    payload JSONB NOT NULL,
    recorded_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS fact_participants (
    fact_seq BIGINT NOT NULL REFERENCES facts(seq) ON DELETE CASCADE,
    user_id TEXT NOT NULL,
    PRIMARY KEY (fact_seq, user_id)
);

CREATE TABLE IF NOT EXISTS scope_versions (
    scope_key TEXT PRIMARY KEY,
    version BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_facts_group_currency ON facts(group_id, currency);
CREATE INDEX IF NOT EXISTS idx_facts_entity_id ON facts(entity_id);
CREATE INDEX IF NOT EXISTS idx_fact_participants_user_id ON fact_participants(user_id);
`

// Options tunes the connection pool.
type Options struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration

	// ConnectAttempts is how many times to try reaching the database on
	// startup, doubling the delay between attempts.
	ConnectAttempts int
	RetryDelay      time.Duration
}

// DefaultOptions returns the pool settings used by the server.
func DefaultOptions() Options {
	return Options{
		MaxConns:        20,
		MinConns:        2,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 5 * time.Minute,
		ConnectAttempts: 5,
		RetryDelay:      time.Second,
	}
}

// PostgresStore implements storage.Store using a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// New connects to databaseURL, retrying with backoff, and runs migrations.
func New(ctx context.Context, databaseURL string, opts Options) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	config.MaxConns = opts.MaxConns
	config.MinConns = opts.MinConns
	config.MaxConnLifetime = opts.MaxConnLifetime
	config.MaxConnIdleTime = opts.MaxConnIdleTime

	attempts := max(opts.ConnectAttempts, 1)
	delay := opts.RetryDelay

	var pool *pgxpool.Pool
	for i := 1; i <= attempts; i++ {
		pool, err = connect(ctx, config)
		if err == nil {
			break
		}
		slog.Warn("Database connection failed", "attempt", i, "max_attempts", attempts, "error", err)
		if i == attempts {
			return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", attempts, err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func connect(ctx context.Context, config *pgxpool.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping failed: %w", err)
	}
	return pool, nil
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks that the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const factColumns = "f.id, f.kind, f.reversal, f.payload, f.recorded_at"

// ListFacts returns the facts visible in scope for the currency.
func (s *PostgresStore) ListFacts(ctx context.Context, scope models.Scope, currency string) (storage.FactLog, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return storage.FactLog{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	version, err := scopeVersion(ctx, tx, scope.Key(), false)
	if err != nil {
		return storage.FactLog{}, err
	}

	var rows pgx.Rows
	switch scope.Kind {
	case models.ScopeGroup:
		rows, err = tx.Query(ctx,
			"SELECT "+factColumns+" FROM facts f WHERE f.group_id = $1 AND f.currency = $2 ORDER BY f.seq",
			scope.GroupID, currency,
		)
	case models.ScopePair:
		rows, err = tx.Query(ctx,
			`SELECT `+factColumns+` FROM facts f
			 JOIN fact_participants a ON a.fact_seq = f.seq AND a.user_id = $1
			 JOIN fact_participants b ON b.fact_seq = f.seq AND b.user_id = $2
			 WHERE f.currency = $3 ORDER BY f.seq`,
			scope.UserA, scope.UserB, currency,
		)
	default:
		return storage.FactLog{}, fmt.Errorf("invalid scope %s", scope)
	}
	if err != nil {
		return storage.FactLog{}, fmt.Errorf("failed to list facts: %w", err)
	}

	facts, err := scanFacts(rows)
	if err != nil {
		return storage.FactLog{}, err
	}

	return storage.FactLog{Facts: facts, Version: version}, nil
}

// AppendFacts appends facts in one transaction if home is still at expected.
// The home scope's version row is locked for the duration of the transaction.
func (s *PostgresStore) AppendFacts(ctx context.Context, home models.Scope, expected storage.Version, facts ...models.Fact) (storage.Version, error) {
	stamped, affected, err := storage.PrepareAppend(home, facts)
	if err != nil {
		return 0, err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		"INSERT INTO scope_versions (scope_key, version) VALUES ($1, 0) ON CONFLICT (scope_key) DO NOTHING",
		home.Key(),
	); err != nil {
		return 0, fmt.Errorf("failed to create scope version: %w", err)
	}
	current, err := scopeVersion(ctx, tx, home.Key(), true)
	if err != nil {
		return 0, err
	}
	if current != expected {
		return 0, fmt.Errorf("%w: %s is at %d, expected %d", storage.ErrVersionConflict, home, current, expected)
	}

	for _, f := range stamped {
		payload, err := storage.EncodePayload(f)
		if err != nil {
			return 0, err
		}

		var groupID *string
		if g := f.GroupID(); g != "" {
			groupID = &g
		}

		var seq int64
		err = tx.QueryRow(ctx,
			`INSERT INTO facts (id, scope_key, group_id, kind, reversal, entity_id, currency, payload, recorded_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING seq`,
			f.ID, home.Key(), groupID, string(f.Kind), f.Reversal, f.EntityID(), f.Currency(), payload, f.RecordedAt,
		).Scan(&seq)
		if err != nil {
			return 0, fmt.Errorf("failed to insert fact: %w", err)
		}

		batch := &pgx.Batch{}
		for _, user := range f.Participants() {
			batch.Queue("INSERT INTO fact_participants (fact_seq, user_id) VALUES ($1, $2)", seq, user)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return 0, fmt.Errorf("failed to insert fact participants: %w", err)
		}
	}

	for _, scope := range affected {
		_, err = tx.Exec(ctx,
			`INSERT INTO scope_versions (scope_key, version) VALUES ($1, 1)
			 ON CONFLICT (scope_key) DO UPDATE SET version = scope_versions.version + 1`,
			scope.Key(),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to bump scope version: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return expected + 1, nil
}

// CurrentVersion returns the version of a scope.
func (s *PostgresStore) CurrentVersion(ctx context.Context, scope models.Scope) (storage.Version, error) {
	return scopeVersion(ctx, s.pool, scope.Key(), false)
}

// ListEntityFacts returns every fact about one expense or settlement.
func (s *PostgresStore) ListEntityFacts(ctx context.Context, entityID string) ([]models.Fact, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+factColumns+" FROM facts f WHERE f.entity_id = $1 ORDER BY f.seq",
		entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list entity facts: %w", err)
	}

	facts, err := scanFacts(rows)
	if err != nil {
		return nil, err
	}
	if len(facts) == 0 {
		return nil, fmt.Errorf("%w: entity %s", storage.ErrNotFound, entityID)
	}
	return facts, nil
}

// ListUserFacts returns every fact involving userID in the currency.
func (s *PostgresStore) ListUserFacts(ctx context.Context, userID, currency string) ([]models.Fact, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+factColumns+` FROM facts f
		 JOIN fact_participants p ON p.fact_seq = f.seq AND p.user_id = $1
		 WHERE f.currency = $2 ORDER BY f.seq`,
		userID, currency,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list user facts: %w", err)
	}
	return scanFacts(rows)
}

// ListCounterparties returns the users sharing a fact with userID in the currency.
func (s *PostgresStore) ListCounterparties(ctx context.Context, userID, currency string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT other.user_id FROM fact_participants me
		 JOIN facts f ON f.seq = me.fact_seq
		 JOIN fact_participants other ON other.fact_seq = me.fact_seq
		 WHERE me.user_id = $1 AND f.currency = $2 AND other.user_id <> me.user_id
		 ORDER BY other.user_id`,
		userID, currency,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list counterparties: %w", err)
	}

	users, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan counterparties: %w", err)
	}
	return users, nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func scopeVersion(ctx context.Context, q querier, key string, lock bool) (storage.Version, error) {
	query := "SELECT version FROM scope_versions WHERE scope_key = $1"
	if lock {
		query += " FOR UPDATE"
	}

	var version int64
	err := q.QueryRow(ctx, query, key).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get scope version: %w", err)
	}
	return storage.Version(version), nil
}

func scanFacts(rows pgx.Rows) ([]models.Fact, error) {
	defer rows.Close()

	var facts []models.Fact
	for rows.Next() {
		var (
			id, kind   string
			reversal   bool
			payload    []byte
			recordedAt int64
		)
		if err := rows.Scan(&id, &kind, &reversal, &payload, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan fact: %w", err)
		}
		f, err := storage.DecodeFact(id, models.FactKind(kind), reversal, payload, recordedAt)
		if err != nil {
			return nil, err
		}
		facts = append(facts, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate facts: %w", err)
	}

	return facts, nil
}
