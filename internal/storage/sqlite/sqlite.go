// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open database with pure Go driver
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer; a single connection serializes transactions
	// instead of failing them with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	// Run migrations
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const factColumns = "f.id, f.kind, f.reversal, f.payload, f.recorded_at"

// ListFacts returns the facts visible in scope for the currency.
func (s *SQLiteStore) ListFacts(ctx context.Context, scope models.Scope, currency string) (storage.FactLog, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storage.FactLog{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	version, err := scopeVersion(ctx, tx, scope.Key())
	if err != nil {
		return storage.FactLog{}, err
	}

	var rows *sql.Rows
	switch scope.Kind {
	case models.ScopeGroup:
		rows, err = tx.QueryContext(ctx,
			"SELECT "+factColumns+" FROM facts f WHERE f.group_id = ? AND f.currency = ? ORDER BY f.seq",
			scope.GroupID, currency,
		)
	case models.ScopePair:
		rows, err = tx.QueryContext(ctx,
			`SELECT `+factColumns+` FROM facts f
			 JOIN fact_participants a ON a.fact_seq = f.seq AND a.user_id = ?
			 JOIN fact_participants b ON b.fact_seq = f.seq AND b.user_id = ?
			 WHERE f.currency = ? ORDER BY f.seq`,
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
func (s *SQLiteStore) AppendFacts(ctx context.Context, home models.Scope, expected storage.Version, facts ...models.Fact) (storage.Version, error) {
	stamped, affected, err := storage.PrepareAppend(home, facts)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := scopeVersion(ctx, tx, home.Key())
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

		var groupID any
		if g := f.GroupID(); g != "" {
			groupID = g
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO facts (id, scope_key, group_id, kind, reversal, entity_id, currency, payload, recorded_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			f.ID, home.Key(), groupID, string(f.Kind), f.Reversal, f.EntityID(), f.Currency(), string(payload), f.RecordedAt,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert fact: %w", err)
		}
		seq, err := res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("failed to read fact sequence: %w", err)
		}

		for _, user := range f.Participants() {
			_, err = tx.ExecContext(ctx,
				"INSERT INTO fact_participants (fact_seq, user_id) VALUES (?, ?)",
				seq, user,
			)
			if err != nil {
				return 0, fmt.Errorf("failed to insert fact participant: %w", err)
			}
		}
	}

	for _, scope := range affected {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO scope_versions (scope_key, version) VALUES (?, 1)
			 ON CONFLICT(scope_key) DO UPDATE SET version = version + 1`,
			scope.Key(),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to bump scope version: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return expected + 1, nil
}

// CurrentVersion returns the version of a scope.
func (s *SQLiteStore) CurrentVersion(ctx context.Context, scope models.Scope) (storage.Version, error) {
	return scopeVersion(ctx, s.db, scope.Key())
}

// ListEntityFacts returns every fact about one expense or settlement.
func (s *SQLiteStore) ListEntityFacts(ctx context.Context, entityID string) ([]models.Fact, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+factColumns+" FROM facts f WHERE f.entity_id = ? ORDER BY f.seq",
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
func (s *SQLiteStore) ListUserFacts(ctx context.Context, userID, currency string) ([]models.Fact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+factColumns+` FROM facts f
		 JOIN fact_participants p ON p.fact_seq = f.seq AND p.user_id = ?
		 WHERE f.currency = ? ORDER BY f.seq`,
		userID, currency,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list user facts: %w", err)
	}
	return scanFacts(rows)
}

// ListCounterparties returns the users sharing a fact with userID in the currency.
func (s *SQLiteStore) ListCounterparties(ctx context.Context, userID, currency string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT other.user_id FROM fact_participants me
		 JOIN facts f ON f.seq = me.fact_seq
		 JOIN fact_participants other ON other.fact_seq = me.fact_seq
		 WHERE me.user_id = ? AND f.currency = ? AND other.user_id <> me.user_id
		 ORDER BY other.user_id`,
		userID, currency,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list counterparties: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var user string
		if err := rows.Scan(&user); err != nil {
			return nil, fmt.Errorf("failed to scan counterparty: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate counterparties: %w", err)
	}

	return users, nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func scopeVersion(ctx context.Context, q querier, key string) (storage.Version, error) {
	var version int64
	err := q.QueryRowContext(ctx, "SELECT version FROM scope_versions WHERE scope_key = ?", key).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get scope version: %w", err)
	}
	return storage.Version(version), nil
}

func scanFacts(rows *sql.Rows) ([]models.Fact, error) {
	defer rows.Close()

	var facts []models.Fact
	for rows.Next() {
		var (
			id, kind, payload string
			reversal          bool
			recordedAt        int64
		)
		if err := rows.Scan(&id, &kind, &reversal, &payload, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan fact: %w", err)
		}
		f, err := storage.DecodeFact(id, models.FactKind(kind), reversal, []byte(payload), recordedAt)
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
