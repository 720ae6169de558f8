package sqlite

import "database/sql"

// schema sets up the fact log tables. It runs on startup to ensure tables exist.
// fact_participants must be created after facts due to the foreign key.
const schema = `
CREATE TABLE IF NOT EXISTS facts (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    scope_key TEXT NOT NULL,
    group_id TEXT,
    kind TEXT NOT NULL,
    reversal INTEGER NOT NULL DEFAULT 0,
    entity_id TEXT NOT NULL,
    currency TEXT NOT NULL,
    payload TEXT NOT NULL,
    recorded_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS fact_participants (
    fact_seq INTEGER NOT NULL,
    user_id TEXT NOT NULL,
    PRIMARY KEY (fact_seq, user_id),
    FOREIGN KEY (fact_seq) REFERENCES facts(seq) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS scope_versions (
    scope_key TEXT PRIMARY KEY,
    version INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_facts_group_currency ON facts(group_id, currency);
CREATE INDEX IF NOT EXISTS idx_facts_entity_id ON facts(entity_id);
CREATE INDEX IF NOT EXISTS idx_fact_participants_user_id ON fact_participants(user_id);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
