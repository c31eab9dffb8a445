package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaVersions holds the ordered DDL batches. Each entry bumps
// PRAGMA user_version by one once applied, so restarts only run what
// the database file has not seen yet.
var schemaVersions = []string{
	`
	CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		display_name  TEXT NOT NULL,
		role          TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		disabled      INTEGER NOT NULL DEFAULT 0,
		created_at    TEXT NOT NULL,
		updated_at    TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS auth_sessions (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL REFERENCES users(id),
		expires_at TEXT NOT NULL,
		revoked_at TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_auth_sessions_user ON auth_sessions(user_id);

	CREATE TABLE IF NOT EXISTS interpreters (
		id              TEXT PRIMARY KEY,
		user_id         TEXT NOT NULL,
		name            TEXT NOT NULL,
		status          TEXT NOT NULL,
		availability    TEXT NOT NULL,
		languages       TEXT NOT NULL,
		specializations TEXT NOT NULL,
		session_types   TEXT NOT NULL,
		rates           TEXT NOT NULL,
		stats           TEXT NOT NULL,
		created_at      TEXT NOT NULL,
		updated_at      TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS availability_rules (
		id              TEXT PRIMARY KEY,
		interpreter_id  TEXT NOT NULL REFERENCES interpreters(id),
		windows         TEXT NOT NULL,
		effective_from  TEXT NOT NULL,
		effective_until TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_availability_rules_interpreter
		ON availability_rules(interpreter_id);

	CREATE TABLE IF NOT EXISTS requests (
		id               TEXT PRIMARY KEY,
		client_id        TEXT NOT NULL,
		type             TEXT NOT NULL,
		specialization   TEXT NOT NULL,
		language_from    TEXT NOT NULL,
		language_to      TEXT NOT NULL,
		preferred_start  TEXT,
		preferred_end    TEXT,
		urgency          TEXT NOT NULL,
		word_count       INTEGER NOT NULL DEFAULT 0,
		status           TEXT NOT NULL,
		rejection_reason TEXT NOT NULL DEFAULT '',
		session_id       TEXT NOT NULL DEFAULT '',
		created_at       TEXT NOT NULL,
		updated_at       TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_requests_client ON requests(client_id);

	CREATE TABLE IF NOT EXISTS sessions (
		id                      TEXT PRIMARY KEY,
		request_id              TEXT NOT NULL DEFAULT '',
		client_id               TEXT NOT NULL,
		interpreter_id          TEXT NOT NULL,
		type                    TEXT NOT NULL,
		specialization          TEXT NOT NULL,
		language_from           TEXT NOT NULL,
		language_to             TEXT NOT NULL,
		status                  TEXT NOT NULL,
		scheduled_start         TEXT NOT NULL,
		scheduled_end           TEXT NOT NULL,
		actual_start            TEXT,
		actual_end              TEXT,
		actual_duration_minutes INTEGER NOT NULL DEFAULT 0,
		hourly_rate             REAL NOT NULL DEFAULT 0,
		word_count              INTEGER NOT NULL DEFAULT 0,
		additional_fees         TEXT NOT NULL DEFAULT '[]',
		base_cost               REAL NOT NULL DEFAULT 0,
		fee_total               REAL NOT NULL DEFAULT 0,
		total_cost              REAL NOT NULL DEFAULT 0,
		payment_id              TEXT NOT NULL DEFAULT '',
		is_paid                 INTEGER NOT NULL DEFAULT 0,
		original_session_id     TEXT NOT NULL DEFAULT '',
		rescheduled_session_id  TEXT NOT NULL DEFAULT '',
		rescheduled_count       INTEGER NOT NULL DEFAULT 0,
		cancellation            TEXT,
		client_rating           TEXT,
		interpreter_rating      TEXT,
		created_at              TEXT NOT NULL,
		updated_at              TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_interpreter ON sessions(interpreter_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_client ON sessions(client_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);
	`,
	`
	ALTER TABLE sessions ADD COLUMN quoted_at TEXT;
	`,
}

// bootstrapSchema brings the database up to the current schema version.
func (cp *ConnectionPool) bootstrapSchema(ctx context.Context) error {
	var version int
	if err := cp.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for v := version; v < len(schemaVersions); v++ {
		if err := cp.WithTransaction(ctx, func(tx *sql.Tx) error {
			if _, err := tx.Exec(schemaVersions[v]); err != nil {
				return fmt.Errorf("failed to apply schema version %d: %w", v+1, err)
			}
			if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", v+1)); err != nil {
				return fmt.Errorf("failed to bump schema version: %w", err)
			}
			return nil
		}); err != nil {
			return err
		}
	}

	return nil
}
