package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

var sqliteDialect = dialect{
	name:         "sqlite",
	insertIgnore: "INSERT OR IGNORE",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL DEFAULT '',
			display_name TEXT NOT NULL DEFAULT '',
			active BOOLEAN NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS buckets (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			slug TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			priority INTEGER NOT NULL DEFAULT 100,
			enabled BOOLEAN NOT NULL DEFAULT 1,
			matchers TEXT NOT NULL,
			actions TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_buckets_user ON buckets(user_id, priority)`,
		`CREATE TABLE IF NOT EXISTS emails (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			account_id TEXT NOT NULL DEFAULT '',
			thread_id TEXT NOT NULL DEFAULT '',
			message_id TEXT NOT NULL DEFAULT '',
			from_addr TEXT NOT NULL DEFAULT '',
			subject TEXT NOT NULL DEFAULT '',
			snippet TEXT NOT NULL DEFAULT '',
			body TEXT NOT NULL DEFAULT '',
			received_at TEXT NOT NULL,
			status TEXT NOT NULL,
			bucket_id TEXT,
			bucket_slug TEXT,
			actions TEXT,
			classification TEXT,
			summary TEXT,
			draft TEXT,
			error TEXT,
			processed_at TEXT,
			sent_message_id TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_emails_pending ON emails(user_id, status, received_at)`,
		`CREATE TABLE IF NOT EXISTS context_packs (
			user_id TEXT PRIMARY KEY,
			pack TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS draft_versions (
			email_id TEXT NOT NULL,
			version INTEGER NOT NULL,
			draft_text TEXT NOT NULL,
			instruction TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			PRIMARY KEY (email_id, version)
		)`,
		`CREATE TABLE IF NOT EXISTS processing_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			report TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_finished ON processing_runs(finished_at)`,
	},
}

// NewSQLiteStore opens a SQLite database and creates the schema if needed
func NewSQLiteStore(dbPath string, logger *zap.Logger, opts Options) (*SQLStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// one connection keeps writes serialised and ":memory:" databases shared
	db.SetMaxOpenConns(1)

	return newSQLStore(db, sqliteDialect, logger, opts)
}
