package store

import (
	"database/sql"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

var mysqlDialect = dialect{
	name:         "mysql",
	insertIgnore: "INSERT IGNORE",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(64) PRIMARY KEY,
			email VARCHAR(320) NOT NULL DEFAULT '',
			display_name VARCHAR(255) NOT NULL DEFAULT '',
			active BOOLEAN NOT NULL DEFAULT TRUE
		)`,
		`CREATE TABLE IF NOT EXISTS buckets (
			id VARCHAR(64) PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL,
			slug VARCHAR(128) NOT NULL,
			name VARCHAR(255) NOT NULL DEFAULT '',
			description TEXT NOT NULL,
			priority INT NOT NULL DEFAULT 100,
			enabled BOOLEAN NOT NULL DEFAULT TRUE,
			matchers TEXT NOT NULL,
			actions TEXT NOT NULL,
			INDEX idx_buckets_user (user_id, priority)
		)`,
		`CREATE TABLE IF NOT EXISTS emails (
			id VARCHAR(64) PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL,
			account_id VARCHAR(64) NOT NULL DEFAULT '',
			thread_id VARCHAR(255) NOT NULL DEFAULT '',
			message_id VARCHAR(255) NOT NULL DEFAULT '',
			from_addr VARCHAR(512) NOT NULL DEFAULT '',
			subject TEXT NOT NULL,
			snippet TEXT NOT NULL,
			body MEDIUMTEXT NOT NULL,
			received_at VARCHAR(40) NOT NULL,
			status VARCHAR(32) NOT NULL,
			bucket_id VARCHAR(64) NULL,
			bucket_slug VARCHAR(128) NULL,
			actions TEXT NULL,
			classification TEXT NULL,
			summary TEXT NULL,
			draft TEXT NULL,
			error TEXT NULL,
			processed_at VARCHAR(40) NULL,
			sent_message_id VARCHAR(255) NULL,
			INDEX idx_emails_pending (user_id, status, received_at)
		)`,
		`CREATE TABLE IF NOT EXISTS context_packs (
			user_id VARCHAR(64) PRIMARY KEY,
			pack TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS draft_versions (
			email_id VARCHAR(64) NOT NULL,
			version INT NOT NULL,
			draft_text TEXT NOT NULL,
			instruction TEXT NOT NULL,
			created_at VARCHAR(40) NOT NULL,
			PRIMARY KEY (email_id, version)
		)`,
		`CREATE TABLE IF NOT EXISTS processing_runs (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL,
			started_at VARCHAR(40) NOT NULL,
			finished_at VARCHAR(40) NOT NULL,
			report TEXT NOT NULL,
			INDEX idx_runs_finished (finished_at)
		)`,
	},
}

// NewMySQLStore connects to MySQL and creates the schema if needed
func NewMySQLStore(dsn string, logger *zap.Logger, opts Options) (*SQLStore, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid MySQL DSN: %w", err)
	}
	// updates that change nothing must still report the matched row
	cfg.ClientFoundRows = true

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	return newSQLStore(db, mysqlDialect, logger, opts)
}
