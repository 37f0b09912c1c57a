// Package database owns the main portfolio SQLite database.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// DB wraps the database connection
type DB struct {
	conn *sql.DB
	path string
}

// New creates a new database connection
func New(dbPath string) (*DB, error) {
	// Ensure directory exists
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// WAL mode for better concurrency
	conn, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)

	return &DB{
		conn: conn,
		path: dbPath,
	}, nil
}

// NewInMemory opens a throwaway in-memory database, used by tests.
func NewInMemory() (*DB, error) {
	conn, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	// A single connection keeps every statement on the same in-memory DB.
	conn.SetMaxOpenConns(1)
	return &DB{conn: conn, path: ":memory:"}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying sql.DB connection
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Begin starts a new transaction
func (db *DB) Begin() (*sql.Tx, error) {
	return db.conn.Begin()
}

// Migrate creates the schema if it does not exist yet.
func (db *DB) Migrate() error {
	for _, stmt := range schema {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// schema is the full DDL of the main database. Statements are idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS holdings (
		asset_id     TEXT PRIMARY KEY,
		quantity     REAL NOT NULL CHECK (quantity >= 0),
		frozen       INTEGER NOT NULL DEFAULT 0,
		layer        TEXT NOT NULL,
		purchased_at TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS portfolio_meta (
		id                 INTEGER PRIMARY KEY CHECK (id = 1),
		cash_irr           REAL NOT NULL DEFAULT 0,
		target_foundation  REAL NOT NULL DEFAULT 0.5,
		target_growth      REAL NOT NULL DEFAULT 0.35,
		target_upside      REAL NOT NULL DEFAULT 0.15,
		risk_score         INTEGER,
		updated_at         TEXT NOT NULL
	)`,
	`INSERT OR IGNORE INTO portfolio_meta (id, cash_irr, updated_at)
		VALUES (1, 0, strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))`,
	`CREATE TABLE IF NOT EXISTS trades (
		id           TEXT PRIMARY KEY,
		side         TEXT NOT NULL,
		asset_id     TEXT NOT NULL,
		amount_irr   REAL NOT NULL,
		quantity     REAL NOT NULL,
		spread_irr   REAL NOT NULL,
		boundary     TEXT NOT NULL,
		executed_at  TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_asset ON trades(asset_id, executed_at)`,
	`CREATE TABLE IF NOT EXISTS loans (
		id                  TEXT PRIMARY KEY,
		collateral_asset_id TEXT NOT NULL,
		collateral_quantity REAL NOT NULL,
		principal_irr       REAL NOT NULL,
		annual_rate         REAL NOT NULL,
		duration_days       INTEGER NOT NULL,
		started_at          TEXT NOT NULL,
		status              TEXT NOT NULL,
		amount_paid_irr     REAL NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS loan_installments (
		loan_id     TEXT NOT NULL REFERENCES loans(id),
		seq         INTEGER NOT NULL,
		due_at      TEXT NOT NULL,
		amount_irr  REAL NOT NULL,
		paid_irr    REAL NOT NULL DEFAULT 0,
		status      TEXT NOT NULL,
		PRIMARY KEY (loan_id, seq)
	)`,
	`CREATE TABLE IF NOT EXISTS protections (
		id           TEXT PRIMARY KEY,
		asset_id     TEXT NOT NULL,
		notional_irr REAL NOT NULL,
		premium_irr  REAL NOT NULL,
		coverage     REAL NOT NULL,
		strike_irr   REAL NOT NULL,
		started_at   TEXT NOT NULL,
		expires_at   TEXT NOT NULL,
		status       TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS ledger_entries (
		id              TEXT PRIMARY KEY,
		idempotency_key TEXT NOT NULL UNIQUE,
		kind            TEXT NOT NULL,
		payload         TEXT NOT NULL,
		before_snapshot BLOB NOT NULL,
		after_snapshot  BLOB NOT NULL,
		boundary        TEXT NOT NULL,
		friction_copy   TEXT NOT NULL,
		created_at      TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_created ON ledger_entries(created_at)`,
}
