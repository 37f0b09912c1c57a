// Package history stores daily closing prices in a side database,
// separate from the portfolio DB. The simulator and risk surfaces read
// return series from here; the scheduler writes one row per asset per
// day from the live feed.
package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/rs/zerolog"

	"github.com/blumarkets/layers/internal/domain"
)

// DailyClose is one recorded end-of-day price point.
type DailyClose struct {
	AssetID  string  `json:"asset_id"`
	Date     string  `json:"date"` // YYYY-MM-DD
	PriceUSD float64 `json:"price_usd"`
	FxRate   float64 `json:"fx_rate"`
}

// Store provides access to the price history database.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open opens (and migrates) the history database at path. Use
// ":memory:" for tests.
func Open(path string, log zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping history database: %w", err)
	}

	s := &Store{
		db:  db,
		log: log.With().Str("component", "history").Logger(),
	}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS daily_closes (
			asset_id  TEXT NOT NULL,
			date      TEXT NOT NULL,
			price_usd REAL NOT NULL,
			fx_rate   REAL NOT NULL,
			PRIMARY KEY (asset_id, date)
		)`)
	if err != nil {
		return fmt.Errorf("history migration failed: %w", err)
	}
	return nil
}

// RecordMarket writes one close row per asset from a market snapshot.
// Re-recording the same day replaces the earlier row, so the last
// snapshot of the day wins.
func (s *Store) RecordMarket(market domain.MarketData, now time.Time) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO daily_closes (asset_id, date, price_usd, fx_rate)
		VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare close insert: %w", err)
	}
	defer stmt.Close()

	date := now.UTC().Format("2006-01-02")
	for assetID, price := range market.Prices {
		if _, err := stmt.Exec(assetID, date, price, market.FxRate); err != nil {
			return fmt.Errorf("failed to record close for %s: %w", assetID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit closes: %w", err)
	}

	s.log.Debug().
		Str("date", date).
		Int("assets", len(market.Prices)).
		Msg("Recorded daily closes")
	return nil
}

// Closes returns the most recent close rows for an asset, newest first.
func (s *Store) Closes(assetID string, limit int) ([]DailyClose, error) {
	rows, err := s.db.Query(`
		SELECT asset_id, date, price_usd, fx_rate
		FROM daily_closes
		WHERE asset_id = ?
		ORDER BY date DESC
		LIMIT ?`, assetID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query closes: %w", err)
	}
	defer rows.Close()

	var out []DailyClose
	for rows.Next() {
		var c DailyClose
		if err := rows.Scan(&c.AssetID, &c.Date, &c.PriceUSD, &c.FxRate); err != nil {
			return nil, fmt.Errorf("failed to scan close: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Series returns up to limit closing prices in IRR, oldest first, ready
// for the formulas package.
func (s *Store) Series(assetID string, limit int) ([]float64, error) {
	closes, err := s.Closes(assetID, limit)
	if err != nil {
		return nil, err
	}
	// Closes come back newest first; flip for time order.
	series := make([]float64, len(closes))
	for i, c := range closes {
		series[len(closes)-1-i] = c.PriceUSD * c.FxRate
	}
	return series, nil
}

// Days reports how many distinct days are recorded for an asset.
func (s *Store) Days(assetID string) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM daily_closes WHERE asset_id = ?`, assetID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count history days: %w", err)
	}
	return n, nil
}

// Prune deletes rows older than keepDays, counted back from now.
func (s *Store) Prune(keepDays int, now time.Time) (int64, error) {
	cutoff := now.UTC().AddDate(0, 0, -keepDays).Format("2006-01-02")
	res, err := s.db.Exec(`DELETE FROM daily_closes WHERE date < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info().Int64("rows", n).Str("cutoff", cutoff).Msg("Pruned price history")
	}
	return n, nil
}
