package trading

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/blumarkets/layers/internal/domain"
)

// TradeRepositoryInterface defines trade persistence operations.
type TradeRepositoryInterface interface {
	Save(trade Trade) error
	GetByID(id string) (*Trade, error)
	List(limit int) ([]Trade, error)
	ListByAsset(assetID string, limit int) ([]Trade, error)
}

// TradeRepository stores committed trades.
type TradeRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// Ensure TradeRepository implements TradeRepositoryInterface
var _ TradeRepositoryInterface = (*TradeRepository)(nil)

// NewTradeRepository creates a new trade repository.
func NewTradeRepository(db *sql.DB, log zerolog.Logger) *TradeRepository {
	return &TradeRepository{
		db:  db,
		log: log.With().Str("repository", "trades").Logger(),
	}
}

// Save inserts a committed trade.
func (r *TradeRepository) Save(trade Trade) error {
	_, err := r.db.Exec(
		`INSERT INTO trades (id, side, asset_id, amount_irr, quantity, spread_irr, boundary, executed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		trade.ID,
		string(trade.Side),
		trade.AssetID,
		trade.AmountIRR,
		trade.Quantity,
		trade.SpreadIRR,
		trade.Boundary.String(),
		trade.ExecutedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save trade %s: %w", trade.ID, err)
	}
	return nil
}

// GetByID returns one trade, or nil when it does not exist.
func (r *TradeRepository) GetByID(id string) (*Trade, error) {
	row := r.db.QueryRow(
		`SELECT id, side, asset_id, amount_irr, quantity, spread_irr, boundary, executed_at
		 FROM trades WHERE id = ?`, id)
	trade, err := scanTrade(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trade %s: %w", id, err)
	}
	return trade, nil
}

// List returns the most recent trades, newest first.
func (r *TradeRepository) List(limit int) ([]Trade, error) {
	rows, err := r.db.Query(
		`SELECT id, side, asset_id, amount_irr, quantity, spread_irr, boundary, executed_at
		 FROM trades ORDER BY executed_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	defer rows.Close()
	return collectTrades(rows)
}

// ListByAsset returns the most recent trades for one asset, newest first.
func (r *TradeRepository) ListByAsset(assetID string, limit int) ([]Trade, error) {
	rows, err := r.db.Query(
		`SELECT id, side, asset_id, amount_irr, quantity, spread_irr, boundary, executed_at
		 FROM trades WHERE asset_id = ? ORDER BY executed_at DESC, id DESC LIMIT ?`,
		assetID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list trades for %s: %w", assetID, err)
	}
	defer rows.Close()
	return collectTrades(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTrade(row rowScanner) (*Trade, error) {
	var t Trade
	var side, boundaryName, executedAt string
	if err := row.Scan(&t.ID, &side, &t.AssetID, &t.AmountIRR, &t.Quantity, &t.SpreadIRR, &boundaryName, &executedAt); err != nil {
		return nil, err
	}
	t.Side = domain.TradeSide(side)
	if err := t.Boundary.UnmarshalJSON([]byte(`"` + boundaryName + `"`)); err != nil {
		return nil, fmt.Errorf("bad boundary %q: %w", boundaryName, err)
	}
	ts, err := time.Parse(time.RFC3339, executedAt)
	if err != nil {
		return nil, fmt.Errorf("bad executed_at %q: %w", executedAt, err)
	}
	t.ExecutedAt = ts
	return &t, nil
}

func collectTrades(rows *sql.Rows) ([]Trade, error) {
	var out []Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}
