package portfolio

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/blumarkets/layers/internal/domain"
	"github.com/rs/zerolog"
)

// RepositoryInterface defines the interface for portfolio state persistence
type RepositoryInterface interface {
	// LoadState loads holdings and cash
	LoadState() (domain.PortfolioState, error)

	// SaveState persists holdings and cash atomically
	SaveState(state domain.PortfolioState) error

	// GetTarget loads the target allocation and risk score
	GetTarget() (domain.TargetAllocation, int, error)

	// SaveTarget persists the target allocation and risk score
	SaveTarget(target domain.TargetAllocation, riskScore int) error

	// SetFrozen flips the collateral flag on one holding
	SetFrozen(assetID string, frozen bool) error

	// AddCash credits (or debits, when negative) the cash balance
	AddCash(amountIRR float64) error
}

// Compile-time check that Repository implements RepositoryInterface
var _ RepositoryInterface = (*Repository)(nil)

// Repository persists holdings, cash and the target allocation. The
// engine never touches it; only the shell loads and commits state.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a portfolio repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "portfolio").Logger(),
	}
}

// LoadState reads all holdings and the cash balance.
func (r *Repository) LoadState() (domain.PortfolioState, error) {
	var state domain.PortfolioState

	rows, err := r.db.Query(`SELECT asset_id, quantity, frozen, layer, purchased_at FROM holdings ORDER BY asset_id`)
	if err != nil {
		return state, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var h domain.Holding
		var frozen int
		var purchasedAt sql.NullString
		if err := rows.Scan(&h.AssetID, &h.Quantity, &frozen, &h.Layer, &purchasedAt); err != nil {
			return state, fmt.Errorf("failed to scan holding: %w", err)
		}
		h.Frozen = frozen != 0
		if purchasedAt.Valid {
			ts, err := time.Parse(time.RFC3339, purchasedAt.String)
			if err != nil {
				return state, fmt.Errorf("invalid purchased_at for %s: %w", h.AssetID, err)
			}
			h.PurchasedAt = &ts
		}
		state.Holdings = append(state.Holdings, h)
	}
	if err := rows.Err(); err != nil {
		return state, fmt.Errorf("holdings iteration failed: %w", err)
	}

	if err := r.db.QueryRow(`SELECT cash_irr FROM portfolio_meta WHERE id = 1`).Scan(&state.Cash); err != nil {
		return state, fmt.Errorf("failed to read cash balance: %w", err)
	}

	return state, nil
}

// SaveState replaces the holdings table and cash balance in one
// transaction. Holdings with zero quantity are kept, never deleted.
func (r *Repository) SaveState(state domain.PortfolioState) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, h := range state.Holdings {
		var purchasedAt interface{}
		if h.PurchasedAt != nil {
			purchasedAt = h.PurchasedAt.UTC().Format(time.RFC3339)
		}
		_, err := tx.Exec(`
			INSERT INTO holdings (asset_id, quantity, frozen, layer, purchased_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(asset_id) DO UPDATE SET
				quantity = excluded.quantity,
				frozen = excluded.frozen,
				layer = excluded.layer,
				purchased_at = excluded.purchased_at`,
			h.AssetID, h.Quantity, boolToInt(h.Frozen), string(h.Layer), purchasedAt)
		if err != nil {
			return fmt.Errorf("failed to upsert holding %s: %w", h.AssetID, err)
		}
	}

	if _, err := tx.Exec(`UPDATE portfolio_meta SET cash_irr = ?, updated_at = ? WHERE id = 1`,
		state.Cash, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("failed to update cash balance: %w", err)
	}

	return tx.Commit()
}

// GetTarget reads the target allocation and the risk score it came from.
func (r *Repository) GetTarget() (domain.TargetAllocation, int, error) {
	var t domain.TargetAllocation
	var score sql.NullInt64
	err := r.db.QueryRow(`
		SELECT target_foundation, target_growth, target_upside, risk_score
		FROM portfolio_meta WHERE id = 1`).
		Scan(&t.Foundation, &t.Growth, &t.Upside, &score)
	if err != nil {
		return t, 0, fmt.Errorf("failed to read target allocation: %w", err)
	}
	return t, int(score.Int64), nil
}

// SaveTarget persists a new target allocation after validating it.
func (r *Repository) SaveTarget(target domain.TargetAllocation, riskScore int) error {
	if err := target.Validate(); err != nil {
		return fmt.Errorf("refusing to persist invalid target: %w", err)
	}
	_, err := r.db.Exec(`
		UPDATE portfolio_meta
		SET target_foundation = ?, target_growth = ?, target_upside = ?, risk_score = ?, updated_at = ?
		WHERE id = 1`,
		target.Foundation, target.Growth, target.Upside, riskScore,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save target allocation: %w", err)
	}
	return nil
}

// SetFrozen flips the collateral flag on a holding.
func (r *Repository) SetFrozen(assetID string, frozen bool) error {
	res, err := r.db.Exec(`UPDATE holdings SET frozen = ? WHERE asset_id = ?`, boolToInt(frozen), assetID)
	if err != nil {
		return fmt.Errorf("failed to set frozen on %s: %w", assetID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("no holding for asset %s", assetID)
	}
	return nil
}

// AddCash credits the cash balance. Negative amounts debit it.
func (r *Repository) AddCash(amountIRR float64) error {
	_, err := r.db.Exec(`UPDATE portfolio_meta SET cash_irr = cash_irr + ?, updated_at = ? WHERE id = 1`,
		amountIRR, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to add cash: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
