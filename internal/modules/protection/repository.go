package protection

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// RepositoryInterface defines protection persistence operations.
type RepositoryInterface interface {
	Save(p Protection) error
	Get(id string) (*Protection, error)
	List(status Status) ([]Protection, error)
	UpdateStatus(id string, status Status) error
}

// Repository stores protection contracts.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// Ensure Repository implements RepositoryInterface
var _ RepositoryInterface = (*Repository)(nil)

// NewRepository creates a new protection repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "protection").Logger(),
	}
}

// Save inserts a contract.
func (r *Repository) Save(p Protection) error {
	_, err := r.db.Exec(
		`INSERT INTO protections (id, asset_id, notional_irr, premium_irr, coverage, strike_irr, started_at, expires_at, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.AssetID, p.NotionalIRR, p.PremiumIRR, p.Coverage, p.StrikeIRR,
		p.StartedAt.UTC().Format(time.RFC3339), p.ExpiresAt.UTC().Format(time.RFC3339),
		string(p.Status))
	if err != nil {
		return fmt.Errorf("failed to save protection %s: %w", p.ID, err)
	}
	return nil
}

// Get returns one contract, or nil when it does not exist.
func (r *Repository) Get(id string) (*Protection, error) {
	row := r.db.QueryRow(
		`SELECT id, asset_id, notional_irr, premium_irr, coverage, strike_irr, started_at, expires_at, status
		 FROM protections WHERE id = ?`, id)
	p, err := scanProtection(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get protection %s: %w", id, err)
	}
	return p, nil
}

// List returns contracts in one status, newest first.
func (r *Repository) List(status Status) ([]Protection, error) {
	rows, err := r.db.Query(
		`SELECT id, asset_id, notional_irr, premium_irr, coverage, strike_irr, started_at, expires_at, status
		 FROM protections WHERE status = ? ORDER BY started_at DESC`, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s protections: %w", status, err)
	}
	defer rows.Close()

	var out []Protection
	for rows.Next() {
		p, err := scanProtection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan protection: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// UpdateStatus moves a contract to a new lifecycle state.
func (r *Repository) UpdateStatus(id string, status Status) error {
	res, err := r.db.Exec(`UPDATE protections SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update protection %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("no protection with id %s", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProtection(row rowScanner) (*Protection, error) {
	var p Protection
	var startedAt, expiresAt, status string
	if err := row.Scan(&p.ID, &p.AssetID, &p.NotionalIRR, &p.PremiumIRR, &p.Coverage,
		&p.StrikeIRR, &startedAt, &expiresAt, &status); err != nil {
		return nil, err
	}
	start, err := time.Parse(time.RFC3339, startedAt)
	if err != nil {
		return nil, fmt.Errorf("bad started_at %q: %w", startedAt, err)
	}
	expires, err := time.Parse(time.RFC3339, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("bad expires_at %q: %w", expiresAt, err)
	}
	p.StartedAt = start
	p.ExpiresAt = expires
	p.Status = Status(status)
	return &p, nil
}
