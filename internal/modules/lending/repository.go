package lending

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// RepositoryInterface defines loan persistence operations.
type RepositoryInterface interface {
	SaveLoan(loan Loan, installments []Installment) error
	GetLoan(id string) (*Loan, error)
	GetInstallments(loanID string) ([]Installment, error)
	ListLoans(status LoanStatus) ([]Loan, error)
	UpdateLoan(loan Loan) error
	UpdateInstallment(inst Installment) error
}

// Repository stores loans and their installment schedules.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// Ensure Repository implements RepositoryInterface
var _ RepositoryInterface = (*Repository)(nil)

// NewRepository creates a new loan repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "lending").Logger(),
	}
}

// SaveLoan inserts a loan and its full schedule in one transaction.
func (r *Repository) SaveLoan(loan Loan, installments []Installment) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO loans (id, collateral_asset_id, collateral_quantity, principal_irr, annual_rate, duration_days, started_at, status, amount_paid_irr)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		loan.ID, loan.CollateralAssetID, loan.CollateralQuantity, loan.PrincipalIRR,
		loan.AnnualRate, loan.DurationDays, loan.StartedAt.UTC().Format(time.RFC3339),
		string(loan.Status), loan.AmountPaidIRR)
	if err != nil {
		return fmt.Errorf("failed to save loan %s: %w", loan.ID, err)
	}

	for _, inst := range installments {
		_, err = tx.Exec(
			`INSERT INTO loan_installments (loan_id, seq, due_at, amount_irr, paid_irr, status)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			inst.LoanID, inst.Seq, inst.DueAt.UTC().Format(time.RFC3339),
			inst.AmountIRR, inst.PaidIRR, string(inst.Status))
		if err != nil {
			return fmt.Errorf("failed to save installment %d of loan %s: %w", inst.Seq, loan.ID, err)
		}
	}

	return tx.Commit()
}

// GetLoan returns one loan, or nil when it does not exist.
func (r *Repository) GetLoan(id string) (*Loan, error) {
	row := r.db.QueryRow(
		`SELECT id, collateral_asset_id, collateral_quantity, principal_irr, annual_rate, duration_days, started_at, status, amount_paid_irr
		 FROM loans WHERE id = ?`, id)
	loan, err := scanLoan(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get loan %s: %w", id, err)
	}
	return loan, nil
}

// GetInstallments returns a loan's schedule in sequence order.
func (r *Repository) GetInstallments(loanID string) ([]Installment, error) {
	rows, err := r.db.Query(
		`SELECT loan_id, seq, due_at, amount_irr, paid_irr, status
		 FROM loan_installments WHERE loan_id = ? ORDER BY seq`, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to get installments for %s: %w", loanID, err)
	}
	defer rows.Close()

	var out []Installment
	for rows.Next() {
		var inst Installment
		var dueAt, status string
		if err := rows.Scan(&inst.LoanID, &inst.Seq, &dueAt, &inst.AmountIRR, &inst.PaidIRR, &status); err != nil {
			return nil, fmt.Errorf("failed to scan installment: %w", err)
		}
		ts, err := time.Parse(time.RFC3339, dueAt)
		if err != nil {
			return nil, fmt.Errorf("bad due_at %q: %w", dueAt, err)
		}
		inst.DueAt = ts
		inst.Status = InstallmentStatus(status)
		out = append(out, inst)
	}
	return out, rows.Err()
}

// ListLoans returns loans in one status, newest first.
func (r *Repository) ListLoans(status LoanStatus) ([]Loan, error) {
	rows, err := r.db.Query(
		`SELECT id, collateral_asset_id, collateral_quantity, principal_irr, annual_rate, duration_days, started_at, status, amount_paid_irr
		 FROM loans WHERE status = ? ORDER BY started_at DESC`, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s loans: %w", status, err)
	}
	defer rows.Close()

	var out []Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan: %w", err)
		}
		out = append(out, *loan)
	}
	return out, rows.Err()
}

// UpdateLoan persists status and amount-paid changes.
func (r *Repository) UpdateLoan(loan Loan) error {
	res, err := r.db.Exec(
		`UPDATE loans SET status = ?, amount_paid_irr = ? WHERE id = ?`,
		string(loan.Status), loan.AmountPaidIRR, loan.ID)
	if err != nil {
		return fmt.Errorf("failed to update loan %s: %w", loan.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("no loan with id %s", loan.ID)
	}
	return nil
}

// UpdateInstallment persists paid amount and status changes.
func (r *Repository) UpdateInstallment(inst Installment) error {
	_, err := r.db.Exec(
		`UPDATE loan_installments SET paid_irr = ?, status = ? WHERE loan_id = ? AND seq = ?`,
		inst.PaidIRR, string(inst.Status), inst.LoanID, inst.Seq)
	if err != nil {
		return fmt.Errorf("failed to update installment %d of %s: %w", inst.Seq, inst.LoanID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLoan(row rowScanner) (*Loan, error) {
	var loan Loan
	var startedAt, status string
	if err := row.Scan(&loan.ID, &loan.CollateralAssetID, &loan.CollateralQuantity,
		&loan.PrincipalIRR, &loan.AnnualRate, &loan.DurationDays, &startedAt,
		&status, &loan.AmountPaidIRR); err != nil {
		return nil, err
	}
	ts, err := time.Parse(time.RFC3339, startedAt)
	if err != nil {
		return nil, fmt.Errorf("bad started_at %q: %w", startedAt, err)
	}
	loan.StartedAt = ts
	loan.Status = LoanStatus(status)
	return &loan, nil
}
