// Package lending implements collateralized IRR loans: pure interest
// and liquidation math plus the loan lifecycle around it.
package lending

import (
	"time"
)

// Loan terms.
const (
	InstallmentCount = 6
	DurationShort    = 90
	DurationLong     = 180
)

// LoanStatus is the lifecycle state of a loan.
type LoanStatus string

const (
	LoanActive     LoanStatus = "ACTIVE"
	LoanSettled    LoanStatus = "SETTLED"
	LoanLiquidated LoanStatus = "LIQUIDATED"
)

// InstallmentStatus is the payment state of one installment.
type InstallmentStatus string

const (
	InstallmentPending InstallmentStatus = "PENDING"
	InstallmentPartial InstallmentStatus = "PARTIAL"
	InstallmentPaid    InstallmentStatus = "PAID"
)

// Loan is a collateralized borrow against a single frozen holding.
type Loan struct {
	ID                 string     `json:"id"`
	CollateralAssetID  string     `json:"collateral_asset_id"`
	CollateralQuantity float64    `json:"collateral_quantity"`
	PrincipalIRR       float64    `json:"principal_irr"`
	AnnualRate         float64    `json:"annual_rate"`
	DurationDays       int        `json:"duration_days"`
	StartedAt          time.Time  `json:"started_at"`
	Status             LoanStatus `json:"status"`
	AmountPaidIRR      float64    `json:"amount_paid_irr"`
}

// Installment is one of the six fixed repayment slices.
type Installment struct {
	LoanID    string            `json:"loan_id"`
	Seq       int               `json:"seq"`
	DueAt     time.Time         `json:"due_at"`
	AmountIRR float64           `json:"amount_irr"`
	PaidIRR   float64           `json:"paid_irr"`
	Status    InstallmentStatus `json:"status"`
}

// LoanDetail is a loan with its derived economics at an instant.
type LoanDetail struct {
	Loan                   Loan          `json:"loan"`
	Installments           []Installment `json:"installments"`
	DaysElapsed            int           `json:"days_elapsed"`
	AccruedIRR             float64       `json:"accrued_irr"`
	SettlementAmountIRR    float64       `json:"settlement_amount_irr"`
	FullTermAmountIRR      float64       `json:"full_term_amount_irr"`
	InterestForgivenessIRR float64       `json:"interest_forgiveness_irr"`
	LiquidationPriceIRR    float64       `json:"liquidation_price_irr"`
}

// OpenRequest is a draft borrow collected by the UI.
type OpenRequest struct {
	CollateralAssetID string  `json:"collateral_asset_id"`
	PrincipalIRR      float64 `json:"principal_irr"`
	DurationDays      int     `json:"duration_days"`
}
