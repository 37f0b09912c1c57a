package scheduler

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/blumarkets/layers/internal/clients/pricefeed"
	"github.com/blumarkets/layers/internal/events"
	"github.com/blumarkets/layers/internal/modules/lending"
)

// LiquidationJob sweeps active loans against the latest prices and
// liquidates the ones whose collateral has fallen through the
// liquidation price.
type LiquidationJob struct {
	lending *lending.Service
	holder  *pricefeed.Holder
	log     zerolog.Logger
}

// NewLiquidationJob creates the liquidation sweep job.
func NewLiquidationJob(svc *lending.Service, holder *pricefeed.Holder, log zerolog.Logger) *LiquidationJob {
	return &LiquidationJob{
		lending: svc,
		holder:  holder,
		log:     log.With().Str("job", "loan_liquidation").Logger(),
	}
}

// Name returns the job name.
func (j *LiquidationJob) Name() string { return "loan_liquidation" }

// Run checks every active loan. Stale prices skip the sweep rather
// than liquidate on bad data.
func (j *LiquidationJob) Run() error {
	if j.holder.IsStale() {
		return fmt.Errorf("market data is stale, skipping liquidation sweep")
	}
	market, _ := j.holder.Latest()

	n, err := j.lending.CheckLiquidations(market, time.Now())
	if err != nil {
		return err
	}
	if n > 0 {
		j.log.Warn().Int("liquidated", n).Msg("Loans liquidated")
	}
	return nil
}

// InstallmentJob emits a reminder event for every unpaid installment
// that has come due.
type InstallmentJob struct {
	loans    lending.RepositoryInterface
	eventMgr *events.Manager
	log      zerolog.Logger
}

// NewInstallmentJob creates the installment reminder job.
func NewInstallmentJob(loans lending.RepositoryInterface, eventMgr *events.Manager, log zerolog.Logger) *InstallmentJob {
	return &InstallmentJob{
		loans:    loans,
		eventMgr: eventMgr,
		log:      log.With().Str("job", "installment_due").Logger(),
	}
}

// Name returns the job name.
func (j *InstallmentJob) Name() string { return "installment_due" }

// Run scans active loans for due, unpaid installments.
func (j *InstallmentJob) Run() error {
	active, err := j.loans.ListLoans(lending.LoanActive)
	if err != nil {
		return err
	}

	now := time.Now()
	due := 0
	for _, loan := range active {
		installments, err := j.loans.GetInstallments(loan.ID)
		if err != nil {
			return err
		}
		for _, inst := range installments {
			if inst.Status == lending.InstallmentPaid || now.Before(inst.DueAt) {
				continue
			}
			due++
			j.eventMgr.EmitTyped(events.InstallmentDue, "scheduler", &events.InstallmentDueData{
				LoanID:    inst.LoanID,
				Seq:       inst.Seq,
				AmountIRR: inst.AmountIRR - inst.PaidIRR,
				DueAt:     inst.DueAt.UTC().Format(time.RFC3339),
			})
		}
	}
	if due > 0 {
		j.log.Info().Int("due", due).Msg("Installments due")
	}
	return nil
}
