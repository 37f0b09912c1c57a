package lending

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/blumarkets/layers/internal/domain"
	"github.com/blumarkets/layers/internal/events"
	"github.com/blumarkets/layers/internal/modules/boundary"
	"github.com/blumarkets/layers/internal/modules/ledger"
	"github.com/blumarkets/layers/internal/modules/portfolio"
	"github.com/blumarkets/layers/internal/modules/registry"
)

// Service owns the loan lifecycle: open freezes the collateral, repay
// works through the schedule, settlement and liquidation release it.
type Service struct {
	registry   *registry.Registry
	calculator *portfolio.Calculator
	portfolio  portfolio.RepositoryInterface
	loans      RepositoryInterface
	ledger     ledger.RepositoryInterface
	eventMgr   *events.Manager
	annualRate float64
	log        zerolog.Logger
}

// NewService creates a lending service. annualRate is the configured
// borrow rate applied to new loans.
func NewService(
	reg *registry.Registry,
	calc *portfolio.Calculator,
	portfolioRepo portfolio.RepositoryInterface,
	loanRepo RepositoryInterface,
	ledgerRepo ledger.RepositoryInterface,
	eventMgr *events.Manager,
	annualRate float64,
	log zerolog.Logger,
) *Service {
	return &Service{
		registry:   reg,
		calculator: calc,
		portfolio:  portfolioRepo,
		loans:      loanRepo,
		ledger:     ledgerRepo,
		eventMgr:   eventMgr,
		annualRate: annualRate,
		log:        log.With().Str("service", "lending").Logger(),
	}
}

// Open validates and opens a loan: the full holding is pledged and
// frozen, the principal lands in cash.
func (s *Service) Open(req OpenRequest, idempotencyKey string, market domain.MarketData, now time.Time) (*Loan, *domain.ValidationResult, error) {
	if idempotencyKey == "" {
		return nil, domain.Invalid("idempotency key is required"), nil
	}
	if existing, err := s.ledger.GetByIdempotencyKey(idempotencyKey); err != nil {
		return nil, nil, err
	} else if existing != nil {
		payload, ok := existing.Payload.(domain.BorrowPayload)
		if !ok {
			return nil, nil, fmt.Errorf("idempotency key reused for a %s action", existing.Kind)
		}
		loan, err := s.loans.GetLoan(payload.LoanID)
		if err != nil {
			return nil, nil, err
		}
		return loan, domain.Valid(), nil
	}

	state, err := s.portfolio.LoadState()
	if err != nil {
		return nil, nil, err
	}

	if vr := s.validateOpen(req, state, market, now); !vr.OK {
		return nil, vr, nil
	}

	target, _, err := s.portfolio.GetTarget()
	if err != nil {
		return nil, nil, err
	}
	before := s.calculator.Snapshot(state, market, now)

	holding := state.Holding(req.CollateralAssetID)
	loan := Loan{
		ID:                 uuid.New().String(),
		CollateralAssetID:  req.CollateralAssetID,
		CollateralQuantity: holding.Quantity,
		PrincipalIRR:       req.PrincipalIRR,
		AnnualRate:         s.annualRate,
		DurationDays:       req.DurationDays,
		StartedAt:          now,
		Status:             LoanActive,
	}

	after := state.Clone()
	after.Holding(req.CollateralAssetID).Frozen = true
	after.Cash += req.PrincipalIRR
	afterSnap := s.calculator.Snapshot(after, market, now)

	if err := s.portfolio.SaveState(after); err != nil {
		return nil, nil, fmt.Errorf("failed to persist loan state: %w", err)
	}
	if err := s.loans.SaveLoan(loan, BuildSchedule(loan.ID, loan.PrincipalIRR, loan.AnnualRate, now, loan.DurationDays)); err != nil {
		return nil, nil, err
	}

	_, err = s.ledger.Append(ledger.Entry{
		IdempotencyKey: idempotencyKey,
		Kind:           domain.ActionBorrow,
		Payload: domain.BorrowPayload{
			LoanID:             loan.ID,
			CollateralAssetID:  loan.CollateralAssetID,
			CollateralQuantity: loan.CollateralQuantity,
			PrincipalIRR:       loan.PrincipalIRR,
			DurationDays:       loan.DurationDays,
		},
		Before:    before,
		After:     afterSnap,
		Boundary:  boundaryOf(before, afterSnap, target),
		CreatedAt: now,
	})
	if err != nil && err != ledger.ErrDuplicateKey {
		return nil, nil, err
	}

	s.eventMgr.EmitTyped(events.LoanOpened, "lending", &events.LoanOpenedData{
		LoanID:            loan.ID,
		CollateralAssetID: loan.CollateralAssetID,
		PrincipalIRR:      loan.PrincipalIRR,
		DurationDays:      loan.DurationDays,
	})

	s.log.Info().
		Str("loan_id", loan.ID).
		Str("collateral", loan.CollateralAssetID).
		Float64("principal_irr", loan.PrincipalIRR).
		Msg("Loan opened")

	return &loan, domain.Valid(), nil
}

func (s *Service) validateOpen(req OpenRequest, state domain.PortfolioState, market domain.MarketData, now time.Time) *domain.ValidationResult {
	if req.PrincipalIRR <= 0 {
		return domain.Invalid("principal must be positive")
	}
	if req.DurationDays != DurationShort && req.DurationDays != DurationLong {
		return domain.Invalid(fmt.Sprintf("duration must be %d or %d days", DurationShort, DurationLong))
	}
	if _, ok := s.registry.Get(req.CollateralAssetID); !ok {
		return domain.Invalid(fmt.Sprintf("unknown asset %q", req.CollateralAssetID))
	}
	holding := state.Holding(req.CollateralAssetID)
	if holding == nil || holding.Quantity <= 0 {
		return domain.Invalid(fmt.Sprintf("no %s holding to pledge", req.CollateralAssetID))
	}
	if holding.Frozen {
		return domain.Invalid(fmt.Sprintf("%s is already pledged", req.CollateralAssetID))
	}

	value := s.calculator.Snapshot(state, market, now).AssetValues[req.CollateralAssetID]
	max := MaxBorrow(value, s.registry.MaxLTV(req.CollateralAssetID))
	if req.PrincipalIRR > max {
		return domain.Invalid("principal exceeds the collateral's borrowing capacity").
			WithMeta("max_borrow_irr", max).
			WithMeta("collateral_value_irr", value)
	}
	return domain.Valid()
}

// Repay pays toward the schedule, or settles the whole loan early when
// settlement is set. Settlement ignores the passed amount and charges
// the computed settlement amount. Closing the loan clears the frozen
// flag on the collateral.
func (s *Service) Repay(loanID string, amountIRR float64, settlement bool, idempotencyKey string, market domain.MarketData, now time.Time) (*LoanDetail, *domain.ValidationResult, error) {
	if idempotencyKey == "" {
		return nil, domain.Invalid("idempotency key is required"), nil
	}
	if existing, err := s.ledger.GetByIdempotencyKey(idempotencyKey); err != nil {
		return nil, nil, err
	} else if existing != nil {
		if _, ok := existing.Payload.(domain.RepayPayload); !ok {
			return nil, nil, fmt.Errorf("idempotency key reused for a %s action", existing.Kind)
		}
		detail, err := s.Detail(loanID, now)
		return detail, domain.Valid(), err
	}

	loan, err := s.loans.GetLoan(loanID)
	if err != nil {
		return nil, nil, err
	}
	if loan == nil {
		return nil, domain.Invalid("unknown loan"), nil
	}
	if loan.Status != LoanActive {
		return nil, domain.Invalid(fmt.Sprintf("loan is %s", loan.Status)), nil
	}

	days := DaysElapsed(loan.StartedAt, now)
	if settlement {
		amountIRR = SettlementAmount(loan.PrincipalIRR, loan.AnnualRate, days, loan.DurationDays)
	}
	if amountIRR <= 0 {
		return nil, domain.Invalid("payment amount must be positive"), nil
	}

	state, err := s.portfolio.LoadState()
	if err != nil {
		return nil, nil, err
	}
	if amountIRR > state.Cash {
		return nil, domain.Invalid("insufficient cash").WithMeta("cash_irr", state.Cash), nil
	}

	target, _, err := s.portfolio.GetTarget()
	if err != nil {
		return nil, nil, err
	}
	before := s.calculator.Snapshot(state, market, now)

	installments, err := s.loans.GetInstallments(loanID)
	if err != nil {
		return nil, nil, err
	}

	closed := settlement
	if settlement {
		for i := range installments {
			installments[i].PaidIRR = installments[i].AmountIRR
			installments[i].Status = InstallmentPaid
		}
	} else {
		closed = applyPayment(installments, amountIRR)
	}

	after := state.Clone()
	after.Cash -= amountIRR
	if closed {
		if h := after.Holding(loan.CollateralAssetID); h != nil {
			h.Frozen = false
		}
	}
	afterSnap := s.calculator.Snapshot(after, market, now)

	if err := s.portfolio.SaveState(after); err != nil {
		return nil, nil, fmt.Errorf("failed to persist repayment state: %w", err)
	}
	for _, inst := range installments {
		if err := s.loans.UpdateInstallment(inst); err != nil {
			return nil, nil, err
		}
	}
	loan.AmountPaidIRR += amountIRR
	if closed {
		loan.Status = LoanSettled
	}
	if err := s.loans.UpdateLoan(*loan); err != nil {
		return nil, nil, err
	}

	_, err = s.ledger.Append(ledger.Entry{
		IdempotencyKey: idempotencyKey,
		Kind:           domain.ActionRepay,
		Payload: domain.RepayPayload{
			LoanID:     loanID,
			AmountIRR:  amountIRR,
			Settlement: settlement,
		},
		Before:    before,
		After:     afterSnap,
		Boundary:  boundaryOf(before, afterSnap, target),
		CreatedAt: now,
	})
	if err != nil && err != ledger.ErrDuplicateKey {
		return nil, nil, err
	}

	s.eventMgr.EmitTyped(events.LoanRepaid, "lending", &events.LoanRepaidData{
		LoanID:     loanID,
		AmountIRR:  amountIRR,
		Settlement: settlement,
		Closed:     closed,
	})

	detail, err := s.Detail(loanID, now)
	return detail, domain.Valid(), err
}

// applyPayment waterfalls a payment across the earliest open
// installments and reports whether the whole schedule is now paid.
func applyPayment(installments []Installment, amountIRR float64) bool {
	remaining := amountIRR
	for i := range installments {
		if remaining <= 0 {
			break
		}
		due := installments[i].AmountIRR - installments[i].PaidIRR
		if due <= 0 {
			continue
		}
		pay := remaining
		if pay > due {
			pay = due
		}
		installments[i].PaidIRR += pay
		remaining -= pay
		if installments[i].PaidIRR >= installments[i].AmountIRR {
			installments[i].Status = InstallmentPaid
		} else {
			installments[i].Status = InstallmentPartial
		}
	}
	for _, inst := range installments {
		if inst.Status != InstallmentPaid {
			return false
		}
	}
	return true
}

// CheckLiquidations scans active loans and liquidates any whose
// collateral spot price has fallen to the liquidation price. The
// collateral is seized; the debt is extinguished with it.
func (s *Service) CheckLiquidations(market domain.MarketData, now time.Time) (int, error) {
	active, err := s.loans.ListLoans(LoanActive)
	if err != nil {
		return 0, err
	}

	liquidated := 0
	for _, loan := range active {
		asset := s.registry.MustGet(loan.CollateralAssetID)
		var unitPrice float64
		if asset.ID == registry.FixedIncomeAssetID {
			unitPrice = asset.UnitPriceIRR
		} else {
			price, ok := market.Prices[asset.ID]
			if !ok {
				continue
			}
			unitPrice = price * market.FxRate
		}

		if unitPrice > LiquidationPrice(loan.PrincipalIRR, loan.CollateralQuantity) {
			continue
		}

		state, err := s.portfolio.LoadState()
		if err != nil {
			return liquidated, err
		}
		if h := state.Holding(loan.CollateralAssetID); h != nil {
			h.Quantity -= loan.CollateralQuantity
			if h.Quantity < 0 {
				h.Quantity = 0
			}
			h.Frozen = false
		}
		if err := s.portfolio.SaveState(state); err != nil {
			return liquidated, err
		}

		loan.Status = LoanLiquidated
		if err := s.loans.UpdateLoan(loan); err != nil {
			return liquidated, err
		}
		liquidated++

		s.eventMgr.EmitTyped(events.LoanClosed, "lending", &events.LoanRepaidData{
			LoanID: loan.ID,
			Closed: true,
		})
		s.log.Warn().
			Str("loan_id", loan.ID).
			Str("collateral", loan.CollateralAssetID).
			Float64("unit_price_irr", unitPrice).
			Msg("Loan liquidated")
	}
	return liquidated, nil
}

// Detail returns a loan with its derived economics at now.
func (s *Service) Detail(loanID string, now time.Time) (*LoanDetail, error) {
	loan, err := s.loans.GetLoan(loanID)
	if err != nil {
		return nil, err
	}
	if loan == nil {
		return nil, fmt.Errorf("no loan with id %s", loanID)
	}
	installments, err := s.loans.GetInstallments(loanID)
	if err != nil {
		return nil, err
	}

	days := DaysElapsed(loan.StartedAt, now)
	return &LoanDetail{
		Loan:                   *loan,
		Installments:           installments,
		DaysElapsed:            days,
		AccruedIRR:             Accrued(loan.PrincipalIRR, loan.AnnualRate, min(days, loan.DurationDays)),
		SettlementAmountIRR:    SettlementAmount(loan.PrincipalIRR, loan.AnnualRate, days, loan.DurationDays),
		FullTermAmountIRR:      FullTermAmount(loan.PrincipalIRR, loan.AnnualRate, loan.DurationDays),
		InterestForgivenessIRR: InterestForgiveness(loan.PrincipalIRR, loan.AnnualRate, days, loan.DurationDays),
		LiquidationPriceIRR:    LiquidationPrice(loan.PrincipalIRR, loan.CollateralQuantity),
	}, nil
}

// MaxBorrowFor returns the current borrowing capacity of a holding.
func (s *Service) MaxBorrowFor(assetID string, market domain.MarketData, now time.Time) (float64, error) {
	state, err := s.portfolio.LoadState()
	if err != nil {
		return 0, err
	}
	if _, ok := s.registry.Get(assetID); !ok {
		return 0, fmt.Errorf("unknown asset %q", assetID)
	}
	value := s.calculator.Snapshot(state, market, now).AssetValues[assetID]
	return MaxBorrow(value, s.registry.MaxLTV(assetID)), nil
}

// boundaryOf classifies the cash leg of a borrow or repayment. The
// classification is computed, not hardcoded SAFE: a large repayment can
// pull FOUNDATION through its floor.
func boundaryOf(before, after domain.PortfolioSnapshot, target domain.TargetAllocation) domain.Boundary {
	return boundary.Classify(before, after, target)
}
