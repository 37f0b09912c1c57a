package protection

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

// Service owns the protection lifecycle: purchase against a fresh
// quote, scheduled expiry, exercise on crash.
type Service struct {
	registry   *registry.Registry
	validator  *Validator
	calculator *portfolio.Calculator
	portfolio  portfolio.RepositoryInterface
	contracts  RepositoryInterface
	ledger     ledger.RepositoryInterface
	eventMgr   *events.Manager
	log        zerolog.Logger
}

// NewService creates a protection service.
func NewService(
	reg *registry.Registry,
	calc *portfolio.Calculator,
	portfolioRepo portfolio.RepositoryInterface,
	contractRepo RepositoryInterface,
	ledgerRepo ledger.RepositoryInterface,
	eventMgr *events.Manager,
	log zerolog.Logger,
) *Service {
	return &Service{
		registry:   reg,
		validator:  NewValidator(reg),
		calculator: calc,
		portfolio:  portfolioRepo,
		contracts:  contractRepo,
		ledger:     ledgerRepo,
		eventMgr:   eventMgr,
		log:        log.With().Str("service", "protection").Logger(),
	}
}

// Purchase buys protection against a server quote. The premium is
// debited from cash; the contract terms are derived at purchase spot.
func (s *Service) Purchase(req PurchaseRequest, quote Quote, idempotencyKey string, market domain.MarketData, now time.Time) (*Protection, *domain.ValidationResult, error) {
	if idempotencyKey == "" {
		return nil, domain.Invalid("idempotency key is required"), nil
	}
	if existing, err := s.ledger.GetByIdempotencyKey(idempotencyKey); err != nil {
		return nil, nil, err
	} else if existing != nil {
		payload, ok := existing.Payload.(domain.ProtectPayload)
		if !ok {
			return nil, nil, fmt.Errorf("idempotency key reused for a %s action", existing.Kind)
		}
		contract, err := s.contracts.Get(payload.ProtectionID)
		if err != nil {
			return nil, nil, err
		}
		return contract, domain.Valid(), nil
	}

	state, err := s.portfolio.LoadState()
	if err != nil {
		return nil, nil, err
	}
	before := s.calculator.Snapshot(state, market, now)
	holdingValue := before.AssetValues[req.AssetID]

	if vr := s.validator.Validate(req, holdingValue, quote, now); !vr.OK {
		return nil, vr, nil
	}
	if quote.PremiumIRR > state.Cash {
		return nil, domain.Invalid("insufficient cash for the premium").
			WithMeta("cash_irr", state.Cash), nil
	}

	price, ok := market.Prices[req.AssetID]
	if !ok {
		return nil, domain.Invalid(fmt.Sprintf("no price available for %s", req.AssetID)), nil
	}
	spotIRR := price * market.FxRate
	terms := Derive(holdingValue, req.Coverage, spotIRR)

	contract := Protection{
		ID:          uuid.New().String(),
		AssetID:     req.AssetID,
		NotionalIRR: terms.NotionalIRR,
		PremiumIRR:  quote.PremiumIRR,
		Coverage:    req.Coverage,
		StrikeIRR:   terms.StrikeIRR,
		StartedAt:   now,
		ExpiresAt:   now.AddDate(0, 0, req.DurationDays),
		Status:      StatusActive,
	}

	after := state.Clone()
	after.Cash -= quote.PremiumIRR
	afterSnap := s.calculator.Snapshot(after, market, now)

	target, _, err := s.portfolio.GetTarget()
	if err != nil {
		return nil, nil, err
	}

	if err := s.portfolio.SaveState(after); err != nil {
		return nil, nil, fmt.Errorf("failed to persist protection state: %w", err)
	}
	if err := s.contracts.Save(contract); err != nil {
		return nil, nil, err
	}

	_, err = s.ledger.Append(ledger.Entry{
		IdempotencyKey: idempotencyKey,
		Kind:           domain.ActionProtect,
		Payload: domain.ProtectPayload{
			ProtectionID: contract.ID,
			AssetID:      contract.AssetID,
			Coverage:     contract.Coverage,
			DurationDays: req.DurationDays,
			NotionalIRR:  contract.NotionalIRR,
			PremiumIRR:   contract.PremiumIRR,
			StrikeIRR:    contract.StrikeIRR,
			QuoteID:      quote.ID,
			QuotedAt:     quote.QuotedAt,
		},
		Before:    before,
		After:     afterSnap,
		Boundary:  boundary.Classify(before, afterSnap, target),
		CreatedAt: now,
	})
	if err != nil && err != ledger.ErrDuplicateKey {
		return nil, nil, err
	}

	s.eventMgr.EmitTyped(events.ProtectionPurchased, "protection", &events.ProtectionPurchasedData{
		ProtectionID: contract.ID,
		AssetID:      contract.AssetID,
		NotionalIRR:  contract.NotionalIRR,
		PremiumIRR:   contract.PremiumIRR,
		DurationDays: req.DurationDays,
	})

	s.log.Info().
		Str("protection_id", contract.ID).
		Str("asset", contract.AssetID).
		Float64("notional_irr", contract.NotionalIRR).
		Float64("premium_irr", contract.PremiumIRR).
		Msg("Protection purchased")

	return &contract, domain.Valid(), nil
}

// Cancel voids an active contract. The premium is not refunded.
func (s *Service) Cancel(id string) (*domain.ValidationResult, error) {
	contract, err := s.contracts.Get(id)
	if err != nil {
		return nil, err
	}
	if contract == nil {
		return domain.Invalid("unknown protection"), nil
	}
	if contract.Status != StatusActive {
		return domain.Invalid(fmt.Sprintf("protection is %s", contract.Status)), nil
	}
	if err := s.contracts.UpdateStatus(id, StatusCancelled); err != nil {
		return nil, err
	}
	return domain.Valid(), nil
}

// Exercise pays out an active contract when spot is below strike and
// closes it. The payout lands in cash.
func (s *Service) Exercise(id string, market domain.MarketData, now time.Time) (float64, *domain.ValidationResult, error) {
	contract, err := s.contracts.Get(id)
	if err != nil {
		return 0, nil, err
	}
	if contract == nil {
		return 0, domain.Invalid("unknown protection"), nil
	}
	if contract.Status != StatusActive {
		return 0, domain.Invalid(fmt.Sprintf("protection is %s", contract.Status)), nil
	}
	if now.After(contract.ExpiresAt) {
		return 0, domain.Invalid("protection has expired"), nil
	}

	price, ok := market.Prices[contract.AssetID]
	if !ok {
		return 0, domain.Invalid(fmt.Sprintf("no price available for %s", contract.AssetID)), nil
	}
	payout := Payout(contract.NotionalIRR, contract.StrikeIRR, price*market.FxRate)
	if payout <= 0 {
		return 0, domain.Invalid("spot is at or above strike, nothing to exercise"), nil
	}

	if err := s.portfolio.AddCash(payout); err != nil {
		return 0, nil, err
	}
	if err := s.contracts.UpdateStatus(id, StatusExercised); err != nil {
		return 0, nil, err
	}

	s.log.Info().
		Str("protection_id", id).
		Float64("payout_irr", payout).
		Msg("Protection exercised")

	return payout, domain.Valid(), nil
}

// ExpireDue moves active contracts past their expiry to EXPIRED.
// Called by the scheduler.
func (s *Service) ExpireDue(now time.Time) (int, error) {
	active, err := s.contracts.List(StatusActive)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, contract := range active {
		if now.Before(contract.ExpiresAt) {
			continue
		}
		if err := s.contracts.UpdateStatus(contract.ID, StatusExpired); err != nil {
			return expired, err
		}
		expired++
		s.eventMgr.EmitTyped(events.ProtectionExpired, "protection", &events.ProtectionPurchasedData{
			ProtectionID: contract.ID,
			AssetID:      contract.AssetID,
			NotionalIRR:  contract.NotionalIRR,
		})
	}
	return expired, nil
}

// EstimatePremium returns the offline display-only estimate for an
// asset using its registry volatility.
func (s *Service) EstimatePremium(assetID string, notionalIRR float64, durationDays int) (float64, error) {
	asset, ok := s.registry.Get(assetID)
	if !ok {
		return 0, fmt.Errorf("unknown asset %q", assetID)
	}
	return OfflineEstimatePremium(notionalIRR, asset.Volatility, durationDays), nil
}
