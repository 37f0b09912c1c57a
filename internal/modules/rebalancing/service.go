package rebalancing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/blumarkets/layers/internal/domain"
	"github.com/blumarkets/layers/internal/events"
	"github.com/blumarkets/layers/internal/modules/ledger"
	"github.com/blumarkets/layers/internal/modules/portfolio"
	"github.com/blumarkets/layers/internal/modules/trading"
)

// ExecuteResult is the outcome of a committed rebalance.
type ExecuteResult struct {
	Plan     RebalancePlan `json:"plan"`
	Entry    *ledger.Entry `json:"entry"`
	Replayed bool          `json:"replayed"`
}

// Service plans and commits rebalances. Commit re-plans against fresh
// state so a stale confirmation can never apply stale legs.
type Service struct {
	planner   *Planner
	portfolio portfolio.RepositoryInterface
	trades    trading.TradeRepositoryInterface
	ledger    ledger.RepositoryInterface
	eventMgr  *events.Manager
	log       zerolog.Logger
}

// NewService creates a rebalancing service.
func NewService(
	planner *Planner,
	portfolioRepo portfolio.RepositoryInterface,
	tradeRepo trading.TradeRepositoryInterface,
	ledgerRepo ledger.RepositoryInterface,
	eventMgr *events.Manager,
	log zerolog.Logger,
) *Service {
	return &Service{
		planner:   planner,
		portfolio: portfolioRepo,
		trades:    tradeRepo,
		ledger:    ledgerRepo,
		eventMgr:  eventMgr,
		log:       log.With().Str("service", "rebalancing").Logger(),
	}
}

// Plan computes a rebalance plan against the persisted state.
func (s *Service) Plan(market domain.MarketData, deployCash bool, now time.Time) (*RebalancePlan, error) {
	state, err := s.portfolio.LoadState()
	if err != nil {
		return nil, err
	}
	target, _, err := s.portfolio.GetTarget()
	if err != nil {
		return nil, err
	}
	plan := s.planner.Plan(state, market, target, deployCash, now)
	return &plan, nil
}

// Execute re-plans and applies the result atomically: after-state
// persisted, every leg recorded as a trade, one journal entry for the
// whole move. A repeated idempotency key replays the original entry.
func (s *Service) Execute(idempotencyKey string, market domain.MarketData, deployCash bool, now time.Time) (*ExecuteResult, *domain.ValidationResult, error) {
	if idempotencyKey == "" {
		return nil, domain.Invalid("idempotency key is required"), nil
	}

	if existing, err := s.ledger.GetByIdempotencyKey(idempotencyKey); err != nil {
		return nil, nil, err
	} else if existing != nil {
		if existing.Kind != domain.ActionRebalance {
			return nil, nil, fmt.Errorf("idempotency key reused for a %s action", existing.Kind)
		}
		return &ExecuteResult{Entry: existing, Replayed: true}, domain.Valid(), nil
	}

	plan, err := s.Plan(market, deployCash, now)
	if err != nil {
		return nil, nil, err
	}
	if len(plan.Trades) == 0 {
		return nil, domain.Invalid("nothing to rebalance").
			WithMeta("residual_drift", plan.ResidualDrift), nil
	}

	if err := s.portfolio.SaveState(plan.AfterState); err != nil {
		return nil, nil, fmt.Errorf("failed to persist rebalance state: %w", err)
	}

	payload := domain.RebalancePayload{
		ResidualDrift: plan.ResidualDrift,
		DeployedCash:  deployCash,
	}
	for _, leg := range plan.Trades {
		if err := s.trades.Save(trading.Trade{
			ID:         uuid.New().String(),
			Side:       leg.Side,
			AssetID:    leg.AssetID,
			AmountIRR:  leg.AmountIRR,
			Quantity:   leg.Quantity,
			SpreadIRR:  leg.SpreadIRR,
			Boundary:   plan.Boundary,
			ExecutedAt: now,
		}); err != nil {
			return nil, nil, err
		}
		payload.Trades = append(payload.Trades, domain.TradePayload{
			Side:      leg.Side,
			AssetID:   leg.AssetID,
			AmountIRR: leg.AmountIRR,
			Quantity:  leg.Quantity,
			SpreadIRR: leg.SpreadIRR,
		})
	}

	entry, err := s.ledger.Append(ledger.Entry{
		IdempotencyKey: idempotencyKey,
		Kind:           domain.ActionRebalance,
		Payload:        payload,
		Before:         plan.Before,
		After:          plan.After,
		Boundary:       plan.Boundary,
		CreatedAt:      now,
	})
	if err != nil && err != ledger.ErrDuplicateKey {
		return nil, nil, err
	}

	s.eventMgr.EmitTyped(events.RebalanceApplied, "rebalancing", &events.RebalanceAppliedData{
		Trades:        len(plan.Trades),
		ResidualDrift: plan.ResidualDrift,
		DeployedCash:  deployCash,
	})

	s.log.Info().
		Int("legs", len(plan.Trades)).
		Float64("residual_drift", plan.ResidualDrift).
		Bool("deploy_cash", deployCash).
		Msg("Rebalance executed")

	return &ExecuteResult{Plan: *plan, Entry: entry}, domain.Valid(), nil
}
