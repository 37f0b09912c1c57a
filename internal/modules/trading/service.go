package trading

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
)

// CommitResult is the outcome of a successful (or replayed) commit.
type CommitResult struct {
	Trade    Trade          `json:"trade"`
	Preview  *TradePreview  `json:"preview"`
	Entry    *ledger.Entry  `json:"entry"`
	Replayed bool           `json:"replayed"` // idempotency key seen before
}

// Service commits trades: it replays the preview against freshly loaded
// state, persists the after-state, journals the action and emits an
// event. The simulator does all the math; the service only moves state.
type Service struct {
	simulator *Simulator
	portfolio portfolio.RepositoryInterface
	trades    TradeRepositoryInterface
	ledger    ledger.RepositoryInterface
	eventMgr  *events.Manager
	log       zerolog.Logger
}

// NewService creates a trading service.
func NewService(
	sim *Simulator,
	portfolioRepo portfolio.RepositoryInterface,
	tradeRepo TradeRepositoryInterface,
	ledgerRepo ledger.RepositoryInterface,
	eventMgr *events.Manager,
	log zerolog.Logger,
) *Service {
	return &Service{
		simulator: sim,
		portfolio: portfolioRepo,
		trades:    tradeRepo,
		ledger:    ledgerRepo,
		eventMgr:  eventMgr,
		log:       log.With().Str("service", "trading").Logger(),
	}
}

// Preview runs the what-if simulation against the persisted state.
func (s *Service) Preview(req TradeRequest, market domain.MarketData, now time.Time) (*TradePreview, *domain.ValidationResult, error) {
	state, err := s.portfolio.LoadState()
	if err != nil {
		return nil, nil, err
	}
	target, _, err := s.portfolio.GetTarget()
	if err != nil {
		return nil, nil, err
	}
	preview, vr := s.simulator.Preview(req, state, market, target, now)
	return preview, vr, nil
}

// Commit confirms a trade. The preview is recomputed against current
// state, so a stale confirmation can never apply stale numbers. The
// idempotency key makes retries safe: a repeated key returns the
// original result without touching state.
func (s *Service) Commit(req TradeRequest, idempotencyKey string, market domain.MarketData, now time.Time) (*CommitResult, *domain.ValidationResult, error) {
	if idempotencyKey == "" {
		return nil, domain.Invalid("idempotency key is required"), nil
	}

	if existing, err := s.ledger.GetByIdempotencyKey(idempotencyKey); err != nil {
		return nil, nil, err
	} else if existing != nil {
		return s.replay(existing)
	}

	state, err := s.portfolio.LoadState()
	if err != nil {
		return nil, nil, err
	}
	target, _, err := s.portfolio.GetTarget()
	if err != nil {
		return nil, nil, err
	}

	preview, vr := s.simulator.Preview(req, state, market, target, now)
	if !vr.OK {
		return nil, vr, nil
	}

	trade := Trade{
		ID:         uuid.New().String(),
		Side:       req.Side,
		AssetID:    req.AssetID,
		AmountIRR:  req.AmountIRR,
		Quantity:   preview.Quantity,
		SpreadIRR:  preview.SpreadIRR,
		Boundary:   preview.Boundary,
		ExecutedAt: now,
	}

	if err := s.portfolio.SaveState(preview.AfterState); err != nil {
		return nil, nil, fmt.Errorf("failed to persist trade state: %w", err)
	}
	if err := s.trades.Save(trade); err != nil {
		return nil, nil, err
	}

	entry, err := s.ledger.Append(ledger.Entry{
		IdempotencyKey: idempotencyKey,
		Kind:           domain.ActionTrade,
		Payload: domain.TradePayload{
			Side:      trade.Side,
			AssetID:   trade.AssetID,
			AmountIRR: trade.AmountIRR,
			Quantity:  trade.Quantity,
			SpreadIRR: trade.SpreadIRR,
		},
		Before:       preview.Before,
		After:        preview.After,
		Boundary:     preview.Boundary,
		FrictionCopy: preview.FrictionCopy,
		CreatedAt:    now,
	})
	if err != nil && err != ledger.ErrDuplicateKey {
		return nil, nil, err
	}

	s.eventMgr.EmitTyped(events.TradeCommitted, "trading", &events.TradeCommittedData{
		TradeID:   trade.ID,
		Side:      string(trade.Side),
		AssetID:   trade.AssetID,
		AmountIRR: trade.AmountIRR,
		Quantity:  trade.Quantity,
		SpreadIRR: trade.SpreadIRR,
		Boundary:  trade.Boundary.String(),
	})

	s.log.Info().
		Str("trade_id", trade.ID).
		Str("side", string(trade.Side)).
		Str("asset", trade.AssetID).
		Float64("amount_irr", trade.AmountIRR).
		Str("boundary", trade.Boundary.String()).
		Msg("Trade committed")

	return &CommitResult{Trade: trade, Preview: preview, Entry: entry}, domain.Valid(), nil
}

// replay reconstructs the original commit result from its ledger entry.
func (s *Service) replay(entry *ledger.Entry) (*CommitResult, *domain.ValidationResult, error) {
	payload, ok := entry.Payload.(domain.TradePayload)
	if !ok {
		return nil, nil, fmt.Errorf("idempotency key reused for a %s action", entry.Kind)
	}
	trade := Trade{
		Side:       payload.Side,
		AssetID:    payload.AssetID,
		AmountIRR:  payload.AmountIRR,
		Quantity:   payload.Quantity,
		SpreadIRR:  payload.SpreadIRR,
		Boundary:   entry.Boundary,
		ExecutedAt: entry.CreatedAt,
	}
	preview := &TradePreview{
		Request:      TradeRequest{Side: payload.Side, AssetID: payload.AssetID, AmountIRR: payload.AmountIRR},
		Quantity:     payload.Quantity,
		SpreadIRR:    payload.SpreadIRR,
		NetAmountIRR: payload.AmountIRR - payload.SpreadIRR,
		Before:       entry.Before,
		After:        entry.After,
		Boundary:     entry.Boundary,
		FrictionCopy: entry.FrictionCopy,
	}
	return &CommitResult{Trade: trade, Preview: preview, Entry: entry, Replayed: true}, domain.Valid(), nil
}

// AddFunds credits cash and journals the deposit.
func (s *Service) AddFunds(amountIRR float64, idempotencyKey string, market domain.MarketData, now time.Time) (*ledger.Entry, *domain.ValidationResult, error) {
	if amountIRR <= 0 {
		return nil, domain.Invalid("deposit amount must be positive"), nil
	}
	if idempotencyKey == "" {
		return nil, domain.Invalid("idempotency key is required"), nil
	}

	if existing, err := s.ledger.GetByIdempotencyKey(idempotencyKey); err != nil {
		return nil, nil, err
	} else if existing != nil {
		return existing, domain.Valid(), nil
	}

	state, err := s.portfolio.LoadState()
	if err != nil {
		return nil, nil, err
	}
	before := s.simulator.calculator.Snapshot(state, market, now)

	after := state.Clone()
	after.Cash += amountIRR
	afterSnap := s.simulator.calculator.Snapshot(after, market, now)

	target, _, err := s.portfolio.GetTarget()
	if err != nil {
		return nil, nil, err
	}

	if err := s.portfolio.SaveState(after); err != nil {
		return nil, nil, fmt.Errorf("failed to persist deposit: %w", err)
	}

	// A deposit lands in cash (FOUNDATION). It can never breach a hard
	// limit, but it can widen the drift of an already FOUNDATION-heavy
	// book, so the classifier decides the tier like any other action.
	entry, err := s.ledger.Append(ledger.Entry{
		IdempotencyKey: idempotencyKey,
		Kind:           domain.ActionAddFunds,
		Payload:        domain.AddFundsPayload{AmountIRR: amountIRR},
		Before:         before,
		After:          afterSnap,
		Boundary:       boundary.Classify(before, afterSnap, target),
		CreatedAt:      now,
	})
	if err != nil && err != ledger.ErrDuplicateKey {
		return nil, nil, err
	}

	s.eventMgr.EmitTyped(events.FundsAdded, "trading", &events.FundsAddedData{
		AmountIRR: amountIRR,
		CashIRR:   after.Cash,
	})

	return entry, domain.Valid(), nil
}
