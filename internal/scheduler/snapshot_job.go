package scheduler

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/blumarkets/layers/internal/clients/pricefeed"
	"github.com/blumarkets/layers/internal/domain"
	"github.com/blumarkets/layers/internal/events"
	"github.com/blumarkets/layers/internal/modules/boundary"
	"github.com/blumarkets/layers/internal/modules/history"
	"github.com/blumarkets/layers/internal/modules/portfolio"
)

// driftAlertThreshold is the drift above which the snapshot job raises
// a boundary alert.
const driftAlertThreshold = 0.05

// SnapshotJob records the daily closes into the history store and takes
// a portfolio snapshot, alerting when the book has drifted past the
// structural threshold or breached a hard limit.
type SnapshotJob struct {
	holder     *pricefeed.Holder
	history    *history.Store
	portfolio  portfolio.RepositoryInterface
	calculator *portfolio.Calculator
	eventMgr   *events.Manager
	log        zerolog.Logger
}

// NewSnapshotJob creates the snapshot job.
func NewSnapshotJob(
	holder *pricefeed.Holder,
	store *history.Store,
	portfolioRepo portfolio.RepositoryInterface,
	calc *portfolio.Calculator,
	eventMgr *events.Manager,
	log zerolog.Logger,
) *SnapshotJob {
	return &SnapshotJob{
		holder:     holder,
		history:    store,
		portfolio:  portfolioRepo,
		calculator: calc,
		eventMgr:   eventMgr,
		log:        log.With().Str("job", "portfolio_snapshot").Logger(),
	}
}

// Name returns the job name.
func (j *SnapshotJob) Name() string { return "portfolio_snapshot" }

// Run records closes and evaluates the book against its target.
func (j *SnapshotJob) Run() error {
	market, ok := j.holder.Latest()
	if !ok {
		return fmt.Errorf("no market data yet")
	}
	now := time.Now()

	if err := j.history.RecordMarket(market, now); err != nil {
		return err
	}

	state, err := j.portfolio.LoadState()
	if err != nil {
		return err
	}
	target, _, err := j.portfolio.GetTarget()
	if err != nil {
		return err
	}

	snap := j.calculator.Snapshot(state, market, now)
	drift := boundary.Drift(snap, target)

	j.eventMgr.EmitTyped(events.SnapshotRecorded, "scheduler", &events.SnapshotRecordedData{
		TotalValueIRR: snap.TotalValue,
		Drift:         drift,
	})

	if alert, tier := j.classify(snap, drift); alert {
		j.eventMgr.EmitTyped(events.BoundaryAlert, "scheduler", &events.BoundaryAlertData{
			Boundary: tier,
			Drift:    drift,
		})
		j.log.Warn().Str("tier", tier).Float64("drift", drift).Msg("Portfolio outside comfort zone")
	}
	return nil
}

// classify checks the standing book against the hard limits and the
// drift threshold. Unlike trade classification this looks at a single
// snapshot, not a transition.
func (j *SnapshotJob) classify(snap domain.PortfolioSnapshot, drift float64) (bool, string) {
	if snap.TotalValue <= 0 {
		return false, ""
	}
	if snap.Pct(domain.LayerFoundation) < domain.FoundationFloor-domain.AllocationEpsilon {
		return true, domain.BoundaryStress.String()
	}
	if snap.Pct(domain.LayerUpside) > domain.UpsideCeiling+domain.AllocationEpsilon {
		return true, domain.BoundaryStress.String()
	}
	if drift > driftAlertThreshold {
		return true, domain.BoundaryStructural.String()
	}
	return false, ""
}
