package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/blumarkets/layers/internal/domain"
	"github.com/blumarkets/layers/internal/events"
)

const pollTimeout = 10 * time.Second

// Poller fetches price snapshots over plain HTTP. It is the fallback
// path: the run loop only polls while the websocket is down, and a
// scheduled job can call PollOnce directly.
type Poller struct {
	endpoint   string
	httpClient *http.Client
	holder     *Holder
	feed       *WebSocketFeed // may be nil; used to skip polls while connected
	eventMgr   *events.Manager
	log        zerolog.Logger
}

// NewPoller creates an HTTP price poller.
func NewPoller(endpoint string, holder *Holder, feed *WebSocketFeed, eventMgr *events.Manager, log zerolog.Logger) *Poller {
	return &Poller{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: pollTimeout},
		holder:     holder,
		feed:       feed,
		eventMgr:   eventMgr,
		log:        log.With().Str("component", "pricefeed_poller").Logger(),
	}
}

// PollOnce fetches one snapshot and pushes it into the holder.
func (p *Poller) PollOnce(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build poll request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("price poll failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("price poll returned status %d", resp.StatusCode)
	}

	var msg PriceMessage
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return fmt.Errorf("failed to decode price response: %w", err)
	}
	if !msg.valid() {
		return fmt.Errorf("rejecting invalid polled prices (assets=%d fx=%.2f)", len(msg.Prices), msg.FxRate)
	}

	asOf := msg.Timestamp
	if asOf.IsZero() {
		asOf = time.Now()
	}
	p.holder.Set(domain.MarketData{
		Prices: msg.Prices,
		FxRate: msg.FxRate,
		AsOf:   asOf,
	})

	p.eventMgr.EmitTyped(events.PriceUpdated, "pricefeed", &events.PriceUpdatedData{
		Assets: len(msg.Prices),
		FxRate: msg.FxRate,
	})
	return nil
}

// Run polls at the given interval until the context is cancelled.
// Polls are skipped while the websocket feed is up.
func (p *Poller) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.log.Info().Dur("interval", interval).Msg("Price poller started")
	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("Price poller stopped")
			return
		case <-ticker.C:
			if p.feed != nil && p.feed.IsConnected() {
				continue
			}
			if err := p.PollOnce(ctx); err != nil {
				p.log.Warn().Err(err).Msg("Price poll failed")
			}
		}
	}
}
