package pricefeed

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"math"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/blumarkets/layers/internal/domain"
	"github.com/blumarkets/layers/internal/events"
)

const (
	writeWait   = 10 * time.Second
	dialTimeout = 30 * time.Second

	baseReconnectDelay   = 5 * time.Second
	maxReconnectDelay    = 5 * time.Minute
	maxReconnectAttempts = 10
)

// WebSocketFeed streams price updates into the holder over a websocket
// connection, reconnecting with exponential backoff when the link drops.
type WebSocketFeed struct {
	url        string
	httpClient *http.Client
	conn       *websocket.Conn
	connCtx    context.Context
	cancelFunc context.CancelFunc
	mu         sync.RWMutex

	holder   *Holder
	eventMgr *events.Manager
	log      zerolog.Logger

	connected    bool
	reconnecting bool
	stopChan     chan struct{}
	stopped      bool
}

// createHTTP1Client creates an HTTP client that forces HTTP/1.1.
// Cloudflare negotiates HTTP/2 via TLS ALPN, but the websocket upgrade
// handshake requires HTTP/1.1.
func createHTTP1Client() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSClientConfig: &tls.Config{
				NextProtos: []string{"http/1.1"},
			},
			ForceAttemptHTTP2: false,
		},
	}
}

// NewWebSocketFeed creates a websocket price feed.
func NewWebSocketFeed(url string, holder *Holder, eventMgr *events.Manager, log zerolog.Logger) *WebSocketFeed {
	return &WebSocketFeed{
		url:        url,
		httpClient: createHTTP1Client(),
		holder:     holder,
		eventMgr:   eventMgr,
		log:        log.With().Str("component", "pricefeed_websocket").Logger(),
		stopChan:   make(chan struct{}),
	}
}

// Start connects and launches the read loop. A failed initial dial is
// not fatal: the reconnect loop keeps trying in the background while
// the poller covers the gap.
func (ws *WebSocketFeed) Start() error {
	ws.log.Info().Msg("Starting price feed websocket")

	if err := ws.Connect(); err != nil {
		ws.log.Warn().Err(err).Msg("Initial websocket connection failed, will retry in background")
		go ws.reconnectLoop()
		return err
	}

	ws.mu.RLock()
	ctx := ws.connCtx
	ws.mu.RUnlock()
	go ws.readMessages(ctx)

	return nil
}

// Stop shuts the feed down for good.
func (ws *WebSocketFeed) Stop() error {
	ws.mu.Lock()
	if ws.stopped {
		ws.mu.Unlock()
		return nil
	}
	ws.stopped = true
	ws.mu.Unlock()

	ws.log.Info().Msg("Stopping price feed websocket")
	close(ws.stopChan)
	return ws.Disconnect()
}

// Connect dials the endpoint and subscribes to the prices channel.
func (ws *WebSocketFeed) Connect() error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	ws.log.Info().Str("url", ws.url).Msg("Connecting to price feed")

	dialCtx, dialCancel := context.WithTimeout(context.Background(), dialTimeout)
	defer dialCancel()

	conn, _, err := websocket.Dial(dialCtx, ws.url, &websocket.DialOptions{
		HTTPClient: ws.httpClient,
	})
	if err != nil {
		return fmt.Errorf("failed to dial websocket: %w", err)
	}

	connCtx, connCancel := context.WithCancel(context.Background())
	ws.conn = conn
	ws.connCtx = connCtx
	ws.cancelFunc = connCancel
	ws.connected = true

	if err := ws.subscribe(connCtx); err != nil {
		connCancel()
		conn.Close(websocket.StatusNormalClosure, "subscribe failed")
		ws.conn = nil
		ws.connCtx = nil
		ws.cancelFunc = nil
		ws.connected = false
		return fmt.Errorf("failed to subscribe to prices: %w", err)
	}

	ws.eventMgr.EmitTyped(events.PricefeedStatus, "pricefeed", &events.PricefeedStatusData{
		Connected: true,
		Source:    "websocket",
	})
	return nil
}

// Disconnect closes the connection.
func (ws *WebSocketFeed) Disconnect() error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if ws.conn == nil {
		return nil
	}

	if ws.cancelFunc != nil {
		ws.cancelFunc()
		ws.cancelFunc = nil
	}

	err := ws.conn.Close(websocket.StatusNormalClosure, "")
	ws.conn = nil
	ws.connCtx = nil
	ws.connected = false

	ws.eventMgr.EmitTyped(events.PricefeedStatus, "pricefeed", &events.PricefeedStatusData{
		Connected: false,
		Source:    "websocket",
	})

	if err != nil {
		return fmt.Errorf("error closing websocket: %w", err)
	}
	return nil
}

func (ws *WebSocketFeed) subscribe(ctx context.Context) error {
	// Feed protocol: ["prices"]
	data, err := json.Marshal([]string{"prices"})
	if err != nil {
		return fmt.Errorf("failed to marshal subscription message: %w", err)
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()

	if err := ws.conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("failed to send subscription message: %w", err)
	}
	return nil
}

func (ws *WebSocketFeed) readMessages(ctx context.Context) {
	defer func() {
		ws.mu.RLock()
		stopped := ws.stopped
		ws.mu.RUnlock()
		if !stopped {
			go ws.reconnectLoop()
		}
	}()

	for {
		select {
		case <-ws.stopChan:
			return
		case <-ctx.Done():
			return
		default:
		}

		ws.mu.RLock()
		conn := ws.conn
		ws.mu.RUnlock()
		if conn == nil {
			return
		}

		msgType, message, err := conn.Read(ctx)
		if err != nil {
			closeStatus := websocket.CloseStatus(err)
			if closeStatus == websocket.StatusNormalClosure || closeStatus == websocket.StatusGoingAway {
				ws.log.Info().Int("status", int(closeStatus)).Msg("Websocket closed normally")
			} else if ctx.Err() != nil {
				ws.log.Debug().Msg("Read cancelled by context")
			} else {
				ws.log.Error().Err(err).Msg("Unexpected websocket read error")
			}
			return
		}

		if msgType != websocket.MessageText {
			continue
		}

		if err := ws.handleMessage(message); err != nil {
			ws.log.Error().Err(err).Msg("Failed to handle price message")
			// Keep reading despite parse errors.
		}
	}
}

// handleMessage parses one ["prices", {...}] frame and pushes it into
// the holder.
func (ws *WebSocketFeed) handleMessage(message []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(message, &raw); err != nil {
		return fmt.Errorf("failed to parse message array: %w", err)
	}
	if len(raw) < 2 {
		return fmt.Errorf("message array too short: expected 2 elements, got %d", len(raw))
	}

	var channel string
	if err := json.Unmarshal(raw[0], &channel); err != nil {
		return fmt.Errorf("failed to parse channel: %w", err)
	}
	if channel != "prices" {
		return nil
	}

	var msg PriceMessage
	if err := json.Unmarshal(raw[1], &msg); err != nil {
		return fmt.Errorf("failed to parse price data: %w", err)
	}
	return ws.apply(msg)
}

func (ws *WebSocketFeed) apply(msg PriceMessage) error {
	if !msg.valid() {
		return fmt.Errorf("rejecting invalid price message (assets=%d fx=%.2f)", len(msg.Prices), msg.FxRate)
	}
	asOf := msg.Timestamp
	if asOf.IsZero() {
		asOf = time.Now()
	}

	ws.holder.Set(domain.MarketData{
		Prices: msg.Prices,
		FxRate: msg.FxRate,
		AsOf:   asOf,
	})
	ws.eventMgr.EmitTyped(events.PriceUpdated, "pricefeed", &events.PriceUpdatedData{
		Assets: len(msg.Prices),
		FxRate: msg.FxRate,
	})
	return nil
}

func (ws *WebSocketFeed) reconnectLoop() {
	ws.mu.Lock()
	if ws.reconnecting || ws.stopped {
		ws.mu.Unlock()
		return
	}
	ws.reconnecting = true
	ws.mu.Unlock()

	defer func() {
		ws.mu.Lock()
		ws.reconnecting = false
		ws.mu.Unlock()
	}()

	attempt := 0
	for {
		select {
		case <-ws.stopChan:
			return
		default:
		}

		ws.mu.RLock()
		stopped := ws.stopped
		ws.mu.RUnlock()
		if stopped {
			return
		}

		attempt++
		delay := calculateBackoff(attempt)
		if attempt <= maxReconnectAttempts {
			ws.log.Info().Int("attempt", attempt).Dur("delay", delay).Msg("Attempting websocket reconnect")
		} else {
			ws.log.Warn().Int("attempt", attempt).Dur("delay", delay).Msg("Websocket reconnect past max attempts, still retrying")
		}

		select {
		case <-time.After(delay):
		case <-ws.stopChan:
			return
		}

		if err := ws.Connect(); err != nil {
			ws.log.Error().Err(err).Int("attempt", attempt).Msg("Reconnect failed")
			continue
		}

		ws.log.Info().Int("attempt", attempt).Msg("Websocket reconnected")
		ws.mu.RLock()
		ctx := ws.connCtx
		ws.mu.RUnlock()
		go ws.readMessages(ctx)
		return
	}
}

func calculateBackoff(attempt int) time.Duration {
	delay := float64(baseReconnectDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(maxReconnectDelay) {
		delay = float64(maxReconnectDelay)
	}
	return time.Duration(delay)
}

// IsConnected reports the current connection status.
func (ws *WebSocketFeed) IsConnected() bool {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.connected
}
