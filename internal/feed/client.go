package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultSymbols are the USD pairs subscribed to when none are configured.
var DefaultSymbols = []string{
	"BTC/USD", "ETH/USD", "BNB/USD", "XRP/USD", "ADA/USD",
	"DOGE/USD", "SOL/USD", "DOT/USD", "MATIC/USD", "LTC/USD",
	"SHIB/USD", "AVAX/USD", "UNI/USD", "XLM/USD", "BCH/USD",
	"ALGO/USD", "VET/USD", "ICP/USD", "MANA/USD", "AXS/USD",
}

// ErrFeedClosed is returned by Run when the connection is lost and the
// reconnect policy gives up.
var ErrFeedClosed = errors.New("feed connection closed")

// MessageHandler consumes raw upstream messages. *Normalizer satisfies it.
type MessageHandler interface {
	Handle(raw []byte)
}

type subscribeParams struct {
	Channel string   `json:"channel"`
	Symbol  []string `json:"symbol"`
}

type subscribeMessage struct {
	Method string          `json:"method"`
	Params subscribeParams `json:"params"`
}

// Client keeps a streaming connection to the upstream ticker and feeds
// every message to its handler.
type Client struct {
	url     string
	symbols []string
	handler MessageHandler
	policy  ReconnectPolicy
	dialer  *websocket.Dialer
	logger  *slog.Logger
}

// NewClient creates a Client. A nil policy means NoReconnect.
func NewClient(url string, symbols []string, handler MessageHandler, policy ReconnectPolicy, logger *slog.Logger) *Client {
	if len(symbols) == 0 {
		symbols = DefaultSymbols
	}
	if policy == nil {
		policy = NoReconnect{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		url:     url,
		symbols: symbols,
		handler: handler,
		policy:  policy,
		dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Run connects, subscribes, and reads until ctx is cancelled or the
// connection is lost and the reconnect policy declines another attempt.
func (c *Client) Run(ctx context.Context) error {
	attempt := 0
	for {
		connected, err := c.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			attempt = 0
		}
		attempt++

		wait, retry := c.policy.Next(attempt)
		if !retry {
			c.logger.Error("feed stopped", slog.String("error", err.Error()))
			return fmt.Errorf("%w: %v", ErrFeedClosed, err)
		}

		c.logger.Warn("feed disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Int("attempt", attempt),
			slog.Duration("wait", wait),
		)
		if !sleep(ctx, wait) {
			return ctx.Err()
		}
	}
}

// session runs one connection. connected reports whether the dial and
// subscription succeeded.
func (c *Client) session(ctx context.Context) (connected bool, err error) {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	c.logger.Info("feed connected", slog.String("url", c.url))

	sub := subscribeMessage{
		Method: "subscribe",
		Params: subscribeParams{Channel: "ticker", Symbol: c.symbols},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return false, fmt.Errorf("subscribe: %w", err)
	}
	c.logger.Info("feed subscribed", slog.Int("symbols", len(c.symbols)))

	// Unblock ReadMessage when ctx is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return true, fmt.Errorf("read: %w", err)
		}
		c.handler.Handle(data)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
