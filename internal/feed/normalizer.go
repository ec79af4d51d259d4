// Package feed consumes the upstream ticker stream and turns it into
// price cache updates and broadcast ticks.
package feed

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/cryptosim/internal/domain"
)

var (
	// ErrIrrelevant marks a message with no ticker data, such as a
	// heartbeat, status update, or subscription ack.
	ErrIrrelevant = errors.New("irrelevant message")
	// ErrMalformed marks a message that looks like ticker data but cannot
	// be read as a (symbol, price) pair.
	ErrMalformed = errors.New("malformed message")
)

// Normalize extracts a price tick from one upstream message. Only the
// first element of the "data" array is read. Messages on a channel other
// than "ticker" are irrelevant.
func Normalize(raw []byte) (domain.PriceTick, error) {
	if !json.Valid(raw) {
		return domain.PriceTick{}, ErrMalformed
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		// Valid JSON that is not an object.
		return domain.PriceTick{}, ErrIrrelevant
	}

	if channel, ok := envelope["channel"]; ok {
		var name string
		if err := json.Unmarshal(channel, &name); err != nil || name != "ticker" {
			return domain.PriceTick{}, ErrIrrelevant
		}
	}

	data, ok := envelope["data"]
	if !ok || isNull(data) {
		return domain.PriceTick{}, ErrIrrelevant
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return domain.PriceTick{}, ErrIrrelevant
	}
	if len(entries) == 0 {
		return domain.PriceTick{}, ErrIrrelevant
	}

	var entry map[string]json.RawMessage
	if err := json.Unmarshal(entries[0], &entry); err != nil {
		return domain.PriceTick{}, ErrMalformed
	}

	// Status and other non-ticker payloads carry data without a symbol.
	rawSymbol, ok := entry["symbol"]
	if !ok {
		return domain.PriceTick{}, ErrIrrelevant
	}
	var symbol string
	if err := json.Unmarshal(rawSymbol, &symbol); err != nil || symbol == "" {
		return domain.PriceTick{}, ErrMalformed
	}

	last := bytes.TrimSpace(entry["last"])
	if len(last) == 0 || isNull(last) || last[0] == '"' {
		return domain.PriceTick{}, ErrMalformed
	}
	var number json.Number
	if err := json.Unmarshal(last, &number); err != nil {
		return domain.PriceTick{}, ErrMalformed
	}
	price, err := decimal.NewFromString(number.String())
	if err != nil || price.Sign() <= 0 || !domain.WithinPrecision(price) {
		return domain.PriceTick{}, ErrMalformed
	}

	return domain.PriceTick{Symbol: symbol, Price: price}, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// PriceUpdater stores the latest price per symbol.
type PriceUpdater interface {
	Update(symbol string, price decimal.Decimal) bool
}

// Publisher forwards normalized ticks downstream. Publish must not block.
type Publisher interface {
	Publish(tick domain.PriceTick)
}

// Normalizer applies each upstream message to the price cache and
// forwards it to the publisher. Unusable messages are logged and dropped.
type Normalizer struct {
	prices    PriceUpdater
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewNormalizer creates a Normalizer. publisher may be nil.
func NewNormalizer(prices PriceUpdater, publisher Publisher, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{
		prices:    prices,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Handle processes one upstream message.
func (n *Normalizer) Handle(raw []byte) {
	tick, err := Normalize(raw)
	switch {
	case errors.Is(err, ErrIrrelevant):
		n.logger.Debug("feed message ignored", slog.Int("bytes", len(raw)))
		return
	case err != nil:
		n.logger.Warn("feed message dropped",
			slog.String("error", err.Error()),
			slog.String("message", truncate(raw, 256)),
		)
		return
	}

	tick.ReceivedAt = n.now()
	n.prices.Update(tick.Symbol, tick.Price)
	n.logger.Debug("price updated",
		slog.String("symbol", tick.Symbol),
		slog.String("price", tick.Price.String()),
	)

	if n.publisher != nil {
		n.publisher.Publish(tick)
	}
}

func truncate(raw []byte, max int) string {
	if len(raw) <= max {
		return string(raw)
	}
	return string(raw[:max]) + "..."
}
