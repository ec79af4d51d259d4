package engine

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/cryptosim/internal/domain"
)

// SyncMap is a typed wrapper over sync.Map. Stores and loads on distinct
// keys do not contend with each other.
type SyncMap[K comparable, V any] struct{ m sync.Map }

func (c *SyncMap[K, V]) Store(k K, v V) { c.m.Store(k, v) }

func (c *SyncMap[K, V]) Load(k K) (V, bool) {
	v, ok := c.m.Load(k)
	if !ok {
		var z V
		return z, false
	}
	return v.(V), true
}

func (c *SyncMap[K, V]) Range(fn func(K, V) bool) {
	c.m.Range(func(k, v any) bool { return fn(k.(K), v.(V)) })
}

// PriceCache holds the latest quoted price per feed symbol. It is written
// by the feed and read by trade requests concurrently.
type PriceCache struct {
	prices SyncMap[string, decimal.Decimal]
}

// NewPriceCache creates an empty PriceCache.
func NewPriceCache() *PriceCache {
	return &PriceCache{}
}

// Update overwrites the last price for symbol. Non-positive prices are
// ignored and reported as not applied.
func (c *PriceCache) Update(symbol string, price decimal.Decimal) bool {
	if price.Sign() <= 0 {
		return false
	}
	c.prices.Store(symbol, price)
	return true
}

// Get returns the last price for symbol.
func (c *PriceCache) Get(symbol string) (decimal.Decimal, bool) {
	return c.prices.Load(symbol)
}

// Snapshot copies every cached price. Each entry reflects some recent
// update; entries are not guaranteed to come from the same feed batch.
func (c *PriceCache) Snapshot() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	c.prices.Range(func(symbol string, price decimal.Decimal) bool {
		out[symbol] = price
		return true
	})
	return out
}

// Resolve finds the tradable price for a user-supplied symbol using
// domain.QuoteKeys. It returns the cache key that matched.
func (c *PriceCache) Resolve(symbol string) (string, decimal.Decimal, bool) {
	for _, key := range domain.QuoteKeys(symbol) {
		if price, ok := c.prices.Load(key); ok {
			return key, price, true
		}
	}
	return "", decimal.Zero, false
}
