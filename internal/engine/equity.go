package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/cryptosim/internal/domain"
)

// EquityRecorder values the account against a price snapshot and persists
// the result. *ledger.Ledger satisfies it.
type EquityRecorder interface {
	RecordEquity(ctx context.Context, prices map[string]decimal.Decimal) (*domain.EquitySnapshot, error)
}

// EquitySampler periodically records the account's mark-to-market equity
// using the live price cache.
type EquitySampler struct {
	interval time.Duration
	prices   *PriceCache
	recorder EquityRecorder
	logger   *slog.Logger
}

// NewEquitySampler creates a new EquitySampler with the given dependencies.
func NewEquitySampler(interval time.Duration, prices *PriceCache, recorder EquityRecorder, logger *slog.Logger) *EquitySampler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EquitySampler{
		interval: interval,
		prices:   prices,
		recorder: recorder,
		logger:   logger,
	}
}

// Start launches a background goroutine that ticks at the configured
// interval and records a snapshot. It stops when ctx is cancelled.
// A non-positive interval disables sampling.
func (s *EquitySampler) Start(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sample(ctx)
			}
		}
	}()
}

// Sample records one snapshot immediately.
func (s *EquitySampler) Sample(ctx context.Context) (*domain.EquitySnapshot, error) {
	snap, err := s.recorder.RecordEquity(ctx, s.prices.Snapshot())
	if err != nil {
		s.logger.Error("equity sample failed", slog.String("error", err.Error()))
		return nil, err
	}
	s.logger.Debug("equity sampled",
		slog.String("equity", snap.Equity.String()),
		slog.Int("unpriced", len(snap.Unpriced)),
	)
	return snap, nil
}
