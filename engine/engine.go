// Package engine computes notional exposure for a brokerage account. It is
// pure: quotes are supplied through a lookup, account totals as a value, and
// every pass produces a complete report that replaces the previous one.
// Missing market data degrades individual figures through documented
// fallbacks instead of failing the pass.
package engine

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"exposureflow/models"
)

// ErrNoPositions is returned when the upstream produced no positions to
// aggregate. Publishing an all-zero report for an unreachable account would
// be misleading, so the pass yields no result instead.
var ErrNoPositions = errors.New("no positions to aggregate")

// Compute runs one aggregation pass: per-underlying exposures followed by
// portfolio metrics. The returned report carries a fresh pass id and is
// self-contained; callers publish it atomically. An empty position set
// returns ErrNoPositions and no report.
func Compute(positions []models.Position, quotes QuoteLookup, totals models.AccountTotals) (*models.ExposureReport, error) {
	if len(positions) == 0 {
		return nil, ErrNoPositions
	}

	exposures, stats := AggregatePositions(positions, quotes)
	metrics := ComputeMetrics(exposures, totals)

	return &models.ExposureReport{
		PassID:    uuid.New().String(),
		Account:   totals.Account,
		Currency:  totals.Currency,
		Timestamp: time.Now().UTC(),
		Exposures: exposures,
		Metrics:   metrics,
		Stats: models.PassStats{
			Positions:      stats.Positions,
			Underlyings:    stats.Underlyings,
			QuotesMissing:  stats.QuotesMissing,
			PriceFallbacks: stats.PriceFallbacks,
			GreekFallbacks: stats.GreekFallbacks,
		},
	}, nil
}
