package metrics

import (
	"exposureflow/logger"
	"exposureflow/models"
)

// ReportPass emits the aggregation statistics of one exposure pass using the
// provided logger and component name. Per-metric emission is gated by the
// pass_stats feature; the summary log line is always written.
func ReportPass(log *logger.Log, component, account string, stats models.PassStats) {
	l := log.WithComponent(component)

	fallbackRate := float64(0)
	if stats.Positions > 0 {
		fallbackRate = float64(stats.PriceFallbacks) / float64(stats.Positions)
	}

	missRate := float64(0)
	if stats.QuotesFetched+stats.QuotesMissing > 0 {
		missRate = float64(stats.QuotesMissing) / float64(stats.QuotesFetched+stats.QuotesMissing)
	}

	durationMs := float64(stats.Duration.Nanoseconds()) / 1e6

	EmitMetric(log, component, "pass_positions", stats.Positions, "gauge", logger.Fields{"account": account})
	EmitMetric(log, component, "pass_underlyings", stats.Underlyings, "gauge", logger.Fields{"account": account})
	EmitMetric(log, component, "pass_quotes_fetched", stats.QuotesFetched, "counter", logger.Fields{"account": account})
	EmitMetric(log, component, "pass_quotes_missing", stats.QuotesMissing, "counter", logger.Fields{"account": account})
	EmitMetric(log, component, "pass_price_fallbacks", stats.PriceFallbacks, "counter", logger.Fields{"account": account})
	EmitMetric(log, component, "pass_greek_fallbacks", stats.GreekFallbacks, "counter", logger.Fields{"account": account})
	EmitMetric(log, component, "pass_fallback_rate", fallbackRate, "gauge", logger.Fields{"account": account})
	EmitMetric(log, component, "pass_duration_ms", durationMs, "gauge", logger.Fields{"account": account, "unit": "milliseconds"})

	entry := l.WithFields(logger.Fields{
		"account":         account,
		"positions":       stats.Positions,
		"underlyings":     stats.Underlyings,
		"quotes_fetched":  stats.QuotesFetched,
		"quotes_missing":  stats.QuotesMissing,
		"price_fallbacks": stats.PriceFallbacks,
		"greek_fallbacks": stats.GreekFallbacks,
		"fallback_rate":   fallbackRate,
		"miss_rate":       missRate,
		"duration_ms":     durationMs,
	})

	if stats.PriceFallbacks > 0 || stats.GreekFallbacks > 0 {
		entry.Warn(component + " pass degraded")
		return
	}

	entry.Info(component + " pass complete")
}
