package metrics

import (
	"strings"
	"sync"

	"exposureflow/config"
)

// Feature identifies an optional metric family that can be switched off in
// configuration.
type Feature string

const (
	// FeatureChannelSize gates buffer occupancy gauges.
	FeatureChannelSize Feature = "channel_size"
	// FeaturePassStats gates per-pass aggregation statistics.
	FeaturePassStats Feature = "pass_stats"
)

var (
	featuresMu sync.RWMutex
	features   = map[Feature]bool{
		FeatureChannelSize: true,
		FeaturePassStats:   true,
	}
)

// Configure applies the metric feature toggles from configuration.
func Configure(cfg config.MetricsConfig) {
	featuresMu.Lock()
	features[FeatureChannelSize] = cfg.ChannelSize
	features[FeaturePassStats] = cfg.PassStats
	featuresMu.Unlock()
}

// IsFeatureEnabled reports whether the given metric feature is switched on.
// Features never configured default to enabled.
func IsFeatureEnabled(feature Feature) bool {
	featuresMu.RLock()
	defer featuresMu.RUnlock()
	enabled, ok := features[feature]
	return !ok || enabled
}

// metricFeature maps a metric name to the feature gating it. Metrics outside
// any feature family are always emitted.
func metricFeature(name string) (Feature, bool) {
	switch {
	case strings.HasSuffix(name, "_buffer_length"):
		return FeatureChannelSize, true
	case strings.HasPrefix(name, "pass_"):
		return FeaturePassStats, true
	default:
		return "", false
	}
}
